package cmd

import (
	"context"
	"fmt"

	"clubledger/config"
	"clubledger/database"
	"clubledger/events"
	"clubledger/identity"
	"clubledger/infrastructure"
	"clubledger/infrastructure/observability"
	"clubledger/repository"
	"clubledger/service"

	log "github.com/sirupsen/logrus"
)

// core holds the pieces shared by every subcommand
type core struct {
	cfg        *config.Config
	db         *database.DB
	bus        *events.Bus
	natsClient *infrastructure.NATSClient
	metrics    *observability.MetricsProvider
	uowFactory service.UnitOfWorkFactory
	retry      service.RetryPolicy
	tokens     *identity.TokenService
	accounts   service.AccountService
}

// newCore connects to the store and builds the settlement core
func newCore(ctx context.Context, cfg *config.Config) (*core, error) {
	c := &core{cfg: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.db = db
	log.Info("Database connection established")

	c.bus = events.NewBus()

	if cfg.NATSServers != "" {
		if err := c.attachNATS(ctx); err != nil {
			c.close(ctx)
			return nil, err
		}
	} else {
		log.Info("NATS_SERVERS not set, events stay in process")
	}

	c.metrics = observability.NewMetricsProvider(cfg)
	if err := c.metrics.Initialize(ctx); err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	c.uowFactory = repository.NewUnitOfWorkFactory(db, c.bus)

	c.retry = service.DefaultRetryPolicy(database.IsRetryable)
	c.retry.MaxAttempts = cfg.TxMaxAttempts
	c.retry.InitialInterval = cfg.TxRetryInitialInterval
	c.retry.Metrics = c.metrics

	c.tokens = identity.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL)
	c.accounts = service.NewAccountService(c.uowFactory, identity.NewBcryptHasher(cfg.BcryptCost), c.tokens, c.retry, service.AccountPolicy{
		AllowedEmailDomain:  cfg.AllowedEmailDomain,
		MinCredentialLength: cfg.MinCredentialLength,
	})

	return c, nil
}

func (c *core) attachNATS(ctx context.Context) error {
	c.natsClient = infrastructure.NewNATSClient(c.cfg.NATSServers)
	if err := c.natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := c.natsClient.EnsureStream(infrastructure.LedgerEventStream, mapper.GetAllSubjects()); err != nil {
		return fmt.Errorf("failed to ensure NATS stream: %w", err)
	}

	infrastructure.NewNATSEventBridge(c.natsClient, mapper).Attach(c.bus)
	return nil
}

func (c *core) settlement() service.SettlementService {
	return service.NewSettlementService(c.uowFactory, c.retry, c.metrics)
}

func (c *core) adjustments() service.AdjustmentService {
	return service.NewAdjustmentService(c.uowFactory, c.retry, c.metrics)
}

// close releases resources in reverse order of acquisition
func (c *core) close(ctx context.Context) {
	if c.metrics != nil {
		if err := c.metrics.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Error shutting down metrics")
		}
	}
	if c.natsClient != nil {
		if err := c.natsClient.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	if c.db != nil {
		log.Info("Closing database connection...")
		c.db.Close()
	}
}
