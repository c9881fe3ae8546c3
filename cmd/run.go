package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clubledger/api"
	"clubledger/config"
	"clubledger/identity"
	"clubledger/infrastructure"
	"clubledger/service"

	log "github.com/sirupsen/logrus"
)

// Run starts the HTTP service and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	log.WithField("environment", cfg.Environment).Info("Starting club ledger...")

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.close(closeCtx)
	}()

	receiptStore, err := infrastructure.NewS3ReceiptStore(ctx, infrastructure.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize receipt store: %w", err)
	}
	if err := receiptStore.EnsureBucket(ctx); err != nil {
		return err
	}

	var idempotency api.IdempotencyStore
	redisClient, err := infrastructure.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		idempotency = infrastructure.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	}

	log.Info("Initializing services...")
	services := api.Services{
		Accounts:     c.accounts,
		Reservations: service.NewReservationService(c.uowFactory),
		Settlement:   c.settlement(),
		Adjustments:  c.adjustments(),
		Charges:      service.NewChargeService(c.uowFactory, c.retry),
		Queries:      service.NewLedgerQueryService(c.uowFactory),
		Receipts:     service.NewReceiptService(receiptStore, cfg.ReceiptMaxBytes, cfg.ReceiptURLTTL),
	}

	handler := api.NewHandler(services, c.db, idempotency, cfg.ReceiptMaxBytes)
	router := api.NewRouter(handler, identity.NewResolver(c.tokens, c.accounts), cfg.AllowedOrigins)
	server := api.NewServer(cfg.HTTPAddr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down HTTP server...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	log.Info("Shutdown completed")
	return nil
}
