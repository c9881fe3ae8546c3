package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clubledger/config"
	"clubledger/models"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider records settlement metrics through OpenTelemetry
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	submittedCounter      metric.Int64Counter
	resolvedCounter       metric.Int64Counter
	fastPathCounter       metric.Int64Counter
	adjustmentsCounter    metric.Int64Counter
	retriesCounter        metric.Int64Counter
	retryExhaustedCounter metric.Int64Counter
	unitDurationHist      metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the exporter selected by configuration
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTELEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	var reader sdkmetric.Reader
	switch mp.config.OTELExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.exportInterval()))
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTELOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.exportInterval()))
		log.WithField("endpoint", mp.config.OTELOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTELExporterType)
	}

	if err := mp.start(reader); err != nil {
		return err
	}
	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) exportInterval() time.Duration {
	if mp.config.OTELExportIntervalMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(mp.config.OTELExportIntervalMs) * time.Millisecond
}

// start builds the meter provider around reader and creates the instruments
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	res, err := resource.Merge(
		resource.Default(),
		// Schemaless so the merge never conflicts with the SDK's default schema
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTELServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("club-ledger")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.submittedCounter, TransactionsSubmittedTotal, "Transactions submitted for review"},
		{&mp.resolvedCounter, TransactionsResolvedTotal, "Transactions approved or rejected"},
		{&mp.fastPathCounter, FastPathSettlementsTotal, "Charges settled entirely from balance"},
		{&mp.adjustmentsCounter, AdjustmentsTotal, "Administrative balance adjustments"},
		{&mp.retriesCounter, StoreRetriesTotal, "Atomic units retried after a store conflict"},
		{&mp.retryExhaustedCounter, StoreRetryExhaustedTotal, "Atomic units that spent their retry budget"},
	}
	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	mp.unitDurationHist, err = mp.meter.Float64Histogram(
		StoreUnitDuration,
		metric.WithDescription("Duration of atomic units including retries, in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create unit duration histogram: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.enabled = false
	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.enabled
}

// TransactionSubmitted counts a submission by kind
func (mp *MetricsProvider) TransactionSubmitted(ctx context.Context, kind models.TransactionKind) {
	if !mp.isEnabled() {
		return
	}
	mp.submittedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelKind, string(kind))))
}

// TransactionResolved counts a resolution by decision
func (mp *MetricsProvider) TransactionResolved(ctx context.Context, status models.TransactionStatus) {
	if !mp.isEnabled() {
		return
	}
	mp.resolvedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelDecision, string(status))))
}

func (mp *MetricsProvider) FastPathSettled(ctx context.Context) {
	if !mp.isEnabled() {
		return
	}
	mp.fastPathCounter.Add(ctx, 1)
}

func (mp *MetricsProvider) AdjustmentApplied(ctx context.Context) {
	if !mp.isEnabled() {
		return
	}
	mp.adjustmentsCounter.Add(ctx, 1)
}

func (mp *MetricsProvider) StoreRetried(ctx context.Context, operation string) {
	if !mp.isEnabled() {
		return
	}
	mp.retriesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelOperation, operation)))
}

func (mp *MetricsProvider) StoreRetryExhausted(ctx context.Context, operation string) {
	if !mp.isEnabled() {
		return
	}
	mp.retryExhaustedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelOperation, operation)))
}

// UnitCompleted records how long an atomic unit took, retries included
func (mp *MetricsProvider) UnitCompleted(ctx context.Context, operation string, duration time.Duration, err error) {
	if !mp.isEnabled() {
		return
	}
	outcome := OutcomeCommitted
	if err != nil {
		outcome = OutcomeFailed
	}
	mp.unitDurationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(LabelOperation, operation),
		attribute.String(LabelOutcome, outcome),
	))
}
