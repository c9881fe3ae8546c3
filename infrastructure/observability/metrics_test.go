package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubledger/config"
	"clubledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()
	cfg := config.NewTestConfig()
	cfg.OTELEnabled = true
	cfg.OTELServiceName = "club-ledger-test"

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.start(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m.Data
		}
	}
	return byName
}

func counterTotal(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, point := range sum.DataPoints {
		total += point.Value
	}
	return total
}

func TestMetricsProvider_RecordsSettlementCounters(t *testing.T) {
	mp, reader := newTestProvider(t)
	ctx := context.Background()

	mp.TransactionSubmitted(ctx, models.TransactionKindTopUp)
	mp.TransactionSubmitted(ctx, models.TransactionKindChargeSettlement)
	mp.TransactionResolved(ctx, models.TransactionStatusApproved)
	mp.FastPathSettled(ctx)
	mp.AdjustmentApplied(ctx)
	mp.StoreRetried(ctx, "submit_transaction")
	mp.StoreRetried(ctx, "submit_transaction")
	mp.StoreRetryExhausted(ctx, "submit_transaction")

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, metrics[TransactionsSubmittedTotal]))
	assert.Equal(t, int64(1), counterTotal(t, metrics[TransactionsResolvedTotal]))
	assert.Equal(t, int64(1), counterTotal(t, metrics[FastPathSettlementsTotal]))
	assert.Equal(t, int64(1), counterTotal(t, metrics[AdjustmentsTotal]))
	assert.Equal(t, int64(2), counterTotal(t, metrics[StoreRetriesTotal]))
	assert.Equal(t, int64(1), counterTotal(t, metrics[StoreRetryExhaustedTotal]))
}

func TestMetricsProvider_UnitDurationByOutcome(t *testing.T) {
	mp, reader := newTestProvider(t)
	ctx := context.Background()

	mp.UnitCompleted(ctx, "resolve_transaction", 12*time.Millisecond, nil)
	mp.UnitCompleted(ctx, "resolve_transaction", 40*time.Millisecond, errors.New("conflict"))

	hist, ok := collect(t, reader)[StoreUnitDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)
	for _, point := range hist.DataPoints {
		assert.Equal(t, uint64(1), point.Count)
	}
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	cfg := config.NewTestConfig()
	mp := NewMetricsProvider(cfg)

	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.TransactionSubmitted(context.Background(), models.TransactionKindTopUp)
		mp.UnitCompleted(context.Background(), "op", time.Millisecond, nil)
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTELEnabled = true
	cfg.OTELExporterType = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())

	assert.Error(t, err)
}

func TestMetricsProvider_ResourceCarriesServiceName(t *testing.T) {
	mp, reader := newTestProvider(t)
	mp.FastPathSettled(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	name, ok := rm.Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "club-ledger-test", name.AsString())
	env, ok := rm.Resource.Set().Value(attribute.Key("environment"))
	require.True(t, ok)
	assert.Equal(t, mp.config.Environment, env.AsString())
}

func TestMetricsProvider_InitializeConsoleExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTELEnabled = true
	cfg.OTELExporterType = "console"
	cfg.OTELServiceName = "club-ledger-test"

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	assert.True(t, mp.isEnabled())
}
