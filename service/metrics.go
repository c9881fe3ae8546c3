package service

import (
	"context"
	"time"

	"clubledger/models"
)

// Metrics receives counters and timings from the settlement core
type Metrics interface {
	TransactionSubmitted(ctx context.Context, kind models.TransactionKind)
	TransactionResolved(ctx context.Context, status models.TransactionStatus)
	FastPathSettled(ctx context.Context)
	AdjustmentApplied(ctx context.Context)
	StoreRetried(ctx context.Context, operation string)
	StoreRetryExhausted(ctx context.Context, operation string)
	UnitCompleted(ctx context.Context, operation string, duration time.Duration, err error)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) TransactionSubmitted(context.Context, models.TransactionKind) {}
func (NoopMetrics) TransactionResolved(context.Context, models.TransactionStatus) {}
func (NoopMetrics) FastPathSettled(context.Context) {}
func (NoopMetrics) AdjustmentApplied(context.Context) {}
func (NoopMetrics) StoreRetried(context.Context, string) {}
func (NoopMetrics) StoreRetryExhausted(context.Context, string) {}
func (NoopMetrics) UnitCompleted(context.Context, string, time.Duration, error) {}
