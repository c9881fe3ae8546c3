package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy re-runs an atomic unit when the store reports a transient conflict
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// IsRetryable classifies store errors; nil disables retries
	IsRetryable func(error) bool
	Metrics     Metrics
}

// DefaultRetryPolicy returns a policy with a bounded budget of five attempts
func DefaultRetryPolicy(isRetryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		IsRetryable:     isRetryable,
		Metrics:         NoopMetrics{},
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Exhaustion surfaces as an Internal error.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	metrics := p.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expBackoff.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expBackoff.MaxInterval = p.MaxInterval
	}
	expBackoff.MaxElapsedTime = 0

	attempt := 0
	start := time.Now()

	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if p.IsRetryable == nil || !p.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if attempt < maxAttempts {
			metrics.StoreRetried(ctx, operation)
			log.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
				"error":     err,
			}).Warn("Retrying atomic unit after store conflict")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(maxAttempts-1)), ctx))

	metrics.UnitCompleted(ctx, operation, time.Since(start), err)

	if err != nil && p.IsRetryable != nil && p.IsRetryable(err) {
		metrics.StoreRetryExhausted(ctx, operation)
		log.WithFields(log.Fields{
			"operation": operation,
			"attempts":  attempt,
			"error":     err,
		}).Error("Retry budget exhausted")
		return wrapError(KindInternal, err, "%s: store conflict persisted after %d attempts", operation, attempt)
	}
	return err
}
