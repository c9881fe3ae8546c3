package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// AdjustRequest is an administrative correction; a negative SignedAmount debits
type AdjustRequest struct {
	AccountID    string
	SignedAmount decimal.Decimal
	Reason       string
}

type adjustmentService struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
	metrics    Metrics
	now        func() time.Time
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(uowFactory UnitOfWorkFactory, retry RetryPolicy, metrics Metrics) AdjustmentService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &adjustmentService{
		uowFactory: uowFactory,
		retry:      retry,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AdjustBalance applies a signed correction to an account's stored balance and
// records an approved admin-adjustment transaction. The balance may go negative.
func (s *adjustmentService) AdjustBalance(ctx context.Context, caller models.CallerIdentity, req AdjustRequest) (*models.Transaction, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AccountID == "" {
		return nil, newError(KindInvalidArgument, "account id is required")
	}
	if req.SignedAmount.IsZero() {
		return nil, newError(KindInvalidArgument, "adjustment amount cannot be zero")
	}
	if !models.IsCents(req.SignedAmount) {
		return nil, newError(KindInvalidArgument, "adjustment amount must have at most two decimal places")
	}
	if req.Reason == "" {
		return nil, newError(KindInvalidArgument, "a reason is required for an adjustment")
	}

	var tx *models.Transaction
	var balanceBefore decimal.Decimal
	err := s.retry.Do(ctx, "adjust_balance", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		account, err := uow.AccountRepository().GetForUpdate(ctx, req.AccountID)
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}
		if account == nil {
			return newError(KindNotFound, "account %s not found", req.AccountID)
		}
		balanceBefore = account.Balance

		tx, err = models.NewAdjustment(account.ID, req.SignedAmount, req.Reason, caller.AccountID, s.now())
		if err != nil {
			return fromModelError(err)
		}
		tx.ID = uuid.NewString()

		if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to create adjustment: %w", err)
		}

		if err := applyBalanceChange(ctx, uow, account, tx, tx.BalanceEffect()); err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AdjustmentApplied(ctx)

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"accountID":     tx.AccountID,
		"adminID":       caller.AccountID,
		"amount":        req.SignedAmount.StringFixed(2),
		"balanceBefore": balanceBefore.StringFixed(2),
		"reason":        req.Reason,
	}).Info("Balance adjusted")

	return tx, nil
}
