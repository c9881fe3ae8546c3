package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubledger/events"
	"clubledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SubmitRequest describes a transaction submitted by an account holder.
// A non-empty ChargeID makes it a charge settlement, otherwise a top-up.
type SubmitRequest struct {
	ChargeID          string
	AmountFromBalance decimal.Decimal
	AmountFromReceipt decimal.Decimal
	ReceiptRef        string
}

// Decision is an admin's verdict on a transaction under review
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ResolveRequest carries an admin decision; Reason is required to reject
type ResolveRequest struct {
	TransactionID string
	Decision      Decision
	Reason        string
}

type settlementService struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
	metrics    Metrics
	now        func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, retry RetryPolicy, metrics Metrics) SettlementService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &settlementService{
		uowFactory: uowFactory,
		retry:      retry,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SubmitTransaction records a top-up or a charge settlement for admin review.
// The balance portion is reserved, not debited, until approval.
func (s *settlementService) SubmitTransaction(ctx context.Context, caller models.CallerIdentity, req SubmitRequest) (*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	req.ChargeID = strings.TrimSpace(req.ChargeID)
	req.ReceiptRef = strings.TrimSpace(req.ReceiptRef)
	if err := validateSubmitRequest(req); err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err := s.retry.Do(ctx, "submit_transaction", func() error {
		var err error
		tx, err = s.submit(ctx, caller.AccountID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransactionSubmitted(ctx, tx.Kind())

	chargeID, _ := tx.ChargeID()
	log.WithFields(log.Fields{
		"transactionID":     tx.ID,
		"accountID":         tx.AccountID,
		"kind":              tx.Kind(),
		"chargeID":          chargeID,
		"amountFromBalance": tx.AmountFromBalance.StringFixed(2),
		"amountFromReceipt": tx.AmountFromReceipt.StringFixed(2),
	}).Info("Transaction submitted for review")

	return tx, nil
}

func (s *settlementService) submit(ctx context.Context, accountID string, req SubmitRequest) (*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, newError(KindNotFound, "account %s not found", accountID)
	}

	// Re-validated under the account lock; a display-time read may be stale
	if !account.CanAfford(req.AmountFromBalance) {
		return nil, newError(KindInsufficientAvailableBalance,
			"requested %s from balance but only %s is available",
			req.AmountFromBalance.StringFixed(2), account.AvailableBalance.StringFixed(2))
	}

	var tx *models.Transaction
	if req.ChargeID == "" {
		tx, err = models.NewTopUp(account.ID, req.AmountFromReceipt, req.ReceiptRef)
		if err != nil {
			return nil, fromModelError(err)
		}
	} else {
		charge, err := uow.ChargeRepository().GetForUpdate(ctx, req.ChargeID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock charge: %w", err)
		}
		if charge == nil || !charge.BelongsTo(account.ID) {
			return nil, newError(KindNotFound, "charge %s not found", req.ChargeID)
		}
		if !charge.IsPending() {
			return nil, newError(KindChargeNotPending, "charge %s is %s", charge.ID, charge.Status)
		}

		tx, err = models.NewChargeSettlement(account.ID, charge, req.AmountFromBalance, req.AmountFromReceipt, req.ReceiptRef)
		if err != nil {
			return nil, fromModelError(err)
		}

		moved, err := uow.ChargeRepository().TransitionStatus(ctx, charge.ID, models.ChargeStatusPending, models.ChargeStatusProcessing)
		if err != nil {
			return nil, fmt.Errorf("failed to mark charge processing: %w", err)
		}
		if !moved {
			return nil, newError(KindChargeNotPending, "charge %s is no longer pending", charge.ID)
		}
	}

	tx.ID = uuid.NewString()
	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	chargeID, _ := tx.ChargeID()
	uow.EventBus().Publish(events.TransactionSubmittedEvent{
		TransactionID:     tx.ID,
		AccountID:         tx.AccountID,
		Kind:              tx.Kind(),
		ChargeID:          chargeID,
		AmountFromBalance: tx.AmountFromBalance,
		AmountFromReceipt: tx.AmountFromReceipt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tx, nil
}

// ResolveTransaction approves or rejects a transaction under review
func (s *settlementService) ResolveTransaction(ctx context.Context, caller models.CallerIdentity, req ResolveRequest) (*models.Transaction, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.TransactionID == "" {
		return nil, newError(KindInvalidArgument, "transaction id is required")
	}
	switch req.Decision {
	case DecisionApprove:
	case DecisionReject:
		if req.Reason == "" {
			log.WithFields(log.Fields{
				"transactionID": req.TransactionID,
				"reason":        "MissingReason",
			}).Debug("Rejection refused")
			return nil, newError(KindInvalidArgument, "a reason is required to reject a transaction")
		}
	default:
		return nil, newError(KindInvalidArgument, "decision must be %q or %q, got %q", DecisionApprove, DecisionReject, req.Decision)
	}

	var tx *models.Transaction
	err := s.retry.Do(ctx, "resolve_transaction", func() error {
		var err error
		tx, err = s.resolve(ctx, caller.AccountID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransactionResolved(ctx, tx.Status)

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"accountID":     tx.AccountID,
		"kind":          tx.Kind(),
		"status":        tx.Status,
		"resolvedBy":    caller.AccountID,
	}).Info("Transaction resolved")

	return tx, nil
}

func (s *settlementService) resolve(ctx context.Context, adminID string, req ResolveRequest) (*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := uow.TransactionRepository().GetForUpdate(ctx, req.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	if tx == nil {
		return nil, newError(KindNotFound, "transaction %s not found", req.TransactionID)
	}
	if !tx.IsUnderReview() {
		return nil, newError(KindTransactionNotPending, "transaction %s is already %s", tx.ID, tx.Status)
	}

	account, err := uow.AccountRepository().GetForUpdate(ctx, tx.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, newError(KindInternal, "account %s of transaction %s is missing", tx.AccountID, tx.ID)
	}

	now := s.now()
	chargeID, isSettlement := tx.ChargeID()

	if req.Decision == DecisionApprove {
		if err := tx.Approve(adminID, now); err != nil {
			return nil, fromModelError(err)
		}
		if isSettlement {
			if err := s.moveCharge(ctx, uow, chargeID, models.ChargeStatusProcessing, models.ChargeStatusPaid); err != nil {
				return nil, err
			}
		}
	} else {
		if err := tx.Reject(adminID, req.Reason, now); err != nil {
			return nil, fromModelError(err)
		}
		if isSettlement {
			if err := s.moveCharge(ctx, uow, chargeID, models.ChargeStatusProcessing, models.ChargeStatusPending); err != nil {
				return nil, err
			}
		}
	}

	resolved, err := uow.TransactionRepository().Resolve(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve transaction: %w", err)
	}
	if !resolved {
		return nil, newError(KindTransactionNotPending, "transaction %s is no longer under review", tx.ID)
	}

	if tx.Status == models.TransactionStatusApproved {
		if err := applyBalanceChange(ctx, uow, account, tx, tx.BalanceEffect()); err != nil {
			return nil, err
		}
		if isSettlement {
			uow.EventBus().Publish(events.ChargeSettledEvent{
				ChargeID:      chargeID,
				AccountID:     tx.AccountID,
				TransactionID: tx.ID,
				Amount:        tx.AmountTotal,
			})
		}
	}

	uow.EventBus().Publish(events.TransactionResolvedEvent{
		TransactionID:   tx.ID,
		AccountID:       tx.AccountID,
		Kind:            tx.Kind(),
		Status:          tx.Status,
		ResolvedBy:      adminID,
		RejectionReason: tx.RejectionReason,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tx, nil
}

// moveCharge performs a guarded charge transition that the settlement state
// machine guarantees is valid; a miss means the store is inconsistent
func (s *settlementService) moveCharge(ctx context.Context, uow UnitOfWork, chargeID string, from, to models.ChargeStatus) error {
	if _, err := uow.ChargeRepository().GetForUpdate(ctx, chargeID); err != nil {
		return fmt.Errorf("failed to lock charge: %w", err)
	}
	moved, err := uow.ChargeRepository().TransitionStatus(ctx, chargeID, from, to)
	if err != nil {
		return fmt.Errorf("failed to move charge %s to %s: %w", chargeID, to, err)
	}
	if !moved {
		return newError(KindInternal, "charge %s was not %s", chargeID, from)
	}
	return nil
}

// Approve approves a transaction under review
func (s *settlementService) Approve(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error) {
	return s.ResolveTransaction(ctx, caller, ResolveRequest{TransactionID: transactionID, Decision: DecisionApprove})
}

// Reject rejects a transaction under review
func (s *settlementService) Reject(ctx context.Context, caller models.CallerIdentity, transactionID, reason string) (*models.Transaction, error) {
	return s.ResolveTransaction(ctx, caller, ResolveRequest{TransactionID: transactionID, Decision: DecisionReject, Reason: reason})
}

// SettleChargeFromBalanceInFull pays a pending charge entirely from the
// caller's available balance. No review is needed since no receipt is involved.
func (s *settlementService) SettleChargeFromBalanceInFull(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	chargeID = strings.TrimSpace(chargeID)
	if chargeID == "" {
		return nil, newError(KindInvalidArgument, "charge id is required")
	}

	var tx *models.Transaction
	err := s.retry.Do(ctx, "settle_charge_from_balance", func() error {
		var err error
		tx, err = s.settleFromBalance(ctx, caller.AccountID, chargeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.FastPathSettled(ctx)

	log.WithFields(log.Fields{
		"transactionID": tx.ID,
		"accountID":     tx.AccountID,
		"chargeID":      chargeID,
		"amount":        tx.AmountTotal.StringFixed(2),
	}).Info("Charge settled from balance")

	return tx, nil
}

func (s *settlementService) settleFromBalance(ctx context.Context, accountID, chargeID string) (*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, newError(KindNotFound, "account %s not found", accountID)
	}

	charge, err := uow.ChargeRepository().GetForUpdate(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock charge: %w", err)
	}
	if charge == nil || !charge.BelongsTo(account.ID) {
		return nil, newError(KindNotFound, "charge %s not found", chargeID)
	}
	if !charge.IsPending() {
		return nil, newError(KindChargeNotPending, "charge %s is %s", charge.ID, charge.Status)
	}
	if !account.CanAfford(charge.Amount) {
		return nil, newError(KindInsufficientFunds,
			"charge amount %s exceeds available balance %s",
			charge.Amount.StringFixed(2), account.AvailableBalance.StringFixed(2))
	}

	tx, err := models.NewDirectSettlement(account.ID, charge, account.ID, s.now())
	if err != nil {
		return nil, fromModelError(err)
	}
	tx.ID = uuid.NewString()

	moved, err := uow.ChargeRepository().TransitionStatus(ctx, charge.ID, models.ChargeStatusPending, models.ChargeStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to mark charge paid: %w", err)
	}
	if !moved {
		return nil, newError(KindChargeNotPending, "charge %s is no longer pending", charge.ID)
	}

	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := applyBalanceChange(ctx, uow, account, tx, tx.BalanceEffect()); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.ChargeSettledEvent{
		ChargeID:      charge.ID,
		AccountID:     account.ID,
		TransactionID: tx.ID,
		Amount:        charge.Amount,
		FastPath:      true,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tx, nil
}

func validateSubmitRequest(req SubmitRequest) error {
	if req.AmountFromBalance.IsNegative() || req.AmountFromReceipt.IsNegative() {
		return newError(KindInvalidArgument, "amounts cannot be negative")
	}
	if !models.IsCents(req.AmountFromBalance) || !models.IsCents(req.AmountFromReceipt) {
		return newError(KindInvalidArgument, "amounts must have at most two decimal places")
	}
	if !req.AmountFromBalance.Add(req.AmountFromReceipt).IsPositive() {
		return newError(KindInvalidArgument, "total amount must be positive")
	}
	if req.AmountFromReceipt.IsPositive() && req.ReceiptRef == "" {
		return newError(KindInvalidArgument, "a receipt is required when part of the amount comes from a receipt")
	}
	if req.AmountFromReceipt.IsZero() && req.ReceiptRef != "" {
		return newError(KindInvalidArgument, "a receipt was given without a receipt amount")
	}
	if req.ChargeID == "" && !req.AmountFromBalance.IsZero() {
		return newError(KindInvalidArgument, "a top-up cannot draw from the balance")
	}
	return nil
}
