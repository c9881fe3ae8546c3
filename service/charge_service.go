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

// CreateChargesRequest bills the same amount to every listed account
type CreateChargesRequest struct {
	AccountIDs []string
	Title      string
	Amount     decimal.Decimal
	DueDate    time.Time
}

type chargeService struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
}

// NewChargeService creates a new charge service
func NewChargeService(uowFactory UnitOfWorkFactory, retry RetryPolicy) ChargeService {
	return &chargeService{
		uowFactory: uowFactory,
		retry:      retry,
	}
}

// CreateCharges creates one pending charge per account in a single atomic batch.
// The returned ids follow the order of the (de-duplicated) request.
func (s *chargeService) CreateCharges(ctx context.Context, caller models.CallerIdentity, req CreateChargesRequest) ([]string, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	accountIDs := dedupeIDs(req.AccountIDs)
	title := strings.TrimSpace(req.Title)
	if len(accountIDs) == 0 {
		return nil, newError(KindInvalidArgument, "at least one account is required")
	}
	if title == "" {
		return nil, newError(KindInvalidArgument, "title is required")
	}
	if !req.Amount.IsPositive() {
		return nil, newError(KindInvalidArgument, "amount must be positive")
	}
	if !models.IsCents(req.Amount) {
		return nil, newError(KindInvalidArgument, "amount must have at most two decimal places")
	}
	if req.DueDate.IsZero() {
		return nil, newError(KindInvalidArgument, "due date is required")
	}
	dueDate := time.Date(req.DueDate.Year(), req.DueDate.Month(), req.DueDate.Day(), 0, 0, 0, 0, time.UTC)

	var charges []*models.Charge
	err := s.retry.Do(ctx, "create_charges", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		existing, err := uow.AccountRepository().ExistingIDs(ctx, accountIDs)
		if err != nil {
			return fmt.Errorf("failed to check accounts: %w", err)
		}
		if missing := missingIDs(accountIDs, existing); len(missing) > 0 {
			return newError(KindNotFound, "accounts not found: %s", strings.Join(missing, ", "))
		}

		charges = make([]*models.Charge, 0, len(accountIDs))
		for _, accountID := range accountIDs {
			charges = append(charges, &models.Charge{
				ID:        uuid.NewString(),
				AccountID: accountID,
				Title:     title,
				Amount:    req.Amount,
				DueAt:     dueDate,
				Status:    models.ChargeStatusPending,
				CreatedBy: caller.AccountID,
			})
		}

		if err := uow.ChargeRepository().CreateBatch(ctx, charges); err != nil {
			return fmt.Errorf("failed to create charges: %w", err)
		}

		uow.EventBus().Publish(events.ChargesCreatedEvent{
			ChargeIDs: chargeIDs(charges),
			Title:     title,
			Amount:    req.Amount,
			CreatedBy: caller.AccountID,
		})

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := chargeIDs(charges)
	log.WithFields(log.Fields{
		"count":     len(ids),
		"title":     title,
		"amount":    req.Amount.StringFixed(2),
		"dueDate":   dueDate.Format(time.DateOnly),
		"createdBy": caller.AccountID,
	}).Info("Charges created")

	return ids, nil
}

// ListCharges returns an account's charges, optionally only those in status
func (s *chargeService) ListCharges(ctx context.Context, caller models.CallerIdentity, accountID string, status models.ChargeStatus) ([]*models.Charge, error) {
	if err := requireAccess(caller, accountID); err != nil {
		return nil, err
	}
	switch status {
	case "", models.ChargeStatusPending, models.ChargeStatusProcessing, models.ChargeStatusPaid:
	default:
		return nil, newError(KindInvalidArgument, "unknown charge status %q", status)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	charges, err := uow.ChargeRepository().ListByAccount(ctx, accountID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return charges, nil
}

// GetCharge returns a charge visible to the caller
func (s *chargeService) GetCharge(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Charge, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	charge, err := uow.ChargeRepository().GetByID(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	// Other accounts' charges are reported as missing rather than forbidden
	if charge == nil || !caller.CanAccess(charge.AccountID) {
		return nil, newError(KindNotFound, "charge %s not found", chargeID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return charge, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func missingIDs(wanted, existing []string) []string {
	found := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		found[id] = struct{}{}
	}
	var missing []string
	for _, id := range wanted {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func chargeIDs(charges []*models.Charge) []string {
	ids := make([]string, len(charges))
	for i, charge := range charges {
		ids[i] = charge.ID
	}
	return ids
}
