package service

import (
	"context"
	"fmt"

	"clubledger/models"

	"github.com/shopspring/decimal"
)

type reservationService struct {
	uowFactory UnitOfWorkFactory
}

// NewReservationService creates a new reservation service
func NewReservationService(uowFactory UnitOfWorkFactory) ReservationService {
	return &reservationService{uowFactory: uowFactory}
}

// GetAvailableBalance returns the stored balance minus the balance portion of
// every transaction of the account still under review
func (s *reservationService) GetAvailableBalance(ctx context.Context, caller models.CallerIdentity, accountID string) (decimal.Decimal, error) {
	summary, err := s.GetBalanceSummary(ctx, caller, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Available, nil
}

// GetBalanceSummary returns the stored, reserved and available amounts of an account
func (s *reservationService) GetBalanceSummary(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.BalanceSummary, error) {
	if err := requireAccess(caller, accountID); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, newError(KindNotFound, "account %s not found", accountID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	summary := account.Summary()
	return &summary, nil
}
