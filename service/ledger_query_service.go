package service

import (
	"context"
	"fmt"

	"clubledger/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ledgerQueryService struct {
	uowFactory UnitOfWorkFactory
}

// NewLedgerQueryService creates a new ledger query service
func NewLedgerQueryService(uowFactory UnitOfWorkFactory) LedgerQueryService {
	return &ledgerQueryService{uowFactory: uowFactory}
}

// ListTransactions returns transactions matching filter. Non-admins are
// limited to their own account.
func (s *ledgerQueryService) ListTransactions(ctx context.Context, caller models.CallerIdentity, filter models.TransactionFilter) ([]*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		if filter.AccountID == "" {
			filter.AccountID = caller.AccountID
		}
		if filter.AccountID != caller.AccountID {
			return nil, newError(KindPermissionDenied, "cannot access account %s", filter.AccountID)
		}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, newError(KindInvalidArgument, "unknown transaction status %q", filter.Status)
	}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, newError(KindInvalidArgument, "unknown transaction kind %q", filter.Kind)
	}
	filter.Limit = clampLimit(filter.Limit)

	return s.list(ctx, filter)
}

// PendingReview returns up to limit transactions of the admin review queue,
// oldest first. A non-positive limit returns the first maxListLimit. Resolving
// the head of the queue brings later submissions into the window.
func (s *ledgerQueryService) PendingReview(ctx context.Context, caller models.CallerIdentity, limit int) ([]*models.Transaction, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = maxListLimit
	}
	return s.list(ctx, models.TransactionFilter{
		Status: models.TransactionStatusUnderReview,
		Limit:  min(limit, maxListLimit),
	})
}

// Statement returns an account's approved transactions, newest first
func (s *ledgerQueryService) Statement(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.Transaction, error) {
	if err := requireAccess(caller, accountID); err != nil {
		return nil, err
	}
	return s.list(ctx, models.TransactionFilter{
		AccountID:   accountID,
		Status:      models.TransactionStatusApproved,
		NewestFirst: true,
		Limit:       clampLimit(limit),
	})
}

// LedgerEntries returns an account's balance history, newest first
func (s *ledgerQueryService) LedgerEntries(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.LedgerEntry, error) {
	if err := requireAccess(caller, accountID); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, err := uow.LedgerEntryRepository().GetByAccount(ctx, accountID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entries, nil
}

// GetTransaction returns a transaction visible to the caller
func (s *ledgerQueryService) GetTransaction(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := uow.TransactionRepository().GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx == nil || !caller.CanAccess(tx.AccountID) {
		return nil, newError(KindNotFound, "transaction %s not found", transactionID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx, nil
}

func (s *ledgerQueryService) list(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	txs, err := uow.TransactionRepository().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return txs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
