package service

import (
	"context"
	"fmt"

	"clubledger/events"
	"clubledger/models"

	"github.com/shopspring/decimal"
)

// RecordBalanceChange records a ledger entry and queues the matching event.
// This is the single entry point for balance history in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if err := uow.LedgerEntryRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangedEvent{
		AccountID:     entry.AccountID,
		TransactionID: entry.TransactionID,
		Kind:          entry.Kind,
		OldBalance:    entry.BalanceBefore,
		NewBalance:    entry.BalanceAfter,
		ChangeAmount:  entry.ChangeAmount,
	})

	return nil
}

// applyBalanceChange moves the stored balance of a locked account on behalf of
// tx and records the ledger entry. A zero change is a no-op.
func applyBalanceChange(ctx context.Context, uow UnitOfWork, account *models.Account, tx *models.Transaction, change decimal.Decimal) error {
	if change.IsZero() {
		return nil
	}

	if err := uow.AccountRepository().AddBalance(ctx, account.ID, change); err != nil {
		return fmt.Errorf("failed to update balance of account %s: %w", account.ID, err)
	}

	entry := models.NewLedgerEntry(account.ID, tx.ID, tx.Kind(), account.Balance, change)
	if err := RecordBalanceChange(ctx, uow, entry); err != nil {
		return err
	}

	account.Balance = entry.BalanceAfter
	account.AvailableBalance = account.AvailableBalance.Add(change)
	return nil
}
