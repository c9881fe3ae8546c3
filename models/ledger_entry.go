package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is an append-only record of a change to an account's stored balance
type LedgerEntry struct {
	ID            int64           `db:"id"`
	AccountID     string          `db:"account_id"`
	TransactionID string          `db:"transaction_id"`
	Kind          TransactionKind `db:"kind"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	ChangeAmount  decimal.Decimal `db:"change_amount"`
	CreatedAt     time.Time       `db:"created_at"`
}

// IsCredit returns true if the entry increased the balance
func (e *LedgerEntry) IsCredit() bool {
	return e.ChangeAmount.IsPositive()
}

// IsConsistent checks that before + change = after
func (e *LedgerEntry) IsConsistent() bool {
	return e.BalanceBefore.Add(e.ChangeAmount).Equal(e.BalanceAfter)
}

// NewLedgerEntry builds an entry for a balance change caused by a transaction
func NewLedgerEntry(accountID, transactionID string, kind TransactionKind, before, change decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		AccountID:     accountID,
		TransactionID: transactionID,
		Kind:          kind,
		BalanceBefore: before,
		BalanceAfter:  before.Add(change),
		ChangeAmount:  change,
	}
}
