package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeStatus represents the settlement state of a charge
type ChargeStatus string

const (
	ChargeStatusPending    ChargeStatus = "pending"
	ChargeStatusProcessing ChargeStatus = "processing"
	ChargeStatusPaid       ChargeStatus = "paid"
)

// Charge is a debt an account owes the club
type Charge struct {
	ID        string          `db:"id"`
	AccountID string          `db:"account_id"`
	Title     string          `db:"title"`
	Amount    decimal.Decimal `db:"amount"`
	DueAt     time.Time       `db:"due_at"`
	Status    ChargeStatus    `db:"status"`
	CreatedBy string          `db:"created_by"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// IsPending checks if the charge can still be submitted or settled
func (c *Charge) IsPending() bool {
	return c.Status == ChargeStatusPending
}

// IsPaid checks if the charge has been settled
func (c *Charge) IsPaid() bool {
	return c.Status == ChargeStatusPaid
}

// IsOverdue checks if a charge that is not yet paid is past its due date
func (c *Charge) IsOverdue(now time.Time) bool {
	return !c.IsPaid() && now.After(c.DueAt.AddDate(0, 0, 1))
}

// BelongsTo checks if the charge is owed by the given account
func (c *Charge) BelongsTo(accountID string) bool {
	return c.AccountID == accountID
}
