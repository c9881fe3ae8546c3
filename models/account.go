package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Role is an authority granted to an account
type Role string

const (
	RoleAthlete    Role = "athlete"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsValid reports whether the role is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleAthlete || r == RoleAdmin || r == RoleSuperAdmin
}

// Account represents an athlete or administrator holding a wallet balance
type Account struct {
	ID                   string          `db:"id"`
	Name                 string          `db:"name"`
	Nickname             string          `db:"nickname"`
	Email                string          `db:"email"`
	Roles                []Role          `db:"roles"`
	Balance              decimal.Decimal `db:"balance"`
	AvailableBalance     decimal.Decimal `db:"-"` // Calculated field: balance minus under-review balance portions
	MustChangeCredential bool            `db:"must_change_credential"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// HasRole checks if the account holds the given role
func (a *Account) HasRole(role Role) bool {
	return slices.Contains(a.Roles, role)
}

// IsAdmin reports whether the account has administrative authority.
// super_admin implies admin.
func (a *Account) IsAdmin() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleSuperAdmin)
}

// CanAfford checks if the available balance covers the amount
func (a *Account) CanAfford(amount decimal.Decimal) bool {
	return a.AvailableBalance.GreaterThanOrEqual(amount)
}

// ReservedAmount is the part of the balance committed to transactions under review
func (a *Account) ReservedAmount() decimal.Decimal {
	return a.Balance.Sub(a.AvailableBalance)
}

// BalanceSummary is the read-side view of an account's wallet
type BalanceSummary struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

// Summary builds the balance summary of the account
func (a *Account) Summary() BalanceSummary {
	return BalanceSummary{
		AccountID: a.ID,
		Balance:   a.Balance,
		Reserved:  a.ReservedAmount(),
		Available: a.AvailableBalance,
	}
}
