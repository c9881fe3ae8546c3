package testutil

import (
	"context"
	"testing"
	"time"

	"clubledger/database"
	"clubledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Amount parses a decimal literal, panicking on malformed input
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestAccount builds an athlete account with the given balance
func CreateTestAccount(balance string) *models.Account {
	id := uuid.NewString()
	now := time.Now().UTC()
	return &models.Account{
		ID:               id,
		Name:             "Athlete " + id[:8],
		Nickname:         "nick-" + id[:8],
		Email:            id[:8] + "@usp.br",
		Roles:            []models.Role{models.RoleAthlete},
		Balance:          Amount(balance),
		AvailableBalance: Amount(balance),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CreateTestAdmin builds an account holding the admin role
func CreateTestAdmin() *models.Account {
	account := CreateTestAccount("0")
	account.Roles = append(account.Roles, models.RoleAdmin)
	return account
}

// CreateTestCharge builds a pending charge owed by accountID
func CreateTestCharge(accountID, amount string) *models.Charge {
	now := time.Now().UTC()
	return &models.Charge{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Title:     "Monthly dues",
		Amount:    Amount(amount),
		DueAt:     time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7),
		Status:    models.ChargeStatusPending,
		CreatedBy: "admin",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SeedAccount inserts an account directly
func SeedAccount(t *testing.T, db *database.DB, account *models.Account) *models.Account {
	t.Helper()
	roles := make([]string, len(account.Roles))
	for i, role := range account.Roles {
		roles[i] = string(role)
	}
	_, err := db.Exec(context.Background(), `
		INSERT INTO accounts (id, name, nickname, email, roles, balance, must_change_credential)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Name, account.Nickname, account.Email, roles, account.Balance, account.MustChangeCredential)
	require.NoError(t, err)
	return account
}

// SeedCharge inserts a charge directly
func SeedCharge(t *testing.T, db *database.DB, charge *models.Charge) *models.Charge {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO charges (id, account_id, title, amount, due_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		charge.ID, charge.AccountID, charge.Title, charge.Amount, charge.DueAt, string(charge.Status), charge.CreatedBy)
	require.NoError(t, err)
	return charge
}
