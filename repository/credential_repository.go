package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CredentialRepository implements the CredentialRepository interface
type CredentialRepository struct {
	q queryable
}

func newCredentialRepositoryWithTx(tx queryable) *CredentialRepository {
	return &CredentialRepository{q: tx}
}

// Create stores the credential hash of a new account
func (r *CredentialRepository) Create(ctx context.Context, accountID, passwordHash string) error {
	query := `INSERT INTO account_credentials (account_id, password_hash) VALUES ($1, $2)`

	if _, err := r.q.Exec(ctx, query, accountID, passwordHash); err != nil {
		return fmt.Errorf("failed to create credential for account %s: %w", accountID, err)
	}
	return nil
}

// GetHash returns the stored hash, or "" when the account has none
func (r *CredentialRepository) GetHash(ctx context.Context, accountID string) (string, error) {
	var hash string
	err := r.q.QueryRow(ctx, `SELECT password_hash FROM account_credentials WHERE account_id = $1`, accountID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential for account %s: %w", accountID, err)
	}
	return hash, nil
}

// UpdateHash replaces the stored hash
func (r *CredentialRepository) UpdateHash(ctx context.Context, accountID, passwordHash string) error {
	query := `UPDATE account_credentials SET password_hash = $2, updated_at = NOW() WHERE account_id = $1`

	result, err := r.q.Exec(ctx, query, accountID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update credential for account %s: %w", accountID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("credential for account %s not found", accountID)
	}
	return nil
}
