package repository

import (
	"context"
	"errors"
	"fmt"

	"clubledger/models"

	"github.com/jackc/pgx/v5"
)

const chargeColumns = `id, account_id, title, amount, due_at, status, created_by, created_at, updated_at`

// ChargeRepository implements the ChargeRepository interface
type ChargeRepository struct {
	q queryable
}

func newChargeRepositoryWithTx(tx queryable) *ChargeRepository {
	return &ChargeRepository{q: tx}
}

// CreateBatch inserts all charges in one round trip
func (r *ChargeRepository) CreateBatch(ctx context.Context, charges []*models.Charge) error {
	query := `
		INSERT INTO charges (id, account_id, title, amount, due_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	batch := &pgx.Batch{}
	for _, charge := range charges {
		batch.Queue(query,
			charge.ID,
			charge.AccountID,
			charge.Title,
			charge.Amount,
			charge.DueAt,
			string(charge.Status),
			charge.CreatedBy,
		)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	for _, charge := range charges {
		if err := results.QueryRow().Scan(&charge.CreatedAt, &charge.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create charge for account %s: %w", charge.AccountID, err)
		}
	}
	return nil
}

// GetByID retrieves a charge by its ID
func (r *ChargeRepository) GetByID(ctx context.Context, id string) (*models.Charge, error) {
	charge, err := scanCharge(r.q.QueryRow(ctx, `SELECT `+chargeColumns+` FROM charges WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge %s: %w", id, err)
	}
	return charge, nil
}

// GetForUpdate retrieves a charge and locks its row
func (r *ChargeRepository) GetForUpdate(ctx context.Context, id string) (*models.Charge, error) {
	charge, err := scanCharge(r.q.QueryRow(ctx, `SELECT `+chargeColumns+` FROM charges WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock charge %s: %w", id, err)
	}
	return charge, nil
}

// TransitionStatus moves the charge to `to` only if it is currently `from`
func (r *ChargeRepository) TransitionStatus(ctx context.Context, id string, from, to models.ChargeStatus) (bool, error) {
	query := `
		UPDATE charges
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to move charge %s from %s to %s: %w", id, from, to, err)
	}
	return result.RowsAffected() == 1, nil
}

// ListByAccount returns an account's charges by due date, only those in status when it is set
func (r *ChargeRepository) ListByAccount(ctx context.Context, accountID string, status models.ChargeStatus) ([]*models.Charge, error) {
	query := `
		SELECT ` + chargeColumns + `
		FROM charges
		WHERE account_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY due_at, created_at, id
	`

	rows, err := r.q.Query(ctx, query, accountID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list charges for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var charges []*models.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		charges = append(charges, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate charges: %w", err)
	}
	return charges, nil
}

func scanCharge(row pgx.Row) (*models.Charge, error) {
	var charge models.Charge
	var status string
	err := row.Scan(
		&charge.ID,
		&charge.AccountID,
		&charge.Title,
		&charge.Amount,
		&charge.DueAt,
		&status,
		&charge.CreatedBy,
		&charge.CreatedAt,
		&charge.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	charge.Status = models.ChargeStatus(status)
	return &charge, nil
}
