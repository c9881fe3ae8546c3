package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubledger/database"
	"clubledger/models"
	"clubledger/service"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	id,
	account_id,
	kind,
	charge_id,
	charge_title,
	amount_total,
	amount_from_balance,
	amount_from_receipt,
	receipt_ref,
	note,
	status,
	rejection_reason,
	submitted_at,
	resolved_at,
	resolved_by`

// TransactionRepository implements the TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Create inserts a transaction. SubmittedAt defaults to now when unset.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	var chargeID, chargeTitle, receiptRef, note string
	switch d := tx.Details.(type) {
	case models.TopUpDetails:
		receiptRef = d.ReceiptRef
	case models.ChargeSettlementDetails:
		chargeID, chargeTitle, receiptRef = d.ChargeID, d.ChargeTitle, d.ReceiptRef
	case models.AdjustmentDetails:
		note = d.Reason
	default:
		return fmt.Errorf("failed to create transaction %s: unknown details %T", tx.ID, tx.Details)
	}

	var submittedAt *time.Time
	if !tx.SubmittedAt.IsZero() {
		submittedAt = &tx.SubmittedAt
	}

	query := `
		INSERT INTO transactions (
			id, account_id, kind, charge_id, charge_title,
			amount_total, amount_from_balance, amount_from_receipt,
			receipt_ref, note, status, rejection_reason,
			submitted_at, resolved_at, resolved_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13::timestamptz, NOW()), $14, $15)
		RETURNING submitted_at
	`

	err := r.q.QueryRow(ctx, query,
		tx.ID,
		tx.AccountID,
		string(tx.Kind()),
		nullableString(chargeID),
		nullableString(chargeTitle),
		tx.AmountTotal,
		tx.AmountFromBalance,
		tx.AmountFromReceipt,
		nullableString(receiptRef),
		nullableString(note),
		string(tx.Status),
		nullableString(tx.RejectionReason),
		submittedAt,
		tx.ResolvedAt,
		tx.ResolvedBy,
	).Scan(&tx.SubmittedAt)

	if database.IsUniqueViolation(err, "transactions_one_live_settlement") {
		return &service.Error{Kind: service.KindChargeNotPending, Message: fmt.Sprintf("charge %s already has a live settlement", chargeID)}
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return tx, nil
}

// GetForUpdate retrieves a transaction and locks its row
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction %s: %w", id, err)
	}
	return tx, nil
}

// Resolve stores the outcome of a review, guarded on the row still being under review
func (r *TransactionRepository) Resolve(ctx context.Context, tx *models.Transaction) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $2, rejection_reason = $3, resolved_at = $4, resolved_by = $5
		WHERE id = $1 AND status = 'under-review'
	`

	result, err := r.q.Exec(ctx, query,
		tx.ID,
		string(tx.Status),
		nullableString(tx.RejectionReason),
		tx.ResolvedAt,
		tx.ResolvedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve transaction %s: %w", tx.ID, err)
	}
	return result.RowsAffected() == 1, nil
}

// List returns transactions matching the filter
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var conditions []string
	var args []any

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	if filter.NewestFirst {
		query += ` ORDER BY submitted_at DESC, id DESC`
	} else {
		query += ` ORDER BY submitted_at, id`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var tx models.Transaction
	var kind, status string
	var chargeID, chargeTitle, receiptRef, note, rejectionReason *string

	err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&kind,
		&chargeID,
		&chargeTitle,
		&tx.AmountTotal,
		&tx.AmountFromBalance,
		&tx.AmountFromReceipt,
		&receiptRef,
		&note,
		&status,
		&rejectionReason,
		&tx.SubmittedAt,
		&tx.ResolvedAt,
		&tx.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = models.TransactionStatus(status)
	tx.RejectionReason = derefString(rejectionReason)

	switch models.TransactionKind(kind) {
	case models.TransactionKindTopUp:
		tx.Details = models.TopUpDetails{ReceiptRef: derefString(receiptRef)}
	case models.TransactionKindChargeSettlement:
		tx.Details = models.ChargeSettlementDetails{
			ChargeID:    derefString(chargeID),
			ChargeTitle: derefString(chargeTitle),
			ReceiptRef:  derefString(receiptRef),
		}
	case models.TransactionKindAdjustment:
		tx.Details = models.AdjustmentDetails{Reason: derefString(note)}
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}

	return &tx, nil
}
