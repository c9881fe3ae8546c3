package repository

import (
	"context"
	"errors"
	"fmt"

	"clubledger/database"
	"clubledger/models"
	"clubledger/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// availableBalanceExpr is the only place the available balance is computed:
// the stored balance minus the balance portion of every transaction of the
// account still under review. Approved and rejected rows never count.
const availableBalanceExpr = `a.balance - COALESCE(
		(SELECT SUM(t.amount_from_balance)
		 FROM transactions t
		 WHERE t.account_id = a.id
		   AND t.status = 'under-review'),
		0
	)`

const accountColumns = `
	a.id,
	a.name,
	a.nickname,
	a.email,
	a.roles,
	a.balance,
	a.must_change_credential,
	a.created_at,
	a.updated_at,
	` + availableBalanceExpr + ` AS available_balance`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return account, nil
}

// GetForUpdate retrieves an account and locks its row until the transaction ends
func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1 FOR UPDATE OF a`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", id, err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE lower(a.email) = lower($1)`

	account, err := scanAccount(r.q.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, nickname, email, roles, balance, must_change_credential)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.ID,
		account.Name,
		account.Nickname,
		account.Email,
		rolesToStrings(account.Roles),
		account.Balance,
		account.MustChangeCredential,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if database.IsUniqueViolation(err, "accounts_email_key") {
		return &service.Error{Kind: service.KindInvalidArgument, Message: fmt.Sprintf("email %s is already registered", account.Email)}
	}
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}

	// No transactions exist yet
	account.AvailableBalance = account.Balance
	return nil
}

// AddBalance adds a signed amount to the stored balance
func (r *AccountRepository) AddBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to add balance for account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// SetRoles replaces the roles of an account
func (r *AccountRepository) SetRoles(ctx context.Context, id string, roles []models.Role) error {
	query := `UPDATE accounts SET roles = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id, rolesToStrings(roles))
	if err != nil {
		return fmt.Errorf("failed to set roles for account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// SetMustChangeCredential updates the first-login flag
func (r *AccountRepository) SetMustChangeCredential(ctx context.Context, id string, value bool) error {
	query := `UPDATE accounts SET must_change_credential = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update credential flag for account %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// List returns accounts ordered by name, only those holding role when it is set
func (r *AccountRepository) List(ctx context.Context, role models.Role) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE ($1::text = '' OR $1::text = ANY(a.roles))
		ORDER BY a.name, a.id
	`

	rows, err := r.q.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// ExistingIDs returns which of ids exist
func (r *AccountRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check account ids: %w", err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect account ids: %w", err)
	}
	return existing, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	var roles []string
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Nickname,
		&account.Email,
		&roles,
		&account.Balance,
		&account.MustChangeCredential,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.AvailableBalance,
	)
	if err != nil {
		return nil, err
	}
	account.Roles = make([]models.Role, len(roles))
	for i, role := range roles {
		account.Roles[i] = models.Role(role)
	}
	return &account, nil
}

func rolesToStrings(roles []models.Role) []string {
	result := make([]string, len(roles))
	for i, role := range roles {
		result[i] = string(role)
	}
	return result
}
