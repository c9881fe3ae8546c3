package service

import (
	"context"
	"io"
	"time"

	"clubledger/events"
	"clubledger/models"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access.
// Every read fills Account.AvailableBalance.
type AccountRepository interface {
	// GetByID retrieves an account, returning nil if it does not exist
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// GetForUpdate retrieves and row-locks an account for the rest of the unit of work
	GetForUpdate(ctx context.Context, id string) (*models.Account, error)

	// GetByEmail retrieves an account by its (case-insensitive) email
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// Create inserts a new account
	Create(ctx context.Context, account *models.Account) error

	// AddBalance adds a signed amount to the stored balance
	AddBalance(ctx context.Context, id string, amount decimal.Decimal) error

	// SetRoles replaces the account's roles
	SetRoles(ctx context.Context, id string, roles []models.Role) error

	// SetMustChangeCredential updates the first-login flag
	SetMustChangeCredential(ctx context.Context, id string, value bool) error

	// List returns accounts ordered by name, optionally only those holding role
	List(ctx context.Context, role models.Role) ([]*models.Account, error)

	// ExistingIDs returns the subset of ids that exist
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// CredentialRepository stores the hashed credential paired with each account
type CredentialRepository interface {
	Create(ctx context.Context, accountID, passwordHash string) error

	// GetHash returns the stored hash, empty if none exists
	GetHash(ctx context.Context, accountID string) (string, error)

	UpdateHash(ctx context.Context, accountID, passwordHash string) error
}

// ChargeRepository defines the interface for charge data access
type ChargeRepository interface {
	// CreateBatch inserts all charges
	CreateBatch(ctx context.Context, charges []*models.Charge) error

	// GetByID retrieves a charge, returning nil if it does not exist
	GetByID(ctx context.Context, id string) (*models.Charge, error)

	// GetForUpdate retrieves and row-locks a charge
	GetForUpdate(ctx context.Context, id string) (*models.Charge, error)

	// TransitionStatus moves a charge from one status to another only if it is
	// currently in from. Returns false when no row matched.
	TransitionStatus(ctx context.Context, id string, from, to models.ChargeStatus) (bool, error)

	// ListByAccount returns an account's charges by due date, optionally filtered by status
	ListByAccount(ctx context.Context, accountID string, status models.ChargeStatus) ([]*models.Charge, error)
}

// TransactionRepository defines the interface for transaction data access
type TransactionRepository interface {
	// Create inserts a transaction, filling SubmittedAt
	Create(ctx context.Context, tx *models.Transaction) error

	// GetByID retrieves a transaction, returning nil if it does not exist
	GetByID(ctx context.Context, id string) (*models.Transaction, error)

	// GetForUpdate retrieves and row-locks a transaction
	GetForUpdate(ctx context.Context, id string) (*models.Transaction, error)

	// Resolve persists the resolution of a transaction that is still under review.
	// Returns false when the stored row had already left review.
	Resolve(ctx context.Context, tx *models.Transaction) (bool, error)

	// List returns transactions matching the filter
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
}

// LedgerEntryRepository defines the interface for the balance history
type LedgerEntryRepository interface {
	// Record appends an entry, filling ID and CreatedAt
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByAccount returns an account's entries, newest first
	GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error)
}

// EventPublisher queues events for delivery after commit
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction, discarding queued events
	Rollback() error

	// Repository getters
	AccountRepository() AccountRepository
	CredentialRepository() CredentialRepository
	ChargeRepository() ChargeRepository
	TransactionRepository() TransactionRepository
	LedgerEntryRepository() LedgerEntryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// PasswordHasher hashes and verifies account credentials
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// TokenIssuer issues access tokens for authenticated accounts
type TokenIssuer interface {
	GenerateAccessToken(accountID string, roles []models.Role) (string, error)
}

// ReceiptStore persists receipt artifacts
type ReceiptStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ReservationService computes available balances
type ReservationService interface {
	// GetAvailableBalance returns balance minus the balance portions of transactions under review
	GetAvailableBalance(ctx context.Context, caller models.CallerIdentity, accountID string) (decimal.Decimal, error)

	// GetBalanceSummary returns stored, reserved and available amounts
	GetBalanceSummary(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.BalanceSummary, error)
}

// SettlementService drives transactions through review and settles charges
type SettlementService interface {
	// SubmitTransaction records a top-up or charge settlement for review
	SubmitTransaction(ctx context.Context, caller models.CallerIdentity, req SubmitRequest) (*models.Transaction, error)

	// ResolveTransaction approves or rejects a transaction under review
	ResolveTransaction(ctx context.Context, caller models.CallerIdentity, req ResolveRequest) (*models.Transaction, error)

	// Approve is ResolveTransaction with an approve decision
	Approve(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error)

	// Reject is ResolveTransaction with a reject decision
	Reject(ctx context.Context, caller models.CallerIdentity, transactionID, reason string) (*models.Transaction, error)

	// SettleChargeFromBalanceInFull pays a pending charge from the available balance without review
	SettleChargeFromBalanceInFull(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Transaction, error)
}

// AdjustmentService applies administrative balance corrections
type AdjustmentService interface {
	AdjustBalance(ctx context.Context, caller models.CallerIdentity, req AdjustRequest) (*models.Transaction, error)
}

// AccountService manages accounts and their credentials
type AccountService interface {
	ProvisionAccount(ctx context.Context, caller models.CallerIdentity, req ProvisionRequest) (*models.Account, error)
	Authenticate(ctx context.Context, email, credential string) (*models.Account, string, error)
	ChangeCredential(ctx context.Context, caller models.CallerIdentity, current, next string) error
	SetRole(ctx context.Context, caller models.CallerIdentity, accountID string, role models.Role, granted bool) (*models.Account, error)
	GetAccount(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, caller models.CallerIdentity, role models.Role) ([]*models.Account, error)
	// ResolveCaller loads the current roles of an authenticated account
	ResolveCaller(ctx context.Context, accountID string) (models.CallerIdentity, error)
}

// ChargeService creates and lists charges
type ChargeService interface {
	CreateCharges(ctx context.Context, caller models.CallerIdentity, req CreateChargesRequest) ([]string, error)
	ListCharges(ctx context.Context, caller models.CallerIdentity, accountID string, status models.ChargeStatus) ([]*models.Charge, error)
	GetCharge(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Charge, error)
}

// LedgerQueryService answers read-only questions about the ledger
type LedgerQueryService interface {
	ListTransactions(ctx context.Context, caller models.CallerIdentity, filter models.TransactionFilter) ([]*models.Transaction, error)
	PendingReview(ctx context.Context, caller models.CallerIdentity, limit int) ([]*models.Transaction, error)
	Statement(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.Transaction, error)
	LedgerEntries(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.LedgerEntry, error)
	GetTransaction(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error)
}

// ReceiptService stores receipts and hands out links to them
type ReceiptService interface {
	Upload(ctx context.Context, caller models.CallerIdentity, upload ReceiptUpload) (string, error)
	URL(ctx context.Context, caller models.CallerIdentity, ref string) (string, error)
}
