package service

import (
	"context"
	"io"
	"time"

	"clubledger/events"
	"clubledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) AddBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) SetRoles(ctx context.Context, id string, roles []models.Role) error {
	args := m.Called(ctx, id, roles)
	return args.Error(0)
}

func (m *MockAccountRepository) SetMustChangeCredential(ctx context.Context, id string, value bool) error {
	args := m.Called(ctx, id, value)
	return args.Error(0)
}

func (m *MockAccountRepository) List(ctx context.Context, role models.Role) ([]*models.Account, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockCredentialRepository is a mock implementation of CredentialRepository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Create(ctx context.Context, accountID, passwordHash string) error {
	args := m.Called(ctx, accountID, passwordHash)
	return args.Error(0)
}

func (m *MockCredentialRepository) GetHash(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialRepository) UpdateHash(ctx context.Context, accountID, passwordHash string) error {
	args := m.Called(ctx, accountID, passwordHash)
	return args.Error(0)
}

// MockChargeRepository is a mock implementation of ChargeRepository
type MockChargeRepository struct {
	mock.Mock
}

func (m *MockChargeRepository) CreateBatch(ctx context.Context, charges []*models.Charge) error {
	args := m.Called(ctx, charges)
	return args.Error(0)
}

func (m *MockChargeRepository) GetByID(ctx context.Context, id string) (*models.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Charge), args.Error(1)
}

func (m *MockChargeRepository) GetForUpdate(ctx context.Context, id string) (*models.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Charge), args.Error(1)
}

func (m *MockChargeRepository) TransitionStatus(ctx context.Context, id string, from, to models.ChargeStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockChargeRepository) ListByAccount(ctx context.Context, accountID string, status models.ChargeStatus) ([]*models.Charge, error) {
	args := m.Called(ctx, accountID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Charge), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Resolve(ctx context.Context, tx *models.Transaction) (bool, error) {
	args := m.Called(ctx, tx)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockLedgerEntryRepository is a mock implementation of LedgerEntryRepository
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerEntryRepository) GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork.
// Repository getters return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock
	accountRepo     *MockAccountRepository
	credentialRepo  *MockCredentialRepository
	chargeRepo      *MockChargeRepository
	transactionRepo *MockTransactionRepository
	ledgerEntryRepo *MockLedgerEntryRepository
	eventBus        *MockEventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(
	accountRepo *MockAccountRepository,
	credentialRepo *MockCredentialRepository,
	chargeRepo *MockChargeRepository,
	transactionRepo *MockTransactionRepository,
	ledgerEntryRepo *MockLedgerEntryRepository,
	eventBus *MockEventPublisher,
) {
	m.accountRepo = accountRepo
	m.credentialRepo = credentialRepo
	m.chargeRepo = chargeRepo
	m.transactionRepo = transactionRepo
	m.ledgerEntryRepo = ledgerEntryRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository         { return m.accountRepo }
func (m *MockUnitOfWork) CredentialRepository() CredentialRepository   { return m.credentialRepo }
func (m *MockUnitOfWork) ChargeRepository() ChargeRepository           { return m.chargeRepo }
func (m *MockUnitOfWork) TransactionRepository() TransactionRepository { return m.transactionRepo }
func (m *MockUnitOfWork) LedgerEntryRepository() LedgerEntryRepository { return m.ledgerEntryRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                     { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockPasswordHasher is a mock implementation of PasswordHasher
type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(plain string) (string, error) {
	args := m.Called(plain)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hash, plain string) bool {
	args := m.Called(hash, plain)
	return args.Bool(0)
}

// MockTokenIssuer is a mock implementation of TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateAccessToken(accountID string, roles []models.Role) (string, error) {
	args := m.Called(accountID, roles)
	return args.String(0), args.Error(1)
}

// MockReceiptStore is a mock implementation of ReceiptStore
type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	args := m.Called(ctx, key, contentType, body, size)
	return args.Error(0)
}

func (m *MockReceiptStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockReceiptStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
