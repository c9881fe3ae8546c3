package api

import (
	"context"
	"sync"

	"clubledger/infrastructure"
	"clubledger/models"
	"clubledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockAccountService struct{ mock.Mock }

func (m *mockAccountService) ProvisionAccount(ctx context.Context, caller models.CallerIdentity, req service.ProvisionRequest) (*models.Account, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) Authenticate(ctx context.Context, email, credential string) (*models.Account, string, error) {
	args := m.Called(ctx, email, credential)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.Account), args.String(1), args.Error(2)
}

func (m *mockAccountService) ChangeCredential(ctx context.Context, caller models.CallerIdentity, current, next string) error {
	return m.Called(ctx, caller, current, next).Error(0)
}

func (m *mockAccountService) SetRole(ctx context.Context, caller models.CallerIdentity, accountID string, role models.Role, granted bool) (*models.Account, error) {
	args := m.Called(ctx, caller, accountID, role, granted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) GetAccount(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.Account, error) {
	args := m.Called(ctx, caller, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountService) ListAccounts(ctx context.Context, caller models.CallerIdentity, role models.Role) ([]*models.Account, error) {
	args := m.Called(ctx, caller, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *mockAccountService) ResolveCaller(ctx context.Context, accountID string) (models.CallerIdentity, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(models.CallerIdentity), args.Error(1)
}

type mockReservationService struct{ mock.Mock }

func (m *mockReservationService) GetAvailableBalance(ctx context.Context, caller models.CallerIdentity, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, caller, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockReservationService) GetBalanceSummary(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.BalanceSummary, error) {
	args := m.Called(ctx, caller, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceSummary), args.Error(1)
}

type mockSettlementService struct{ mock.Mock }

func (m *mockSettlementService) SubmitTransaction(ctx context.Context, caller models.CallerIdentity, req service.SubmitRequest) (*models.Transaction, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockSettlementService) ResolveTransaction(ctx context.Context, caller models.CallerIdentity, req service.ResolveRequest) (*models.Transaction, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockSettlementService) Approve(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error) {
	args := m.Called(ctx, caller, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockSettlementService) Reject(ctx context.Context, caller models.CallerIdentity, transactionID, reason string) (*models.Transaction, error) {
	args := m.Called(ctx, caller, transactionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockSettlementService) SettleChargeFromBalanceInFull(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Transaction, error) {
	args := m.Called(ctx, caller, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockAdjustmentService struct{ mock.Mock }

func (m *mockAdjustmentService) AdjustBalance(ctx context.Context, caller models.CallerIdentity, req service.AdjustRequest) (*models.Transaction, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockChargeService struct{ mock.Mock }

func (m *mockChargeService) CreateCharges(ctx context.Context, caller models.CallerIdentity, req service.CreateChargesRequest) ([]string, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockChargeService) ListCharges(ctx context.Context, caller models.CallerIdentity, accountID string, status models.ChargeStatus) ([]*models.Charge, error) {
	args := m.Called(ctx, caller, accountID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Charge), args.Error(1)
}

func (m *mockChargeService) GetCharge(ctx context.Context, caller models.CallerIdentity, chargeID string) (*models.Charge, error) {
	args := m.Called(ctx, caller, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Charge), args.Error(1)
}

type mockQueryService struct{ mock.Mock }

func (m *mockQueryService) ListTransactions(ctx context.Context, caller models.CallerIdentity, filter models.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, caller, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *mockQueryService) PendingReview(ctx context.Context, caller models.CallerIdentity, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, caller, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *mockQueryService) Statement(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, caller, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *mockQueryService) LedgerEntries(ctx context.Context, caller models.CallerIdentity, accountID string, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, caller, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *mockQueryService) GetTransaction(ctx context.Context, caller models.CallerIdentity, transactionID string) (*models.Transaction, error) {
	args := m.Called(ctx, caller, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockReceiptService struct{ mock.Mock }

func (m *mockReceiptService) Upload(ctx context.Context, caller models.CallerIdentity, upload service.ReceiptUpload) (string, error) {
	args := m.Called(ctx, caller, upload)
	return args.String(0), args.Error(1)
}

func (m *mockReceiptService) URL(ctx context.Context, caller models.CallerIdentity, ref string) (string, error) {
	args := m.Called(ctx, caller, ref)
	return args.String(0), args.Error(1)
}

// stubResolver accepts the tokens it knows
type stubResolver map[string]models.CallerIdentity

func (s stubResolver) Resolve(_ context.Context, token string) (models.CallerIdentity, error) {
	if caller, ok := s[token]; ok {
		return caller, nil
	}
	return models.CallerIdentity{}, service.ErrUnauthenticated
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// memoryIdempotencyStore keeps idempotent responses in a map
type memoryIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]*infrastructure.StoredResponse
	inFlight  map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{
		responses: make(map[string]*infrastructure.StoredResponse),
		inFlight:  make(map[string]bool),
	}
}

func (s *memoryIdempotencyStore) Begin(_ context.Context, key string) (*infrastructure.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, ok := s.responses[key]; ok {
		return resp, nil
	}
	if s.inFlight[key] {
		return nil, infrastructure.ErrIdempotencyInFlight
	}
	s.inFlight[key] = true
	return nil, nil
}

func (s *memoryIdempotencyStore) Complete(_ context.Context, key string, resp infrastructure.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	s.responses[key] = &resp
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	return nil
}
