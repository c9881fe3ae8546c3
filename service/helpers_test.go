package service

import (
	"context"
	"errors"
	"time"

	"clubledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// errConflict stands in for a serialization failure reported by the store
var errConflict = errors.New("could not serialize access")

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		IsRetryable:     func(err error) bool { return errors.Is(err, errConflict) },
		Metrics:         NoopMetrics{},
	}
}

type testMocks struct {
	factory      *MockUnitOfWorkFactory
	uow          *MockUnitOfWork
	accounts     *MockAccountRepository
	credentials  *MockCredentialRepository
	charges      *MockChargeRepository
	transactions *MockTransactionRepository
	ledger       *MockLedgerEntryRepository
	bus          *MockEventPublisher
}

func newTestMocks() *testMocks {
	m := &testMocks{
		factory:      new(MockUnitOfWorkFactory),
		uow:          new(MockUnitOfWork),
		accounts:     new(MockAccountRepository),
		credentials:  new(MockCredentialRepository),
		charges:      new(MockChargeRepository),
		transactions: new(MockTransactionRepository),
		ledger:       new(MockLedgerEntryRepository),
		bus:          new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.accounts, m.credentials, m.charges, m.transactions, m.ledger, m.bus)
	m.factory.On("Create").Return(m.uow)
	return m
}

// expectUnit allows a unit of work to begin, commit and roll back
func (m *testMocks) expectUnit(ctx context.Context) {
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
}

// expectAbortedUnit allows a unit of work that must never commit
func (m *testMocks) expectAbortedUnit(ctx context.Context) {
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
}

func (m *testMocks) assertExpectations(t mock.TestingT) {
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.accounts.AssertExpectations(t)
	m.credentials.AssertExpectations(t)
	m.charges.AssertExpectations(t)
	m.transactions.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
	m.bus.AssertExpectations(t)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decimalEq matches a decimal argument by value rather than representation
func decimalEq(s string) interface{} {
	want := amount(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func athlete(id string) models.CallerIdentity {
	return models.CallerIdentity{AccountID: id, Roles: []models.Role{models.RoleAthlete}}
}

func admin(id string) models.CallerIdentity {
	return models.CallerIdentity{AccountID: id, Roles: []models.Role{models.RoleAthlete, models.RoleAdmin}}
}

func superAdmin(id string) models.CallerIdentity {
	return models.CallerIdentity{AccountID: id, Roles: []models.Role{models.RoleAthlete, models.RoleSuperAdmin}}
}

func testAccount(id, balance, available string) *models.Account {
	return &models.Account{
		ID:               id,
		Name:             "Account " + id,
		Email:            id + "@usp.br",
		Roles:            []models.Role{models.RoleAthlete},
		Balance:          amount(balance),
		AvailableBalance: amount(available),
	}
}

func testCharge(id, accountID, value string, status models.ChargeStatus) *models.Charge {
	return &models.Charge{
		ID:        id,
		AccountID: accountID,
		Title:     "Uniform",
		Amount:    amount(value),
		DueAt:     time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		Status:    status,
	}
}
