package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCallerLoader struct {
	mock.Mock
}

func (m *mockCallerLoader) ResolveCaller(ctx context.Context, accountID string) (models.CallerIdentity, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(models.CallerIdentity), args.Error(1)
}

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)

	token, err := tokens.GenerateAccessToken("acc-1", []models.Role{models.RoleAthlete})
	require.NoError(t, err)

	claims, err := tokens.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, []models.Role{models.RoleAthlete}, claims.Roles)
}

func TestTokenService_Expired(t *testing.T) {
	tokens := NewTokenService("secret", time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issuedAt }

	token, err := tokens.GenerateAccessToken("acc-1", nil)
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, err := NewTokenService("one", time.Hour).GenerateAccessToken("acc-1", nil)
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenService("two", time.Hour).ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, hasher.Verify(hash, "hunter22"))
	assert.False(t, hasher.Verify(hash, "hunter23"))
}

func TestResolver_ReloadsRoles(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenService("secret", time.Hour)
	loader := new(mockCallerLoader)
	resolver := NewResolver(tokens, loader)

	// Token still claims admin, the store no longer does
	token, err := tokens.GenerateAccessToken("acc-1", []models.Role{models.RoleAthlete, models.RoleAdmin})
	require.NoError(t, err)

	loader.On("ResolveCaller", ctx, "acc-1").Return(models.CallerIdentity{
		AccountID: "acc-1",
		Roles:     []models.Role{models.RoleAthlete},
	}, nil)

	caller, err := resolver.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, caller.IsAdmin())
	loader.AssertExpectations(t)
}

func TestResolver_InvalidToken(t *testing.T) {
	loader := new(mockCallerLoader)
	resolver := NewResolver(NewTokenService("secret", time.Hour), loader)

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = resolver.Resolve(context.Background(), "garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))
	loader.AssertNotCalled(t, "ResolveCaller", mock.Anything, mock.Anything)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
