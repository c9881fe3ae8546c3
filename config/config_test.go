package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "usp.br", cfg.AllowedEmailDomain)
	assert.Equal(t, 6, cfg.MinCredentialLength)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.TxRetryInitialInterval)
	assert.Equal(t, 12*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.OTELEnabled)
	assert.Empty(t, cfg.NATSServers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("TX_MAX_ATTEMPTS", "8")
	t.Setenv("TX_RETRY_INITIAL_INTERVAL", "5ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MIN_CREDENTIAL_LENGTH", "not-a-number")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.TxMaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.TxRetryInitialInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 6, cfg.MinCredentialLength)
}

func TestLoad_RequiresSecretsOutsideTest(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")
	t.Setenv("JWT_SECRET", "")

	_, err := load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_RejectsZeroRetryBudget(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("TX_MAX_ATTEMPTS", "0")

	_, err := load()
	assert.ErrorContains(t, err, "TX_MAX_ATTEMPTS")
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	testCfg := NewTestConfig()
	testCfg.HTTPAddr = ":9999"
	SetTestConfig(testCfg)

	assert.Same(t, testCfg, Get())
}
