package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"clubledger/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr       string
	AllowedOrigins []string

	// Identity configuration
	JWTSecret           string
	JWTAccessTTL        time.Duration
	AllowedEmailDomain  string // Empty accepts any domain
	MinCredentialLength int
	BcryptCost          int

	// Atomic unit retry budget
	TxMaxAttempts          int
	TxRetryInitialInterval time.Duration

	// Receipt storage
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	ReceiptMaxBytes int64
	ReceiptURLTTL   time.Duration

	// Idempotency keys (disabled when RedisURL is empty)
	RedisURL       string
	IdempotencyTTL time.Duration

	// NATS configuration (bridge disabled when empty)
	NATSServers string

	// Metrics
	OTELEnabled          bool
	OTELExporterType     string // "console", "otlp" or "none"
	OTELOTLPEndpoint     string
	OTELServiceName      string
	OTELExportIntervalMs int

	// Identity the adjust-balance subcommand acts as
	OperatorAccountID string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables, reading .env first when present
func load() (*Config, error) {
	// A missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr:       getEnvWithDefault("HTTP_ADDR", ":8080"),
		AllowedOrigins: splitList(getEnvWithDefault("ALLOWED_ORIGINS", "http://localhost:5173")),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTAccessTTL:        getDurationWithDefault("JWT_ACCESS_TTL", 12*time.Hour),
		AllowedEmailDomain:  getEnvWithDefault("ALLOWED_EMAIL_DOMAIN", "usp.br"),
		MinCredentialLength: getIntWithDefault("MIN_CREDENTIAL_LENGTH", 6),
		BcryptCost:          getIntWithDefault("BCRYPT_COST", 10),

		TxMaxAttempts:          getIntWithDefault("TX_MAX_ATTEMPTS", 5),
		TxRetryInitialInterval: getDurationWithDefault("TX_RETRY_INITIAL_INTERVAL", 20*time.Millisecond),

		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        getEnvWithDefault("S3_REGION", "us-east-1"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		ReceiptMaxBytes: int64(getIntWithDefault("RECEIPT_MAX_BYTES", 10<<20)),
		ReceiptURLTTL:   getDurationWithDefault("RECEIPT_URL_TTL", 15*time.Minute),

		RedisURL:       os.Getenv("REDIS_URL"),
		IdempotencyTTL: getDurationWithDefault("IDEMPOTENCY_TTL", 24*time.Hour),

		NATSServers: os.Getenv("NATS_SERVERS"),

		OTELEnabled:          os.Getenv("OTEL_ENABLED") == "true",
		OTELExporterType:     getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTELOTLPEndpoint:     getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:      getEnvWithDefault("OTEL_SERVICE_NAME", "club-ledger"),
		OTELExportIntervalMs: getIntWithDefault("OTEL_EXPORT_INTERVAL_MS", 30000),

		OperatorAccountID: os.Getenv("OPERATOR_ACCOUNT_ID"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	if config.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", config.TxMaxAttempts)
	}
	if config.MinCredentialLength < 1 {
		return nil, fmt.Errorf("MIN_CREDENTIAL_LENGTH must be at least 1, got %d", config.MinCredentialLength)
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:            "test",
		HTTPAddr:               ":0",
		JWTSecret:              "test-secret",
		JWTAccessTTL:           time.Hour,
		AllowedEmailDomain:     "usp.br",
		MinCredentialLength:    6,
		BcryptCost:             4,
		TxMaxAttempts:          5,
		TxRetryInitialInterval: time.Millisecond,
		ReceiptMaxBytes:        10 << 20,
		ReceiptURLTTL:          15 * time.Minute,
		IdempotencyTTL:         time.Hour,
		LogLevel:               "debug",
		LogFormat:              "text",
	}
}
