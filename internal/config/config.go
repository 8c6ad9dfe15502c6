package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ledgerpipe/internal/logger"
)

type Config struct {
	// OpenAI Configuration (optional; without a key the pipeline runs
	// with offline capability fallbacks)
	OpenAIAPIKey string
	OpenAIModel  string

	// Ledger Configuration
	BaseCurrency string
	LedgerFile   string

	// Review Routing Configuration
	DefaultReviewerEmail string
	ReviewBaseURL        string

	// Reconciliation Configuration
	PaidEpsilon float64

	// Capability call timeout
	OracleTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BaseCurrency:         getEnv("BASE_CURRENCY", "MYR"),
		LedgerFile:           getEnv("LEDGER_FILE", "ledger.yaml"),
		DefaultReviewerEmail: getEnv("DEFAULT_REVIEWER_EMAIL", "accounting.lead@yourcompany.com"),
		ReviewBaseURL:        getEnv("REVIEW_BASE_URL", "https://review.example.com/webhook"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stdout"),
	}

	epsilon, err := strconv.ParseFloat(getEnv("PAID_EPSILON", "0.01"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PAID_EPSILON: %w", err)
	}
	config.PaidEpsilon = epsilon

	timeout, err := time.ParseDuration(getEnv("ORACLE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORACLE_TIMEOUT: %w", err)
	}
	config.OracleTimeout = timeout

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BaseCurrency == "" {
		return fmt.Errorf("BASE_CURRENCY must not be empty")
	}
	if c.PaidEpsilon < 0 {
		return fmt.Errorf("PAID_EPSILON must not be negative")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
