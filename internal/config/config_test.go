package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "BASE_CURRENCY", "LEDGER_FILE",
		"DEFAULT_REVIEWER_EMAIL", "REVIEW_BASE_URL", "PAID_EPSILON", "ORACLE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.OpenAIAPIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "MYR", cfg.BaseCurrency)
	assert.Equal(t, "ledger.yaml", cfg.LedgerFile)
	assert.Equal(t, "accounting.lead@yourcompany.com", cfg.DefaultReviewerEmail)
	assert.Equal(t, 0.01, cfg.PaidEpsilon)
	assert.Equal(t, 30*time.Second, cfg.OracleTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "SGD")
	t.Setenv("PAID_EPSILON", "0.05")
	t.Setenv("ORACLE_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "SGD", cfg.BaseCurrency)
	assert.Equal(t, 0.05, cfg.PaidEpsilon)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PAID_EPSILON", "lots")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PAID_EPSILON", "-1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("PAID_EPSILON", "0.01")
	t.Setenv("ORACLE_TIMEOUT", "eventually")
	_, err = Load()
	assert.Error(t, err)
}
