package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, "DATA_DIR", "")
	withEnv(t, "RETRY_PRESET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 10, cfg.Orchestrator.DefaultConcurrency)
	assert.Equal(t, 1, cfg.Orchestrator.Tier4Concurrency)
	assert.Equal(t, 60, cfg.RateLimit.DefaultPerMinute)
}

func TestLoad_DataDirFromEnv(t *testing.T) {
	withEnv(t, "DATA_DIR", "/tmp/aegis-data")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/aegis-data", cfg.DataDir)
}

func TestRetryPresets_Quick(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Retry.Preset("quick")
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 1.5, p.Multiplier)
}

func TestRetryPresets_StandardIsDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Retry.Preset("unknown-name")
	assert.Equal(t, cfg.Retry.Standard, p)
}

func TestRetryPresets_Persistent(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Retry.Preset("persistent")
	assert.Equal(t, 5, p.MaxAttempts)
}

func TestRegimeWeights_SumToOne(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	for regime, w := range cfg.Regime.Weights {
		sum := w.Technical + w.Disclosure + w.Supply + w.Fundamental + w.Market + w.News + w.Consensus
		assert.InDelta(t, 1.0, sum, 0.001, "regime %s weights should sum to 1", regime)
	}
}

func TestValidate_RequiresDataDir(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	assert.Error(t, err)
}
