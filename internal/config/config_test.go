package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// An empty directory has no config.yml, so only defaults apply.
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "simulated", cfg.Market.Source)
	assert.Len(t, cfg.Market.Pairs, 5)
	assert.Equal(t, 30*time.Second, cfg.Trading.CycleInterval)
	assert.Equal(t, 60*time.Second, cfg.Trading.ErrorBackoff)
	assert.Equal(t, 10000.0, cfg.Trading.InitialBalance)
	assert.Equal(t, "Trend Following", cfg.Trading.DefaultStrategy)
	assert.Equal(t, 0.3, cfg.Trading.GridGate)
	assert.Equal(t, 10, cfg.Reserve.Percentage)
	assert.Equal(t, time.Hour, cfg.Reserve.AllocationWindow)
	assert.Equal(t, 24*time.Hour, cfg.Reserve.TransferInterval)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
market:
  source: binance
  pairs: ["BTC/USDT"]
trading:
  cycle_interval: 5s
  random_seed: 42
reserve:
  percentage: 25
database:
  dsn: "file::memory:"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Market.Source)
	assert.Equal(t, []string{"BTC/USDT"}, cfg.Market.Pairs)
	assert.Equal(t, 5*time.Second, cfg.Trading.CycleInterval)
	assert.Equal(t, int64(42), cfg.Trading.RandomSeed)
	assert.Equal(t, 25, cfg.Reserve.Percentage)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	// Untouched keys keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Trading.ErrorBackoff)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_EnvOverrideWithoutFile(t *testing.T) {
	// Keys with no config.yml entry must still pick up their environment variables.
	t.Setenv("ANALYSIS_API_KEY", "gsk-test")
	t.Setenv("ANALYSIS_PROVIDER", "groq")
	t.Setenv("MARKET_BASE_URL", "http://localhost:9999/api/v3")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gsk-test", cfg.Analysis.ApiKey)
	assert.Equal(t, "groq", cfg.Analysis.Provider)
	assert.Equal(t, "http://localhost:9999/api/v3", cfg.Market.BaseURL)
}
