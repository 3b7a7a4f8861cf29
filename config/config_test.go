package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadYAMLWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	local := filepath.Join(dir, "config.local.yaml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment: production
api:
  port: 9000
browser:
  headless: false
  page_timeout: 40s
database:
  driver: sqlite
  url: cache.db
  cache_ttl: "30m"
`), 0o644))
	require.NoError(t, os.WriteFile(local, []byte(`
api:
  port: 9100
`), 0o644))

	cfg, err := Load(base)
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, 9100, cfg.APIPort)
	require.False(t, cfg.Headless)
	require.Equal(t, 40*time.Second, cfg.PageTimeout)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, "cache.db", cfg.DSN())
	require.Equal(t, 30*time.Minute, cfg.CacheTTL)
	// untouched defaults survive
	require.Equal(t, 50, cfg.RequestsPerHour)
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// trailing commas and comments are fine
		jobs: { workers: 4, timeout: "90s", },
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 90*time.Second, cfg.WorkerTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9000\n"), 0o644))

	t.Setenv("API_PORT", "7000")
	t.Setenv("CACHE_TTL_MINUTES", "15")
	t.Setenv("DELAY_MIN", "1")
	t.Setenv("HEADLESS", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.APIPort)
	require.Equal(t, 15*time.Minute, cfg.CacheTTL)
	require.Equal(t, time.Second, cfg.DelayMin)
	require.True(t, cfg.Headless, "invalid values fall back")
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unsupported config format")
}

func TestRandomDelayBounds(t *testing.T) {
	cfg := Default()
	cfg.DelayMin = 100 * time.Millisecond
	cfg.DelayMax = 200 * time.Millisecond
	for range 50 {
		d := cfg.RandomDelay()
		require.GreaterOrEqual(t, d, cfg.DelayMin)
		require.Less(t, d, cfg.DelayMax)
	}

	cfg.DelayMax = cfg.DelayMin
	require.Equal(t, cfg.DelayMin, cfg.RandomDelay())
}

func TestDSNFromParts(t *testing.T) {
	cfg := Default()
	require.Equal(t,
		"host=localhost port=5432 user=flightcal password=flightcal dbname=flight_prices sslmode=disable",
		cfg.DSN(),
	)
}
