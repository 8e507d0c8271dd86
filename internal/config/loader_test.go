// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setRequiredEnv provides the minimum a valid config needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TEAMARR_DISPATCHARR_URL", "http://dispatcharr.local:9191")
	t.Setenv("TEAMARR_DISPATCHARR_USERNAME", "admin")
	t.Setenv("TEAMARR_DISPATCHARR_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TEAMARR_DATA_DIR", t.TempDir())

	cfg, err := NewLoader("", "1.2.3").Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "1.2.3", cfg.Version)
	require.Equal(t, time.Hour, cfg.Generation.Interval)
	require.Equal(t, 7, cfg.Generation.DaysAhead)
	require.Equal(t, "America/New_York", cfg.Generation.Timezone)
	require.Equal(t, 50, cfg.Generation.CacheSweepGenerations)
	require.True(t, cfg.Generation.InitialRun)
	require.Equal(t, 2*time.Second, cfg.Dispatcharr.PollInterval)
	require.Equal(t, 120*time.Second, cfg.Dispatcharr.PollTimeout)
	require.Equal(t, "3", cfg.Providers.SportsDBKey)
	require.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMARR_DATA_DIR", dir)

	cfgFile := filepath.Join(dir, "teamarr.yaml")
	yaml := `
listen: ":9000"
generation:
  interval: 30m
  days_ahead: 3
  initial_run: false
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0o600))

	// ENV beats file.
	t.Setenv("TEAMARR_DAYS_AHEAD", "5")

	cfg, err := NewLoader(cfgFile, "test").Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.Listen)                      // file beats default
	require.Equal(t, 30*time.Minute, cfg.Generation.Interval)  // file beats default
	require.Equal(t, 5, cfg.Generation.DaysAhead)              // env beats file
	require.False(t, cfg.Generation.InitialRun)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadCanonicalizesBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TEAMARR_DATA_DIR", t.TempDir())
	t.Setenv("TEAMARR_DISPATCHARR_URL", "HTTP://Dispatcharr.Local:9191/")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	require.Equal(t, "http://dispatcharr.local:9191", cfg.Dispatcharr.BaseURL)
}

func TestLoadStrictYAML(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMARR_DATA_DIR", dir)

	cfgFile := filepath.Join(dir, "teamarr.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("no_such_key: true\n"), 0o600))

	_, err := NewLoader(cfgFile, "test").Load()
	require.Error(t, err)
}

func TestLoadRejectsNonYAML(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	t.Setenv("TEAMARR_DATA_DIR", dir)

	cfgFile := filepath.Join(dir, "teamarr.json")
	require.NoError(t, os.WriteFile(cfgFile, []byte("{}"), 0o600))

	_, err := NewLoader(cfgFile, "test").Load()
	require.Error(t, err)
}

func TestLoadFlagsUnknownEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TEAMARR_DATA_DIR", t.TempDir())
	t.Setenv("TEAMARR_DISPATCHER_URL", "http://typo.local") // misspelled

	_, err := NewLoader("", "test").Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "TEAMARR_DISPATCHER_URL")
}

func TestLoadMissingDispatcharr(t *testing.T) {
	t.Setenv("TEAMARR_DATA_DIR", t.TempDir())
	t.Setenv("TEAMARR_DISPATCHARR_URL", "")
	t.Setenv("TEAMARR_DISPATCHARR_USERNAME", "")
	t.Setenv("TEAMARR_DISPATCHARR_PASSWORD", "")

	_, err := NewLoader("", "test").Load()
	require.ErrorIs(t, err, ErrMissingDispatcharr)
}
