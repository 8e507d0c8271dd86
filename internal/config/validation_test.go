// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	cfg := Defaults()
	cfg.DataDir = "/tmp/teamarr-test"
	cfg.Dispatcharr.BaseURL = "http://dispatcharr.local:9191"
	cfg.Dispatcharr.Username = "admin"
	cfg.Dispatcharr.Password = "secret"
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty data dir", func(c *AppConfig) { c.DataDir = "" }},
		{"empty listen", func(c *AppConfig) { c.Listen = "" }},
		{"missing credentials", func(c *AppConfig) { c.Dispatcharr.Password = "" }},
		{"bad base url", func(c *AppConfig) { c.Dispatcharr.BaseURL = "dispatcharr.local" }},
		{"zero timeout", func(c *AppConfig) { c.Dispatcharr.Timeout = 0 }},
		{"zero rate limit", func(c *AppConfig) { c.Dispatcharr.RateLimit = 0 }},
		{"poll interval >= timeout", func(c *AppConfig) { c.Dispatcharr.PollInterval = 3 * time.Minute }},
		{"generation interval too short", func(c *AppConfig) { c.Generation.Interval = 10 * time.Second }},
		{"days ahead out of range", func(c *AppConfig) { c.Generation.DaysAhead = 45 }},
		{"bad timezone", func(c *AppConfig) { c.Generation.Timezone = "Mars/Olympus" }},
		{"bad telemetry mode", func(c *AppConfig) { c.Telemetry.Mode = "udp" }},
		{"telemetry endpoint missing", func(c *AppConfig) { c.Telemetry.Mode = "grpc"; c.Telemetry.Endpoint = "" }},
		{"sample ratio out of range", func(c *AppConfig) { c.Telemetry.SampleRatio = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

func TestMergeFileConfigDurations(t *testing.T) {
	cfg := Defaults()
	interval := "45m"
	bad := "not-a-duration"

	require.NoError(t, mergeFileConfig(&cfg, &FileConfig{
		Generation: &GenerationFileConfig{Interval: &interval},
	}))
	require.Equal(t, 45*time.Minute, cfg.Generation.Interval)

	err := mergeFileConfig(&cfg, &FileConfig{
		Generation: &GenerationFileConfig{Interval: &bad},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "generation.interval")
}

func TestMergeFileConfigAbsentKeysKeepDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, mergeFileConfig(&cfg, &FileConfig{}))
	require.Equal(t, Defaults(), cfg)
}
