// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/teamarr/teamarr/internal/netutil"
)

// ErrMissingDispatcharr indicates the upstream manager is unconfigured.
var ErrMissingDispatcharr = errors.New("dispatcharr base_url, username and password are required")

// Validate checks the resolved configuration fail-fast. It is called by
// Loader.Load and again on every hot reload before the swap.
func Validate(cfg AppConfig) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if cfg.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}

	if cfg.Dispatcharr.BaseURL == "" || cfg.Dispatcharr.Username == "" || cfg.Dispatcharr.Password == "" {
		return ErrMissingDispatcharr
	}
	if _, err := netutil.ValidateBaseURL(cfg.Dispatcharr.BaseURL); err != nil {
		return fmt.Errorf("dispatcharr base_url: %w", err)
	}
	if cfg.Dispatcharr.Timeout <= 0 {
		return fmt.Errorf("dispatcharr timeout must be positive")
	}
	if cfg.Dispatcharr.RateLimit <= 0 {
		return fmt.Errorf("dispatcharr rate_limit must be positive")
	}
	if cfg.Dispatcharr.PollInterval <= 0 || cfg.Dispatcharr.PollTimeout <= 0 {
		return fmt.Errorf("m3u poll interval and timeout must be positive")
	}
	if cfg.Dispatcharr.PollInterval >= cfg.Dispatcharr.PollTimeout {
		return fmt.Errorf("m3u poll interval must be shorter than the poll timeout")
	}

	if cfg.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if cfg.Providers.RateLimit <= 0 {
		return fmt.Errorf("provider rate_limit must be positive")
	}

	if cfg.Generation.Interval < time.Minute {
		return fmt.Errorf("generation interval must be at least one minute")
	}
	if cfg.Generation.DaysAhead < 1 || cfg.Generation.DaysAhead > 30 {
		return fmt.Errorf("days_ahead must be between 1 and 30")
	}
	if _, err := time.LoadLocation(cfg.Generation.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Generation.Timezone, err)
	}
	if cfg.Generation.CacheSweepGenerations < 1 {
		return fmt.Errorf("cache_sweep_generations must be positive")
	}

	switch cfg.Telemetry.Mode {
	case "", "off", "grpc", "http":
	default:
		return fmt.Errorf("telemetry mode must be off, grpc or http (got %q)", cfg.Telemetry.Mode)
	}
	if cfg.Telemetry.Mode == "grpc" || cfg.Telemetry.Mode == "http" {
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry endpoint required for mode %q", cfg.Telemetry.Mode)
		}
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample_ratio must be within [0,1]")
	}

	return nil
}
