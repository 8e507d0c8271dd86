// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamarr/teamarr/internal/netutil"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys tracks every env key the loader looked at, so
	// validation can flag unknown TEAMARR_* variables.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

// Load loads configuration in strict order: defaults, file (strict YAML),
// env overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.applyEnv(&cfg)

	// DataDir must be absolute before any path joins happen downstream.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	cfg.Version = l.version

	// Canonicalize the upstream base URL so the client and every log
	// line agree on one form. Validate reports the precise failure.
	if norm, err := netutil.ValidateBaseURL(cfg.Dispatcharr.BaseURL); err == nil {
		cfg.Dispatcharr.BaseURL = norm
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	if err := l.checkUnknownEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing:
// unknown fields are fatal to prevent silent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: no multiple documents or trailing content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// applyEnv overrides cfg fields from TEAMARR_* environment variables.
func (l *Loader) applyEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("TEAMARR_DATA_DIR", cfg.DataDir)
	cfg.Listen = l.envString("TEAMARR_LISTEN", cfg.Listen)

	cfg.Dispatcharr.BaseURL = l.envString("TEAMARR_DISPATCHARR_URL", cfg.Dispatcharr.BaseURL)
	cfg.Dispatcharr.Username = l.envString("TEAMARR_DISPATCHARR_USERNAME", cfg.Dispatcharr.Username)
	cfg.Dispatcharr.Password = l.envString("TEAMARR_DISPATCHARR_PASSWORD", cfg.Dispatcharr.Password)
	cfg.Dispatcharr.Timeout = l.envDuration("TEAMARR_DISPATCHARR_TIMEOUT", cfg.Dispatcharr.Timeout)
	cfg.Dispatcharr.RateLimit = l.envFloat("TEAMARR_DISPATCHARR_RATE_LIMIT", cfg.Dispatcharr.RateLimit)
	cfg.Dispatcharr.RateBurst = l.envInt("TEAMARR_DISPATCHARR_RATE_BURST", cfg.Dispatcharr.RateBurst)
	cfg.Dispatcharr.PollInterval = l.envDuration("TEAMARR_M3U_POLL_INTERVAL", cfg.Dispatcharr.PollInterval)
	cfg.Dispatcharr.PollTimeout = l.envDuration("TEAMARR_M3U_POLL_TIMEOUT", cfg.Dispatcharr.PollTimeout)
	cfg.Dispatcharr.SkipIfRecent = l.envDuration("TEAMARR_M3U_SKIP_IF_RECENT", cfg.Dispatcharr.SkipIfRecent)
	cfg.Dispatcharr.EPGSourceID = l.envInt("TEAMARR_DISPATCHARR_EPG_SOURCE_ID", cfg.Dispatcharr.EPGSourceID)

	cfg.Providers.Timeout = l.envDuration("TEAMARR_PROVIDER_TIMEOUT", cfg.Providers.Timeout)
	cfg.Providers.UserAgent = l.envString("TEAMARR_PROVIDER_USER_AGENT", cfg.Providers.UserAgent)
	cfg.Providers.RateLimit = l.envFloat("TEAMARR_PROVIDER_RATE_LIMIT", cfg.Providers.RateLimit)
	cfg.Providers.RateBurst = l.envInt("TEAMARR_PROVIDER_RATE_BURST", cfg.Providers.RateBurst)
	cfg.Providers.CacheTTL = l.envDuration("TEAMARR_PROVIDER_CACHE_TTL", cfg.Providers.CacheTTL)
	cfg.Providers.SportsDBKey = l.envString("TEAMARR_SPORTSDB_KEY", cfg.Providers.SportsDBKey)

	cfg.Generation.Interval = l.envDuration("TEAMARR_GENERATION_INTERVAL", cfg.Generation.Interval)
	cfg.Generation.DaysAhead = l.envInt("TEAMARR_DAYS_AHEAD", cfg.Generation.DaysAhead)
	cfg.Generation.Timezone = l.envString("TEAMARR_TIMEZONE", cfg.Generation.Timezone)
	cfg.Generation.CacheSweepGenerations = l.envInt("TEAMARR_CACHE_SWEEP_GENERATIONS", cfg.Generation.CacheSweepGenerations)
	cfg.Generation.InitialRun = l.envBool("TEAMARR_INITIAL_RUN", cfg.Generation.InitialRun)

	cfg.Logging.Level = l.envString("TEAMARR_LOG_LEVEL", cfg.Logging.Level)

	cfg.Telemetry.Mode = l.envString("TEAMARR_OTEL_MODE", cfg.Telemetry.Mode)
	cfg.Telemetry.Endpoint = l.envString("TEAMARR_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SampleRatio = l.envFloat("TEAMARR_OTEL_SAMPLE_RATIO", cfg.Telemetry.SampleRatio)

	cfg.Redis.Addr = l.envString("TEAMARR_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("TEAMARR_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("TEAMARR_REDIS_DB", cfg.Redis.DB)
}

// checkUnknownEnv flags TEAMARR_* variables the loader never consumed,
// catching typos like TEAMARR_DISPATCHER_URL at startup.
func (l *Loader) checkUnknownEnv() error {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, "TEAMARR_") {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown environment variables: %s", strings.Join(unknown, ", "))
	}
	return nil
}
