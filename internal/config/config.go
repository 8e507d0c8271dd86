// SPDX-License-Identifier: MIT

// Package config loads application configuration with the precedence
// ENV > YAML file > defaults, validates it fail-fast, and supports hot
// reloading via a file watcher.
package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string

	// DataDir holds the SQLite database, the badger team index and every
	// emitted XMLTV document.
	DataDir string
	// Listen is the HTTP bind address for the ops surface.
	Listen string

	Dispatcharr DispatcharrConfig
	Providers   ProvidersConfig
	Generation  GenerationConfig
	Logging     LoggingConfig
	Telemetry   TelemetryConfig
	Redis       RedisConfig
}

// DispatcharrConfig points at the upstream channel manager.
type DispatcharrConfig struct {
	BaseURL  string
	Username string
	Password string

	Timeout   time.Duration
	RateLimit float64 // requests per second
	RateBurst int

	// M3U refresh polling parameters.
	PollInterval time.Duration
	PollTimeout  time.Duration
	SkipIfRecent time.Duration

	// EPGSourceID is the Dispatcharr EPG source the consolidated XMLTV is
	// imported into.
	EPGSourceID int
}

// ProvidersConfig shapes the sports data clients.
type ProvidersConfig struct {
	Timeout   time.Duration
	UserAgent string
	RateLimit float64
	RateBurst int
	// CacheTTL bounds how long scoreboard responses are reused.
	// Schedules and stats age slower and keep their own longer TTL.
	CacheTTL    time.Duration
	SportsDBKey string
}

// GenerationConfig drives the scheduled generation loop.
type GenerationConfig struct {
	Interval  time.Duration
	DaysAhead int
	// Timezone seeds the settings row on first start; the persisted
	// setting wins afterwards.
	Timezone string
	// CacheSweepGenerations evicts match-cache entries not seen for this
	// many runs.
	CacheSweepGenerations int
	// InitialRun fires a generation run at startup instead of waiting
	// for the first tick.
	InitialRun bool
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level string
}

// TelemetryConfig selects the trace exporter.
type TelemetryConfig struct {
	// Mode is one of "off", "grpc", "http".
	Mode        string
	Endpoint    string
	SampleRatio float64
}

// RedisConfig enables the shared response cache; an empty Addr selects
// the in-memory backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Defaults returns the baseline configuration before file and env merge.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "/data",
		Listen:  ":8080",
		Dispatcharr: DispatcharrConfig{
			Timeout:      30 * time.Second,
			RateLimit:    10,
			RateBurst:    20,
			PollInterval: 2 * time.Second,
			PollTimeout:  120 * time.Second,
			SkipIfRecent: 10 * time.Minute,
		},
		Providers: ProvidersConfig{
			Timeout:   15 * time.Second,
			UserAgent: "teamarr/1.0",
			RateLimit: 5,
			RateBurst: 10,
			CacheTTL:  2 * time.Minute,
			// TheSportsDB free tier key.
			SportsDBKey: "3",
		},
		Generation: GenerationConfig{
			Interval:              time.Hour,
			DaysAhead:             7,
			Timezone:              "America/New_York",
			CacheSweepGenerations: 50,
			InitialRun:            true,
		},
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{Mode: "off", SampleRatio: 1.0},
	}
}
