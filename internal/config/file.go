// SPDX-License-Identifier: MIT

package config

// FileConfig mirrors AppConfig for YAML decoding. Pointer fields make
// presence detectable so an absent key never clobbers a default, and
// durations arrive as strings ("30m") parsed during merge.
type FileConfig struct {
	DataDir *string `yaml:"data_dir,omitempty"`
	Listen  *string `yaml:"listen,omitempty"`

	Dispatcharr *DispatcharrFileConfig `yaml:"dispatcharr,omitempty"`
	Providers   *ProvidersFileConfig   `yaml:"providers,omitempty"`
	Generation  *GenerationFileConfig  `yaml:"generation,omitempty"`
	Logging     *LoggingFileConfig     `yaml:"logging,omitempty"`
	Telemetry   *TelemetryFileConfig   `yaml:"telemetry,omitempty"`
	Redis       *RedisFileConfig       `yaml:"redis,omitempty"`
}

// DispatcharrFileConfig is the YAML form of DispatcharrConfig.
type DispatcharrFileConfig struct {
	BaseURL      *string  `yaml:"base_url,omitempty"`
	Username     *string  `yaml:"username,omitempty"`
	Password     *string  `yaml:"password,omitempty"`
	Timeout      *string  `yaml:"timeout,omitempty"`
	RateLimit    *float64 `yaml:"rate_limit,omitempty"`
	RateBurst    *int     `yaml:"rate_burst,omitempty"`
	PollInterval *string  `yaml:"poll_interval,omitempty"`
	PollTimeout  *string  `yaml:"poll_timeout,omitempty"`
	SkipIfRecent *string  `yaml:"skip_if_recent,omitempty"`
	EPGSourceID  *int     `yaml:"epg_source_id,omitempty"`
}

// ProvidersFileConfig is the YAML form of ProvidersConfig.
type ProvidersFileConfig struct {
	Timeout     *string  `yaml:"timeout,omitempty"`
	UserAgent   *string  `yaml:"user_agent,omitempty"`
	RateLimit   *float64 `yaml:"rate_limit,omitempty"`
	RateBurst   *int     `yaml:"rate_burst,omitempty"`
	CacheTTL    *string  `yaml:"cache_ttl,omitempty"`
	SportsDBKey *string  `yaml:"sportsdb_key,omitempty"`
}

// GenerationFileConfig is the YAML form of GenerationConfig.
type GenerationFileConfig struct {
	Interval              *string `yaml:"interval,omitempty"`
	DaysAhead             *int    `yaml:"days_ahead,omitempty"`
	Timezone              *string `yaml:"timezone,omitempty"`
	CacheSweepGenerations *int    `yaml:"cache_sweep_generations,omitempty"`
	InitialRun            *bool   `yaml:"initial_run,omitempty"`
}

// LoggingFileConfig is the YAML form of LoggingConfig.
type LoggingFileConfig struct {
	Level *string `yaml:"level,omitempty"`
}

// TelemetryFileConfig is the YAML form of TelemetryConfig.
type TelemetryFileConfig struct {
	Mode        *string  `yaml:"mode,omitempty"`
	Endpoint    *string  `yaml:"endpoint,omitempty"`
	SampleRatio *float64 `yaml:"sample_ratio,omitempty"`
}

// RedisFileConfig is the YAML form of RedisConfig.
type RedisFileConfig struct {
	Addr     *string `yaml:"addr,omitempty"`
	Password *string `yaml:"password,omitempty"`
	DB       *int    `yaml:"db,omitempty"`
}
