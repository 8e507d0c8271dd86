// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"time"
)

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyDuration(dst *time.Duration, src *string, key string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", key, *src, err)
	}
	*dst = d
	return nil
}

// mergeFileConfig applies every present file value onto cfg.
func mergeFileConfig(cfg *AppConfig, file *FileConfig) error {
	if file == nil {
		return nil
	}

	applyString(&cfg.DataDir, file.DataDir)
	applyString(&cfg.Listen, file.Listen)

	if d := file.Dispatcharr; d != nil {
		applyString(&cfg.Dispatcharr.BaseURL, d.BaseURL)
		applyString(&cfg.Dispatcharr.Username, d.Username)
		applyString(&cfg.Dispatcharr.Password, d.Password)
		if err := applyDuration(&cfg.Dispatcharr.Timeout, d.Timeout, "dispatcharr.timeout"); err != nil {
			return err
		}
		applyFloat(&cfg.Dispatcharr.RateLimit, d.RateLimit)
		applyInt(&cfg.Dispatcharr.RateBurst, d.RateBurst)
		if err := applyDuration(&cfg.Dispatcharr.PollInterval, d.PollInterval, "dispatcharr.poll_interval"); err != nil {
			return err
		}
		if err := applyDuration(&cfg.Dispatcharr.PollTimeout, d.PollTimeout, "dispatcharr.poll_timeout"); err != nil {
			return err
		}
		if err := applyDuration(&cfg.Dispatcharr.SkipIfRecent, d.SkipIfRecent, "dispatcharr.skip_if_recent"); err != nil {
			return err
		}
		applyInt(&cfg.Dispatcharr.EPGSourceID, d.EPGSourceID)
	}

	if p := file.Providers; p != nil {
		if err := applyDuration(&cfg.Providers.Timeout, p.Timeout, "providers.timeout"); err != nil {
			return err
		}
		applyString(&cfg.Providers.UserAgent, p.UserAgent)
		applyFloat(&cfg.Providers.RateLimit, p.RateLimit)
		applyInt(&cfg.Providers.RateBurst, p.RateBurst)
		if err := applyDuration(&cfg.Providers.CacheTTL, p.CacheTTL, "providers.cache_ttl"); err != nil {
			return err
		}
		applyString(&cfg.Providers.SportsDBKey, p.SportsDBKey)
	}

	if g := file.Generation; g != nil {
		if err := applyDuration(&cfg.Generation.Interval, g.Interval, "generation.interval"); err != nil {
			return err
		}
		applyInt(&cfg.Generation.DaysAhead, g.DaysAhead)
		applyString(&cfg.Generation.Timezone, g.Timezone)
		applyInt(&cfg.Generation.CacheSweepGenerations, g.CacheSweepGenerations)
		applyBool(&cfg.Generation.InitialRun, g.InitialRun)
	}

	if lg := file.Logging; lg != nil {
		applyString(&cfg.Logging.Level, lg.Level)
	}

	if t := file.Telemetry; t != nil {
		applyString(&cfg.Telemetry.Mode, t.Mode)
		applyString(&cfg.Telemetry.Endpoint, t.Endpoint)
		applyFloat(&cfg.Telemetry.SampleRatio, t.SampleRatio)
	}

	if r := file.Redis; r != nil {
		applyString(&cfg.Redis.Addr, r.Addr)
		applyString(&cfg.Redis.Password, r.Password)
		applyInt(&cfg.Redis.DB, r.DB)
	}

	return nil
}
