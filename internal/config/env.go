// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/log"
)

// lookup returns the value of key. Empty counts as unset so a blank
// assignment in a unit file falls back to the default cleanly.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// warnInvalid flags an env override that did not parse and was ignored.
func warnInvalid(key, value, kind string) {
	log.WithComponent("config").Warn().
		Str("key", key).
		Str("value", value).
		Str("kind", kind).
		Msg("env override does not parse, keeping default")
}

// redacted reports whether key names a credential. Values of such keys
// never reach the log.
func redacted(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") ||
		strings.Contains(k, "token") ||
		strings.Contains(k, "key")
}

// ParseString reads a string override and records it at debug level,
// with credential values elided.
func ParseString(key, def string) string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	ev := log.WithComponent("config").Debug().Str("key", key)
	if redacted(key) {
		ev.Bool("redacted", true).Msg("env override applied")
	} else {
		ev.Str("value", v).Msg("env override applied")
	}
	return v
}

// ParseInt reads an integer override.
func ParseInt(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnInvalid(key, v, "integer")
		return def
	}
	return n
}

// ParseDuration reads a Go duration override such as "90s" or "1h30m".
func ParseDuration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnInvalid(key, v, "duration")
		return def
	}
	return d
}

// ParseFloat reads a float override.
func ParseFloat(key string, def float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		warnInvalid(key, v, "float")
		return def
	}
	return f
}

// ParseBool reads a boolean override: true/false, 1/0, yes/no, any case.
func ParseBool(key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	warnInvalid(key, v, "boolean")
	return def
}
