// SPDX-License-Identifier: MIT

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/version"
)

// Config selects how the process logger writes. Zero values mean stdout
// at info level under the default service name.
type Config struct {
	Level   string    // zerolog level name; LOG_LEVEL applies when empty
	Output  io.Writer // destination, stdout when nil
	Service string    // service field stamped on every line
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure builds the base logger. The first call wins; later calls and
// the lazy default from logger() are no-ops.
func Configure(cfg Config) {
	once.Do(func() { setup(cfg) })
}

func setup(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(levelFor(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	// Tee into the recent-entries ring served by the API.
	out = io.MultiWriter(out, &structuredBufferWriter{})

	svc := cfg.Service
	if svc == "" {
		svc = "teamarr"
	}
	base = zerolog.New(out).With().
		Timestamp().
		Str("service", svc).
		Str("version", version.Version).
		Logger()
}

// levelFor resolves the explicit level first, then LOG_LEVEL, then info.
func levelFor(name string) zerolog.Level {
	for _, cand := range []string{name, os.Getenv("LOG_LEVEL")} {
		if cand == "" {
			continue
		}
		if lv, err := zerolog.ParseLevel(cand); err == nil {
			return lv
		}
	}
	return zerolog.InfoLevel
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent tags a child logger with the subsystem it speaks for.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
