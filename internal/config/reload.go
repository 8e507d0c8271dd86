// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/netutil"
)

// reloadDebounce coalesces the burst of fsnotify events an editor save
// produces into one reload.
const reloadDebounce = 500 * time.Millisecond

// Holder serves the live configuration and swaps it atomically on
// reload. Reads never block behind a reload in progress.
type Holder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewHolder creates a configuration holder with the initial config.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and validates it. If validation
// fails the old configuration is kept, so a reload either applies a fully
// valid config or changes nothing.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("config reload requested")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).
			Str("event", "config.reload_failed").
			Msg("new configuration rejected, keeping the old one")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration swapped")
	return nil
}

// StartWatcher begins reloading on config file writes. Without a config
// path there is nothing to watch and ENV settings stay fixed for the
// life of the process.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("no config file, ENV settings apply until restart")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = watcher

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("config file under watch")

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return

		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Write and Create cover vim, nano and echo-style rewrites.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).
						Str("event", "config.auto_reload_failed").
						Msg("file-triggered reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).
				Str("event", "config.watcher_error").
				Msg("watcher reported an error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel to receive config reload
// notifications. The caller owns the channel.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *Holder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("listener channel full, notification dropped")
		}
	}
}

// logChanges reports the settings operators touch most, one line per
// changed field. URLs are sanitized before they reach the log.
func (h *Holder) logChanges(old, cur AppConfig) {
	diff := func(field, from, to string) {
		h.logger.Info().
			Str("event", "config.changed").
			Str("field", field).
			Str("old", from).
			Str("new", to).
			Msg("config changed")
	}

	if old.Generation.Interval != cur.Generation.Interval {
		diff("generation.interval", old.Generation.Interval.String(), cur.Generation.Interval.String())
	}
	if old.Generation.DaysAhead != cur.Generation.DaysAhead {
		diff("generation.days_ahead", strconv.Itoa(old.Generation.DaysAhead), strconv.Itoa(cur.Generation.DaysAhead))
	}
	if old.Logging.Level != cur.Logging.Level {
		diff("logging.level", old.Logging.Level, cur.Logging.Level)
	}
	if old.Dispatcharr.BaseURL != cur.Dispatcharr.BaseURL {
		diff("dispatcharr.base_url",
			netutil.SanitizeURL(old.Dispatcharr.BaseURL),
			netutil.SanitizeURL(cur.Dispatcharr.BaseURL))
	}
}
