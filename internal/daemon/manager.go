// SPDX-License-Identifier: MIT

// Package daemon owns the long-lived runtime: the operational HTTP
// server, the generation scheduler, config reload wiring, and graceful
// shutdown with ordered cleanup hooks.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/log"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the HTTP server lifecycle: serving, shutdown, and
// cleanup hooks.
type Manager interface {
	// Start serves until ctx is cancelled or the server fails, then
	// shuts down.
	Start(ctx context.Context) error

	// Shutdown drains the server and runs the registered hooks.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook adds a named cleanup step.
	RegisterShutdownHook(name string, hook ShutdownHook)
}

// ServerConfig holds the listen address and HTTP server limits.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// Guide downloads can run to several MB.
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 1 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return c
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	cfg     ServerConfig
	handler http.Handler
	server  *http.Server

	// Shutdown hooks (LIFO order).
	hooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

// NewManager creates a manager serving the given handler.
func NewManager(cfg ServerConfig, handler http.Handler) (Manager, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}
	return &manager{
		cfg:     cfg.withDefaults(),
		handler: handler,
		logger:  log.WithComponent("daemon"),
	}, nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}

// Start serves HTTP and blocks until ctx is cancelled or the listener
// fails. Shutdown runs on a detached-but-bounded context so it can
// complete even though the parent is already cancelled.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.server = &http.Server{
		Addr:              m.cfg.ListenAddr,
		Handler:           m.handler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
		MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
	}
	m.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		m.logger.Info().
			Str("event", "daemon.listening").
			Str("addr", m.cfg.ListenAddr).
			Msg("HTTP server listening")

		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).
			Str("event", "daemon.server_failed").
			Msg("server error, initiating shutdown")
		if shutdownErr := m.Shutdown(ctx); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str("event", "daemon.shutdown_signal").Msg("shutdown signal received")
		return m.Shutdown(ctx)
	}
}

// Shutdown drains the HTTP server, then runs the hooks in reverse
// registration order. A second call is a no-op.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := m.hooks
	m.mu.Unlock()

	m.logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")

	// Bounded and detached from caller cancellation: a cancelled parent
	// must not abort the drain.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if m.server != nil {
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			m.logger.Error().Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
	return nil
}
