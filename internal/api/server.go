// SPDX-License-Identifier: MIT

// Package api serves the operational HTTP surface: health, readiness,
// Prometheus metrics, the generated guide files, and the generate,
// status and recent-logs endpoints. Channel and template administration
// is not exposed here; Teamarr is driven by its settings store.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamarr/teamarr/internal/jobs"
	"github.com/teamarr/teamarr/internal/store"
)

// Runner triggers a generation run. *jobs.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (*jobs.RunResult, error)
}

// StatusStore is the slice of the store the status and readiness
// handlers read.
type StatusStore interface {
	CurrentGeneration(ctx context.Context) (int64, error)
	LastRun(ctx context.Context) (store.RunRecord, error)
}

// Config carries the server's operational knobs.
type Config struct {
	// DataDir is the directory holding the generated guide files.
	DataDir string
	// RunTimeout caps a triggered generation run. Zero means 10m.
	RunTimeout time.Duration
	// RateLimit is requests per RateWindow per client IP on the /api
	// and /files routes. Zero means 60 per minute.
	RateLimit  int
	RateWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 60
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	return c
}

// Server is the operational HTTP server.
type Server struct {
	cfg    Config
	runner Runner
	st     StatusStore
	start  time.Time
}

// New builds a server over the given runner and store slice.
func New(cfg Config, runner Runner, st StatusStore) *Server {
	return &Server{
		cfg:    cfg.withDefaults(),
		runner: runner,
		st:     st,
		start:  time.Now(),
	}
}

// Handler builds the route tree. Health and metrics are mounted outside
// the rate-limited group; only guide and trigger routes count against it.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestContext)
	r.Use(chimw.Recoverer)
	r.Use(instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/files", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit, s.cfg.RateWindow))
		r.Handle("/*", http.StripPrefix("/files/", s.fileServer()))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit, s.cfg.RateWindow))
		r.Post("/generate", s.handleGenerate)
		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)
	})

	return r
}
