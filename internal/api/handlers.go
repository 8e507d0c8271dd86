// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/teamarr/teamarr/internal/jobs"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int64(time.Since(s.start).Seconds()),
	})
}

// handleReady reports ready once the store answers queries. A missing
// first run does not make the service unready; Dispatcharr polls the
// guide endpoint regardless.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.st.CurrentGeneration(r.Context()); err != nil {
		log.WithComponentFromContext(r.Context(), "api").Warn().Err(err).
			Str("event", "ready.store_unavailable").
			Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "store not reachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleGenerate runs a generation cycle synchronously. The run gets a
// fresh context so a disconnecting client does not abort it mid-cycle;
// overlap with the daemon ticker is rejected with 409.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	ctx = log.ContextWithRequestID(ctx, log.RequestIDFromContext(r.Context()))

	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, jobs.ErrRunActive):
		logger.Warn().Str("event", "generate.conflict").Msg("generation already running")
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "conflict",
			"detail": "a generation run is already active",
		})
	case err != nil:
		logger.Error().Err(err).Str("event", "generate.failed").Msg("generation run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "generation failed",
			"detail": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type statusResponse struct {
	Generation    int64           `json:"generation"`
	LastRunAt     *time.Time      `json:"last_run_at"`
	LastRunStatus string          `json:"last_run_status,omitempty"`
	LastRun       json.RawMessage `json:"last_run,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	gen, err := s.st.CurrentGeneration(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store not reachable"})
		return
	}
	rec, err := s.st.LastRun(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store not reachable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Generation:    gen,
		LastRunAt:     rec.At,
		LastRunStatus: rec.Status,
		LastRun:       rec.Summary,
	})
}

// handleLogs serves the recent-entries ring, oldest first, with the
// buffer's drop counters.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	dropped := log.GetBufferMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": log.GetRecentLogs(),
		"dropped": map[string]uint64{
			"partial_overflow": dropped.DroppedPartialOverflow,
			"oversize_lines":   dropped.DroppedTooLargeLines,
			"irrelevant":       dropped.DroppedIrrelevant,
		},
	})
}
