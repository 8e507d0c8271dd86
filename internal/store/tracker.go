// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is the persisted summary of the most recent generation run,
// served by the status endpoint.
type RunRecord struct {
	Generation int64
	At         *time.Time
	Status     string
	// Summary is the JSON-encoded run result.
	Summary []byte
}

// NextGeneration advances the monotonic generation counter and returns
// the new value. Every run calls this exactly once at start; the value
// stamps match-cache entries.
func (s *Store) NextGeneration(ctx context.Context) (int64, error) {
	var gen int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE update_tracker SET generation = generation + 1 WHERE id = 1`); err != nil {
			return fmt.Errorf("advance generation: %w", err)
		}
		return tx.QueryRowContext(ctx,
			`SELECT generation FROM update_tracker WHERE id = 1`).Scan(&gen)
	})
	return gen, err
}

// CurrentGeneration returns the counter without advancing it.
func (s *Store) CurrentGeneration(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx,
		`SELECT generation FROM update_tracker WHERE id = 1`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return gen, nil
}

// RecordRun persists the outcome of a finished run.
func (s *Store) RecordRun(ctx context.Context, at time.Time, status string, summary []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE update_tracker SET last_run_at = ?, last_run_status = ?, last_run_summary = ? WHERE id = 1`,
		fmtTime(at), status, string(summary))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run record. At is nil before the first
// completed run.
func (s *Store) LastRun(ctx context.Context) (RunRecord, error) {
	var (
		rec     RunRecord
		at      sql.NullString
		summary string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT generation, last_run_at, last_run_status, last_run_summary FROM update_tracker WHERE id = 1`).
		Scan(&rec.Generation, &at, &rec.Status, &summary)
	if err != nil {
		return RunRecord{}, fmt.Errorf("read last run: %w", err)
	}
	rec.At = timePtr(at)
	if summary != "" {
		rec.Summary = []byte(summary)
	}
	return rec, nil
}
