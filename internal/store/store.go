// SPDX-License-Identifier: MIT

// Package store provides SQLite persistence for everything Teamarr must
// remember between generation runs: operator settings, followed teams,
// templates, event groups, managed channels and their history, the
// stream-match fingerprint cache, and the run tracker.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Config defines SQLite operational parameters.
type Config struct {
	// BusyTimeout is how long a connection waits on a locked database
	// before returning SQLITE_BUSY.
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended configuration: WAL reads scale
// across the pool, writes serialize on SQLite's single writer.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  30 * time.Second,
		MaxOpenConns: 10,
	}
}

// Store wraps the SQLite handle behind typed accessors.
type Store struct {
	db *sql.DB
	// freshInstall is true when this Open created the settings row,
	// i.e. the database did not exist before. Gates config seeding.
	freshInstall bool
}

// Open initializes the SQLite store and runs schema migrations.
// Mandatory pragmas ride the DSN so they apply to every pooled
// connection: WAL journal, NORMAL sync, busy timeout, foreign keys.
func Open(dbPath string, cfg Config) (*Store, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultConfig().BusyTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Multi-step mutations (channel create + history,
// soft delete + history) go through here.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const (
	busyRetries = 3
	busyBackoff = 100 * time.Millisecond
)

// retryBusy retries op on SQLITE_BUSY with exponential backoff, on top of
// the driver-level busy timeout. Contended fingerprint-cache writes from
// overlapping runs land here.
func retryBusy(ctx context.Context, op func() error) error {
	var err error
	delay := busyBackoff
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = op(); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// timeNow is swapped in tests.
var timeNow = time.Now

// fmtTime serializes timestamps the way every table stores them.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
