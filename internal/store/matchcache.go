// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MatchCacheEntry binds a stream fingerprint to the event that claimed it
// in an earlier run. Snapshot holds the serialized event; the matcher
// refreshes its dynamic fields on every hit instead of re-running fuzzy
// matching.
type MatchCacheEntry struct {
	Fingerprint        string
	EventGroupID       int64
	StreamID           int
	EventID            string
	League             string
	Snapshot           []byte
	LastSeenGeneration int64
}

// GetMatchCache returns the entry for a fingerprint, or nil on a miss.
// Misses are not errors; they just mean full fuzzy matching runs.
func (s *Store) GetMatchCache(ctx context.Context, fingerprint string) (*MatchCacheEntry, error) {
	var e MatchCacheEntry
	err := s.db.QueryRowContext(ctx, `
	SELECT fingerprint, event_group_id, stream_id, event_id, league, snapshot, last_seen_generation
	FROM match_cache WHERE fingerprint = ?`, fingerprint).Scan(
		&e.Fingerprint, &e.EventGroupID, &e.StreamID, &e.EventID, &e.League, &e.Snapshot, &e.LastSeenGeneration,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read match cache: %w", err)
	}
	return &e, nil
}

// PutMatchCache upserts an entry. Writes contend with overlapping runs,
// so they retry on SQLITE_BUSY beyond the driver's busy timeout.
func (s *Store) PutMatchCache(ctx context.Context, e MatchCacheEntry) error {
	now := fmtTime(timeNow())
	return retryBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_cache (fingerprint, event_group_id, stream_id, event_id, league, snapshot, last_seen_generation, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			event_id = excluded.event_id,
			league = excluded.league,
			snapshot = excluded.snapshot,
			last_seen_generation = excluded.last_seen_generation,
			updated_at = excluded.updated_at`,
			e.Fingerprint, e.EventGroupID, e.StreamID, e.EventID, e.League, e.Snapshot,
			e.LastSeenGeneration, now, now)
		if err != nil {
			return fmt.Errorf("write match cache: %w", err)
		}
		return nil
	})
}

// StampMatchCache marks a fingerprint as seen by the given generation so
// the sweeper keeps it.
func (s *Store) StampMatchCache(ctx context.Context, fingerprint string, generation int64) error {
	return retryBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE match_cache SET last_seen_generation = ?, updated_at = ? WHERE fingerprint = ?`,
			generation, fmtTime(timeNow()), fingerprint)
		if err != nil {
			return fmt.Errorf("stamp match cache: %w", err)
		}
		return nil
	})
}

// SweepMatchCache evicts entries last seen before the cutoff generation
// and reports how many went.
func (s *Store) SweepMatchCache(ctx context.Context, cutoffGeneration int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM match_cache WHERE last_seen_generation < ?`, cutoffGeneration)
	if err != nil {
		return 0, fmt.Errorf("sweep match cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// MatchCacheSize returns the number of cached fingerprints.
func (s *Store) MatchCacheSize(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count match cache: %w", err)
	}
	return n, nil
}
