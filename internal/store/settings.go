// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/teamarr/teamarr/internal/domain"
)

// ErrNoSettings is returned when the singleton settings row is missing.
// The orchestrator treats it as fatal for the run.
var ErrNoSettings = errors.New("store: settings row missing")

// Settings is the operator-tunable state generation runs read at start.
// The row is seeded from config on first boot; afterwards the database is
// authoritative.
type Settings struct {
	SchemaVersion int
	// Timezone is the IANA zone driving all local-date boundaries.
	Timezone string
	// EPGSourceID is the Dispatcharr EPG source backing teamarr.xml,
	// used for set-epg on created channels and the post-run import
	// trigger.
	EPGSourceID int
	DaysAhead   int

	// DefaultDurationHours and SportDurations feed template duration
	// resolution (mode sport/default).
	DefaultDurationHours float64
	SportDurations       map[domain.Sport]float64

	// ProfileIDs are the Dispatcharr stream profiles new channels are
	// enabled on.
	ProfileIDs []int

	// Reconcile auto-fix gates. Drift fixes are safe and default on,
	// upstream orphan deletion defaults off, duplicates are never
	// auto-fixed.
	FixDrift      bool
	DeleteOrphans bool

	// CacheSweepGenerations is the eviction window for fingerprint-cache
	// entries not seen by recent runs.
	CacheSweepGenerations int
}

// GetSettings loads the singleton settings row.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	query := `
	SELECT schema_version, timezone, epg_source_id, days_ahead,
	       default_duration_hours, sport_durations, profile_ids,
	       fix_drift, delete_orphans, cache_sweep_generations
	FROM settings WHERE id = 1
	`

	var (
		set            Settings
		sportDurations string
		profileIDs     string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&set.SchemaVersion,
		&set.Timezone,
		&set.EPGSourceID,
		&set.DaysAhead,
		&set.DefaultDurationHours,
		&sportDurations,
		&profileIDs,
		&set.FixDrift,
		&set.DeleteOrphans,
		&set.CacheSweepGenerations,
	)
	if err == sql.ErrNoRows {
		return Settings{}, ErrNoSettings
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if err := json.Unmarshal([]byte(sportDurations), &set.SportDurations); err != nil {
		return Settings{}, fmt.Errorf("decode sport durations: %w", err)
	}
	if err := json.Unmarshal([]byte(profileIDs), &set.ProfileIDs); err != nil {
		return Settings{}, fmt.Errorf("decode profile ids: %w", err)
	}
	return set, nil
}

// SaveSettings persists everything except the schema version, which only
// checkpoints may advance.
func (s *Store) SaveSettings(ctx context.Context, set Settings) error {
	sportDurations, err := json.Marshal(durationsOrEmpty(set.SportDurations))
	if err != nil {
		return fmt.Errorf("encode sport durations: %w", err)
	}
	profileIDs, err := json.Marshal(idsOrEmpty(set.ProfileIDs))
	if err != nil {
		return fmt.Errorf("encode profile ids: %w", err)
	}

	query := `
	UPDATE settings SET
		timezone = ?,
		epg_source_id = ?,
		days_ahead = ?,
		default_duration_hours = ?,
		sport_durations = ?,
		profile_ids = ?,
		fix_drift = ?,
		delete_orphans = ?,
		cache_sweep_generations = ?,
		updated_at = ?
	WHERE id = 1
	`
	res, err := s.db.ExecContext(ctx, query,
		set.Timezone,
		set.EPGSourceID,
		set.DaysAhead,
		set.DefaultDurationHours,
		string(sportDurations),
		string(profileIDs),
		set.FixDrift,
		set.DeleteOrphans,
		set.CacheSweepGenerations,
		fmtTime(timeNow()),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoSettings
	}
	return nil
}

// EnsureSettings writes config-derived defaults into the settings row of
// a fresh install. On an existing database it is a no-op: the row is
// operator state and the database stays authoritative.
func (s *Store) EnsureSettings(ctx context.Context, def Settings) error {
	if !s.freshInstall {
		return nil
	}
	cur, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	def.SchemaVersion = cur.SchemaVersion
	return s.SaveSettings(ctx, def)
}

func durationsOrEmpty(m map[domain.Sport]float64) map[domain.Sport]float64 {
	if m == nil {
		return map[domain.Sport]float64{}
	}
	return m
}

func idsOrEmpty(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
