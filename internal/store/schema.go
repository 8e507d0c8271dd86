// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/teamarr/teamarr/internal/log"
)

// schemaBaseline is the v45 schema. Later changes ship as checkpoints so
// existing databases upgrade in place; a fresh database replays every
// checkpoint after the baseline.
const schemaBaseline = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'America/New_York',
	epg_source_id INTEGER NOT NULL DEFAULT 0,
	days_ahead INTEGER NOT NULL DEFAULT 7,
	default_duration_hours REAL NOT NULL DEFAULT 3.0,
	sport_durations TEXT NOT NULL DEFAULT '{}',
	profile_ids TEXT NOT NULL DEFAULT '[]',
	fix_drift INTEGER NOT NULL DEFAULT 1,
	delete_orphans INTEGER NOT NULL DEFAULT 0,
	cache_sweep_generations INTEGER NOT NULL DEFAULT 50,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	provider_team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	league TEXT NOT NULL,
	additional_leagues TEXT NOT NULL DEFAULT '[]',
	template_id INTEGER,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(provider, provider_team_id, league)
);

CREATE TABLE IF NOT EXISTS templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	body TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	assigned_league TEXT NOT NULL DEFAULT '',
	is_multi_sport INTEGER NOT NULL DEFAULT 0,
	channel_group_id INTEGER NOT NULL,
	channel_start REAL NOT NULL DEFAULT 0,
	create_timing TEXT NOT NULL DEFAULT 'stream_available' CHECK(create_timing IN ('stream_available', 'same_day', 'day_before', '2_days_before', 'manual')),
	delete_timing TEXT NOT NULL DEFAULT 'day_after' CHECK(delete_timing IN ('same_day', 'day_after', '2_days_after', 'stream_removed', 'manual')),
	event_template_id INTEGER,
	exception_keywords TEXT NOT NULL DEFAULT '[]',
	stream_mode TEXT NOT NULL DEFAULT 'merge' CHECK(stream_mode IN ('merge', 'separate')),
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS managed_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_group_id INTEGER NOT NULL,
	dispatcharr_channel_id INTEGER NOT NULL,
	dispatcharr_uuid TEXT NOT NULL DEFAULT '',
	dispatcharr_stream_id INTEGER NOT NULL DEFAULT 0,
	channel_number REAL NOT NULL,
	channel_name TEXT NOT NULL,
	espn_event_id TEXT NOT NULL DEFAULT '',
	event_date TEXT NOT NULL DEFAULT '',
	scheduled_delete_at TEXT,
	logo_id INTEGER,
	sync_status TEXT NOT NULL DEFAULT 'in_sync' CHECK(sync_status IN ('in_sync', 'drifted', 'orphaned')),
	exception_keyword TEXT NOT NULL DEFAULT '',
	unmatched INTEGER NOT NULL DEFAULT 0,
	deleted_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_managed_channels_group ON managed_channels(event_group_id);
CREATE INDEX IF NOT EXISTS idx_managed_channels_event ON managed_channels(espn_event_id, event_group_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_managed_channels_uuid ON managed_channels(dispatcharr_uuid) WHERE dispatcharr_uuid != '';

CREATE TABLE IF NOT EXISTS match_cache (
	fingerprint TEXT PRIMARY KEY,
	event_group_id INTEGER NOT NULL,
	stream_id INTEGER NOT NULL,
	event_id TEXT NOT NULL,
	league TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	last_seen_generation INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_cache_generation ON match_cache(last_seen_generation);
CREATE INDEX IF NOT EXISTS idx_match_cache_group ON match_cache(event_group_id);

CREATE TABLE IF NOT EXISTS update_tracker (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	generation INTEGER NOT NULL DEFAULT 0,
	last_run_at TEXT,
	last_run_status TEXT NOT NULL DEFAULT '',
	last_run_summary TEXT NOT NULL DEFAULT ''
);
`

const baselineVersion = 45

// checkpoint is one incremental schema change, gated by the monotonic
// schema_version stored in settings.
type checkpoint struct {
	version int
	name    string
	sql     string
}

// checkpoints must stay append-only once a version has shipped.
var checkpoints = []checkpoint{
	{
		version: 46,
		name:    "managed_channel_history",
		sql: `
CREATE TABLE IF NOT EXISTS managed_channel_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL,
	channel_uuid TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL CHECK(action IN ('created', 'updated', 'deleted', 'adopted', 'repaired')),
	detail TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_channel_history_channel ON managed_channel_history(channel_id);
`,
	},
	{
		version: 47,
		name:    "unmatched_channels",
		sql: `
ALTER TABLE event_groups ADD COLUMN create_unmatched_channels INTEGER NOT NULL DEFAULT 0;
ALTER TABLE event_groups ADD COLUMN unmatched_channel_epg_source_id INTEGER;
`,
	},
}

// migrate applies the baseline schema, seeds the singleton rows, then
// walks outstanding checkpoints in order inside one transaction each.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaBaseline); err != nil {
		return fmt.Errorf("baseline schema: %w", err)
	}

	now := fmtTime(timeNow())
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (id, schema_version, updated_at) VALUES (1, ?, ?)`,
		baselineVersion, now)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.freshInstall = true
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO update_tracker (id, generation) VALUES (1, 0)`); err != nil {
		return fmt.Errorf("seed update tracker: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT schema_version FROM settings WHERE id = 1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	logger := log.WithComponent("store")
	for _, cp := range checkpoints {
		if cp.version <= current {
			continue
		}
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, cp.sql); err != nil {
				return fmt.Errorf("checkpoint v%d (%s): %w", cp.version, cp.name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE settings SET schema_version = ? WHERE id = 1`, cp.version); err != nil {
				return fmt.Errorf("record checkpoint v%d: %w", cp.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		current = cp.version
		logger.Info().
			Str("event", "store.checkpoint.applied").
			Int("version", cp.version).
			Str("name", cp.name).
			Msg("schema checkpoint applied")
	}

	return nil
}

// SchemaVersion returns the current schema version from settings.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version FROM settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
