// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/teamarr/teamarr/internal/domain"
)

const groupColumns = `id, name, assigned_league, is_multi_sport, channel_group_id, channel_start,
	create_timing, delete_timing, event_template_id, exception_keywords, stream_mode, enabled,
	create_unmatched_channels, unmatched_channel_epg_source_id`

// ListEventGroups returns every event group ordered by name.
func (s *Store) ListEventGroups(ctx context.Context) ([]domain.EventGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM event_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []domain.EventGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// EnabledEventGroups returns the groups a generation run works through.
func (s *Store) EnabledEventGroups(ctx context.Context) ([]domain.EventGroup, error) {
	all, err := s.ListEventGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups := all[:0]
	for _, g := range all {
		if g.Enabled {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// GetEventGroup loads one group by id. Returns nil when absent.
func (s *Store) GetEventGroup(ctx context.Context, id int64) (*domain.EventGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM event_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == errGroupNotFound {
		return nil, nil
	}
	return g, err
}

// SaveEventGroup inserts (ID zero) or updates a group after validation.
// The row id is written back on insert.
func (s *Store) SaveEventGroup(ctx context.Context, g *domain.EventGroup) error {
	if err := g.Validate(); err != nil {
		return err
	}
	keywords, err := json.Marshal(stringsOrEmpty(g.ExceptionKeywords))
	if err != nil {
		return fmt.Errorf("encode exception keywords: %w", err)
	}
	now := fmtTime(timeNow())

	if g.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_groups (name, assigned_league, is_multi_sport, channel_group_id, channel_start,
			create_timing, delete_timing, event_template_id, exception_keywords, stream_mode, enabled,
			create_unmatched_channels, unmatched_channel_epg_source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.Name, string(g.AssignedLeague), g.IsMultiSport, g.ChannelGroupID, g.ChannelStart,
			string(g.CreateTiming), string(g.DeleteTiming), nullTemplateID(g.EventTemplateID),
			string(keywords), string(g.StreamMode), g.Enabled,
			g.CreateUnmatchedChannels, nullInt(g.UnmatchedChannelEPGSourceID), now, now)
		if err != nil {
			return fmt.Errorf("insert event group %q: %w", g.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("event group id: %w", err)
		}
		g.ID = id
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
	UPDATE event_groups SET
		name = ?, assigned_league = ?, is_multi_sport = ?, channel_group_id = ?, channel_start = ?,
		create_timing = ?, delete_timing = ?, event_template_id = ?, exception_keywords = ?,
		stream_mode = ?, enabled = ?, create_unmatched_channels = ?, unmatched_channel_epg_source_id = ?,
		updated_at = ?
	WHERE id = ?`,
		g.Name, string(g.AssignedLeague), g.IsMultiSport, g.ChannelGroupID, g.ChannelStart,
		string(g.CreateTiming), string(g.DeleteTiming), nullTemplateID(g.EventTemplateID),
		string(keywords), string(g.StreamMode), g.Enabled,
		g.CreateUnmatchedChannels, nullInt(g.UnmatchedChannelEPGSourceID), now, g.ID)
	if err != nil {
		return fmt.Errorf("update event group %q: %w", g.Name, err)
	}
	return nil
}

var errGroupNotFound = fmt.Errorf("event group not found")

func scanGroup(row rowScanner) (*domain.EventGroup, error) {
	var (
		g           domain.EventGroup
		league      string
		keywords    string
		templateID  sql.NullInt64
		epgSourceID sql.NullInt64
	)
	err := row.Scan(
		&g.ID, &g.Name, &league, &g.IsMultiSport, &g.ChannelGroupID, &g.ChannelStart,
		&g.CreateTiming, &g.DeleteTiming, &templateID, &keywords, &g.StreamMode, &g.Enabled,
		&g.CreateUnmatchedChannels, &epgSourceID,
	)
	if err == sql.ErrNoRows {
		return nil, errGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event group: %w", err)
	}

	g.AssignedLeague = domain.League(league)
	if err := json.Unmarshal([]byte(keywords), &g.ExceptionKeywords); err != nil {
		return nil, fmt.Errorf("decode exception keywords for %q: %w", g.Name, err)
	}
	if templateID.Valid {
		g.EventTemplateID = templateID.Int64
	}
	if epgSourceID.Valid {
		v := int(epgSourceID.Int64)
		g.UnmatchedChannelEPGSourceID = &v
	}
	return &g, nil
}

func stringsOrEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTemplateID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
