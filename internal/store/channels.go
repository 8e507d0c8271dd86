// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

const channelColumns = `id, event_group_id, dispatcharr_channel_id, dispatcharr_uuid, dispatcharr_stream_id,
	channel_number, channel_name, espn_event_id, event_date, scheduled_delete_at, logo_id,
	sync_status, exception_keyword, unmatched, deleted_at, created_at, updated_at`

// CreateManagedChannel inserts a channel row plus its "created" history
// entry in one transaction. The row id and timestamps are written back.
func (s *Store) CreateManagedChannel(ctx context.Context, ch *domain.ManagedChannel, detail string) error {
	return s.insertChannel(ctx, ch, domain.HistoryCreated, detail)
}

// AdoptManagedChannel inserts a row for an upstream channel discovered by
// reconciliation, recording an "adopted" history entry instead of
// "created".
func (s *Store) AdoptManagedChannel(ctx context.Context, ch *domain.ManagedChannel, detail string) error {
	return s.insertChannel(ctx, ch, domain.HistoryAdopted, detail)
}

func (s *Store) insertChannel(ctx context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error {
	now := timeNow().UTC()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO managed_channels (event_group_id, dispatcharr_channel_id, dispatcharr_uuid,
			dispatcharr_stream_id, channel_number, channel_name, espn_event_id, event_date,
			scheduled_delete_at, logo_id, sync_status, exception_keyword, unmatched, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.EventGroupID, ch.DispatcharrChannelID, ch.DispatcharrUUID, ch.DispatcharrStreamID,
			ch.ChannelNumber, ch.ChannelName, ch.ESPNEventID, fmtTimeOrEmpty(ch.EventDate),
			nullTime(ch.ScheduledDeleteAt), nullInt(ch.LogoID), string(syncOrDefault(ch.SyncStatus)),
			ch.ExceptionKeyword, ch.Unmatched, fmtTime(now), fmtTime(now))
		if err != nil {
			return fmt.Errorf("insert channel %q: %w", ch.ChannelName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("channel id: %w", err)
		}
		ch.ID = id
		ch.CreatedAt = now
		ch.UpdatedAt = now
		if ch.SyncStatus == "" {
			ch.SyncStatus = domain.SyncInSync
		}
		return appendHistory(ctx, tx, domain.ChannelHistoryEntry{
			ChannelID:   id,
			ChannelUUID: ch.DispatcharrUUID,
			Action:      action,
			Detail:      detail,
			At:          now,
		})
	})
}

// UpdateManagedChannel rewrites a channel's mutable fields and appends a
// history entry for the given action in one transaction.
func (s *Store) UpdateManagedChannel(ctx context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error {
	now := timeNow().UTC()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		UPDATE managed_channels SET
			dispatcharr_channel_id = ?, dispatcharr_uuid = ?, dispatcharr_stream_id = ?,
			channel_number = ?, channel_name = ?, espn_event_id = ?, event_date = ?,
			scheduled_delete_at = ?, logo_id = ?, sync_status = ?, unmatched = ?, updated_at = ?
		WHERE id = ?`,
			ch.DispatcharrChannelID, ch.DispatcharrUUID, ch.DispatcharrStreamID,
			ch.ChannelNumber, ch.ChannelName, ch.ESPNEventID, fmtTimeOrEmpty(ch.EventDate),
			nullTime(ch.ScheduledDeleteAt), nullInt(ch.LogoID), string(syncOrDefault(ch.SyncStatus)),
			ch.Unmatched, fmtTime(now), ch.ID)
		if err != nil {
			return fmt.Errorf("update channel %d: %w", ch.ID, err)
		}
		ch.UpdatedAt = now
		return appendHistory(ctx, tx, domain.ChannelHistoryEntry{
			ChannelID:   ch.ID,
			ChannelUUID: ch.DispatcharrUUID,
			Action:      action,
			Detail:      detail,
			At:          now,
		})
	})
}

// SoftDeleteManagedChannel sets deleted_at and appends the "deleted"
// history entry. The row stays for audit and number accounting.
func (s *Store) SoftDeleteManagedChannel(ctx context.Context, id int64, detail string) error {
	now := timeNow().UTC()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var uuid string
		err := tx.QueryRowContext(ctx,
			`SELECT dispatcharr_uuid FROM managed_channels WHERE id = ? AND deleted_at IS NULL`, id).Scan(&uuid)
		if err == sql.ErrNoRows {
			return nil // already gone
		}
		if err != nil {
			return fmt.Errorf("load channel %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE managed_channels SET deleted_at = ?, updated_at = ? WHERE id = ?`,
			fmtTime(now), fmtTime(now), id); err != nil {
			return fmt.Errorf("soft delete channel %d: %w", id, err)
		}
		return appendHistory(ctx, tx, domain.ChannelHistoryEntry{
			ChannelID:   id,
			ChannelUUID: uuid,
			Action:      domain.HistoryDeleted,
			Detail:      detail,
			At:          now,
		})
	})
}

// ActiveChannels returns every undeleted managed channel.
func (s *Store) ActiveChannels(ctx context.Context) ([]domain.ManagedChannel, error) {
	return s.queryChannels(ctx,
		`SELECT `+channelColumns+` FROM managed_channels WHERE deleted_at IS NULL ORDER BY id`)
}

// ActiveChannelsForGroup returns the undeleted channels of one group.
func (s *Store) ActiveChannelsForGroup(ctx context.Context, groupID int64) ([]domain.ManagedChannel, error) {
	return s.queryChannels(ctx,
		`SELECT `+channelColumns+` FROM managed_channels WHERE event_group_id = ? AND deleted_at IS NULL ORDER BY id`,
		groupID)
}

// ActiveChannelByUUID resolves the authoritative upstream identity to a
// local row. Returns nil when unknown.
func (s *Store) ActiveChannelByUUID(ctx context.Context, uuid string) (*domain.ManagedChannel, error) {
	if uuid == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM managed_channels WHERE dispatcharr_uuid = ? AND deleted_at IS NULL`, uuid)
	return scanChannelRow(row)
}

// ActiveChannelByDispatcharrID is the fallback lookup for upstream rows
// whose UUID is not yet known locally.
func (s *Store) ActiveChannelByDispatcharrID(ctx context.Context, channelID int) (*domain.ManagedChannel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM managed_channels WHERE dispatcharr_channel_id = ? AND deleted_at IS NULL`, channelID)
	return scanChannelRow(row)
}

// DueForDeletion returns undeleted channels whose scheduled delete time
// has passed.
func (s *Store) DueForDeletion(ctx context.Context, now time.Time) ([]domain.ManagedChannel, error) {
	return s.queryChannels(ctx, `
	SELECT `+channelColumns+` FROM managed_channels
	WHERE deleted_at IS NULL AND scheduled_delete_at IS NOT NULL AND scheduled_delete_at <= ?
	ORDER BY id`, fmtTime(now))
}

// NextChannelNumber allocates the next number for a group: the group's
// start when empty, otherwise one past the highest undeleted number.
// Numbers of undeleted channels are never reused.
func (s *Store) NextChannelNumber(ctx context.Context, groupID int64, start float64) (float64, error) {
	var highest sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(channel_number) FROM managed_channels WHERE event_group_id = ? AND deleted_at IS NULL`,
		groupID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max channel number: %w", err)
	}
	if !highest.Valid || highest.Float64 < start {
		return start, nil
	}
	return highest.Float64 + 1, nil
}

// BackfillChannelUUID records an upstream UUID discovered during a
// reconcile scan.
func (s *Store) BackfillChannelUUID(ctx context.Context, id int64, uuid string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE managed_channels SET dispatcharr_uuid = ?, updated_at = ? WHERE id = ?`,
		uuid, fmtTime(timeNow()), id)
	return err
}

// SetSyncStatus updates a channel's reconciliation verdict.
func (s *Store) SetSyncStatus(ctx context.Context, id int64, status domain.SyncStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE managed_channels SET sync_status = ?, updated_at = ? WHERE id = ?`,
		string(status), fmtTime(timeNow()), id)
	return err
}

// LogoReferenced reports whether any other undeleted channel still uses
// the logo; cleanup is only safe when nothing does.
func (s *Store) LogoReferenced(ctx context.Context, logoID int, excludeChannelID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM managed_channels WHERE logo_id = ? AND id != ? AND deleted_at IS NULL`,
		logoID, excludeChannelID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count logo references: %w", err)
	}
	return n > 0, nil
}

// ChannelHistory returns the newest history entries for a channel.
func (s *Store) ChannelHistory(ctx context.Context, channelID int64, limit int) ([]domain.ChannelHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, channel_id, channel_uuid, action, detail, created_at
	FROM managed_channel_history
	WHERE channel_id = ?
	ORDER BY id DESC
	LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("channel history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.ChannelHistoryEntry
	for rows.Next() {
		var (
			e  domain.ChannelHistoryEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.ChannelUUID, &e.Action, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.At = parseTime(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func appendHistory(ctx context.Context, tx *sql.Tx, e domain.ChannelHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO managed_channel_history (channel_id, channel_uuid, action, detail, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		e.ChannelID, e.ChannelUUID, string(e.Action), e.Detail, fmtTime(e.At))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) queryChannels(ctx context.Context, query string, args ...any) ([]domain.ManagedChannel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var channels []domain.ManagedChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func scanChannelRow(row *sql.Row) (*domain.ManagedChannel, error) {
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

func scanChannel(row rowScanner) (*domain.ManagedChannel, error) {
	var (
		ch        domain.ManagedChannel
		eventDate string
		deleteAt  sql.NullString
		logoID    sql.NullInt64
		deletedAt sql.NullString
		created   string
		updated   string
	)
	err := row.Scan(
		&ch.ID, &ch.EventGroupID, &ch.DispatcharrChannelID, &ch.DispatcharrUUID, &ch.DispatcharrStreamID,
		&ch.ChannelNumber, &ch.ChannelName, &ch.ESPNEventID, &eventDate, &deleteAt, &logoID,
		&ch.SyncStatus, &ch.ExceptionKeyword, &ch.Unmatched, &deletedAt, &created, &updated,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}

	if eventDate != "" {
		ch.EventDate = parseTime(eventDate)
	}
	ch.ScheduledDeleteAt = timePtr(deleteAt)
	if logoID.Valid {
		v := int(logoID.Int64)
		ch.LogoID = &v
	}
	ch.DeletedAt = timePtr(deletedAt)
	ch.CreatedAt = parseTime(created)
	ch.UpdatedAt = parseTime(updated)
	return &ch, nil
}

func fmtTimeOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmtTime(t)
}

func syncOrDefault(s domain.SyncStatus) domain.SyncStatus {
	if s == "" {
		return domain.SyncInSync
	}
	return s
}
