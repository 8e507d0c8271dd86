// SPDX-License-Identifier: MIT

package domain

import "time"

// CreateTiming controls when a managed channel is created relative to its
// event.
type CreateTiming string

const (
	CreateOnStreamAvailable CreateTiming = "stream_available"
	CreateSameDay           CreateTiming = "same_day"
	CreateDayBefore         CreateTiming = "day_before"
	CreateTwoDaysBefore     CreateTiming = "2_days_before"
	CreateManual            CreateTiming = "manual"
)

// DeleteTiming controls when a managed channel is removed. Day-based
// timings are measured from the event's projected end, always firing at
// 23:59:59 local time.
type DeleteTiming string

const (
	DeleteSameDay       DeleteTiming = "same_day"
	DeleteDayAfter      DeleteTiming = "day_after"
	DeleteTwoDaysAfter  DeleteTiming = "2_days_after"
	DeleteStreamRemoved DeleteTiming = "stream_removed"
	DeleteManual        DeleteTiming = "manual"
)

// ValidCreateTiming reports whether t is a recognized create timing.
func ValidCreateTiming(t CreateTiming) bool {
	switch t {
	case CreateOnStreamAvailable, CreateSameDay, CreateDayBefore, CreateTwoDaysBefore, CreateManual:
		return true
	}
	return false
}

// ValidDeleteTiming reports whether t is a recognized delete timing.
func ValidDeleteTiming(t DeleteTiming) bool {
	switch t {
	case DeleteSameDay, DeleteDayAfter, DeleteTwoDaysAfter, DeleteStreamRemoved, DeleteManual:
		return true
	}
	return false
}

// SyncStatus is the reconciliation verdict for a managed channel.
type SyncStatus string

const (
	SyncInSync   SyncStatus = "in_sync"
	SyncDrifted  SyncStatus = "drifted"
	SyncOrphaned SyncStatus = "orphaned"
)

// ManagedChannel is a channel this service created upstream and remains
// responsible for. DispatcharrUUID is the durable identity and is
// authoritative when present; the numeric DispatcharrChannelID can be
// reassigned upstream and is repaired against the UUID.
type ManagedChannel struct {
	ID                   int64      `json:"id"`
	EventGroupID         int64      `json:"event_group_id"`
	DispatcharrChannelID int        `json:"dispatcharr_channel_id"`
	DispatcharrUUID      string     `json:"dispatcharr_uuid,omitempty"`
	DispatcharrStreamID  int        `json:"dispatcharr_stream_id"`
	ChannelNumber        float64    `json:"channel_number"`
	ChannelName          string     `json:"channel_name"`
	ESPNEventID          string     `json:"espn_event_id,omitempty"`
	EventDate            time.Time  `json:"event_date"`
	ScheduledDeleteAt    *time.Time `json:"scheduled_delete_at,omitempty"`
	LogoID               *int       `json:"logo_id,omitempty"`
	SyncStatus           SyncStatus `json:"sync_status"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`

	// ExceptionKeyword is set for channels created from exception-keyword
	// streams; such channels carry no event.
	ExceptionKeyword string `json:"exception_keyword,omitempty"`
	// Unmatched marks channels mirroring streams no event claimed; they
	// follow the group's alternate EPG source instead of generated
	// programmes.
	Unmatched bool `json:"unmatched"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deleted reports whether the channel has been soft-deleted.
func (c ManagedChannel) Deleted() bool { return c.DeletedAt != nil }

// IsException reports whether c was created for an exception keyword
// rather than a matched event.
func (c ManagedChannel) IsException() bool { return c.ExceptionKeyword != "" }

// DeleteDue reports whether c's scheduled deletion has come due.
func (c ManagedChannel) DeleteDue(now time.Time) bool {
	return c.ScheduledDeleteAt != nil && !now.Before(*c.ScheduledDeleteAt)
}

// ChannelHistoryAction enumerates lifecycle transitions recorded per
// managed channel.
type ChannelHistoryAction string

const (
	HistoryCreated  ChannelHistoryAction = "created"
	HistoryUpdated  ChannelHistoryAction = "updated"
	HistoryDeleted  ChannelHistoryAction = "deleted"
	HistoryAdopted  ChannelHistoryAction = "adopted"
	HistoryRepaired ChannelHistoryAction = "repaired"
)

// ChannelHistoryEntry is one audit row for a managed channel. ChannelID
// is the local row id; ChannelUUID snapshots the upstream identity at the
// time of the action (empty when not yet backfilled).
type ChannelHistoryEntry struct {
	ID          int64                `json:"id"`
	ChannelID   int64                `json:"channel_id"`
	ChannelUUID string               `json:"channel_uuid,omitempty"`
	Action      ChannelHistoryAction `json:"action"`
	Detail      string               `json:"detail,omitempty"`
	At          time.Time            `json:"at"`
}
