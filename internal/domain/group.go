// SPDX-License-Identifier: MIT

package domain

import "fmt"

// StreamMode controls how multiple streams matching the same event are
// materialized: merged onto one channel or given one channel each.
type StreamMode string

const (
	StreamModeMerge    StreamMode = "merge"
	StreamModeSeparate StreamMode = "separate"
)

// EventGroup is the configuration unit: one upstream channel group whose
// streams share matching policy, template and lifecycle rules. A group is
// either bound to a single league or marked multi-sport, in which case the
// matcher tries every registered league.
type EventGroup struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	AssignedLeague League  `json:"assigned_league,omitempty"`
	IsMultiSport   bool    `json:"is_multi_sport"`
	ChannelGroupID int     `json:"channel_group_id"`
	ChannelStart   float64 `json:"channel_start"`

	CreateTiming    CreateTiming `json:"create_timing"`
	DeleteTiming    DeleteTiming `json:"delete_timing"`
	EventTemplateID int64        `json:"event_template_id"`

	ExceptionKeywords []string   `json:"exception_keywords,omitempty"`
	StreamMode        StreamMode `json:"stream_mode"`
	Enabled           bool       `json:"enabled"`

	// CreateUnmatchedChannels mirrors streams no event claimed into
	// channels bound to UnmatchedChannelEPGSourceID (schema v47).
	CreateUnmatchedChannels     bool `json:"create_unmatched_channels"`
	UnmatchedChannelEPGSourceID *int `json:"unmatched_channel_epg_source_id,omitempty"`
}

// Leagues returns the leagues the group's matcher should consider.
func (g EventGroup) Leagues() []League {
	if g.IsMultiSport {
		return AllLeagues()
	}
	if g.AssignedLeague != "" {
		return []League{g.AssignedLeague}
	}
	return nil
}

// Validate checks the cross-field rules a group must satisfy before it
// can drive a generation run.
func (g EventGroup) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("event group: missing name")
	}
	if !g.IsMultiSport && g.AssignedLeague == "" {
		return fmt.Errorf("event group %q: needs a league or multi-sport", g.Name)
	}
	if g.IsMultiSport && g.AssignedLeague != "" {
		return fmt.Errorf("event group %q: multi-sport excludes an assigned league", g.Name)
	}
	if !ValidCreateTiming(g.CreateTiming) {
		return fmt.Errorf("event group %q: unknown create timing %q", g.Name, g.CreateTiming)
	}
	if !ValidDeleteTiming(g.DeleteTiming) {
		return fmt.Errorf("event group %q: unknown delete timing %q", g.Name, g.DeleteTiming)
	}
	switch g.StreamMode {
	case StreamModeMerge, StreamModeSeparate:
	default:
		return fmt.Errorf("event group %q: unknown stream mode %q", g.Name, g.StreamMode)
	}
	if g.CreateUnmatchedChannels && g.UnmatchedChannelEPGSourceID == nil {
		return fmt.Errorf("event group %q: unmatched channels need an EPG source", g.Name)
	}
	return nil
}
