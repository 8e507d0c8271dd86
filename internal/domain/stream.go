// SPDX-License-Identifier: MIT

package domain

// DetectionTier records which matcher path claimed a stream, in cost
// order: fingerprint cache, team patterns, event-name patterns, the
// single-event league-keyword shortcut.
type DetectionTier string

const (
	TierCache         DetectionTier = "cache"
	TierTeam          DetectionTier = "team"
	TierEventName     DetectionTier = "event_name"
	TierLeagueKeyword DetectionTier = "league_keyword"
)

// MatchedStream pairs one upstream stream with the event that claimed it
// for the duration of a generation run.
type MatchedStream struct {
	StreamID   int    `json:"stream_id"`
	StreamName string `json:"stream_name"`
	Event      *Event `json:"event"`
	ChannelID  string `json:"channel_id"`
	// ExceptionKeyword is set instead of Event when an exception keyword
	// claimed the stream.
	ExceptionKeyword string        `json:"exception_keyword,omitempty"`
	DetectionTier    DetectionTier `json:"detection_tier"`
	// Score is on the canonical 0-100 scale; matches below the configured
	// threshold were already rejected by the matcher.
	Score float64 `json:"score"`
}

// IsException reports whether the stream hit an exception keyword rather
// than an event.
func (m MatchedStream) IsException() bool { return m.ExceptionKeyword != "" }
