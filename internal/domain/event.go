// SPDX-License-Identifier: MIT

// Package domain holds the core entities shared across the generation
// pipeline: events, teams, programmes, managed channels, event groups and
// templates. Everything here is provider-agnostic; adapters normalize
// upstream feeds into these types on ingest.
package domain

import (
	"fmt"
	"time"
)

// Provider identifies the sports data source an entity originated from.
// IDs are unique only within a (provider, id) pair.
type Provider string

const (
	ProviderESPN     Provider = "espn"
	ProviderSportsDB Provider = "sportsdb"
)

// GameState is the canonical event lifecycle state. Provider-specific
// variants (ESPN "pre"/"in"/"post", STATUS_* names) are folded into these
// five on ingest.
type GameState string

const (
	StateScheduled GameState = "scheduled"
	StateLive      GameState = "live"
	StateFinal     GameState = "final"
	StatePostponed GameState = "postponed"
	StateCancelled GameState = "cancelled"
)

// CanonicalState maps raw provider state strings onto GameState.
// Unknown values default to scheduled so a feed quirk never drops an event.
func CanonicalState(raw string) GameState {
	switch raw {
	case "pre", "scheduled", "STATUS_SCHEDULED":
		return StateScheduled
	case "in", "live", "STATUS_IN_PROGRESS", "STATUS_HALFTIME", "STATUS_END_PERIOD":
		return StateLive
	case "post", "final", "STATUS_FINAL", "STATUS_FULL_TIME":
		return StateFinal
	case "postponed", "STATUS_POSTPONED", "STATUS_DELAYED":
		return StatePostponed
	case "cancelled", "canceled", "STATUS_CANCELED", "STATUS_CANCELLED":
		return StateCancelled
	default:
		return StateScheduled
	}
}

// EventStatus is the point-in-time status of an event.
type EventStatus struct {
	State  GameState `json:"state"`
	Detail string    `json:"detail,omitempty"`
	Period int       `json:"period,omitempty"`
	Clock  string    `json:"clock,omitempty"`
}

// IsFinal reports whether the event has completed.
func (s EventStatus) IsFinal() bool { return s.State == StateFinal }

// IsLive reports whether the event is in progress.
func (s EventStatus) IsLive() bool { return s.State == StateLive }

// Venue is where an event takes place.
type Venue struct {
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Odds carries pre-game betting context used by template variables.
type Odds struct {
	Spread    string  `json:"spread,omitempty"`
	OverUnder float64 `json:"over_under,omitempty"`
	Favorite  string  `json:"favorite,omitempty"`
}

// Event is a single game, match or fight. It is created by a provider
// fetch, mutated in place by enrichment (today/yesterday re-fetch) and
// discarded at the end of a generation run.
type Event struct {
	ID        string      `json:"id"`
	Provider  Provider    `json:"provider"`
	Name      string      `json:"name"`
	ShortName string      `json:"short_name,omitempty"`
	StartTime time.Time   `json:"start_time"`
	HomeTeam  Team        `json:"home_team"`
	AwayTeam  Team        `json:"away_team"`
	Status    EventStatus `json:"status"`
	League    League      `json:"league"`
	Sport     Sport       `json:"sport"`

	HomeScore  *int       `json:"home_score,omitempty"`
	AwayScore  *int       `json:"away_score,omitempty"`
	Venue      *Venue     `json:"venue,omitempty"`
	Broadcasts []string   `json:"broadcasts,omitempty"`
	SeasonYear int        `json:"season_year,omitempty"`
	SeasonType string     `json:"season_type,omitempty"`
	// MainCardStart is the main-card start for MMA cards, distinct from the
	// prelim start carried in StartTime.
	MainCardStart *time.Time `json:"main_card_start,omitempty"`
	Odds          *Odds      `json:"odds,omitempty"`

	HomeStats *TeamStats `json:"home_stats,omitempty"`
	AwayStats *TeamStats `json:"away_stats,omitempty"`
}

// Validate enforces the structural invariants the matcher and generators
// rely on: a zone-aware start time and league-consistent teams.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event: missing id")
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("event %s: missing start time", e.ID)
	}
	if e.HomeTeam.League != e.League || e.AwayTeam.League != e.League {
		return fmt.Errorf("event %s: team league mismatch (%s/%s vs %s)",
			e.ID, e.HomeTeam.League, e.AwayTeam.League, e.League)
	}
	return nil
}

// LocalDate returns the event's calendar date in the given zone.
func (e *Event) LocalDate(loc *time.Location) time.Time {
	t := e.StartTime.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndTime returns the projected end of the event given a duration in hours.
func (e *Event) EndTime(durationHours float64) time.Time {
	return e.StartTime.Add(time.Duration(durationHours * float64(time.Hour)))
}
