// SPDX-License-Identifier: MIT

// Package sports routes event, schedule and stats lookups to the
// configured data providers and caches their responses. Downstream code
// only ever sees domain types; the wire formats stay inside the
// provider subpackages.
package sports

import (
	"context"
	"errors"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

var (
	// ErrEventNotFound means the provider answered but knows no event
	// with that id.
	ErrEventNotFound = errors.New("sports: event not found")
	// ErrUnsupportedLeague means no configured provider serves the league.
	ErrUnsupportedLeague = errors.New("sports: unsupported league")
)

// Provider is the capability a sports data source must offer. Date
// arguments select a calendar day in the zone the caller resolved; the
// provider converts as its API requires.
type Provider interface {
	// Events lists the league's events on the given day.
	Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error)
	// Event fetches a single event with current status and scores.
	Event(ctx context.Context, id string, league domain.League) (*domain.Event, error)
	// TeamSchedule returns the team's events from the recent past through
	// daysAhead days out, ascending by start time.
	TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error)
	// TeamStats resolves season context (record, streak, rank) for a team.
	// Providers fill what they have; a nil result with nil error means no
	// stats are available.
	TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error)
}
