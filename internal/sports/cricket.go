// SPDX-License-Identifier: MIT

package sports

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
)

// TeamLister serves a league's full team directory. espn.Client satisfies
// it; the hybrid uses it for metadata only.
type TeamLister interface {
	Teams(ctx context.Context, league domain.League) ([]domain.Team, error)
}

// directoryTTL bounds how long the hybrid reuses a fetched team
// directory. Logos and short names change rarely.
const directoryTTL = 24 * time.Hour

// Cricket is the hybrid cricket provider: schedules and scores come from
// TheSportsDB, team metadata (logos, short names, abbreviations) is
// joined in from ESPN's directory by name. ESPN has no usable cricket
// scoreboard, TheSportsDB has no usable cricket team art; together they
// cover the league.
type Cricket struct {
	schedules Provider
	directory TeamLister
	logger    zerolog.Logger

	mu      sync.Mutex
	teams   map[string]domain.Team // lowercased name -> directory entry
	expires time.Time
}

// NewCricket builds the hybrid from a schedule provider and a team
// directory.
func NewCricket(schedules Provider, directory TeamLister) *Cricket {
	return &Cricket{
		schedules: schedules,
		directory: directory,
		logger:    log.WithComponent("cricket"),
	}
}

// Events lists the day's events with directory metadata joined in.
func (c *Cricket) Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error) {
	events, err := c.schedules.Events(ctx, league, date)
	if err != nil {
		return nil, err
	}
	c.decorateAll(ctx, events, league)
	return events, nil
}

// Event fetches one event with directory metadata joined in.
func (c *Cricket) Event(ctx context.Context, id string, league domain.League) (*domain.Event, error) {
	ev, err := c.schedules.Event(ctx, id, league)
	if err != nil {
		return nil, err
	}
	c.decorate(ctx, ev, league)
	return ev, nil
}

// TeamSchedule returns the team's window of events. The team id is the
// schedule provider's id.
func (c *Cricket) TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error) {
	events, err := c.schedules.TeamSchedule(ctx, teamID, league, daysAhead)
	if err != nil {
		return nil, err
	}
	c.decorateAll(ctx, events, league)
	return events, nil
}

// TeamStats passes through to the schedule provider's form stats.
func (c *Cricket) TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error) {
	return c.schedules.TeamStats(ctx, teamID, league)
}

func (c *Cricket) decorateAll(ctx context.Context, events []domain.Event, league domain.League) {
	for i := range events {
		c.decorate(ctx, &events[i], league)
	}
}

// decorate fills team metadata from the directory. Directory misses and
// fetch failures leave the schedule data as is; the pipeline works
// without art.
func (c *Cricket) decorate(ctx context.Context, ev *domain.Event, league domain.League) {
	dir := c.loadDirectory(ctx, league)
	if dir == nil {
		return
	}
	applyDirectory(&ev.HomeTeam, dir)
	applyDirectory(&ev.AwayTeam, dir)
}

func applyDirectory(team *domain.Team, dir map[string]domain.Team) {
	meta, ok := dir[strings.ToLower(team.Name)]
	if !ok {
		return
	}
	if meta.ShortName != "" {
		team.ShortName = meta.ShortName
	}
	if meta.Abbreviation != "" {
		team.Abbreviation = meta.Abbreviation
	}
	if meta.LogoURL != "" {
		team.LogoURL = meta.LogoURL
	}
	if meta.Color != "" {
		team.Color = meta.Color
	}
}

func (c *Cricket) loadDirectory(ctx context.Context, league domain.League) map[string]domain.Team {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.teams != nil && time.Now().Before(c.expires) {
		return c.teams
	}

	teams, err := c.directory.Teams(ctx, league)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("event", "cricket.directory.failed").
			Str("league", string(league)).
			Msg("team directory unavailable, continuing without metadata")
		// Keep serving a stale directory over nothing.
		return c.teams
	}

	dir := make(map[string]domain.Team, len(teams))
	for _, t := range teams {
		dir[strings.ToLower(t.Name)] = t
	}
	c.teams = dir
	c.expires = time.Now().Add(directoryTTL)
	return dir
}

// Source reports the catalog behind the schedule side of the hybrid.
func (c *Cricket) Source() domain.Provider {
	if s, ok := c.schedules.(sourced); ok {
		return s.Source()
	}
	return ""
}

var _ Provider = (*Cricket)(nil)
