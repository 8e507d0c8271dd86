// SPDX-License-Identifier: MIT

package sportsdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

// timestampLayouts covers strTimestamp spellings seen in the wild. The
// bare layout carries no zone; the API documents timestamps as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (c *Client) toEvent(raw eventJSON, league domain.League) (domain.Event, error) {
	if raw.IDEvent == "" {
		return domain.Event{}, fmt.Errorf("event without id")
	}

	start, err := parseEventTime(raw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", raw.IDEvent, err)
	}

	sport := league.SportOf()
	ev := domain.Event{
		ID:        raw.IDEvent,
		Provider:  domain.ProviderSportsDB,
		Name:      eventName(raw),
		StartTime: start,
		Status:    canonicalStatus(raw),
		League:    league,
		Sport:     sport,
		HomeTeam: domain.Team{
			ID:       raw.IDHomeTeam,
			Provider: domain.ProviderSportsDB,
			Name:     raw.StrHomeTeam,
			LogoURL:  raw.StrHomeTeamBadge,
			League:   league,
			Sport:    sport,
		},
		AwayTeam: domain.Team{
			ID:       raw.IDAwayTeam,
			Provider: domain.ProviderSportsDB,
			Name:     raw.StrAwayTeam,
			LogoURL:  raw.StrAwayTeamBadge,
			League:   league,
			Sport:    sport,
		},
		HomeScore:  parseScore(raw.IntHomeScore),
		AwayScore:  parseScore(raw.IntAwayScore),
		SeasonYear: seasonYear(raw.StrSeason),
	}

	if raw.StrVenue != "" {
		ev.Venue = &domain.Venue{Name: raw.StrVenue}
	}
	return ev, nil
}

// eventName prefers the feed's own title and falls back to the "Away at
// Home" form the rest of the pipeline expects.
func eventName(raw eventJSON) string {
	if raw.StrEvent != "" {
		return raw.StrEvent
	}
	if raw.StrHomeTeam != "" && raw.StrAwayTeam != "" {
		return raw.StrAwayTeam + " at " + raw.StrHomeTeam
	}
	return ""
}

// parseEventTime prefers strTimestamp and falls back to assembling
// dateEvent + strTime. A date without a time resolves to midnight UTC.
func parseEventTime(raw eventJSON) (time.Time, error) {
	if raw.StrTimestamp != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, raw.StrTimestamp, time.UTC); err == nil {
				return t.UTC(), nil
			}
		}
	}

	if raw.DateEvent == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	clock := strings.TrimSpace(raw.StrTime)
	if clock == "" {
		clock = "00:00:00"
	}
	// Some rows carry a zone offset on the clock; strip it, the value is
	// already UTC.
	if i := strings.IndexAny(clock, "+"); i > 0 {
		clock = clock[:i]
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", raw.DateEvent+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q %q: %w", raw.DateEvent, raw.StrTime, err)
	}
	return t, nil
}

func parseScore(s *string) *int {
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &n
}

// canonicalStatus folds TheSportsDB's strStatus vocabulary onto the
// canonical states. strProgress, when present, is the better detail text
// for live matches.
func canonicalStatus(raw eventJSON) domain.EventStatus {
	status := strings.TrimSpace(raw.StrStatus)
	detail := status
	if raw.StrProgress != "" {
		detail = raw.StrProgress
	}

	var state domain.GameState
	switch strings.ToLower(status) {
	case "", "ns", "not started", "time to be defined", "tbd":
		state = domain.StateScheduled
	case "ft", "match finished", "finished", "final", "aet", "aot", "pen", "after over time", "after penalties":
		state = domain.StateFinal
	case "postponed", "post":
		state = domain.StatePostponed
	case "cancelled", "canceled", "canc", "abandoned", "abd":
		state = domain.StateCancelled
	default:
		// 1H, HT, 2H, ET, quarter and innings markers all mean play has
		// started.
		state = domain.StateLive
	}

	return domain.EventStatus{State: state, Detail: detail}
}

// seasonYear extracts the leading year from strSeason, which is either
// "2025" or a "2024-2025" span.
func seasonYear(s string) int {
	s, _, _ = strings.Cut(s, "-")
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return year
}

// formStats computes record and streak from the team's most recent
// results, which the API returns newest first.
func formStats(raws []eventJSON, teamID string) *domain.TeamStats {
	var wins, losses, draws int
	var streakKind string
	var streakLen int
	streakOpen := true

	for _, raw := range raws {
		home := parseScore(raw.IntHomeScore)
		away := parseScore(raw.IntAwayScore)
		if home == nil || away == nil {
			continue
		}

		var mine, theirs int
		switch teamID {
		case raw.IDHomeTeam:
			mine, theirs = *home, *away
		case raw.IDAwayTeam:
			mine, theirs = *away, *home
		default:
			continue
		}

		var kind string
		switch {
		case mine > theirs:
			kind = "W"
			wins++
		case mine < theirs:
			kind = "L"
			losses++
		default:
			kind = "D"
			draws++
		}

		if streakOpen {
			if streakKind == "" || streakKind == kind {
				streakKind = kind
				streakLen++
			} else {
				streakOpen = false
			}
		}
	}

	if wins+losses+draws == 0 {
		return nil
	}

	record := fmt.Sprintf("%d-%d", wins, losses)
	if draws > 0 {
		record = fmt.Sprintf("%d-%d-%d", wins, losses, draws)
	}
	return &domain.TeamStats{
		Record: record,
		Streak: fmt.Sprintf("%s%d", streakKind, streakLen),
	}
}

func normalizeTeam(raw teamJSON) domain.Team {
	logo := raw.StrBadge
	if logo == "" {
		logo = raw.StrTeamBadge
	}
	return domain.Team{
		ID:           raw.IDTeam,
		Provider:     domain.ProviderSportsDB,
		Name:         raw.StrTeam,
		Abbreviation: raw.StrTeamShort,
		LogoURL:      logo,
	}
}

func sortEvents(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
}
