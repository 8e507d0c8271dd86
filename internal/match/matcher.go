// SPDX-License-Identifier: MIT

// Package match claims upstream streams for scheduled events. Matching is
// layered by cost: a persistent fingerprint cache first, then team
// patterns, then event-name patterns, and for multi-sport groups a
// league-keyword shortcut. Results carry the tier that claimed the stream
// and a 0-100 score.
package match

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/fuzzy"
	"github.com/teamarr/teamarr/internal/log"
)

// DefaultThreshold rejects weak matches; scores are on the 0-100 scale.
const DefaultThreshold = 50

// EventSource supplies the day's events and enrichment lookups.
// *sports.Service satisfies it.
type EventSource interface {
	Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error)
	Event(ctx context.Context, id string, league domain.League) (*domain.Event, error)
	TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error)
}

// Matcher matches one stream against a target date's events. A nil
// result with nil error means no event claimed the stream.
type Matcher interface {
	Match(ctx context.Context, streamID int, streamName string, date time.Time) (*domain.MatchedStream, error)
}

// candidate is one scored event during a match pass.
type candidate struct {
	event *domain.Event
	score float64
	tier  domain.DetectionTier
}

// tierRank orders tiers for tie-breaking: a team-pattern hit outranks an
// event-name hit, which outranks the keyword shortcut.
func tierRank(t domain.DetectionTier) int {
	switch t {
	case domain.TierCache:
		return 4
	case domain.TierTeam:
		return 3
	case domain.TierEventName:
		return 2
	case domain.TierLeagueKeyword:
		return 1
	default:
		return 0
	}
}

// better reports whether a beats b: higher score, then stronger tier,
// then the lexicographically smaller event id so reruns are stable.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if ra, rb := tierRank(a.tier), tierRank(b.tier); ra != rb {
		return ra > rb
	}
	return a.event.ID < b.event.ID
}

// eventPatterns is the per-event pattern set built once per target date.
type eventPatterns struct {
	event *domain.Event
	home  []string
	away  []string
	name  []string
}

// SingleLeagueMatcher matches streams of a group bound to one league.
type SingleLeagueMatcher struct {
	source     sourceForLeague
	league     domain.League
	exceptions []string
	threshold  float64
	logger     zerolog.Logger

	mu       sync.Mutex
	patterns map[string][]eventPatterns // keyed by yyyymmdd
}

type sourceForLeague interface {
	Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error)
}

// Options tunes a matcher; zero values take defaults.
type Options struct {
	Threshold float64
}

// NewSingleLeagueMatcher builds a matcher for league. Exception keywords
// are checked before any fuzzy work; a hit routes the stream aside
// instead of matching it.
func NewSingleLeagueMatcher(source sourceForLeague, league domain.League, exceptionKeywords []string, opts Options) *SingleLeagueMatcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &SingleLeagueMatcher{
		source:     source,
		league:     league,
		exceptions: lowerAll(exceptionKeywords),
		threshold:  opts.Threshold,
		logger:     log.WithComponent("match"),
		patterns:   make(map[string][]eventPatterns),
	}
}

// Match runs the single-league flow: exception keywords, then team
// patterns, then event-name patterns.
func (m *SingleLeagueMatcher) Match(ctx context.Context, streamID int, streamName string, date time.Time) (*domain.MatchedStream, error) {
	if kw := matchException(streamName, m.exceptions); kw != "" {
		return &domain.MatchedStream{
			StreamID:         streamID,
			StreamName:       streamName,
			ExceptionKeyword: kw,
		}, nil
	}

	patterns, err := m.patternsFor(ctx, date)
	if err != nil {
		return nil, err
	}

	best, ok := bestCandidate(patterns, streamName, m.threshold)
	if !ok {
		return nil, nil
	}
	return &domain.MatchedStream{
		StreamID:      streamID,
		StreamName:    streamName,
		Event:         best.event,
		DetectionTier: best.tier,
		Score:         best.score,
	}, nil
}

// patternsFor builds (or reuses) the date's pattern sets.
func (m *SingleLeagueMatcher) patternsFor(ctx context.Context, date time.Time) ([]eventPatterns, error) {
	key := date.Format("20060102")

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.patterns[key]; ok {
		return cached, nil
	}

	events, err := m.source.Events(ctx, m.league, date)
	if err != nil {
		return nil, err
	}
	built := buildPatterns(events)

	// Runs only ever look at a handful of dates; reset rather than grow.
	if len(m.patterns) > 7 {
		m.patterns = make(map[string][]eventPatterns)
	}
	m.patterns[key] = built
	return built, nil
}

func buildPatterns(events []domain.Event) []eventPatterns {
	built := make([]eventPatterns, 0, len(events))
	for i := range events {
		ev := &events[i]
		built = append(built, eventPatterns{
			event: ev,
			home:  fuzzy.TeamPatterns(ev.HomeTeam),
			away:  fuzzy.TeamPatterns(ev.AwayTeam),
			name:  fuzzy.EventPatterns(ev.Name),
		})
	}
	return built
}

// bestCandidate scores the stream against every event. Team matches
// (both sides must hit, score is the mean) shadow event-name matches;
// name patterns are consulted only when no team pair hit at all.
func bestCandidate(patterns []eventPatterns, streamName string, threshold float64) (candidate, bool) {
	var best candidate
	var haveTeam bool

	for _, ep := range patterns {
		home := fuzzy.MatchAny(ep.home, streamName)
		away := fuzzy.MatchAny(ep.away, streamName)
		if !home.Matched || !away.Matched {
			continue
		}
		haveTeam = true
		c := candidate{
			event: ep.event,
			score: (float64(home.Score) + float64(away.Score)) / 2,
			tier:  domain.TierTeam,
		}
		if best.event == nil || better(c, best) {
			best = c
		}
	}

	if !haveTeam {
		for _, ep := range patterns {
			name := fuzzy.MatchAny(ep.name, streamName)
			if !name.Matched {
				continue
			}
			c := candidate{
				event: ep.event,
				score: float64(name.Score),
				tier:  domain.TierEventName,
			}
			if best.event == nil || better(c, best) {
				best = c
			}
		}
	}

	if best.event == nil || best.score < threshold {
		return candidate{}, false
	}
	return best, true
}

func matchException(streamName string, exceptions []string) string {
	if len(exceptions) == 0 {
		return ""
	}
	name := strings.ToLower(streamName)
	for _, kw := range exceptions {
		if kw != "" && strings.Contains(name, kw) {
			return kw
		}
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ Matcher = (*SingleLeagueMatcher)(nil)
