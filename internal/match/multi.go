// SPDX-License-Identifier: MIT

package match

import (
	"context"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/fuzzy"
)

// MultiLeagueMatcher matches streams of a multi-sport group. It runs the
// team strategy across every search league, then tries the single-event
// league-keyword shortcut: a registered league keyword in the name plus
// exactly one scheduled event that day is an unambiguous claim.
type MultiLeagueMatcher struct {
	singles []*SingleLeagueMatcher
	include map[domain.League]bool // nil means all
	th      float64
}

// leagueKeywordScore is the fixed score for shortcut matches; high enough
// to clear any threshold, low enough that a real team hit outranks it.
const leagueKeywordScore = 80

// NewMultiLeagueMatcher builds a matcher over searchLeagues. A non-empty
// includeLeagues restricts which leagues may win; search still spans all
// of them so the shortcut sees the full picture.
func NewMultiLeagueMatcher(source sourceForLeague, searchLeagues, includeLeagues []domain.League, exceptionKeywords []string, opts Options) *MultiLeagueMatcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	singles := make([]*SingleLeagueMatcher, 0, len(searchLeagues))
	for _, league := range searchLeagues {
		singles = append(singles, NewSingleLeagueMatcher(source, league, exceptionKeywords, opts))
	}

	var include map[domain.League]bool
	if len(includeLeagues) > 0 {
		include = make(map[domain.League]bool, len(includeLeagues))
		for _, l := range includeLeagues {
			include[l] = true
		}
	}

	return &MultiLeagueMatcher{singles: singles, include: include, th: opts.Threshold}
}

// Match runs the multi-league flow.
func (m *MultiLeagueMatcher) Match(ctx context.Context, streamID int, streamName string, date time.Time) (*domain.MatchedStream, error) {
	if len(m.singles) == 0 {
		return nil, nil
	}

	// Exceptions are group-wide; any single matcher checks the same set.
	if kw := matchException(streamName, m.singles[0].exceptions); kw != "" {
		return &domain.MatchedStream{
			StreamID:         streamID,
			StreamName:       streamName,
			ExceptionKeyword: kw,
		}, nil
	}

	var best candidate
	lowerName := strings.ToLower(streamName)

	for _, single := range m.singles {
		patterns, err := single.patternsFor(ctx, date)
		if err != nil {
			// One league's feed being down must not sink the whole
			// multi-sport group.
			single.logger.Warn().
				Err(err).
				Str("event", "match.league.skipped").
				Str("league", string(single.league)).
				Msg("skipping league during multi-league match")
			continue
		}

		for _, ep := range patterns {
			home := fuzzy.MatchAny(ep.home, streamName)
			away := fuzzy.MatchAny(ep.away, streamName)
			if !home.Matched || !away.Matched {
				continue
			}
			c := candidate{
				event: ep.event,
				score: (float64(home.Score) + float64(away.Score)) / 2,
				tier:  domain.TierTeam,
			}
			if m.allowed(ep.event.League) && (best.event == nil || better(c, best)) {
				best = c
			}
		}

		// Shortcut: league keyword plus a single scheduled event.
		if best.event == nil || best.tier != domain.TierTeam {
			if _, ok := single.league.MatchKeyword(lowerName); ok && len(patterns) == 1 {
				c := candidate{
					event: patterns[0].event,
					score: leagueKeywordScore,
					tier:  domain.TierLeagueKeyword,
				}
				if m.allowed(c.event.League) && (best.event == nil || better(c, best)) {
					best = c
				}
			}
		}
	}

	if best.event == nil || best.score < m.th {
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

func (m *MultiLeagueMatcher) allowed(league domain.League) bool {
	return m.include == nil || m.include[league]
}

var _ Matcher = (*MultiLeagueMatcher)(nil)
