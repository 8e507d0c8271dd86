// SPDX-License-Identifier: MIT

package domain

import (
	"sort"
	"strings"
)

// Sport groups leagues that share timing semantics (period structure,
// typical game length).
type Sport string

const (
	SportFootball   Sport = "football"
	SportBasketball Sport = "basketball"
	SportHockey     Sport = "hockey"
	SportBaseball   Sport = "baseball"
	SportSoccer     Sport = "soccer"
	SportMMA        Sport = "mma"
	SportCricket    Sport = "cricket"
)

// League identifies a competition. Values are lowercase slugs matching
// the ESPN path segment where one exists ("nfl", "nba", "eng.1").
type League string

const (
	LeagueNFL   League = "nfl"
	LeagueNBA   League = "nba"
	LeagueWNBA  League = "wnba"
	LeagueNHL   League = "nhl"
	LeagueMLB   League = "mlb"
	LeagueNCAAF League = "ncaaf"
	LeagueNCAAB League = "ncaab"
	LeagueMLS   League = "mls"
	LeagueEPL   League = "eng.1"
	LeagueUFC   League = "ufc"
	LeagueIPL   League = "ipl"
)

// LeagueInfo is static metadata the pipeline needs per league: how to
// recognize it in stream names, how long games run, and how its clock is
// structured for live descriptions.
type LeagueInfo struct {
	League   League
	Sport    Sport
	Name     string
	Keywords []string

	// DefaultDurationHours is the sport-typical game length used when a
	// template has no override.
	DefaultDurationHours float64
	// RegulationPeriods is the period count of a regulation game; 0 for
	// sports without a fixed period structure.
	RegulationPeriods int
	// PeriodName is the display word for a period ("quarter", "period",
	// "inning", "half", "round").
	PeriodName string
}

// leagueRegistry holds metadata for every supported league. Keywords are
// matched case-insensitively against stream names; longer keywords are
// checked first by the matcher so "ncaa football" wins over "football".
var leagueRegistry = map[League]LeagueInfo{
	LeagueNFL: {
		League: LeagueNFL, Sport: SportFootball, Name: "NFL",
		Keywords:             []string{"nfl", "national football league"},
		DefaultDurationHours: 3.5, RegulationPeriods: 4, PeriodName: "quarter",
	},
	LeagueNCAAF: {
		League: LeagueNCAAF, Sport: SportFootball, Name: "NCAA Football",
		Keywords:             []string{"ncaaf", "ncaa football", "college football", "cfb"},
		DefaultDurationHours: 3.5, RegulationPeriods: 4, PeriodName: "quarter",
	},
	LeagueNBA: {
		League: LeagueNBA, Sport: SportBasketball, Name: "NBA",
		Keywords:             []string{"nba", "national basketball association"},
		DefaultDurationHours: 2.5, RegulationPeriods: 4, PeriodName: "quarter",
	},
	LeagueWNBA: {
		League: LeagueWNBA, Sport: SportBasketball, Name: "WNBA",
		Keywords:             []string{"wnba"},
		DefaultDurationHours: 2.5, RegulationPeriods: 4, PeriodName: "quarter",
	},
	LeagueNCAAB: {
		League: LeagueNCAAB, Sport: SportBasketball, Name: "NCAA Basketball",
		Keywords:             []string{"ncaab", "ncaa basketball", "college basketball", "cbb"},
		DefaultDurationHours: 2.5, RegulationPeriods: 2, PeriodName: "half",
	},
	LeagueNHL: {
		League: LeagueNHL, Sport: SportHockey, Name: "NHL",
		Keywords:             []string{"nhl", "national hockey league"},
		DefaultDurationHours: 3.0, RegulationPeriods: 3, PeriodName: "period",
	},
	LeagueMLB: {
		League: LeagueMLB, Sport: SportBaseball, Name: "MLB",
		Keywords:             []string{"mlb", "major league baseball"},
		DefaultDurationHours: 3.5, RegulationPeriods: 9, PeriodName: "inning",
	},
	LeagueMLS: {
		League: LeagueMLS, Sport: SportSoccer, Name: "MLS",
		Keywords:             []string{"mls", "major league soccer"},
		DefaultDurationHours: 2.0, RegulationPeriods: 2, PeriodName: "half",
	},
	LeagueEPL: {
		League: LeagueEPL, Sport: SportSoccer, Name: "Premier League",
		Keywords:             []string{"epl", "premier league", "english premier league"},
		DefaultDurationHours: 2.0, RegulationPeriods: 2, PeriodName: "half",
	},
	LeagueUFC: {
		League: LeagueUFC, Sport: SportMMA, Name: "UFC",
		Keywords:             []string{"ufc", "ultimate fighting championship"},
		DefaultDurationHours: 6.0, RegulationPeriods: 0, PeriodName: "round",
	},
	LeagueIPL: {
		League: LeagueIPL, Sport: SportCricket, Name: "IPL",
		Keywords:             []string{"ipl", "indian premier league"},
		DefaultDurationHours: 4.0, RegulationPeriods: 2, PeriodName: "innings",
	},
}

// sportDurations backs DefaultDuration for leagues registered without an
// explicit value.
var sportDurations = map[Sport]float64{
	SportFootball:   3.5,
	SportBasketball: 2.5,
	SportHockey:     3.0,
	SportBaseball:   3.5,
	SportSoccer:     2.0,
	SportMMA:        6.0,
	SportCricket:    4.0,
}

// Info returns the registry entry for l. The second return is false for
// unknown leagues.
func (l League) Info() (LeagueInfo, bool) {
	info, ok := leagueRegistry[l]
	return info, ok
}

// SportOf returns the sport for l, defaulting to football for unknown
// leagues so duration math always has a fallback.
func (l League) SportOf() Sport {
	if info, ok := leagueRegistry[l]; ok {
		return info.Sport
	}
	return SportFootball
}

// DefaultDuration returns the typical game length in hours for l.
func (l League) DefaultDuration() float64 {
	if info, ok := leagueRegistry[l]; ok && info.DefaultDurationHours > 0 {
		return info.DefaultDurationHours
	}
	if d, ok := sportDurations[l.SportOf()]; ok {
		return d
	}
	return 3.0
}

// AllLeagues returns all registered leagues in stable order.
func AllLeagues() []League {
	out := make([]League, 0, len(leagueRegistry))
	for l := range leagueRegistry {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MatchKeyword reports whether name contains any of l's keywords as a
// word-boundary substring, and returns the longest keyword that hit.
func (l League) MatchKeyword(name string) (string, bool) {
	info, ok := leagueRegistry[l]
	if !ok {
		return "", false
	}
	lower := strings.ToLower(name)
	best := ""
	for _, kw := range info.Keywords {
		if containsWord(lower, kw) && len(kw) > len(best) {
			best = kw
		}
	}
	return best, best != ""
}

// containsWord reports whether s contains sub bounded by non-alphanumerics,
// so "nfl" matches "US NFL: Cowboys" but not "unflappable".
func containsWord(s, sub string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], sub)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(s[i-1])
		after := i+len(sub) == len(s) || !isAlnum(s[i+len(sub)])
		if before && after {
			return true
		}
		idx = i + 1
		if idx >= len(s) {
			return false
		}
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
