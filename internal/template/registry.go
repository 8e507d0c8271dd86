// SPDX-License-Identifier: MIT

package template

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/teamarr/teamarr/internal/domain"
)

// Category groups variables for documentation and the settings UI.
type Category string

const (
	CategoryTeam      Category = "team"
	CategoryOpponent  Category = "opponent"
	CategoryEvent     Category = "event"
	CategoryVenue     Category = "venue"
	CategoryDateTime  Category = "datetime"
	CategoryScore     Category = "score"
	CategoryOdds      Category = "odds"
	CategoryBroadcast Category = "broadcast"
	CategoryStream    Category = "stream"
	CategoryException Category = "exception"
)

// Variable is one named extractor. Optional variables are gracefully
// removable: when they resolve empty the resolver elides their
// surrounding decorator instead of leaving a hole.
type Variable struct {
	Name     string
	Category Category
	Optional bool
	Resolve  func(*Context) string
}

// Lookup returns the registered variable for name.
func Lookup(name string) (Variable, bool) {
	v, ok := registry[name]
	return v, ok
}

// Variables returns every registered variable sorted by category then
// name, for the variables listing endpoint.
func Variables() []Variable {
	out := make([]Variable, 0, len(registry))
	for _, v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var registry = map[string]Variable{}

func register(name string, cat Category, resolve func(*Context) string) {
	registry[name] = Variable{Name: name, Category: cat, Resolve: resolve}
}

func registerOptional(name string, cat Category, resolve func(*Context) string) {
	registry[name] = Variable{Name: name, Category: cat, Optional: true, Resolve: resolve}
}

// withEvent guards extractors that need an event on the context.
func withEvent(f func(*domain.Event, *Context) string) func(*Context) string {
	return func(c *Context) string {
		if c.Event == nil {
			return ""
		}
		return f(c.Event, c)
	}
}

func teamField(f func(side) string) func(*Context) string {
	return func(c *Context) string {
		team, _ := c.sides()
		return f(team)
	}
}

func opponentField(f func(side) string) func(*Context) string {
	return func(c *Context) string {
		_, opp := c.sides()
		return f(opp)
	}
}

func sideName(s side) string {
	if s.team == nil {
		return ""
	}
	return s.team.Name
}

func sideShort(s side) string {
	if s.team == nil {
		return ""
	}
	return s.team.DisplayName()
}

func sideAbbrev(s side) string {
	if s.team == nil {
		return ""
	}
	return s.team.Abbreviation
}

func sideCity(s side) string {
	if s.team == nil {
		return ""
	}
	return s.team.City()
}

func sideMascot(s side) string {
	if s.team == nil {
		return ""
	}
	return s.team.Mascot()
}

func sideRecord(s side) string {
	if s.stats == nil {
		return ""
	}
	return s.stats.Record
}

func sideStreak(s side) string {
	if s.stats == nil {
		return ""
	}
	return s.stats.Streak
}

func sideScore(s side) string {
	if s.score == nil {
		return ""
	}
	return strconv.Itoa(*s.score)
}

func positiveInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func init() {
	register("team_name", CategoryTeam, teamField(sideName))
	register("team_short_name", CategoryTeam, teamField(sideShort))
	register("team_abbrev", CategoryTeam, teamField(sideAbbrev))
	register("team_city", CategoryTeam, teamField(sideCity))
	register("team_mascot", CategoryTeam, teamField(sideMascot))
	register("team_record", CategoryTeam, teamField(sideRecord))
	register("team_streak", CategoryTeam, teamField(sideStreak))
	register("team_rank", CategoryTeam, teamField(func(s side) string {
		if s.stats == nil {
			return ""
		}
		return positiveInt(s.stats.Rank)
	}))
	register("team_seed", CategoryTeam, teamField(func(s side) string {
		if s.stats == nil {
			return ""
		}
		return positiveInt(s.stats.Seed)
	}))
	register("team_conference", CategoryTeam, teamField(func(s side) string {
		if s.stats == nil {
			return ""
		}
		return s.stats.Conference
	}))
	register("team_division", CategoryTeam, teamField(func(s side) string {
		if s.stats == nil {
			return ""
		}
		return s.stats.Division
	}))

	register("opponent_name", CategoryOpponent, opponentField(sideName))
	register("opponent_short_name", CategoryOpponent, opponentField(sideShort))
	register("opponent_abbrev", CategoryOpponent, opponentField(sideAbbrev))
	register("opponent_city", CategoryOpponent, opponentField(sideCity))
	register("opponent_mascot", CategoryOpponent, opponentField(sideMascot))
	register("opponent_record", CategoryOpponent, opponentField(sideRecord))
	register("opponent_streak", CategoryOpponent, opponentField(sideStreak))
	register("home_away", CategoryOpponent, func(c *Context) string {
		if c.Event == nil {
			return ""
		}
		if c.teamIsHome() {
			return "vs"
		}
		return "@"
	})

	register("event_name", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		return ev.Name
	}))
	register("event_short_name", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.ShortName != "" {
			return ev.ShortName
		}
		return ev.Name
	}))
	register("matchup", CategoryEvent, func(c *Context) string {
		team, opp := c.sides()
		if team.team == nil || opp.team == nil {
			return ""
		}
		ha := "vs"
		if !c.teamIsHome() {
			ha = "@"
		}
		return fmt.Sprintf("%s %s %s", team.team.DisplayName(), ha, opp.team.DisplayName())
	})
	register("league", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		if info, ok := ev.League.Info(); ok {
			return info.Name
		}
		return strings.ToUpper(string(ev.League))
	}))
	register("sport", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		return string(ev.Sport)
	}))
	register("season_year", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		return positiveInt(ev.SeasonYear)
	}))
	register("season_type", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		return ev.SeasonType
	}))
	register("overtime", CategoryEvent, withEvent(func(ev *domain.Event, _ *Context) string {
		return overtimeText(ev)
	}))

	register("venue", CategoryVenue, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Venue == nil {
			return ""
		}
		return ev.Venue.Name
	}))
	register("venue_city", CategoryVenue, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Venue == nil {
			return ""
		}
		return ev.Venue.City
	}))
	register("venue_location", CategoryVenue, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Venue == nil {
			return ""
		}
		parts := make([]string, 0, 2)
		if ev.Venue.City != "" {
			parts = append(parts, ev.Venue.City)
		}
		if ev.Venue.State != "" {
			parts = append(parts, ev.Venue.State)
		}
		return strings.Join(parts, ", ")
	}))

	register("game_date", CategoryDateTime, withEvent(func(ev *domain.Event, c *Context) string {
		return ev.StartTime.In(c.loc()).Format("Monday, January 2")
	}))
	register("game_date_short", CategoryDateTime, withEvent(func(ev *domain.Event, c *Context) string {
		return ev.StartTime.In(c.loc()).Format("Jan 2")
	}))
	register("game_day", CategoryDateTime, withEvent(func(ev *domain.Event, c *Context) string {
		return ev.StartTime.In(c.loc()).Format("Monday")
	}))
	register("game_time", CategoryDateTime, withEvent(func(ev *domain.Event, c *Context) string {
		return ev.StartTime.In(c.loc()).Format("3:04 PM")
	}))

	register("score", CategoryScore, func(c *Context) string {
		team, opp := c.sides()
		if team.score == nil || opp.score == nil {
			return ""
		}
		return fmt.Sprintf("%d-%d", *team.score, *opp.score)
	})
	register("team_score", CategoryScore, teamField(sideScore))
	register("opponent_score", CategoryScore, opponentField(sideScore))
	register("home_score", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.HomeScore == nil {
			return ""
		}
		return strconv.Itoa(*ev.HomeScore)
	}))
	register("away_score", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.AwayScore == nil {
			return ""
		}
		return strconv.Itoa(*ev.AwayScore)
	}))
	register("status", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		return string(ev.Status.State)
	}))
	register("status_detail", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		return ev.Status.Detail
	}))
	register("period", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		return positiveInt(ev.Status.Period)
	}))
	register("game_clock", CategoryScore, withEvent(func(ev *domain.Event, _ *Context) string {
		return ev.Status.Clock
	}))

	registerOptional("spread", CategoryOdds, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Odds == nil {
			return ""
		}
		return ev.Odds.Spread
	}))
	registerOptional("over_under", CategoryOdds, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Odds == nil || ev.Odds.OverUnder <= 0 {
			return ""
		}
		return strconv.FormatFloat(ev.Odds.OverUnder, 'f', -1, 64)
	}))
	registerOptional("favorite", CategoryOdds, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Odds == nil {
			return ""
		}
		return ev.Odds.Favorite
	}))
	registerOptional("odds", CategoryOdds, withEvent(func(ev *domain.Event, _ *Context) string {
		if ev.Odds == nil {
			return ""
		}
		spread := ev.Odds.Spread
		var ou string
		if ev.Odds.OverUnder > 0 {
			ou = strconv.FormatFloat(ev.Odds.OverUnder, 'f', -1, 64)
		}
		switch {
		case spread != "" && ou != "":
			return fmt.Sprintf("%s (O/U %s)", spread, ou)
		case spread != "":
			return spread
		case ou != "":
			return "O/U " + ou
		default:
			return ""
		}
	}))

	registerOptional("broadcast", CategoryBroadcast, withEvent(func(ev *domain.Event, _ *Context) string {
		if len(ev.Broadcasts) == 0 {
			return ""
		}
		return ev.Broadcasts[0]
	}))
	registerOptional("broadcasts", CategoryBroadcast, withEvent(func(ev *domain.Event, _ *Context) string {
		return strings.Join(ev.Broadcasts, ", ")
	}))

	register("stream_name", CategoryStream, func(c *Context) string {
		return c.StreamName
	})

	registerOptional("exception_keyword", CategoryException, func(c *Context) string {
		return c.ExceptionKeyword
	})
	registerOptional("exception_keyword_title", CategoryException, func(c *Context) string {
		if c.ExceptionKeyword == "" {
			return ""
		}
		return cases.Title(language.English).String(c.ExceptionKeyword)
	})
}

// regulationBySport backs overtime detection for leagues registered
// without a period count.
var regulationBySport = map[domain.Sport]int{
	domain.SportFootball:   4,
	domain.SportBasketball: 4,
	domain.SportHockey:     3,
	domain.SportBaseball:   9,
}

// overtimeText renders the overtime tag for an event past regulation:
// "OT" for the first extra period, "2OT" and up beyond it.
func overtimeText(ev *domain.Event) string {
	if ev.Status.Period == 0 {
		return ""
	}
	reg := 0
	if info, ok := ev.League.Info(); ok {
		reg = info.RegulationPeriods
	}
	if reg == 0 {
		reg = regulationBySport[ev.Sport]
	}
	if reg == 0 || ev.Status.Period <= reg {
		return ""
	}
	extra := ev.Status.Period - reg
	if extra == 1 {
		return "OT"
	}
	return fmt.Sprintf("%dOT", extra)
}
