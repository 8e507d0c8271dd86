// SPDX-License-Identifier: MIT

package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/domain"
)

func giantsGame() *domain.Event {
	return &domain.Event{
		ID:        "401547401",
		Provider:  domain.ProviderESPN,
		Name:      "Dallas Cowboys at New York Giants",
		ShortName: "DAL @ NYG",
		StartTime: time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC),
		League:    domain.LeagueNFL,
		Sport:     domain.SportFootball,
		HomeTeam: domain.Team{
			ID: "19", Name: "New York Giants", ShortName: "Giants", Abbreviation: "NYG",
			League: domain.LeagueNFL, Sport: domain.SportFootball,
		},
		AwayTeam: domain.Team{
			ID: "6", Name: "Dallas Cowboys", ShortName: "Cowboys", Abbreviation: "DAL",
			League: domain.LeagueNFL, Sport: domain.SportFootball,
		},
		Status:     domain.EventStatus{State: domain.StateScheduled},
		Venue:      &domain.Venue{Name: "MetLife Stadium", City: "East Rutherford", State: "NJ"},
		Broadcasts: []string{"FOX", "FOX Deportes"},
		Odds:       &domain.Odds{Spread: "DAL -3.5", OverUnder: 44.5, Favorite: "DAL"},
		HomeStats:  &domain.TeamStats{Record: "6-3", Streak: "W2"},
		AwayStats:  &domain.TeamStats{Record: "7-2", Streak: "W4", Division: "NFC East"},
	}
}

func cowboysContext(ev *domain.Event) *Context {
	return &Context{
		Team:  &ev.AwayTeam,
		Event: ev,
		Now:   time.Date(2025, 11, 2, 20, 0, 0, 0, time.UTC),
	}
}

func TestResolve_TeamAndOpponent(t *testing.T) {
	ev := giantsGame()
	ctx := cowboysContext(ev)

	cases := []struct {
		tpl  string
		want string
	}{
		{"{team_name}", "Dallas Cowboys"},
		{"{team_short_name}", "Cowboys"},
		{"{team_abbrev}", "DAL"},
		{"{team_city}", "Dallas"},
		{"{team_mascot}", "Cowboys"},
		{"{team_record}", "7-2"},
		{"{team_streak}", "W4"},
		{"{team_division}", "NFC East"},
		{"{opponent_name}", "New York Giants"},
		{"{opponent_record}", "6-3"},
		{"{home_away}", "@"},
		{"{matchup}", "Cowboys @ Giants"},
		{"{league}", "NFL"},
		{"{sport}", "football"},
		{"{venue}", "MetLife Stadium"},
		{"{venue_location}", "East Rutherford, NJ"},
		{"{broadcast}", "FOX"},
		{"{broadcasts}", "FOX, FOX Deportes"},
		{"{spread}", "DAL -3.5"},
		{"{over_under}", "44.5"},
		{"{odds}", "DAL -3.5 (O/U 44.5)"},
		{"{event_short_name}", "DAL @ NYG"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.tpl, ctx), "template %q", tc.tpl)
	}
}

func TestResolve_EventGroupHomePerspective(t *testing.T) {
	// No configured team: the home side is "the team".
	ev := giantsGame()
	ctx := &Context{Event: ev}

	assert.Equal(t, "New York Giants", Resolve("{team_name}", ctx))
	assert.Equal(t, "Dallas Cowboys", Resolve("{opponent_name}", ctx))
	assert.Equal(t, "vs", Resolve("{home_away}", ctx))
	assert.Equal(t, "Giants vs Cowboys", Resolve("{matchup}", ctx))
}

func TestResolve_Scores(t *testing.T) {
	ev := giantsGame()
	home, away := 17, 24
	ev.HomeScore, ev.AwayScore = &home, &away
	ctx := cowboysContext(ev)

	assert.Equal(t, "24", Resolve("{team_score}", ctx))
	assert.Equal(t, "17", Resolve("{opponent_score}", ctx))
	assert.Equal(t, "24-17", Resolve("{score}", ctx))
	assert.Equal(t, "17", Resolve("{home_score}", ctx))
}

func TestResolve_TimeInDisplayZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ev := giantsGame()
	ctx := cowboysContext(ev)
	ctx.Location = loc

	assert.Equal(t, "1:00 PM", Resolve("{game_time}", ctx))
	assert.Equal(t, "Sunday, November 2", Resolve("{game_date}", ctx))
	assert.Equal(t, "Sunday", Resolve("{game_day}", ctx))
	assert.Equal(t, "Nov 2", Resolve("{game_date_short}", ctx))
}

func TestResolve_NeighborSuffixes(t *testing.T) {
	ev := giantsGame()
	next := giantsGame()
	next.ID = "401547460"
	next.StartTime = time.Date(2025, 11, 9, 18, 0, 0, 0, time.UTC)
	next.HomeTeam = domain.Team{
		ID: "21", Name: "Philadelphia Eagles", ShortName: "Eagles", Abbreviation: "PHI",
		League: domain.LeagueNFL, Sport: domain.SportFootball,
	}
	next.AwayTeam = ev.AwayTeam

	ctx := cowboysContext(ev)
	ctx.NextEvent = next

	assert.Equal(t, "Philadelphia Eagles", Resolve("{opponent_name.next}", ctx))
	assert.Equal(t, "Sunday, November 9", Resolve("{game_date.next}", ctx))
	assert.Equal(t, "", Resolve("{opponent_name.last}", ctx), "no last event")
	assert.Equal(t, "", Resolve("{opponent_name.bogus}", ctx), "unknown suffix")
}

func TestResolve_FillerContextUsesNeighbors(t *testing.T) {
	// Between games the current slot is empty and only neighbors resolve.
	ev := giantsGame()
	team := ev.AwayTeam
	ctx := &Context{Team: &team, LastEvent: ev}

	assert.Equal(t, "Dallas Cowboys", Resolve("{team_name}", ctx), "configured team survives without an event")
	assert.Equal(t, "New York Giants", Resolve("{opponent_name.last}", ctx))
	assert.Equal(t, "", Resolve("{opponent_name}", ctx))
}

func TestResolve_UnknownVariableKeptVerbatim(t *testing.T) {
	ctx := &Context{}
	assert.Equal(t, "Hello {no_such_var}!", Resolve("Hello {no_such_var}!", ctx))
	assert.Equal(t, "{}", Resolve("{}", ctx))
	assert.Equal(t, "dangling {open", Resolve("dangling {open", ctx))
}

func TestResolve_OptionalElision(t *testing.T) {
	empty := &Context{Event: giantsGame()}
	empty.Event.Odds = nil

	cases := []struct {
		tpl  string
		want string
	}{
		{"Cowboys vs Giants ({exception_keyword})", "Cowboys vs Giants"},
		{"[{exception_keyword_title}] Game of the Week", "Game of the Week"},
		{"Game of the Week - {exception_keyword}", "Game of the Week"},
		{"Kickoff ({spread}) soon", "Kickoff soon"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.tpl, empty), "template %q", tc.tpl)
	}

	spanish := &Context{ExceptionKeyword: "spanish"}
	assert.Equal(t, "Game (spanish)", Resolve("Game ({exception_keyword})", spanish))
	assert.Equal(t, "[Spanish] Game", Resolve("[{exception_keyword_title}] Game", spanish))
}

func TestResolve_SinglePassOnly(t *testing.T) {
	// A substituted value containing placeholder syntax must come out
	// literal, never expanded again.
	ctx := &Context{Event: giantsGame(), ExceptionKeyword: "{team_name}"}
	assert.Equal(t, "{team_name}", Resolve("{exception_keyword}", ctx))
}

func TestOvertimeText(t *testing.T) {
	mk := func(league domain.League, sport domain.Sport, period int) *domain.Event {
		return &domain.Event{
			League: league, Sport: sport,
			Status: domain.EventStatus{State: domain.StateLive, Period: period},
		}
	}
	cases := []struct {
		name string
		ev   *domain.Event
		want string
	}{
		{"nba regulation", mk(domain.LeagueNBA, domain.SportBasketball, 4), ""},
		{"nba first overtime", mk(domain.LeagueNBA, domain.SportBasketball, 5), "OT"},
		{"nba double overtime", mk(domain.LeagueNBA, domain.SportBasketball, 6), "2OT"},
		{"nhl overtime", mk(domain.LeagueNHL, domain.SportHockey, 4), "OT"},
		{"mlb extras", mk(domain.LeagueMLB, domain.SportBaseball, 10), "OT"},
		{"ncaab halves beat the sport table", mk(domain.LeagueNCAAB, domain.SportBasketball, 3), "OT"},
		{"unknown league uses sport", mk(domain.League("xfl"), domain.SportFootball, 5), "OT"},
		{"mma has no regulation", mk(domain.LeagueUFC, domain.SportMMA, 3), ""},
		{"no period reported", mk(domain.LeagueNFL, domain.SportFootball, 0), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, overtimeText(tc.ev))
		})
	}
}

func TestVariables_SortedAndComplete(t *testing.T) {
	vars := Variables()
	require.NotEmpty(t, vars)

	names := make(map[string]bool, len(vars))
	for _, v := range vars {
		names[v.Name] = true
	}
	for _, want := range []string{"team_name", "opponent_name", "matchup", "game_time", "exception_keyword"} {
		assert.True(t, names[want], "missing %s", want)
	}

	for i := 1; i < len(vars); i++ {
		prev, cur := vars[i-1], vars[i]
		ordered := prev.Category < cur.Category ||
			(prev.Category == cur.Category && prev.Name < cur.Name)
		assert.True(t, ordered, "%s/%s before %s/%s", prev.Category, prev.Name, cur.Category, cur.Name)
	}

	_, ok := Lookup("team_name")
	assert.True(t, ok)
	_, ok = Lookup("nope")
	assert.False(t, ok)
}
