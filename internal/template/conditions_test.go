// SPDX-License-Identifier: MIT

package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teamarr/teamarr/internal/domain"
)

func TestEvaluate(t *testing.T) {
	final := giantsGame()
	final.Status = domain.EventStatus{State: domain.StateFinal}
	live := giantsGame()
	live.Status = domain.EventStatus{State: domain.StateLive, Period: 5}

	now := time.Date(2025, 11, 2, 20, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		cond string
		ctx  *Context
		want bool
	}{
		{"final true", "is_final == true", &Context{Event: final}, true},
		{"final false on live", "is_final == true", &Context{Event: live}, false},
		{"negation", "status != final", &Context{Event: live}, true},
		{"status literal", "status == live", &Context{Event: live}, true},
		{"quoted literal", `status == "final"`, &Context{Event: final}, true},
		{"league slug", "league == nfl", &Context{Event: final}, true},
		{"sport", "sport == football", &Context{Event: final}, true},
		{"overtime", "is_overtime == true", &Context{Event: live}, true},
		{"game date today", "game_date == today", &Context{Event: final, Now: now}, true},
		{"game date not yesterday", "game_date == yesterday", &Context{Event: final, Now: now}, false},
		{"yesterday shifts", "game_date == yesterday", &Context{Event: final, Now: now.AddDate(0, 0, 1)}, true},
		{"has odds", "has_odds == true", &Context{Event: final}, true},
		{"no event game date", "game_date == today", &Context{Now: now}, false},
		{"malformed", "is_final", &Context{Event: final}, false},
		{"empty", "", &Context{Event: final}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.cond, tc.ctx))
		})
	}
}

func TestResolveConditional_LowestPriorityWins(t *testing.T) {
	live := giantsGame()
	live.Status = domain.EventStatus{State: domain.StateLive}
	ctx := &Context{Event: live}

	conds := []domain.ConditionalDescription{
		{Condition: "is_live == true", Template: "Watch {matchup} live!", Priority: 2},
		{Condition: "is_live == true", Template: "LIVE: {matchup}", Priority: 1},
		{Condition: "is_final == true", Template: "Final: {score}", Priority: 0},
	}

	got := ResolveConditional(conds, "fallback", ctx)
	assert.Equal(t, "LIVE: Giants vs Cowboys", got, "priority 0 does not match, 1 beats 2")
}

func TestResolveConditional_FallbackWhenNoneMatch(t *testing.T) {
	ctx := &Context{Event: giantsGame()}
	conds := []domain.ConditionalDescription{
		{Condition: "is_final == true", Template: "Final", Priority: 0},
	}
	got := ResolveConditional(conds, "Upcoming: {matchup}", ctx)
	assert.Equal(t, "Upcoming: Giants vs Cowboys", got)
}

func TestResolveConditional_TiesKeepUserOrder(t *testing.T) {
	ctx := &Context{Event: giantsGame()}
	conds := []domain.ConditionalDescription{
		{Condition: "is_final == false", Template: "first", Priority: 1},
		{Condition: "is_final == false", Template: "second", Priority: 1},
	}
	assert.Equal(t, "first", ResolveConditional(conds, "", ctx))
}

func TestPostgameDescription_Switch(t *testing.T) {
	tpl := domain.Template{
		PostgameFallback: domain.FillerContent{Description: "That was {matchup}."},
		PostgameSwitch: domain.PostgameConditional{
			Enabled:  true,
			Final:    "Final score {score}.",
			NotFinal: "Still going: {matchup}.",
		},
	}

	ev := giantsGame()
	home, away := 17, 24
	ev.HomeScore, ev.AwayScore = &home, &away
	ev.Status = domain.EventStatus{State: domain.StateFinal}

	assert.Equal(t, "Final score 17-24.", PostgameDescription(tpl, &Context{Event: ev}))

	live := giantsGame()
	live.Status = domain.EventStatus{State: domain.StateLive}
	assert.Equal(t, "Still going: Giants vs Cowboys.", PostgameDescription(tpl, &Context{Event: live}))
}

func TestPostgameDescription_FillerReadsLastSlot(t *testing.T) {
	// Postgame filler carries the ended game in .last, not as the
	// current event; the switch must still see it.
	tpl := domain.Template{
		PostgameSwitch: domain.PostgameConditional{
			Enabled:  true,
			Final:    "Recap of {matchup.last}",
			NotFinal: "Highlights soon",
		},
	}
	ev := giantsGame()
	ev.Status = domain.EventStatus{State: domain.StateFinal}

	got := PostgameDescription(tpl, &Context{LastEvent: ev})
	assert.Equal(t, "Recap of Giants vs Cowboys", got)
}

func TestPostgameDescription_FallbackWhenDisabled(t *testing.T) {
	tpl := domain.Template{
		PostgameFallback: domain.FillerContent{Description: "That was {matchup}."},
	}
	got := PostgameDescription(tpl, &Context{Event: giantsGame()})
	assert.Equal(t, "That was Giants vs Cowboys.", got)
}

func TestDescription_ConditionalOverridesPlain(t *testing.T) {
	tpl := domain.Template{
		DescriptionTemplate: "{matchup} from {venue}",
		ConditionalDescriptions: []domain.ConditionalDescription{
			{Condition: "is_final == true", Template: "Final: {score}", Priority: 0},
		},
	}

	scheduled := &Context{Event: giantsGame()}
	assert.Equal(t, "Giants vs Cowboys from MetLife Stadium", Description(tpl, scheduled))

	ev := giantsGame()
	home, away := 31, 28
	ev.HomeScore, ev.AwayScore = &home, &away
	ev.Status = domain.EventStatus{State: domain.StateFinal}
	assert.Equal(t, "Final: 31-28", Description(tpl, &Context{Event: ev}))
}

func TestIdleDescription(t *testing.T) {
	tpl := domain.Template{
		IdleContent: domain.FillerContent{Description: "No game today."},
		IdleConditional: []domain.ConditionalDescription{
			{Condition: "is_final == true", Template: "unreachable", Priority: 0},
		},
	}
	assert.Equal(t, "No game today.", IdleDescription(tpl, &Context{}))
}
