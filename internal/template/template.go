// SPDX-License-Identifier: MIT

// Package template resolves {name} placeholders in channel, title and
// description format strings against a Context. Resolution is a pure,
// single-pass substitution: substituted values are never re-expanded, so
// the same template and context always produce the same output.
package template

import (
	"regexp"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

// Context carries everything a variable extractor may draw from. Team is
// the channel's configured team for team-based channels and nil for event
// groups, where the home side stands in. Event is the programme's game;
// filler programmes leave it nil and populate the neighbor slots instead.
type Context struct {
	Team      *domain.Team
	TeamStats *domain.TeamStats

	Event     *domain.Event
	NextEvent *domain.Event
	LastEvent *domain.Event

	StreamName       string
	ExceptionKeyword string

	// Location is the display zone for date and time variables; nil
	// means UTC. Now anchors relative dates (today, yesterday) and is
	// set once per generation run.
	Location *time.Location
	Now      time.Time
}

func (c *Context) loc() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

func (c *Context) now() time.Time {
	if !c.Now.IsZero() {
		return c.Now
	}
	return time.Now()
}

// recent returns the event a trailing programme refers to: the current
// event when set, else the one that just ended.
func (c *Context) recent() *domain.Event {
	if c.Event != nil {
		return c.Event
	}
	return c.LastEvent
}

// shifted returns a copy of the context focused on a neighbor event, or
// nil when that neighbor is absent. Neighbor slots are cleared so suffix
// chains cannot walk the schedule.
func (c *Context) shifted(suffix string) *Context {
	var ev *domain.Event
	switch suffix {
	case "next":
		ev = c.NextEvent
	case "last":
		ev = c.LastEvent
	default:
		return nil
	}
	if ev == nil {
		return nil
	}
	clone := *c
	clone.Event = ev
	clone.NextEvent = nil
	clone.LastEvent = nil
	return &clone
}

// side is one competitor of the context's event with its score and stats.
type side struct {
	team  *domain.Team
	stats *domain.TeamStats
	score *int
}

// sides splits the event into the channel's team and its opponent. With
// no configured team the home side is "the team". The configured team's
// stats override the event-carried ones when present.
func (c *Context) sides() (team, opponent side) {
	if c.Event == nil {
		if c.Team != nil {
			return side{team: c.Team, stats: c.TeamStats}, side{}
		}
		return side{}, side{}
	}

	ev := c.Event
	home := side{team: &ev.HomeTeam, stats: ev.HomeStats, score: ev.HomeScore}
	away := side{team: &ev.AwayTeam, stats: ev.AwayStats, score: ev.AwayScore}

	team, opponent = home, away
	if c.Team != nil && sameTeam(c.Team, &ev.AwayTeam) {
		team, opponent = away, home
	}
	if c.Team != nil && c.TeamStats != nil {
		team.stats = c.TeamStats
	}
	return team, opponent
}

func sameTeam(a, b *domain.Team) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return strings.EqualFold(a.Name, b.Name)
}

// teamIsHome reports whether the context's team plays at home; event
// groups with no configured team count as home.
func (c *Context) teamIsHome() bool {
	if c.Event == nil || c.Team == nil {
		return true
	}
	return !sameTeam(c.Team, &c.Event.AwayTeam)
}

// elision sentinel for empty optional variables; stripped with its
// surrounding decorator after substitution.
const elided = "\x00"

var (
	emptyParens   = regexp.MustCompile(`\(\s*\x00\s*\)`)
	emptyBrackets = regexp.MustCompile(`\[\s*\x00\s*\]`)
	emptyDash     = regexp.MustCompile(`\s*-\s*\x00`)
	spaceRuns     = regexp.MustCompile(` {2,}`)
)

// Resolve substitutes every {name} placeholder in tpl from ctx in one
// pass. {name.next} and {name.last} resolve against the neighbor events;
// an unknown suffix resolves to empty. Unknown variable names are left
// verbatim so template typos stay visible. Optional variables that
// resolve empty take their surrounding (…), […] or "- …" decorator with
// them, and runs of spaces left behind are collapsed.
func Resolve(tpl string, ctx *Context) string {
	if tpl == "" || !strings.Contains(tpl, "{") {
		return tpl
	}

	var out strings.Builder
	out.Grow(len(tpl) + 16)
	sawElided := false

	for {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			out.WriteString(tpl)
			break
		}
		end := strings.IndexByte(tpl[open:], '}')
		if end < 0 {
			out.WriteString(tpl)
			break
		}
		end += open

		out.WriteString(tpl[:open])
		name := tpl[open+1 : end]
		tpl = tpl[end+1:]

		value, known, optional := resolveName(name, ctx)
		switch {
		case !known:
			out.WriteString("{" + name + "}")
		case value == "" && optional:
			out.WriteString(elided)
			sawElided = true
		default:
			out.WriteString(value)
		}
	}

	s := out.String()
	if !sawElided {
		return s
	}
	s = emptyParens.ReplaceAllString(s, "")
	s = emptyBrackets.ReplaceAllString(s, "")
	s = emptyDash.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, elided, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// resolveName resolves one placeholder body, handling the .next/.last
// suffix. known is false only for names outside the registry; a known
// name with an unsupported suffix is known but empty.
func resolveName(name string, ctx *Context) (value string, known, optional bool) {
	base, suffix, hasSuffix := strings.Cut(name, ".")
	v, ok := Lookup(base)
	if !ok {
		return "", false, false
	}
	if !hasSuffix {
		return v.Resolve(ctx), true, v.Optional
	}
	sub := ctx.shifted(suffix)
	if sub == nil {
		return "", true, v.Optional
	}
	return v.Resolve(sub), true, v.Optional
}
