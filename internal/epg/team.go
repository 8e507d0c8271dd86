// SPDX-License-Identifier: MIT

package epg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/template"
)

// ScheduleSource is the slice of the sports service the team generator
// needs.
type ScheduleSource interface {
	TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error)
	TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error)
	EnrichEvents(ctx context.Context, events []domain.Event, loc *time.Location)
}

// CompetitionIndex resolves the extra competitions a soccer club plays in
// beyond its domestic league. A nil index disables the lookup.
type CompetitionIndex interface {
	Competitions(teamID string) ([]domain.League, error)
}

// TeamChannel is one followed team's channel as the generator sees it:
// identity, presentation, and the template that shapes its day.
type TeamChannel struct {
	Key               string
	Name              string
	Icon              string
	Team              domain.Team
	AdditionalLeagues []domain.League
	Template          domain.Template
}

// Options sets the shared rendering parameters for a generation run.
type Options struct {
	Location     *time.Location
	Now          time.Time
	DaysAhead    int
	SportHours   map[domain.Sport]float64
	DefaultHours float64
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// TeamGenerator renders a continuous 24/7 schedule per followed team:
// game programmes padded by pregame minutes, with pregame, postgame and
// idle filler covering every remaining minute of the output window.
type TeamGenerator struct {
	src    ScheduleSource
	comps  CompetitionIndex
	opts   Options
	logger zerolog.Logger
}

// NewTeamGenerator builds a generator over the given schedule source.
// comps may be nil.
func NewTeamGenerator(src ScheduleSource, comps CompetitionIndex, opts Options) *TeamGenerator {
	return &TeamGenerator{
		src:    src,
		comps:  comps,
		opts:   opts,
		logger: log.WithComponent("epg.team"),
	}
}

// Generate renders every team channel into a single document. Teams that
// fail entirely are skipped with a warning so one bad upstream fetch does
// not lose the whole guide.
func (g *TeamGenerator) Generate(ctx context.Context, teams []TeamChannel) (*TV, error) {
	tv := NewTV(g.opts.now())
	for _, tc := range teams {
		ch, progs, err := g.Channel(ctx, tc)
		if err != nil {
			g.logger.Warn().Err(err).
				Str("team", tc.Team.Name).
				Str("league", string(tc.Team.League)).
				Msg("skipping team channel")
			continue
		}
		tv.Append(ch, progs)
	}
	return tv, nil
}

// Channel renders one team's channel and its full programme timeline.
func (g *TeamGenerator) Channel(ctx context.Context, tc TeamChannel) (Channel, []domain.Programme, error) {
	ch := Channel{ID: tc.Key, DisplayName: []string{tc.Name}}
	if tc.Icon != "" {
		ch.Icon = &Icon{Src: tc.Icon}
	} else if tc.Team.LogoURL != "" {
		ch.Icon = &Icon{Src: tc.Team.LogoURL}
	}

	events, err := g.schedule(ctx, tc)
	if err != nil {
		return Channel{}, nil, err
	}

	stats, err := g.src.TeamStats(ctx, tc.Team.ID, tc.Team.League)
	if err != nil {
		g.logger.Warn().Err(err).Str("team", tc.Team.Name).Msg("team stats unavailable")
		stats = nil
	}

	loc := g.opts.loc()
	g.src.EnrichEvents(ctx, events, loc)

	progs := g.timeline(tc, events, stats)
	return ch, progs, nil
}

// schedule fetches the team's events across its primary and any
// additional leagues, deduplicated by event id and sorted ascending. The
// primary league is authoritative; additional leagues are best effort.
func (g *TeamGenerator) schedule(ctx context.Context, tc TeamChannel) ([]domain.Event, error) {
	primary := tc.Team.League
	leagues := []domain.League{primary}
	seen := map[domain.League]bool{primary: true}
	for _, l := range tc.AdditionalLeagues {
		if !seen[l] {
			seen[l] = true
			leagues = append(leagues, l)
		}
	}
	if g.comps != nil && primary.SportOf() == domain.SportSoccer {
		comps, err := g.comps.Competitions(tc.Team.ID)
		if err != nil {
			g.logger.Warn().Err(err).Str("team", tc.Team.Name).Msg("competition lookup failed")
		}
		for _, l := range comps {
			if !seen[l] {
				seen[l] = true
				leagues = append(leagues, l)
			}
		}
	}

	var events []domain.Event
	byID := make(map[string]bool)
	for _, league := range leagues {
		sched, err := g.src.TeamSchedule(ctx, tc.Team.ID, league, g.opts.DaysAhead)
		if err != nil {
			if league == primary {
				return nil, fmt.Errorf("schedule for %s (%s): %w", tc.Team.Name, league, err)
			}
			g.logger.Warn().Err(err).
				Str("team", tc.Team.Name).
				Str("league", string(league)).
				Msg("additional league schedule failed")
			continue
		}
		for _, ev := range sched {
			if ev.ID == "" || byID[ev.ID] {
				continue
			}
			byID[ev.ID] = true
			events = append(events, ev)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// slot is one event's claim on the channel timeline. Start already
// includes the pregame padding.
type slot struct {
	event *domain.Event
	start time.Time
	stop  time.Time
}

// timeline lays out the full output window: event slots in order, every
// gap filled, hard boundaries at local midnight on the first and last
// day. Adjacent programmes always touch; overlapping events clip the
// earlier slot.
func (g *TeamGenerator) timeline(tc TeamChannel, events []domain.Event, stats *domain.TeamStats) []domain.Programme {
	loc := g.opts.loc()
	tpl := tc.Template

	windowStart := midnightOf(g.opts.now(), loc)
	windowEnd := windowStart.AddDate(0, 0, g.opts.DaysAhead+1)

	pregamePad := time.Duration(0)
	if tpl.EnablePregame && tpl.PregameMinutes > 0 {
		pregamePad = time.Duration(tpl.PregameMinutes) * time.Minute
	}

	// Events before the window only feed the .last slot of leading filler.
	var last *domain.Event
	var slots []slot
	for i := range events {
		ev := &events[i]
		if ev.StartTime.Before(windowStart) {
			last = ev
			continue
		}
		if !ev.StartTime.Before(windowEnd) {
			continue
		}
		start := ev.StartTime.Add(-pregamePad)
		if start.Before(windowStart) {
			start = windowStart
		}
		hours := tpl.DurationHours(ev.League, g.opts.SportHours, g.opts.DefaultHours)
		slots = append(slots, slot{event: ev, start: start, stop: ev.EndTime(hours)})
	}
	for i := 0; i < len(slots)-1; i++ {
		if slots[i].stop.After(slots[i+1].start) {
			slots[i].stop = slots[i+1].start
		}
	}
	kept := slots[:0]
	for _, s := range slots {
		if s.start.Before(s.stop) {
			kept = append(kept, s)
		}
	}
	slots = kept

	var progs []domain.Programme
	cursor := windowStart
	prev := last
	for i, s := range slots {
		progs = append(progs, g.fillGap(tc, stats, cursor, s.start, prev, s.event)...)
		var next *domain.Event
		if i+1 < len(slots) {
			next = slots[i+1].event
		}
		progs = append(progs, g.eventProgramme(tc, stats, s, prev, next))
		cursor = s.stop
		prev = s.event
	}
	if cursor.Before(windowEnd) {
		progs = append(progs, g.fillGap(tc, stats, cursor, windowEnd, prev, nil)...)
	}
	return progs
}

// fillGap covers [from, to) with filler. A gap inside one local day is a
// single segment: postgame of the previous event when there is one,
// pregame of the next otherwise. Gaps spanning days split into a
// postgame tail, whole idle days, and a pregame lead-in. Disabled
// pregame/postgame render as idle instead so the timeline stays solid.
func (g *TeamGenerator) fillGap(tc TeamChannel, stats *domain.TeamStats, from, to time.Time, prev, next *domain.Event) []domain.Programme {
	if !from.Before(to) {
		return nil
	}
	loc := g.opts.loc()
	fromDay := midnightOf(from, loc)
	toDay := midnightOf(to, loc)

	if fromDay.Equal(toDay) {
		return []domain.Programme{g.fillerProgramme(tc, stats, from, to, prev, next, prev != nil)}
	}

	var progs []domain.Programme
	cursor := from
	if !from.Equal(fromDay) {
		dayEnd := fromDay.AddDate(0, 0, 1)
		progs = append(progs, g.fillerProgramme(tc, stats, from, dayEnd, prev, next, prev != nil))
		cursor = dayEnd
	}
	for cursor.Before(toDay) {
		dayEnd := cursor.AddDate(0, 0, 1)
		progs = append(progs, g.idleProgramme(tc, stats, cursor, dayEnd, prev, next))
		cursor = dayEnd
	}
	if cursor.Before(to) {
		progs = append(progs, g.fillerProgramme(tc, stats, cursor, to, prev, next, false))
	}
	return progs
}

// fillerProgramme renders one gap segment. postgameSide selects which of
// the neighboring events the segment belongs to.
func (g *TeamGenerator) fillerProgramme(tc TeamChannel, stats *domain.TeamStats, from, to time.Time, prev, next *domain.Event, postgameSide bool) domain.Programme {
	if postgameSide && prev != nil {
		if tc.Template.EnablePostgame {
			return g.postgameProgramme(tc, stats, from, to, prev, next)
		}
		return g.idleProgramme(tc, stats, from, to, prev, next)
	}
	if next != nil && tc.Template.EnablePregame {
		return g.pregameProgramme(tc, stats, from, to, prev, next)
	}
	return g.idleProgramme(tc, stats, from, to, prev, next)
}

func (g *TeamGenerator) eventProgramme(tc TeamChannel, stats *domain.TeamStats, s slot, prev, next *domain.Event) domain.Programme {
	tpl := tc.Template
	ctx := &template.Context{
		Team:      &tc.Team,
		TeamStats: stats,
		Event:     s.event,
		LastEvent: prev,
		NextEvent: next,
		Location:  g.opts.loc(),
		Now:       g.opts.now(),
	}
	title := template.Resolve(tpl.TitleTemplate, ctx)
	if title == "" {
		title = s.event.Name
	}
	icon := tc.Team.LogoURL
	return domain.Programme{
		ChannelID:   tc.Key,
		Title:       title,
		Start:       s.start,
		Stop:        s.stop,
		Subtitle:    template.Resolve(tpl.SubtitleTemplate, ctx),
		Description: template.Description(tpl, ctx),
		Categories:  tpl.CategoriesFor(domain.KindEvent),
		Icon:        icon,
		Live:        tpl.XMLTVFlags.LiveOnEvents,
		New:         tpl.XMLTVFlags.NewOnEvents,
		Kind:        domain.KindEvent,
	}
}

func (g *TeamGenerator) pregameProgramme(tc TeamChannel, stats *domain.TeamStats, from, to time.Time, prev, next *domain.Event) domain.Programme {
	tpl := tc.Template
	ctx := &template.Context{
		Team:      &tc.Team,
		TeamStats: stats,
		LastEvent: prev,
		NextEvent: next,
		Location:  g.opts.loc(),
		Now:       g.opts.now(),
	}
	return domain.Programme{
		ChannelID:   tc.Key,
		Title:       template.Resolve(tpl.PregameFallback.Title, ctx),
		Start:       from,
		Stop:        to,
		Subtitle:    template.Resolve(tpl.PregameFallback.Subtitle, ctx),
		Description: template.Resolve(tpl.PregameFallback.Description, ctx),
		Categories:  tpl.CategoriesFor(domain.KindPregame),
		Icon:        tpl.PregameFallback.Icon,
		New:         tpl.XMLTVFlags.NewOnPregame,
		Kind:        domain.KindPregame,
	}
}

func (g *TeamGenerator) postgameProgramme(tc TeamChannel, stats *domain.TeamStats, from, to time.Time, prev, next *domain.Event) domain.Programme {
	tpl := tc.Template
	ctx := &template.Context{
		Team:      &tc.Team,
		TeamStats: stats,
		LastEvent: prev,
		NextEvent: next,
		Location:  g.opts.loc(),
		Now:       g.opts.now(),
	}
	return domain.Programme{
		ChannelID:   tc.Key,
		Title:       template.Resolve(tpl.PostgameFallback.Title, ctx),
		Start:       from,
		Stop:        to,
		Subtitle:    template.Resolve(tpl.PostgameFallback.Subtitle, ctx),
		Description: template.PostgameDescription(tpl, ctx),
		Categories:  tpl.CategoriesFor(domain.KindPostgame),
		Icon:        tpl.PostgameFallback.Icon,
		New:         tpl.XMLTVFlags.NewOnPostgame,
		Kind:        domain.KindPostgame,
	}
}

func (g *TeamGenerator) idleProgramme(tc TeamChannel, stats *domain.TeamStats, from, to time.Time, prev, next *domain.Event) domain.Programme {
	tpl := tc.Template
	ctx := &template.Context{
		Team:      &tc.Team,
		TeamStats: stats,
		LastEvent: prev,
		NextEvent: next,
		Location:  g.opts.loc(),
		Now:       g.opts.now(),
	}
	return domain.Programme{
		ChannelID:   tc.Key,
		Title:       template.Resolve(tpl.IdleContent.Title, ctx),
		Start:       from,
		Stop:        to,
		Subtitle:    template.Resolve(tpl.IdleContent.Subtitle, ctx),
		Description: template.IdleDescription(tpl, ctx),
		Categories:  tpl.CategoriesFor(domain.KindFiller),
		Icon:        tpl.IdleContent.Icon,
		Kind:        domain.KindFiller,
	}
}

// midnightOf returns local midnight of t's calendar date in loc.
func midnightOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
