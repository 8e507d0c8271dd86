// SPDX-License-Identifier: MIT

package epg

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/template"
)

// EventChannel is one synthetic channel produced for a group, carrying
// what the lifecycle layer needs: identity, presentation, the claimed
// event (nil for exception channels) and the streams feeding it.
type EventChannel struct {
	ID        string
	Name      string
	Logo      string
	Event     *domain.Event
	Streams   []domain.MatchedStream
	Exception string
	// DurationHours is the resolved event programme length; delete
	// timing derives from StartTime plus this.
	DurationHours float64
}

// EventGenerator renders a group's matched streams into synthetic
// channels and their programmes. It performs no I/O; events arrive
// already enriched by the matcher.
type EventGenerator struct {
	opts Options
}

// NewEventGenerator builds a generator with shared run parameters.
func NewEventGenerator(opts Options) *EventGenerator {
	return &EventGenerator{opts: opts}
}

// Generate builds the group's document and channel plans. In merge mode
// streams matching the same event share one channel, first stream wins
// the presentation; in separate mode every stream gets its own channel
// keyed by stream id so ids stay stable as other streams come and go.
func (g *EventGenerator) Generate(group domain.EventGroup, tpl domain.Template, matches []domain.MatchedStream) (*TV, []EventChannel) {
	tv := NewTV(g.opts.now())

	var channels []EventChannel
	byEvent := make(map[string]int)
	byKeyword := make(map[string]int)

	for _, ms := range matches {
		switch {
		case ms.IsException():
			if i, ok := byKeyword[ms.ExceptionKeyword]; ok {
				ms.ChannelID = channels[i].ID
				channels[i].Streams = append(channels[i].Streams, ms)
				continue
			}
			ec := g.exceptionChannel(group, tpl, ms)
			byKeyword[ms.ExceptionKeyword] = len(channels)
			channels = append(channels, ec)

		case ms.Event != nil:
			if group.StreamMode == domain.StreamModeMerge {
				if i, ok := byEvent[ms.Event.ID]; ok {
					ms.ChannelID = channels[i].ID
					channels[i].Streams = append(channels[i].Streams, ms)
					continue
				}
				byEvent[ms.Event.ID] = len(channels)
			}
			channels = append(channels, g.eventChannel(group, tpl, ms))
		}
	}

	for _, ec := range channels {
		ch := Channel{ID: ec.ID, DisplayName: []string{ec.Name}}
		if ec.Logo != "" {
			ch.Icon = &Icon{Src: ec.Logo}
		}
		tv.Append(ch, g.programmes(ec, tpl))
	}
	return tv, channels
}

func (g *EventGenerator) eventChannel(group domain.EventGroup, tpl domain.Template, ms domain.MatchedStream) EventChannel {
	ev := ms.Event
	id := EventChannelID(ev.ID)
	if group.StreamMode == domain.StreamModeSeparate {
		id = StreamChannelID(ev.ID, ms.StreamID)
	}
	ms.ChannelID = id

	ctx := &template.Context{
		Event:      ev,
		StreamName: ms.StreamName,
		Location:   g.opts.loc(),
		Now:        g.opts.now(),
	}
	name := template.Resolve(tpl.ChannelNameTemplate, ctx)
	if name == "" {
		if ev.ShortName != "" {
			name = ev.ShortName
		} else {
			name = ev.Name
		}
	}
	logo := ev.HomeTeam.LogoURL
	if logo == "" {
		logo = ev.AwayTeam.LogoURL
	}
	return EventChannel{
		ID:            id,
		Name:          name,
		Logo:          logo,
		Event:         ev,
		Streams:       []domain.MatchedStream{ms},
		DurationHours: tpl.DurationHours(ev.League, g.opts.SportHours, g.opts.DefaultHours),
	}
}

func (g *EventGenerator) exceptionChannel(group domain.EventGroup, tpl domain.Template, ms domain.MatchedStream) EventChannel {
	id := ExceptionChannelID(group.ID, ms.ExceptionKeyword)
	ms.ChannelID = id
	return EventChannel{
		ID:        id,
		Name:      cases.Title(language.English).String(ms.ExceptionKeyword),
		Streams:   []domain.MatchedStream{ms},
		Exception: ms.ExceptionKeyword,
	}
}

// programmes renders one channel's day. Event channels get pregame from
// local midnight, the game itself, and postgame to 23:59:59 local unless
// the game runs past midnight. Exception channels get one idle block per
// day of the output window.
func (g *EventGenerator) programmes(ec EventChannel, tpl domain.Template) []domain.Programme {
	if ec.Exception != "" {
		return g.exceptionProgrammes(ec, tpl)
	}
	loc := g.opts.loc()
	ev := ec.Event

	ctx := &template.Context{
		Event:      ev,
		StreamName: ec.Streams[0].StreamName,
		Location:   loc,
		Now:        g.opts.now(),
	}

	gameStart := ev.StartTime
	gameEnd := ev.EndTime(ec.DurationHours)
	dayStart := midnightOf(gameStart, loc)

	var progs []domain.Programme
	if tpl.EnablePregame && dayStart.Before(gameStart) {
		pre := &template.Context{
			NextEvent:  ev,
			StreamName: ctx.StreamName,
			Location:   loc,
			Now:        ctx.Now,
		}
		progs = append(progs, domain.Programme{
			ChannelID:   ec.ID,
			Title:       template.Resolve(tpl.PregameFallback.Title, pre),
			Start:       dayStart,
			Stop:        gameStart,
			Subtitle:    template.Resolve(tpl.PregameFallback.Subtitle, pre),
			Description: template.Resolve(tpl.PregameFallback.Description, pre),
			Categories:  tpl.CategoriesFor(domain.KindPregame),
			Icon:        tpl.PregameFallback.Icon,
			New:         tpl.XMLTVFlags.NewOnPregame,
			Kind:        domain.KindPregame,
		})
	}

	title := template.Resolve(tpl.TitleTemplate, ctx)
	if title == "" {
		title = ev.Name
	}
	progs = append(progs, domain.Programme{
		ChannelID:   ec.ID,
		Title:       title,
		Start:       gameStart,
		Stop:        gameEnd,
		Subtitle:    template.Resolve(tpl.SubtitleTemplate, ctx),
		Description: template.Description(tpl, ctx),
		Categories:  tpl.CategoriesFor(domain.KindEvent),
		Icon:        ec.Logo,
		Live:        tpl.XMLTVFlags.LiveOnEvents,
		New:         tpl.XMLTVFlags.NewOnEvents,
		Kind:        domain.KindEvent,
	})

	// Postgame runs to end of day, but a game crossing local midnight
	// has no day left to fill.
	endOfDay := dayStart.AddDate(0, 0, 1).Add(-time.Second)
	if tpl.EnablePostgame && midnightOf(gameEnd, loc).Equal(dayStart) && gameEnd.Before(endOfDay) {
		post := &template.Context{
			LastEvent:  ev,
			StreamName: ctx.StreamName,
			Location:   loc,
			Now:        ctx.Now,
		}
		progs = append(progs, domain.Programme{
			ChannelID:   ec.ID,
			Title:       template.Resolve(tpl.PostgameFallback.Title, post),
			Start:       gameEnd,
			Stop:        endOfDay,
			Subtitle:    template.Resolve(tpl.PostgameFallback.Subtitle, post),
			Description: template.PostgameDescription(tpl, post),
			Categories:  tpl.CategoriesFor(domain.KindPostgame),
			Icon:        tpl.PostgameFallback.Icon,
			New:         tpl.XMLTVFlags.NewOnPostgame,
			Kind:        domain.KindPostgame,
		})
	}
	return progs
}

func (g *EventGenerator) exceptionProgrammes(ec EventChannel, tpl domain.Template) []domain.Programme {
	loc := g.opts.loc()
	ctx := &template.Context{
		ExceptionKeyword: ec.Exception,
		StreamName:       ec.Streams[0].StreamName,
		Location:         loc,
		Now:              g.opts.now(),
	}
	day := midnightOf(g.opts.now(), loc)
	end := day.AddDate(0, 0, g.opts.DaysAhead+1)

	title := template.Resolve(tpl.IdleContent.Title, ctx)
	if title == "" {
		title = ec.Name
	}

	var progs []domain.Programme
	for day.Before(end) {
		next := day.AddDate(0, 0, 1)
		progs = append(progs, domain.Programme{
			ChannelID:   ec.ID,
			Title:       title,
			Start:       day,
			Stop:        next,
			Subtitle:    template.Resolve(tpl.IdleContent.Subtitle, ctx),
			Description: template.IdleDescription(tpl, ctx),
			Icon:        tpl.IdleContent.Icon,
			Kind:        domain.KindFiller,
		})
		day = next
	}
	return progs
}
