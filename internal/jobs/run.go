// SPDX-License-Identifier: MIT

// Package jobs runs the generation cycle: refresh upstream playlists,
// render the team and event guides, sync managed channels, and hand the
// consolidated XMLTV back to Dispatcharr.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamarr/teamarr/internal/channels"
	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/match"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/store"
	"github.com/teamarr/teamarr/internal/telemetry"
)

// defaultCacheSweepWindow keeps this many generations of match cache
// entries when settings carry no explicit window.
const defaultCacheSweepWindow = 50

// Orchestrator owns the generation cycle. One run at a time: a second
// Run while one is active fails fast with ErrRunActive, so an API
// trigger cannot stack on top of the ticker.
type Orchestrator struct {
	deps   Deps
	mu     sync.Mutex
	logger zerolog.Logger
}

// New builds an orchestrator. Clock defaults to time.Now.
func New(deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Orchestrator{deps: deps, logger: log.WithComponent("jobs")}
}

// Run executes one generation cycle and records its outcome in the run
// tracker. Per-group and per-stream failures degrade the run to partial
// instead of aborting it; only settings, generation bookkeeping, and the
// final consolidation are fatal.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrRunActive
	}
	defer o.mu.Unlock()

	ctx, span := telemetry.Tracer("teamarr.jobs").Start(ctx, "teamarr.jobs.run")
	defer span.End()

	start := o.deps.Clock()

	set, err := o.deps.Store.GetSettings(ctx)
	if err != nil {
		metrics.IncRunFailure("settings")
		failSpan(span, err, "settings")
		return nil, fmt.Errorf("load settings: %w", err)
	}
	loc, err := time.LoadLocation(set.Timezone)
	if err != nil {
		metrics.IncRunFailure("settings")
		failSpan(span, err, "settings")
		return nil, fmt.Errorf("timezone %q: %w", set.Timezone, err)
	}
	generation, err := o.deps.Store.NextGeneration(ctx)
	if err != nil {
		metrics.IncRunFailure("generation")
		failSpan(span, err, "generation")
		return nil, fmt.Errorf("advance generation: %w", err)
	}
	metrics.RecordGenerationCounter(generation)

	res := &RunResult{Generation: generation, StartedAt: start.UTC()}
	o.logger.Info().
		Str("event", "run.start").
		Int64("generation", generation).
		Msg("generation run started")

	life := o.deps.Lifecycle(loc, set.ProfileIDs)

	o.refreshAccounts(ctx, res)
	o.repairGuideLinks(ctx, life)
	o.teamGuide(ctx, res, set, loc)
	o.groupRuns(ctx, res, set, loc, life, generation)

	swept, sweepErrs := life.SweepDue(ctx, o.deps.Clock())
	res.Swept = swept
	for _, err := range sweepErrs {
		res.Errors = append(res.Errors, "sweep: "+err.Error())
	}

	consolidateFailed := o.consolidate(ctx, res, set, start)
	o.sweepMatchCache(ctx, set, generation)

	if rows, err := o.deps.Store.ActiveChannels(ctx); err == nil {
		metrics.RecordChannelsManaged(len(rows))
	}

	res.Status = deriveStatus(res, consolidateFailed)
	res.DurationMS = o.deps.Clock().Sub(start).Milliseconds()
	span.SetAttributes(telemetry.JobAttributes("generation", res.Status, res.DurationMS)...)
	if res.Status == StatusFailed {
		span.SetStatus(codes.Error, "generation failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	metrics.RecordGenerationRun(res.Status, float64(res.DurationMS)/1000.0)
	o.record(ctx, start, res)

	o.logger.Info().
		Str("event", "run.complete").
		Int64("generation", generation).
		Str("status", res.Status).
		Int("groups_succeeded", res.Succeeded).
		Int("groups_failed", res.Failed).
		Int("channels", res.Channels).
		Int("programmes", res.Programmes).
		Int64("duration_ms", res.DurationMS).
		Msg("generation run finished")
	return res, nil
}

// refreshAccounts asks Dispatcharr to refresh every M3U account so the
// stream listings this run reads are current. Failure is tolerated; the
// run proceeds on whatever streams the last refresh left behind.
func (o *Orchestrator) refreshAccounts(ctx context.Context, res *RunResult) {
	ref, err := o.deps.Upstream.RefreshAllAccounts(ctx, o.deps.Refresh)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("event", "run.m3u_refresh_failed").
			Msg("m3u refresh failed; using existing streams")
		res.Errors = append(res.Errors, "m3u refresh: "+err.Error())
		return
	}
	o.logger.Debug().
		Str("event", "run.m3u_refreshed").
		Int("succeeded", ref.Succeeded).
		Int("failed", ref.Failed).
		Int("skipped", ref.Skipped).
		Msg("m3u accounts refreshed")
}

// repairGuideLinks attaches guide data that Dispatcharr imported after
// the owning channels were created. Channels created late in the last
// cycle pick up their EPG here.
func (o *Orchestrator) repairGuideLinks(ctx context.Context, life Lifecycle) {
	ups, err := o.deps.Upstream.Channels(ctx)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("event", "run.repair_skipped").
			Msg("upstream channel listing failed; guide repair skipped")
		return
	}
	if n := life.RepairEPG(ctx, ups); n > 0 {
		o.logger.Info().
			Str("event", "run.guide_repaired").
			Int("channels", n).
			Msg("guide data attached to waiting channels")
	}
}

// teamGuide renders teams.xml for every enabled followed team. The
// fragment is written even when empty so unfollowing the last team
// clears its channels from the merged guide.
func (o *Orchestrator) teamGuide(ctx context.Context, res *RunResult, set store.Settings, loc *time.Location) {
	teams, err := o.deps.Store.EnabledFollowedTeams(ctx)
	if err != nil {
		metrics.IncRunFailure("teams")
		res.Errors = append(res.Errors, "followed teams: "+err.Error())
		return
	}

	tcs := make([]epg.TeamChannel, 0, len(teams))
	for _, ft := range teams {
		var tplID int64
		if ft.TemplateID != nil {
			tplID = *ft.TemplateID
		}
		tpl, err := o.template(ctx, tplID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("team %s: template: %s", ft.Name, err))
			continue
		}
		tcs = append(tcs, epg.TeamChannel{
			Key:  epg.TeamChannelID(ft.ID),
			Name: ft.Name,
			Team: domain.Team{
				ID:       ft.ProviderTeamID,
				Provider: ft.Provider,
				Name:     ft.Name,
				League:   ft.League,
				Sport:    ft.League.SportOf(),
			},
			AdditionalLeagues: ft.AdditionalLeagues,
			Template:          *tpl,
		})
	}

	gen := epg.NewTeamGenerator(o.deps.Sports, o.deps.Comps, o.options(set, loc))
	tv, err := gen.Generate(ctx, tcs)
	if err != nil {
		metrics.IncRunFailure("teams")
		res.Errors = append(res.Errors, "team guide: "+err.Error())
		return
	}
	if err := epg.WriteFile(epg.TeamsPath(o.deps.DataDir), tv); err != nil {
		metrics.IncRunFailure("teams")
		res.Errors = append(res.Errors, "write team guide: "+err.Error())
		return
	}
	res.TeamChannels = len(tv.Channels)
}

// groupRuns walks every enabled event group through the stream pipeline.
// Groups run sequentially; a cancelled context skips the remainder.
func (o *Orchestrator) groupRuns(ctx context.Context, res *RunResult, set store.Settings, loc *time.Location, life Lifecycle, generation int64) {
	groups, err := o.deps.Store.EnabledEventGroups(ctx)
	if err != nil {
		metrics.IncRunFailure("groups")
		res.Errors = append(res.Errors, "event groups: "+err.Error())
		return
	}
	if len(groups) == 0 {
		return
	}
	names, err := o.channelGroupNames(ctx)
	if err != nil {
		metrics.IncRunFailure("groups")
		res.Errors = append(res.Errors, "channel groups: "+err.Error())
		return
	}

	for _, group := range groups {
		if ctx.Err() != nil {
			res.Skipped++
			res.Groups = append(res.Groups, GroupResult{GroupID: group.ID, Group: group.Name, Skipped: true})
			continue
		}
		gr := o.runGroup(ctx, set, loc, life, generation, group, names[group.ChannelGroupID])
		res.Groups = append(res.Groups, gr)
		if gr.Error != "" {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("group %s: %s", group.Name, gr.Error))
			metrics.IncRunFailure("group")
			continue
		}
		res.Succeeded++
	}
}

// runGroup matches one group's streams against live events, writes the
// group's guide fragment, and syncs its managed channels.
func (o *Orchestrator) runGroup(ctx context.Context, set store.Settings, loc *time.Location, life Lifecycle, generation int64, group domain.EventGroup, upstreamName string) GroupResult {
	ctx, span := telemetry.Tracer("teamarr.jobs").Start(ctx, "teamarr.jobs.group")
	span.SetAttributes(attribute.String(telemetry.MatchGroupKey, group.Name))
	gr := GroupResult{GroupID: group.ID, Group: group.Name}
	defer func() {
		if gr.Error != "" {
			span.SetStatus(codes.Error, gr.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()
	if upstreamName == "" {
		gr.Error = fmt.Sprintf("no upstream channel group with id %d", group.ChannelGroupID)
		return gr
	}
	tpl, err := o.template(ctx, group.EventTemplateID)
	if err != nil {
		gr.Error = "template: " + err.Error()
		return gr
	}
	streams, err := o.deps.Upstream.StreamsForGroup(ctx, upstreamName)
	if err != nil {
		gr.Error = "streams: " + err.Error()
		return gr
	}
	gr.Streams = len(streams)

	matcher := o.matcherFor(group, generation)
	now := o.deps.Clock().In(loc)
	var matches []domain.MatchedStream
	var unmatched []dispatcharr.Stream
	tiers := make(map[string]int)
	for _, s := range streams {
		m, err := matcher.Match(ctx, s.ID, s.Name, now)
		if err != nil {
			gr.StreamErrors++
			o.logger.Warn().Err(err).
				Str("group", group.Name).
				Str("stream", s.Name).
				Msg("stream match failed")
			continue
		}
		if m == nil {
			unmatched = append(unmatched, s)
			continue
		}
		matches = append(matches, *m)
		if m.IsException() {
			gr.Exceptions++
			continue
		}
		gr.Matched++
		tiers[string(m.DetectionTier)]++
		span.AddEvent("stream.matched", trace.WithAttributes(
			telemetry.MatchAttributes(group.Name, string(m.Event.League), string(m.DetectionTier), m.Score)...))
	}
	gr.Unmatched = len(unmatched)
	for tier, n := range tiers {
		metrics.RecordStreamsMatched(group.Name, tier, n)
	}
	metrics.RecordStreamsUnmatched(group.Name, gr.Unmatched)
	metrics.RecordExceptionStreams(group.Name, gr.Exceptions)

	egen := epg.NewEventGenerator(o.options(set, loc))
	tv, plans := egen.Generate(group, *tpl, matches)
	gr.Channels = len(tv.Channels)
	gr.Programmes = len(tv.Programmes)

	if err := epg.WriteFile(epg.EventPath(o.deps.DataDir, group.ID), tv); err != nil {
		gr.Error = "write fragment: " + err.Error()
		return gr
	}

	sres, err := life.Sync(ctx, channels.SyncInput{
		Group:     group,
		Plans:     plans,
		Streams:   streams,
		Unmatched: unmatched,
		Now:       o.deps.Clock(),
	})
	if err != nil {
		gr.Error = "lifecycle: " + err.Error()
		return gr
	}
	gr.Created, gr.Updated, gr.Deleted = sres.Created, sres.Updated, sres.Deleted
	for _, cerr := range sres.Errors {
		gr.ChannelErrors = append(gr.ChannelErrors, cerr.Error())
	}

	o.logger.Info().
		Str("event", "run.group").
		Str("group", group.Name).
		Int("streams", gr.Streams).
		Int("matched", gr.Matched).
		Int("exceptions", gr.Exceptions).
		Int("unmatched", gr.Unmatched).
		Int("created", gr.Created).
		Int("deleted", gr.Deleted).
		Msg("event group processed")
	return gr
}

// consolidate merges the fragments into the final guide and, on
// success, triggers the upstream import and prunes old fragment
// backups. Returns true when the merge itself failed.
func (o *Orchestrator) consolidate(ctx context.Context, res *RunResult, set store.Settings, cycleStart time.Time) bool {
	cons := epg.NewConsolidator(o.deps.DataDir)
	cres, err := cons.Consolidate(o.deps.Clock())
	if err != nil {
		metrics.IncRunFailure("consolidate")
		res.Errors = append(res.Errors, "consolidate: "+err.Error())
		return true
	}
	res.Channels = cres.Channels
	res.Programmes = cres.Programmes

	if set.EPGSourceID > 0 {
		if err := o.deps.Upstream.TriggerEPGImport(ctx, set.EPGSourceID); err != nil {
			metrics.IncRunFailure("import")
			res.Errors = append(res.Errors, "epg import: "+err.Error())
			o.logger.Warn().Err(err).
				Str("event", "run.import_failed").
				Msg("epg import trigger failed")
		}
	} else {
		o.logger.Debug().Msg("no epg source configured; import not triggered")
	}

	if n, err := cons.Sweep(cycleStart); err != nil {
		o.logger.Warn().Err(err).Msg("fragment backup sweep failed")
	} else if n > 0 {
		o.logger.Debug().Int("removed", n).Msg("fragment backups swept")
	}
	return false
}

// sweepMatchCache drops match cache entries last confirmed before the
// retention window. Early generations skip the sweep until the window
// has something behind it.
func (o *Orchestrator) sweepMatchCache(ctx context.Context, set store.Settings, generation int64) {
	window := set.CacheSweepGenerations
	if window <= 0 {
		window = defaultCacheSweepWindow
	}
	cutoff := generation - int64(window)
	if cutoff <= 0 {
		return
	}
	n, err := o.deps.Store.SweepMatchCache(ctx, cutoff)
	if err != nil {
		o.logger.Warn().Err(err).Msg("match cache sweep failed")
		return
	}
	if n > 0 {
		o.logger.Debug().Int64("removed", n).Int64("cutoff", cutoff).Msg("match cache swept")
	}
}

// record persists the run summary; the tracker feeds the status API.
func (o *Orchestrator) record(ctx context.Context, start time.Time, res *RunResult) {
	summary, err := json.Marshal(res)
	if err != nil {
		o.logger.Warn().Err(err).Msg("run summary marshal failed")
		return
	}
	if err := o.deps.Store.RecordRun(ctx, start, res.Status, summary); err != nil {
		metrics.IncRunFailure("tracker")
		o.logger.Warn().Err(err).Msg("run record failed")
	}
}

// matcherFor builds the group's matcher chain: single or multi league
// under the settings threshold, wrapped in the generation-stamped cache.
func (o *Orchestrator) matcherFor(group domain.EventGroup, generation int64) match.Matcher {
	leagues := group.Leagues()
	var inner match.Matcher
	switch {
	case len(leagues) == 1:
		inner = match.NewSingleLeagueMatcher(o.deps.Sports, leagues[0], group.ExceptionKeywords, match.Options{})
	default:
		inner = match.NewMultiLeagueMatcher(o.deps.Sports, leagues, nil, group.ExceptionKeywords, match.Options{})
	}
	return match.NewCachedMatcher(inner, o.deps.Store, o.deps.Sports, group.ID, generation)
}

func (o *Orchestrator) channelGroupNames(ctx context.Context) (map[int]string, error) {
	cgs, err := o.deps.Upstream.ChannelGroups(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(cgs))
	for _, cg := range cgs {
		names[cg.ID] = cg.Name
	}
	return names, nil
}

// template resolves a template id, falling back to the default template
// when the id is zero or the row is gone.
func (o *Orchestrator) template(ctx context.Context, id int64) (*domain.Template, error) {
	if id > 0 {
		tpl, err := o.deps.Store.GetTemplate(ctx, id)
		if err == nil {
			return tpl, nil
		}
		o.logger.Warn().Err(err).
			Int64("template_id", id).
			Msg("template missing; using default")
	}
	return o.deps.Store.DefaultTemplate(ctx)
}

func (o *Orchestrator) options(set store.Settings, loc *time.Location) epg.Options {
	return epg.Options{
		Location:     loc,
		Now:          o.deps.Clock(),
		DaysAhead:    set.DaysAhead,
		SportHours:   set.SportDurations,
		DefaultHours: set.DefaultDurationHours,
	}
}

// failSpan marks the run span failed under the same label the failure
// counter uses.
func failSpan(span trace.Span, err error, label string) {
	span.RecordError(err)
	span.SetAttributes(telemetry.ErrorAttributes(err, label)...)
	span.SetStatus(codes.Error, label)
}

func deriveStatus(res *RunResult, consolidateFailed bool) string {
	switch {
	case consolidateFailed:
		return StatusFailed
	case len(res.Groups) > 0 && res.Succeeded == 0 && res.Failed > 0:
		return StatusFailed
	case res.Failed > 0 || res.Skipped > 0 || len(res.Errors) > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}
