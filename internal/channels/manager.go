// SPDX-License-Identifier: MIT

package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/telemetry"
)

// Upstream is the slice of the Dispatcharr client the lifecycle drives.
type Upstream interface {
	CreateChannel(ctx context.Context, req dispatcharr.ChannelCreate) (*dispatcharr.Channel, error)
	DeleteChannel(ctx context.Context, id int) error
	SetChannelEPG(ctx context.Context, channelID, epgDataID int) error
	SetProfileChannelEnabled(ctx context.Context, profileID, channelID int, enabled bool) error
	EnsureLogo(ctx context.Context, name, logoURL string) (*dispatcharr.Logo, error)
	DeleteLogo(ctx context.Context, id int) error
	EPGDataForTvgID(ctx context.Context, tvgID string) (*dispatcharr.EPGData, error)
	EPGDataByName(ctx context.Context, sourceID int, name string) (*dispatcharr.EPGData, error)
}

// Store is the persistence surface the lifecycle records into.
type Store interface {
	CreateManagedChannel(ctx context.Context, ch *domain.ManagedChannel, detail string) error
	UpdateManagedChannel(ctx context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error
	SoftDeleteManagedChannel(ctx context.Context, id int64, detail string) error
	ActiveChannelsForGroup(ctx context.Context, groupID int64) ([]domain.ManagedChannel, error)
	DueForDeletion(ctx context.Context, now time.Time) ([]domain.ManagedChannel, error)
	NextChannelNumber(ctx context.Context, groupID int64, start float64) (float64, error)
	LogoReferenced(ctx context.Context, logoID int, excludeChannelID int64) (bool, error)
}

// Manager applies lifecycle policy for one run: creates channels whose
// timing allows, keeps deletion schedules current, and removes channels
// whose time is up. Per-channel failures are collected, not fatal.
type Manager struct {
	up       Upstream
	st       Store
	loc      *time.Location
	profiles []int
	logger   zerolog.Logger
}

// NewManager builds a lifecycle manager. profileIDs lists the stream
// profiles new channels are enabled on.
func NewManager(up Upstream, st Store, loc *time.Location, profileIDs []int) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		up:       up,
		st:       st,
		loc:      loc,
		profiles: profileIDs,
		logger:   log.WithComponent("channels"),
	}
}

// SyncInput is one group's state for a lifecycle pass.
type SyncInput struct {
	Group domain.EventGroup
	// Plans are the generator's channels for this run: matched events
	// plus exception keywords.
	Plans []epg.EventChannel
	// Streams is the upstream group's full current listing.
	Streams []dispatcharr.Stream
	// Unmatched is the subset no event or keyword claimed.
	Unmatched []dispatcharr.Stream
	Now       time.Time
}

// SyncResult counts what one pass did.
type SyncResult struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Errors  []error
}

// draft is the creation payload for one channel, unified across event,
// exception and unmatched channels.
type draft struct {
	tvgID     string
	name      string
	logo      string
	streams   []int
	event     *domain.Event
	exception string
	unmatched bool
	duration  float64
}

// Sync runs one lifecycle pass for a group.
func (m *Manager) Sync(ctx context.Context, in SyncInput) (*SyncResult, error) {
	ctx, span := telemetry.Tracer("teamarr.channels").Start(ctx, "teamarr.channels.sync")
	span.SetAttributes(attribute.String(telemetry.ChannelGroupKey, in.Group.Name))
	defer span.End()

	res := &SyncResult{}
	existing, err := m.st.ActiveChannelsForGroup(ctx, in.Group.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load managed channels")
		return nil, fmt.Errorf("load managed channels for group %d: %w", in.Group.ID, err)
	}
	idx := buildIndex(existing)

	for _, plan := range in.Plans {
		mc := idx.forPlan(in.Group, plan)
		if mc == nil {
			if !m.createAllowed(in.Group, plan, in.Now) {
				res.Skipped++
				continue
			}
			if err := m.create(ctx, in.Group, draftFromPlan(plan)); err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			res.Created++
			continue
		}
		if updated, err := m.refresh(ctx, in.Group, plan, mc); err != nil {
			res.Errors = append(res.Errors, err)
		} else if updated {
			res.Updated++
		}
	}

	if in.Group.CreateUnmatchedChannels && in.Group.CreateTiming != domain.CreateManual {
		for _, s := range in.Unmatched {
			if idx.byStream[s.ID] != nil {
				continue
			}
			d := draft{name: s.Name, streams: []int{s.ID}, unmatched: true}
			if err := m.create(ctx, in.Group, d); err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			res.Created++
		}
	}

	m.removeVanished(ctx, in, existing, res)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// removeVanished deletes channels whose stream disappeared upstream.
// Event channels are diffed only under stream_removed timing; unmatched
// and exception channels are diffed under every timing but manual, since
// the stream is the only thing keeping them alive. A channel survives as
// long as its stream exists, and merge-mode channels also survive while
// the event still has any planned feed.
func (m *Manager) removeVanished(ctx context.Context, in SyncInput, existing []domain.ManagedChannel, res *SyncResult) {
	if in.Group.DeleteTiming == domain.DeleteManual {
		return
	}
	current := make(map[int]bool, len(in.Streams))
	for _, s := range in.Streams {
		current[s.ID] = true
	}
	plannedEvents := make(map[string]bool)
	plannedKeywords := make(map[string]bool)
	for _, p := range in.Plans {
		if p.Exception != "" {
			plannedKeywords[p.Exception] = true
		} else if p.Event != nil {
			plannedEvents[p.Event.ID] = true
		}
	}

	for i := range existing {
		mc := existing[i]
		if current[mc.DispatcharrStreamID] {
			continue
		}
		switch {
		case mc.IsException():
			if plannedKeywords[mc.ExceptionKeyword] {
				continue
			}
		case mc.Unmatched:
			// stream gone is reason enough
		default:
			if in.Group.DeleteTiming != domain.DeleteStreamRemoved {
				continue
			}
			if plannedEvents[mc.ESPNEventID] {
				continue
			}
		}
		if err := m.remove(ctx, mc, "stream_removed", "stream removed upstream"); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Deleted++
	}
}

func draftFromPlan(plan epg.EventChannel) draft {
	streams := make([]int, 0, len(plan.Streams))
	for _, s := range plan.Streams {
		streams = append(streams, s.StreamID)
	}
	return draft{
		tvgID:     plan.ID,
		name:      plan.Name,
		logo:      plan.Logo,
		streams:   streams,
		event:     plan.Event,
		exception: plan.Exception,
		duration:  plan.DurationHours,
	}
}

// createAllowed gates creation by the group's timing. Exception channels
// have no event date and follow stream availability.
func (m *Manager) createAllowed(group domain.EventGroup, plan epg.EventChannel, now time.Time) bool {
	if group.CreateTiming == domain.CreateManual {
		return false
	}
	if plan.Event == nil {
		return true
	}
	return CreateAllowed(group.CreateTiming, plan.Event.StartTime, now, m.loc)
}

// create provisions one upstream channel and records it. Every step
// after upstream creation rolls the channel back on failure so a crash
// mid-flow never leaves an untracked channel.
func (m *Manager) create(ctx context.Context, group domain.EventGroup, d draft) error {
	if len(d.streams) == 0 {
		return fmt.Errorf("channel %q: no streams", d.name)
	}
	number, err := m.st.NextChannelNumber(ctx, group.ID, group.ChannelStart)
	if err != nil {
		return fmt.Errorf("allocate channel number: %w", err)
	}

	var logoID *int
	if d.logo != "" {
		logo, err := m.up.EnsureLogo(ctx, d.name, d.logo)
		if err != nil {
			m.logger.Warn().Err(err).Str("channel", d.name).Msg("logo upload failed; creating without")
		} else {
			logoID = &logo.ID
		}
	}

	created, err := m.up.CreateChannel(ctx, dispatcharr.ChannelCreate{
		Name:           d.name,
		ChannelNumber:  number,
		ChannelGroupID: group.ChannelGroupID,
		TvgID:          d.tvgID,
		Streams:        d.streams,
		LogoID:         logoID,
	})
	if err != nil {
		return fmt.Errorf("create channel %q: %w", d.name, err)
	}

	if err := m.finalize(ctx, group, d, created, number, logoID); err != nil {
		if derr := m.up.DeleteChannel(ctx, created.ID); derr != nil {
			m.logger.Error().Err(derr).
				Int("channel_id", created.ID).
				Msg("rollback failed; upstream channel leaked")
		}
		return err
	}

	metrics.IncChannelCreated()
	trace.SpanFromContext(ctx).AddEvent("channel.created", trace.WithAttributes(
		telemetry.ChannelAttributes(created.ID, created.UUID, group.Name, number)...))
	m.logger.Info().
		Str("channel", d.name).
		Float64("number", number).
		Str("tvg_id", d.tvgID).
		Msg("channel created")
	return nil
}

// finalize runs the post-creation steps: guide attachment, profile
// enablement, and the local record.
func (m *Manager) finalize(ctx context.Context, group domain.EventGroup, d draft, created *dispatcharr.Channel, number float64, logoID *int) error {
	if err := m.attachGuide(ctx, group, d, created.ID); err != nil {
		return err
	}
	for _, pid := range m.profiles {
		if err := m.up.SetProfileChannelEnabled(ctx, pid, created.ID, true); err != nil {
			return fmt.Errorf("enable channel %q on profile %d: %w", d.name, pid, err)
		}
	}

	mc := &domain.ManagedChannel{
		EventGroupID:         group.ID,
		DispatcharrChannelID: created.ID,
		DispatcharrUUID:      created.UUID,
		DispatcharrStreamID:  d.streams[0],
		ChannelNumber:        number,
		ChannelName:          d.name,
		LogoID:               logoID,
		SyncStatus:           domain.SyncInSync,
		ExceptionKeyword:     d.exception,
		Unmatched:            d.unmatched,
	}
	detail := "created"
	if d.event != nil {
		mc.ESPNEventID = d.event.ID
		mc.EventDate = d.event.LocalDate(m.loc)
		mc.ScheduledDeleteAt = DeleteAt(group.DeleteTiming, d.event.EndTime(d.duration), m.loc)
		detail = "created for event " + d.event.ID
	} else if d.exception != "" {
		detail = "created for keyword " + d.exception
	} else if d.unmatched {
		detail = "created for unmatched stream"
	}
	if err := m.st.CreateManagedChannel(ctx, mc, detail); err != nil {
		return fmt.Errorf("record channel %q: %w", d.name, err)
	}
	return nil
}

// attachGuide points the channel at its guide record. Generated channels
// resolve by tvg_id; a tvg_id not yet imported defers to the next run.
// Unmatched passthrough channels resolve by name inside the group's
// alternate source.
func (m *Manager) attachGuide(ctx context.Context, group domain.EventGroup, d draft, channelID int) error {
	var (
		data *dispatcharr.EPGData
		err  error
	)
	switch {
	case d.tvgID != "":
		data, err = m.up.EPGDataForTvgID(ctx, d.tvgID)
	case d.unmatched && group.UnmatchedChannelEPGSourceID != nil:
		data, err = m.up.EPGDataByName(ctx, *group.UnmatchedChannelEPGSourceID, d.name)
	default:
		return nil
	}
	if errors.Is(err, dispatcharr.ErrNotFound) {
		m.logger.Debug().Str("channel", d.name).Msg("guide data not imported yet; attaching next run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve guide data for %q: %w", d.name, err)
	}
	if err := m.up.SetChannelEPG(ctx, channelID, data.ID); err != nil {
		return fmt.Errorf("attach guide to %q: %w", d.name, err)
	}
	return nil
}

// refresh recomputes the deletion schedule of an existing channel so
// group setting changes apply to channels created under old settings.
func (m *Manager) refresh(ctx context.Context, group domain.EventGroup, plan epg.EventChannel, mc *domain.ManagedChannel) (bool, error) {
	if plan.Event == nil {
		return false, nil
	}
	want := DeleteAt(group.DeleteTiming, plan.Event.EndTime(plan.DurationHours), m.loc)
	if timesEqual(mc.ScheduledDeleteAt, want) {
		return false, nil
	}
	mc.ScheduledDeleteAt = want
	if err := m.st.UpdateManagedChannel(ctx, mc, domain.HistoryUpdated, "delete schedule recomputed"); err != nil {
		return false, fmt.Errorf("update channel %q: %w", mc.ChannelName, err)
	}
	return true, nil
}

// SweepDue removes every channel whose scheduled deletion has passed.
func (m *Manager) SweepDue(ctx context.Context, now time.Time) (int, []error) {
	due, err := m.st.DueForDeletion(ctx, now)
	if err != nil {
		return 0, []error{fmt.Errorf("load due deletions: %w", err)}
	}
	var errs []error
	removed := 0
	for _, mc := range due {
		if err := m.remove(ctx, mc, "scheduled", "scheduled delete reached"); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// remove deletes upstream first, then soft-deletes the local row, then
// cleans the logo if nothing else references it. An upstream 404 counts
// as already deleted. cause is a low-cardinality metric label; detail is
// the history text.
func (m *Manager) remove(ctx context.Context, mc domain.ManagedChannel, cause, detail string) error {
	if err := m.up.DeleteChannel(ctx, mc.DispatcharrChannelID); err != nil && !errors.Is(err, dispatcharr.ErrNotFound) {
		return fmt.Errorf("delete upstream channel %d: %w", mc.DispatcharrChannelID, err)
	}
	if err := m.st.SoftDeleteManagedChannel(ctx, mc.ID, detail); err != nil {
		return fmt.Errorf("soft-delete channel %q: %w", mc.ChannelName, err)
	}
	metrics.IncChannelDeleted(cause)
	if mc.LogoID != nil {
		referenced, err := m.st.LogoReferenced(ctx, *mc.LogoID, mc.ID)
		if err != nil {
			m.logger.Warn().Err(err).Int("logo_id", *mc.LogoID).Msg("logo reference check failed")
		} else if !referenced {
			if err := m.up.DeleteLogo(ctx, *mc.LogoID); err != nil {
				m.logger.Warn().Err(err).Int("logo_id", *mc.LogoID).Msg("logo cleanup failed")
			}
		}
	}
	m.logger.Info().Str("channel", mc.ChannelName).Str("reason", detail).Msg("channel removed")
	return nil
}

// RepairEPG attaches guide data to managed channels that were created
// before their tvg_id had been imported. The caller passes the upstream
// listing it already holds.
func (m *Manager) RepairEPG(ctx context.Context, upstream []dispatcharr.Channel) int {
	repaired := 0
	for _, ch := range upstream {
		if ch.EPGDataID != nil || ch.TvgID == "" {
			continue
		}
		if !managedTvgID(ch.TvgID) {
			continue
		}
		data, err := m.up.EPGDataForTvgID(ctx, ch.TvgID)
		if err != nil {
			continue
		}
		if err := m.up.SetChannelEPG(ctx, ch.ID, data.ID); err != nil {
			m.logger.Warn().Err(err).Str("tvg_id", ch.TvgID).Msg("guide attach failed")
			continue
		}
		repaired++
	}
	return repaired
}

// ExpectedTvgID is the tvg_id a managed channel should carry upstream,
// derived the same way the generator derives channel ids.
func ExpectedTvgID(group domain.EventGroup, mc domain.ManagedChannel) string {
	switch {
	case mc.IsException():
		return epg.ExceptionChannelID(group.ID, mc.ExceptionKeyword)
	case mc.Unmatched:
		return ""
	case group.StreamMode == domain.StreamModeSeparate:
		return epg.StreamChannelID(mc.ESPNEventID, mc.DispatcharrStreamID)
	default:
		return epg.EventChannelID(mc.ESPNEventID)
	}
}

func managedTvgID(tvgID string) bool {
	for _, prefix := range []string{epg.EventIDPrefix, epg.TeamIDPrefix, epg.ExceptionIDPrefix} {
		if len(tvgID) > len(prefix) && tvgID[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// index finds existing managed channels for this run's plans.
type index struct {
	byEvent       map[string]*domain.ManagedChannel
	byEventStream map[string]*domain.ManagedChannel
	byKeyword     map[string]*domain.ManagedChannel
	byStream      map[int]*domain.ManagedChannel
}

func buildIndex(existing []domain.ManagedChannel) index {
	idx := index{
		byEvent:       make(map[string]*domain.ManagedChannel),
		byEventStream: make(map[string]*domain.ManagedChannel),
		byKeyword:     make(map[string]*domain.ManagedChannel),
		byStream:      make(map[int]*domain.ManagedChannel),
	}
	for i := range existing {
		mc := &existing[i]
		switch {
		case mc.IsException():
			idx.byKeyword[mc.ExceptionKeyword] = mc
		case mc.Unmatched:
			idx.byStream[mc.DispatcharrStreamID] = mc
		case mc.ESPNEventID != "":
			idx.byEvent[mc.ESPNEventID] = mc
			idx.byEventStream[eventStreamKey(mc.ESPNEventID, mc.DispatcharrStreamID)] = mc
		}
	}
	return idx
}

func (idx index) forPlan(group domain.EventGroup, plan epg.EventChannel) *domain.ManagedChannel {
	switch {
	case plan.Exception != "":
		return idx.byKeyword[plan.Exception]
	case plan.Event == nil:
		return nil
	case group.StreamMode == domain.StreamModeSeparate:
		return idx.byEventStream[eventStreamKey(plan.Event.ID, plan.Streams[0].StreamID)]
	default:
		return idx.byEvent[plan.Event.ID]
	}
}

func eventStreamKey(eventID string, streamID int) string {
	return fmt.Sprintf("%s#%d", eventID, streamID)
}
