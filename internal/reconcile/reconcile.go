// SPDX-License-Identifier: MIT

// Package reconcile detects divergence between the managed channel
// records and the channels Dispatcharr actually has, then repairs what
// its gates allow. Identity is UUID first; rows without one fall back to
// the numeric channel id and get the UUID backfilled during the scan.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/channels"
	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
)

// Kind classifies a reconciliation finding.
type Kind string

const (
	// KindOrphanLocal is a managed row whose upstream channel is gone.
	KindOrphanLocal Kind = "orphan_teamarr"
	// KindOrphanUpstream is an upstream channel carrying our tvg_id
	// prefix with no managed row behind it.
	KindOrphanUpstream Kind = "orphan_dispatcharr"
	// KindDuplicate is two or more live rows for one event in a
	// non-separate group.
	KindDuplicate Kind = "duplicate"
	// KindDrift is an upstream channel that no longer matches the
	// number, tvg_id or group its managed row expects.
	KindDrift Kind = "drift"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOrphanLocal, KindOrphanUpstream, KindDuplicate, KindDrift:
		return true
	default:
		return false
	}
}

// Issue is one finding, with the fix outcome when a gate allowed one.
type Issue struct {
	Kind       Kind     `json:"kind"`
	LocalID    int64    `json:"local_id,omitempty"`
	UpstreamID int      `json:"upstream_id,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Fixed      bool     `json:"fixed"`
}

// Report summarizes one reconciliation pass. A pass over a clean state
// has no issues and performs no writes.
type Report struct {
	ScannedLocal    int      `json:"scanned_local"`
	ScannedUpstream int      `json:"scanned_upstream"`
	Backfilled      int      `json:"backfilled"`
	Issues          []Issue  `json:"issues"`
	Fixed           int      `json:"fixed"`
	Errors          []string `json:"errors,omitempty"`
}

// Options gates auto-fixing per issue kind. Duplicates are never fixed
// automatically; they need a human to decide which row survives.
type Options struct {
	// FixDrift patches drifted upstream channels back to the managed
	// row's expectation. Safe, on by default.
	FixDrift bool
	// DeleteOrphans removes upstream channels that carry our tvg_id
	// prefix but have no managed row. Off by default: adoption may be
	// the wanted remedy.
	DeleteOrphans bool
}

// Upstream is the slice of the Dispatcharr client reconciliation uses.
type Upstream interface {
	Channels(ctx context.Context) ([]dispatcharr.Channel, error)
	Channel(ctx context.Context, id int) (*dispatcharr.Channel, error)
	UpdateChannel(ctx context.Context, id int, patch map[string]any) (*dispatcharr.Channel, error)
	DeleteChannel(ctx context.Context, id int) error
}

// Store is the persistence surface reconciliation reads and repairs.
type Store interface {
	ActiveChannels(ctx context.Context) ([]domain.ManagedChannel, error)
	ListEventGroups(ctx context.Context) ([]domain.EventGroup, error)
	BackfillChannelUUID(ctx context.Context, id int64, uuid string) error
	SetSyncStatus(ctx context.Context, id int64, status domain.SyncStatus) error
	UpdateManagedChannel(ctx context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error
	SoftDeleteManagedChannel(ctx context.Context, id int64, detail string) error
	AdoptManagedChannel(ctx context.Context, ch *domain.ManagedChannel, detail string) error
}

// Runner walks both sides once per pass.
type Runner struct {
	up     Upstream
	st     Store
	opts   Options
	logger zerolog.Logger
}

// NewRunner builds a reconciliation runner with the given gates.
func NewRunner(up Upstream, st Store, opts Options) *Runner {
	return &Runner{up: up, st: st, opts: opts, logger: log.WithComponent("reconcile")}
}

// Run scans and applies whatever fixes the gates allow.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	upstream, err := r.up.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list upstream channels: %w", err)
	}
	local, err := r.st.ActiveChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list managed channels: %w", err)
	}
	groups, err := r.st.ListEventGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	groupByID := make(map[int64]domain.EventGroup, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}

	rep := &Report{ScannedLocal: len(local), ScannedUpstream: len(upstream)}

	byUUID := make(map[string]*dispatcharr.Channel, len(upstream))
	byID := make(map[int]*dispatcharr.Channel, len(upstream))
	for i := range upstream {
		ch := &upstream[i]
		if ch.UUID != "" {
			byUUID[ch.UUID] = ch
		}
		byID[ch.ID] = ch
	}

	claimed := make(map[int]bool, len(local))
	for i := range local {
		mc := local[i]
		found := r.resolve(ctx, rep, &mc, byUUID, byID)
		if found == nil {
			r.orphanLocal(ctx, rep, mc)
			continue
		}
		claimed[found.ID] = true
		group, ok := groupByID[mc.EventGroupID]
		if !ok {
			r.logger.Warn().
				Int64("group_id", mc.EventGroupID).
				Str("channel", mc.ChannelName).
				Msg("managed channel without a group; drift check skipped")
			continue
		}
		r.checkDrift(ctx, rep, group, mc, found)
	}

	r.findDuplicates(rep, local, groupByID)
	r.scanUpstreamOrphans(ctx, rep, upstream, claimed)

	counts := map[Kind]int{}
	for _, iss := range rep.Issues {
		counts[iss.Kind]++
		if iss.Kind != KindDuplicate {
			outcome := "skipped"
			if iss.Fixed {
				outcome = "fixed"
			}
			metrics.IncReconcileFix(string(iss.Kind), outcome)
		}
	}
	for kind, n := range counts {
		metrics.RecordReconcileIssues(string(kind), n)
	}

	if len(rep.Issues) > 0 || rep.Backfilled > 0 {
		r.logger.Info().
			Int("issues", len(rep.Issues)).
			Int("fixed", rep.Fixed).
			Int("backfilled", rep.Backfilled).
			Msg("reconciliation pass done")
	}
	return rep, nil
}

// resolve finds the upstream channel for a row. A row with a UUID is
// matched by UUID alone: the numeric id can be reused by an unrelated
// channel after deletion. Rows without a UUID match by id and get the
// UUID backfilled.
func (r *Runner) resolve(ctx context.Context, rep *Report, mc *domain.ManagedChannel, byUUID map[string]*dispatcharr.Channel, byID map[int]*dispatcharr.Channel) *dispatcharr.Channel {
	if mc.DispatcharrUUID != "" {
		return byUUID[mc.DispatcharrUUID]
	}
	ch := byID[mc.DispatcharrChannelID]
	if ch != nil && ch.UUID != "" {
		if err := r.st.BackfillChannelUUID(ctx, mc.ID, ch.UUID); err != nil {
			r.logger.Warn().Err(err).Int64("id", mc.ID).Msg("uuid backfill failed")
		} else {
			mc.DispatcharrUUID = ch.UUID
			rep.Backfilled++
		}
	}
	return ch
}

func (r *Runner) orphanLocal(ctx context.Context, rep *Report, mc domain.ManagedChannel) {
	iss := Issue{
		Kind:       KindOrphanLocal,
		LocalID:    mc.ID,
		UpstreamID: mc.DispatcharrChannelID,
		Channel:    mc.ChannelName,
		Detail:     "upstream channel missing",
	}
	if err := r.st.SoftDeleteManagedChannel(ctx, mc.ID, "reconcile: upstream channel missing"); err != nil {
		rep.Errors = append(rep.Errors, fmt.Sprintf("mark %q deleted: %v", mc.ChannelName, err))
	} else {
		iss.Fixed = true
		rep.Fixed++
	}
	rep.Issues = append(rep.Issues, iss)
}

func (r *Runner) checkDrift(ctx context.Context, rep *Report, group domain.EventGroup, mc domain.ManagedChannel, up *dispatcharr.Channel) {
	patch := map[string]any{}
	var fields []string
	if up.ChannelNumber != mc.ChannelNumber {
		fields = append(fields, "channel_number")
		patch["channel_number"] = mc.ChannelNumber
	}
	if want := channels.ExpectedTvgID(group, mc); want != "" && up.TvgID != want {
		fields = append(fields, "tvg_id")
		patch["tvg_id"] = want
	}
	if up.ChannelGroupID != group.ChannelGroupID {
		fields = append(fields, "channel_group_id")
		patch["channel_group_id"] = group.ChannelGroupID
	}
	if len(fields) == 0 {
		return
	}

	iss := Issue{
		Kind:       KindDrift,
		LocalID:    mc.ID,
		UpstreamID: up.ID,
		Channel:    mc.ChannelName,
		Fields:     fields,
	}
	defer func() { rep.Issues = append(rep.Issues, iss) }()

	if !r.opts.FixDrift {
		if err := r.st.SetSyncStatus(ctx, mc.ID, domain.SyncDrifted); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("mark %q drifted: %v", mc.ChannelName, err))
		}
		return
	}
	if _, err := r.up.UpdateChannel(ctx, up.ID, patch); err != nil {
		rep.Errors = append(rep.Errors, fmt.Sprintf("fix drift on %q: %v", mc.ChannelName, err))
		if serr := r.st.SetSyncStatus(ctx, mc.ID, domain.SyncDrifted); serr != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("mark %q drifted: %v", mc.ChannelName, serr))
		}
		return
	}
	mc.SyncStatus = domain.SyncInSync
	if err := r.st.UpdateManagedChannel(ctx, &mc, domain.HistoryRepaired, "drift fixed: "+strings.Join(fields, ", ")); err != nil {
		rep.Errors = append(rep.Errors, fmt.Sprintf("record repair of %q: %v", mc.ChannelName, err))
		return
	}
	iss.Fixed = true
	rep.Fixed++
}

// findDuplicates flags events held by more than one live row in merge
// groups. Which row survives is a judgement call, so these are reported
// and never auto-fixed.
func (r *Runner) findDuplicates(rep *Report, local []domain.ManagedChannel, groups map[int64]domain.EventGroup) {
	type key struct {
		event   string
		groupID int64
	}
	byKey := make(map[key][]domain.ManagedChannel)
	for _, mc := range local {
		if mc.ESPNEventID == "" {
			continue
		}
		g, ok := groups[mc.EventGroupID]
		if !ok || g.StreamMode == domain.StreamModeSeparate {
			continue
		}
		k := key{mc.ESPNEventID, mc.EventGroupID}
		byKey[k] = append(byKey[k], mc)
	}

	keys := make([]key, 0, len(byKey))
	for k, rows := range byKey {
		if len(rows) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].groupID != keys[j].groupID {
			return keys[i].groupID < keys[j].groupID
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		rows := byKey[k]
		ids := make([]string, 0, len(rows))
		for _, mc := range rows {
			ids = append(ids, strconv.FormatInt(mc.ID, 10))
		}
		rep.Issues = append(rep.Issues, Issue{
			Kind:    KindDuplicate,
			LocalID: rows[0].ID,
			Channel: rows[0].ChannelName,
			Detail: fmt.Sprintf("event %s held by rows %s; merge needs manual review",
				k.event, strings.Join(ids, ", ")),
		})
	}
}

func (r *Runner) scanUpstreamOrphans(ctx context.Context, rep *Report, upstream []dispatcharr.Channel, claimed map[int]bool) {
	for i := range upstream {
		ch := upstream[i]
		if !strings.HasPrefix(ch.TvgID, epg.EventIDPrefix) || claimed[ch.ID] {
			continue
		}
		iss := Issue{
			Kind:       KindOrphanUpstream,
			UpstreamID: ch.ID,
			Channel:    ch.Name,
			Detail:     "no managed row for " + ch.TvgID,
		}
		if r.opts.DeleteOrphans {
			if err := r.up.DeleteChannel(ctx, ch.ID); err != nil && !errors.Is(err, dispatcharr.ErrNotFound) {
				rep.Errors = append(rep.Errors, fmt.Sprintf("delete orphan %d: %v", ch.ID, err))
			} else {
				iss.Fixed = true
				rep.Fixed++
			}
		}
		rep.Issues = append(rep.Issues, iss)
	}
}

// Adopt takes ownership of an upstream orphan: a channel carrying our
// event tvg_id prefix with no managed row. The row is rebuilt from the
// channel itself, with the group inferred from its upstream channel
// group. Hand-driven; the scanner only reports these.
func (r *Runner) Adopt(ctx context.Context, upstreamID int) (*domain.ManagedChannel, error) {
	ch, err := r.up.Channel(ctx, upstreamID)
	if err != nil {
		return nil, fmt.Errorf("load upstream channel %d: %w", upstreamID, err)
	}
	eventID, streamID, ok := parseEventTvgID(ch.TvgID)
	if !ok {
		return nil, fmt.Errorf("channel %d: tvg_id %q is not an event id", upstreamID, ch.TvgID)
	}
	groups, err := r.st.ListEventGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	var group *domain.EventGroup
	for i := range groups {
		if groups[i].ChannelGroupID == ch.ChannelGroupID {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		return nil, fmt.Errorf("channel %d: no event group owns channel group %d", upstreamID, ch.ChannelGroupID)
	}
	if streamID == 0 && len(ch.Streams) > 0 {
		streamID = ch.Streams[0]
	}

	mc := &domain.ManagedChannel{
		EventGroupID:         group.ID,
		DispatcharrChannelID: ch.ID,
		DispatcharrUUID:      ch.UUID,
		DispatcharrStreamID:  streamID,
		ChannelNumber:        ch.ChannelNumber,
		ChannelName:          ch.Name,
		ESPNEventID:          eventID,
		SyncStatus:           domain.SyncInSync,
	}
	if err := r.st.AdoptManagedChannel(ctx, mc, "adopted upstream channel "+strconv.Itoa(ch.ID)); err != nil {
		return nil, fmt.Errorf("record adoption: %w", err)
	}
	r.logger.Info().Str("channel", ch.Name).Int("upstream_id", ch.ID).Msg("channel adopted")
	return mc, nil
}

// parseEventTvgID splits the "teamarr-event-<id>" and separate-mode
// "teamarr-event-<id>-s<streamID>" forms.
func parseEventTvgID(tvgID string) (eventID string, streamID int, ok bool) {
	rest, found := strings.CutPrefix(tvgID, epg.EventIDPrefix)
	if !found || rest == "" {
		return "", 0, false
	}
	if i := strings.LastIndex(rest, "-s"); i > 0 {
		if n, err := strconv.Atoi(rest[i+2:]); err == nil {
			return rest[:i], n, true
		}
	}
	return rest, 0, true
}
