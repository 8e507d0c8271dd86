// SPDX-License-Identifier: MIT

package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
)

type fakeUpstream struct {
	channels []dispatcharr.Channel
	patched  map[int]map[string]any
	patchErr error
	deleted  []int
}

func (f *fakeUpstream) Channels(_ context.Context) ([]dispatcharr.Channel, error) {
	return f.channels, nil
}

func (f *fakeUpstream) Channel(_ context.Context, id int) (*dispatcharr.Channel, error) {
	for i := range f.channels {
		if f.channels[i].ID == id {
			return &f.channels[i], nil
		}
	}
	return nil, &dispatcharr.APIError{Sentinel: dispatcharr.ErrNotFound, Operation: "channel", Status: 404}
}

func (f *fakeUpstream) UpdateChannel(_ context.Context, id int, patch map[string]any) (*dispatcharr.Channel, error) {
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	if f.patched == nil {
		f.patched = map[int]map[string]any{}
	}
	f.patched[id] = patch
	return nil, nil
}

func (f *fakeUpstream) DeleteChannel(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStore struct {
	rows       []domain.ManagedChannel
	groups     []domain.EventGroup
	backfilled map[int64]string
	statuses   map[int64]domain.SyncStatus
	updates    []string
	updated    []domain.ManagedChannel
	softDel    []int64
	adopted    []domain.ManagedChannel
}

func (f *fakeStore) ActiveChannels(_ context.Context) ([]domain.ManagedChannel, error) {
	return f.rows, nil
}

func (f *fakeStore) ListEventGroups(_ context.Context) ([]domain.EventGroup, error) {
	return f.groups, nil
}

func (f *fakeStore) BackfillChannelUUID(_ context.Context, id int64, uuid string) error {
	if f.backfilled == nil {
		f.backfilled = map[int64]string{}
	}
	f.backfilled[id] = uuid
	return nil
}

func (f *fakeStore) SetSyncStatus(_ context.Context, id int64, status domain.SyncStatus) error {
	if f.statuses == nil {
		f.statuses = map[int64]domain.SyncStatus{}
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeStore) UpdateManagedChannel(_ context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error {
	f.updated = append(f.updated, *ch)
	f.updates = append(f.updates, string(action)+": "+detail)
	return nil
}

func (f *fakeStore) SoftDeleteManagedChannel(_ context.Context, id int64, _ string) error {
	f.softDel = append(f.softDel, id)
	return nil
}

func (f *fakeStore) AdoptManagedChannel(_ context.Context, ch *domain.ManagedChannel, _ string) error {
	ch.ID = int64(len(f.adopted)) + 1
	f.adopted = append(f.adopted, *ch)
	return nil
}

func mergeGroup() domain.EventGroup {
	return domain.EventGroup{
		ID:             5,
		Name:           "NFL Sunday Ticket",
		AssignedLeague: domain.LeagueNFL,
		ChannelGroupID: 12,
		StreamMode:     domain.StreamModeMerge,
		Enabled:        true,
	}
}

func alignedPair() (domain.ManagedChannel, dispatcharr.Channel) {
	mc := domain.ManagedChannel{
		ID:                   1,
		EventGroupID:         5,
		DispatcharrChannelID: 101,
		DispatcharrUUID:      "u-1",
		DispatcharrStreamID:  11,
		ChannelNumber:        5001,
		ChannelName:          "NFL: Giants vs Cowboys",
		ESPNEventID:          "401547401",
		SyncStatus:           domain.SyncInSync,
	}
	up := dispatcharr.Channel{
		ID:             101,
		UUID:           "u-1",
		ChannelNumber:  5001,
		Name:           "NFL: Giants vs Cowboys",
		TvgID:          "teamarr-event-401547401",
		ChannelGroupID: 12,
	}
	return mc, up
}

func TestRun_CleanStateMutatesNothing(t *testing.T) {
	mc, up := alignedPair()
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, rep.Issues)
	assert.Equal(t, 0, rep.Fixed)
	assert.Equal(t, 0, rep.Backfilled)
	assert.Equal(t, 1, rep.ScannedLocal)
	assert.Equal(t, 1, rep.ScannedUpstream)

	assert.Empty(t, fs.backfilled)
	assert.Empty(t, fs.statuses)
	assert.Empty(t, fs.updates)
	assert.Empty(t, fs.softDel)
	assert.Empty(t, fu.patched)
	assert.Empty(t, fu.deleted)
}

func TestRun_BackfillsMissingUUID(t *testing.T) {
	mc, up := alignedPair()
	mc.DispatcharrUUID = ""
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Backfilled)
	assert.Equal(t, "u-1", fs.backfilled[1])
	assert.Empty(t, rep.Issues)
}

func TestRun_OrphanLocalMarkedDeleted(t *testing.T) {
	mc, up := alignedPair()
	mc.DispatcharrUUID = "u-gone"
	// The numeric id was reused by an unrelated channel; UUID identity
	// must not fall back to it.
	up.UUID = "u-other"
	up.TvgID = ""
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	iss := rep.Issues[0]
	assert.Equal(t, KindOrphanLocal, iss.Kind)
	assert.True(t, iss.Fixed)
	assert.Equal(t, []int64{1}, fs.softDel)
}

func TestRun_DriftFixed(t *testing.T) {
	mc, up := alignedPair()
	up.ChannelNumber = 5002
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	iss := rep.Issues[0]
	assert.Equal(t, KindDrift, iss.Kind)
	assert.Equal(t, []string{"channel_number"}, iss.Fields)
	assert.True(t, iss.Fixed)
	assert.Equal(t, 1, rep.Fixed)

	require.Contains(t, fu.patched, 101)
	assert.Equal(t, map[string]any{"channel_number": 5001.0}, fu.patched[101])

	require.Len(t, fs.updated, 1)
	assert.Equal(t, domain.SyncInSync, fs.updated[0].SyncStatus)
	assert.True(t, strings.Contains(fs.updates[0], "repaired"))
	assert.True(t, strings.Contains(fs.updates[0], "channel_number"))
}

func TestRun_DriftDetectOnly(t *testing.T) {
	mc, up := alignedPair()
	up.ChannelNumber = 5002
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: false}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	assert.False(t, rep.Issues[0].Fixed)
	assert.Equal(t, 0, rep.Fixed)
	assert.Empty(t, fu.patched)
	assert.Equal(t, domain.SyncDrifted, fs.statuses[1])
}

func TestRun_TvgIDAndGroupDrift(t *testing.T) {
	mc, up := alignedPair()
	up.TvgID = "wrong-id"
	up.ChannelGroupID = 99
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	assert.Equal(t, []string{"tvg_id", "channel_group_id"}, rep.Issues[0].Fields)
	assert.Equal(t, map[string]any{
		"tvg_id":           "teamarr-event-401547401",
		"channel_group_id": 12,
	}, fu.patched[101])
}

func TestRun_SeparateModeExpectsStreamSuffix(t *testing.T) {
	group := mergeGroup()
	group.StreamMode = domain.StreamModeSeparate
	mc, up := alignedPair()
	fu := &fakeUpstream{channels: []dispatcharr.Channel{up}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mc}, groups: []domain.EventGroup{group}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	assert.Equal(t, []string{"tvg_id"}, rep.Issues[0].Fields)
	assert.Equal(t, "teamarr-event-401547401-s11", fu.patched[101]["tvg_id"])
}

func TestRun_DuplicatesReportedNeverFixed(t *testing.T) {
	mcA, upA := alignedPair()
	mcB, upB := alignedPair()
	mcB.ID = 2
	mcB.DispatcharrChannelID = 102
	mcB.DispatcharrUUID = "u-2"
	upB.ID = 102
	upB.UUID = "u-2"

	fu := &fakeUpstream{channels: []dispatcharr.Channel{upA, upB}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mcA, mcB}, groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true, DeleteOrphans: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	iss := rep.Issues[0]
	assert.Equal(t, KindDuplicate, iss.Kind)
	assert.False(t, iss.Fixed)
	assert.Contains(t, iss.Detail, "1, 2")
	assert.Contains(t, iss.Detail, "manual review")
	assert.Equal(t, 0, rep.Fixed)
	assert.Empty(t, fu.deleted)
	assert.Empty(t, fs.softDel)
}

func TestRun_SeparateModeAllowsPerStreamRows(t *testing.T) {
	group := mergeGroup()
	group.StreamMode = domain.StreamModeSeparate

	mcA, upA := alignedPair()
	upA.TvgID = "teamarr-event-401547401-s11"
	mcB, upB := alignedPair()
	mcB.ID = 2
	mcB.DispatcharrChannelID = 102
	mcB.DispatcharrUUID = "u-2"
	mcB.DispatcharrStreamID = 12
	upB.ID = 102
	upB.UUID = "u-2"
	upB.TvgID = "teamarr-event-401547401-s12"

	fu := &fakeUpstream{channels: []dispatcharr.Channel{upA, upB}}
	fs := &fakeStore{rows: []domain.ManagedChannel{mcA, mcB}, groups: []domain.EventGroup{group}}

	rep, err := NewRunner(fu, fs, Options{FixDrift: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Issues)
}

func TestRun_UpstreamOrphanReported(t *testing.T) {
	orphan := dispatcharr.Channel{ID: 200, Name: "Stray", TvgID: "teamarr-event-999", ChannelGroupID: 12}
	foreign := dispatcharr.Channel{ID: 201, Name: "CNN", TvgID: "cnn.us"}
	fu := &fakeUpstream{channels: []dispatcharr.Channel{orphan, foreign}}
	fs := &fakeStore{groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	iss := rep.Issues[0]
	assert.Equal(t, KindOrphanUpstream, iss.Kind)
	assert.Equal(t, 200, iss.UpstreamID)
	assert.False(t, iss.Fixed)
	assert.Empty(t, fu.deleted)
}

func TestRun_UpstreamOrphanDeletedWhenGated(t *testing.T) {
	orphan := dispatcharr.Channel{ID: 200, Name: "Stray", TvgID: "teamarr-event-999"}
	fu := &fakeUpstream{channels: []dispatcharr.Channel{orphan}}
	fs := &fakeStore{groups: []domain.EventGroup{mergeGroup()}}

	rep, err := NewRunner(fu, fs, Options{DeleteOrphans: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Issues, 1)
	assert.True(t, rep.Issues[0].Fixed)
	assert.Equal(t, []int{200}, fu.deleted)
}

func TestAdopt(t *testing.T) {
	fu := &fakeUpstream{channels: []dispatcharr.Channel{{
		ID:             300,
		UUID:           "u-3",
		Name:           "NFL: Giants vs Cowboys",
		ChannelNumber:  803,
		TvgID:          "teamarr-event-401547401-s11",
		ChannelGroupID: 12,
		Streams:        []int{11, 12},
	}}}
	fs := &fakeStore{groups: []domain.EventGroup{mergeGroup()}}
	r := NewRunner(fu, fs, Options{})

	mc, err := r.Adopt(context.Background(), 300)
	require.NoError(t, err)

	assert.Equal(t, int64(5), mc.EventGroupID)
	assert.Equal(t, "401547401", mc.ESPNEventID)
	assert.Equal(t, 11, mc.DispatcharrStreamID)
	assert.Equal(t, "u-3", mc.DispatcharrUUID)
	assert.Equal(t, domain.SyncInSync, mc.SyncStatus)
	assert.Len(t, fs.adopted, 1)
}

func TestAdopt_RejectsForeignChannel(t *testing.T) {
	fu := &fakeUpstream{channels: []dispatcharr.Channel{{ID: 301, TvgID: "cnn.us"}}}
	fs := &fakeStore{groups: []domain.EventGroup{mergeGroup()}}

	_, err := NewRunner(fu, fs, Options{}).Adopt(context.Background(), 301)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an event id")
	assert.Empty(t, fs.adopted)
}

func TestAdopt_NoOwningGroup(t *testing.T) {
	fu := &fakeUpstream{channels: []dispatcharr.Channel{{
		ID: 302, TvgID: "teamarr-event-7", ChannelGroupID: 99,
	}}}
	fs := &fakeStore{groups: []domain.EventGroup{mergeGroup()}}

	_, err := NewRunner(fu, fs, Options{}).Adopt(context.Background(), 302)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no event group")
}

func TestParseEventTvgID(t *testing.T) {
	tests := []struct {
		in       string
		eventID  string
		streamID int
		ok       bool
	}{
		{"teamarr-event-401547401", "401547401", 0, true},
		{"teamarr-event-401547401-s11", "401547401", 11, true},
		{"teamarr-event-600-sb-55", "600-sb-55", 0, true},
		{"teamarr-team-1", "", 0, false},
		{"teamarr-event-", "", 0, false},
		{"espn.nfl", "", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range tests {
		eventID, streamID, ok := parseEventTvgID(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.eventID, eventID, tc.in)
		assert.Equal(t, tc.streamID, streamID, tc.in)
	}
}
