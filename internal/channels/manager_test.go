// SPDX-License-Identifier: MIT

package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/epg"
)

type fakeUpstream struct {
	nextChannelID int
	created       []dispatcharr.ChannelCreate
	deleted       []int
	deleteErr     error
	epgAttached   map[int]int
	profileOn     []string
	profileErr    error
	logoErr       error
	logoNextID    int
	logosDeleted  []int
	guideByTvgID  map[string]int
	guideByName   map[string]int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nextChannelID: 100,
		logoNextID:    500,
		epgAttached:   map[int]int{},
		guideByTvgID:  map[string]int{},
		guideByName:   map[string]int{},
	}
}

func notFound(op string) error {
	return &dispatcharr.APIError{Sentinel: dispatcharr.ErrNotFound, Operation: op, Status: 404}
}

func (f *fakeUpstream) CreateChannel(_ context.Context, req dispatcharr.ChannelCreate) (*dispatcharr.Channel, error) {
	f.nextChannelID++
	f.created = append(f.created, req)
	return &dispatcharr.Channel{
		ID:            f.nextChannelID,
		ChannelNumber: req.ChannelNumber,
		Name:          req.Name,
		TvgID:         req.TvgID,
		UUID:          fmt.Sprintf("uuid-%d", f.nextChannelID),
		Streams:       req.Streams,
	}, nil
}

func (f *fakeUpstream) DeleteChannel(_ context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUpstream) SetChannelEPG(_ context.Context, channelID, epgDataID int) error {
	f.epgAttached[channelID] = epgDataID
	return nil
}

func (f *fakeUpstream) SetProfileChannelEnabled(_ context.Context, profileID, channelID int, enabled bool) error {
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profileOn = append(f.profileOn, fmt.Sprintf("%d:%d:%t", profileID, channelID, enabled))
	return nil
}

func (f *fakeUpstream) EnsureLogo(_ context.Context, name, logoURL string) (*dispatcharr.Logo, error) {
	if f.logoErr != nil {
		return nil, f.logoErr
	}
	f.logoNextID++
	return &dispatcharr.Logo{ID: f.logoNextID, Name: name, URL: logoURL}, nil
}

func (f *fakeUpstream) DeleteLogo(_ context.Context, id int) error {
	f.logosDeleted = append(f.logosDeleted, id)
	return nil
}

func (f *fakeUpstream) EPGDataForTvgID(_ context.Context, tvgID string) (*dispatcharr.EPGData, error) {
	id, ok := f.guideByTvgID[tvgID]
	if !ok {
		return nil, notFound("epg data " + tvgID)
	}
	return &dispatcharr.EPGData{ID: id, TvgID: tvgID}, nil
}

func (f *fakeUpstream) EPGDataByName(_ context.Context, sourceID int, name string) (*dispatcharr.EPGData, error) {
	id, ok := f.guideByName[name]
	if !ok {
		return nil, notFound("epg data named " + name)
	}
	return &dispatcharr.EPGData{ID: id, Name: name, EPGSource: sourceID}, nil
}

type fakeStore struct {
	rows        []domain.ManagedChannel
	nextRowID   int64
	createErr   error
	creates     []domain.ManagedChannel
	details     []string
	updatedRows []domain.ManagedChannel
	updates     []string
	softDeleted []int64
	due         []domain.ManagedChannel
	nextNumber  float64
	referenced  map[int]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextNumber: 800, referenced: map[int]bool{}}
}

func (f *fakeStore) CreateManagedChannel(_ context.Context, ch *domain.ManagedChannel, detail string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextRowID++
	ch.ID = f.nextRowID
	f.creates = append(f.creates, *ch)
	f.details = append(f.details, detail)
	f.rows = append(f.rows, *ch)
	return nil
}

func (f *fakeStore) UpdateManagedChannel(_ context.Context, ch *domain.ManagedChannel, action domain.ChannelHistoryAction, detail string) error {
	f.updatedRows = append(f.updatedRows, *ch)
	f.updates = append(f.updates, fmt.Sprintf("%s: %s", action, detail))
	return nil
}

func (f *fakeStore) SoftDeleteManagedChannel(_ context.Context, id int64, _ string) error {
	f.softDeleted = append(f.softDeleted, id)
	return nil
}

func (f *fakeStore) ActiveChannelsForGroup(_ context.Context, _ int64) ([]domain.ManagedChannel, error) {
	out := make([]domain.ManagedChannel, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeStore) DueForDeletion(_ context.Context, _ time.Time) ([]domain.ManagedChannel, error) {
	return f.due, nil
}

func (f *fakeStore) NextChannelNumber(_ context.Context, _ int64, _ float64) (float64, error) {
	n := f.nextNumber
	f.nextNumber++
	return n, nil
}

func (f *fakeStore) LogoReferenced(_ context.Context, logoID int, _ int64) (bool, error) {
	return f.referenced[logoID], nil
}

func nflGroup() domain.EventGroup {
	return domain.EventGroup{
		ID:             5,
		Name:           "NFL Sunday Ticket",
		AssignedLeague: domain.LeagueNFL,
		ChannelGroupID: 12,
		ChannelStart:   800,
		CreateTiming:   domain.CreateOnStreamAvailable,
		DeleteTiming:   domain.DeleteDayAfter,
		StreamMode:     domain.StreamModeMerge,
		Enabled:        true,
	}
}

func cowboysGiants(start time.Time) *domain.Event {
	return &domain.Event{
		ID:        "401547401",
		Provider:  domain.ProviderESPN,
		Name:      "Dallas Cowboys at New York Giants",
		ShortName: "DAL @ NYG",
		StartTime: start,
		HomeTeam: domain.Team{
			ID: "19", Name: "New York Giants", ShortName: "Giants",
			Abbreviation: "NYG", League: domain.LeagueNFL,
			LogoURL: "https://cdn.example.com/nyg.png",
		},
		AwayTeam: domain.Team{
			ID: "6", Name: "Dallas Cowboys", ShortName: "Cowboys",
			Abbreviation: "DAL", League: domain.LeagueNFL,
		},
		League: domain.LeagueNFL,
		Sport:  domain.SportFootball,
	}
}

func matched(streamID int, name string) domain.MatchedStream {
	return domain.MatchedStream{
		StreamID:      streamID,
		StreamName:    name,
		DetectionTier: domain.TierTeam,
		Score:         95,
	}
}

func eventPlan(ev *domain.Event, streams ...domain.MatchedStream) epg.EventChannel {
	return epg.EventChannel{
		ID:            epg.EventChannelID(ev.ID),
		Name:          "NFL: Giants vs Cowboys",
		Logo:          ev.HomeTeam.LogoURL,
		Event:         ev,
		Streams:       streams,
		DurationHours: 3.5,
	}
}

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestSync_CreatesEventChannel(t *testing.T) {
	loc := nyLoc(t)
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, loc, []int{1, 2})

	// Kickoff Nov 4 2025 18:00 ET; ends 21:30 ET with 3.5h duration.
	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	plan := eventPlan(ev, matched(11, "ESPN: Cowboys @ Giants"), matched(12, "FOX: Cowboys @ Giants"))
	up.guideByTvgID[plan.ID] = 900

	res, err := m.Sync(context.Background(), SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{plan},
		Streams: []dispatcharr.Stream{{ID: 11}, {ID: 12}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)

	require.Len(t, up.created, 1)
	req := up.created[0]
	assert.Equal(t, "NFL: Giants vs Cowboys", req.Name)
	assert.Equal(t, 800.0, req.ChannelNumber)
	assert.Equal(t, 12, req.ChannelGroupID)
	assert.Equal(t, "teamarr-event-401547401", req.TvgID)
	assert.Equal(t, []int{11, 12}, req.Streams)
	require.NotNil(t, req.LogoID)

	assert.Equal(t, 900, up.epgAttached[101])
	assert.ElementsMatch(t, []string{"1:101:true", "2:101:true"}, up.profileOn)

	require.Len(t, st.creates, 1)
	row := st.creates[0]
	assert.Equal(t, int64(5), row.EventGroupID)
	assert.Equal(t, 101, row.DispatcharrChannelID)
	assert.Equal(t, "uuid-101", row.DispatcharrUUID)
	assert.Equal(t, 11, row.DispatcharrStreamID)
	assert.Equal(t, "401547401", row.ESPNEventID)
	assert.Equal(t, domain.SyncInSync, row.SyncStatus)
	require.NotNil(t, row.ScheduledDeleteAt)
	assert.True(t, time.Date(2025, 11, 5, 23, 59, 59, 0, loc).Equal(*row.ScheduledDeleteAt))
	assert.Equal(t, "created for event 401547401", st.details[0])
}

func TestSync_TimingBlocksCreation(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.CreateTiming = domain.CreateSameDay
	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))

	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, up.created)
}

func TestSync_GuideNotImportedDefers(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The tvg_id has no guide record until the next import, which must
	// not fail or roll back the creation.
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)
	assert.Empty(t, up.epgAttached)
	assert.Empty(t, up.deleted)
	assert.Len(t, st.creates, 1)
}

func TestSync_ProfileFailureRollsBack(t *testing.T) {
	up := newFakeUpstream()
	up.profileErr = errors.New("profile gone")
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, []int{1})

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, []int{101}, up.deleted)
	assert.Empty(t, st.creates)
}

func TestSync_RecordFailureRollsBack(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	st.createErr = errors.New("db locked")
	m := NewManager(up, st, time.UTC, nil)

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, []int{101}, up.deleted)
}

func TestSync_LogoFailureTolerated(t *testing.T) {
	up := newFakeUpstream()
	up.logoErr = errors.New("image fetch failed")
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, up.created, 1)
	assert.Nil(t, up.created[0].LogoID)
}

func TestSync_SecondRunIsIdempotent(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	in := SyncInput{
		Group:   nflGroup(),
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	}

	first, err := m.Sync(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := m.Sync(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Len(t, up.created, 1)
}

func TestSync_DeleteScheduleRecomputed(t *testing.T) {
	loc := nyLoc(t)
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, loc, nil)

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	oldAt := time.Date(2025, 11, 4, 23, 59, 59, 0, loc) // same_day, from before the setting changed
	st.rows = []domain.ManagedChannel{{
		ID:                   1,
		EventGroupID:         5,
		DispatcharrChannelID: 101,
		DispatcharrStreamID:  11,
		ChannelName:          "NFL: Giants vs Cowboys",
		ESPNEventID:          ev.ID,
		ScheduledDeleteAt:    &oldAt,
	}}

	group := nflGroup()
	group.DeleteTiming = domain.DeleteDayAfter
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{eventPlan(ev, matched(11, "ESPN"))},
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, up.created)

	require.Len(t, st.updatedRows, 1)
	got := st.updatedRows[0].ScheduledDeleteAt
	require.NotNil(t, got)
	assert.True(t, time.Date(2025, 11, 5, 23, 59, 59, 0, loc).Equal(*got))
	assert.True(t, strings.Contains(st.updates[0], "delete schedule recomputed"))
}

func TestSync_ExceptionChannelSkipsTimingGate(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.CreateTiming = domain.CreateDayBefore
	group.ExceptionKeywords = []string{"spanish"}

	plan := epg.EventChannel{
		ID:        epg.ExceptionChannelID(group.ID, "spanish"),
		Name:      "Spanish",
		Exception: "spanish",
		Streams: []domain.MatchedStream{
			{StreamID: 21, StreamName: "TUDN Spanish Feed", ExceptionKeyword: "spanish"},
		},
	}
	up.guideByTvgID[plan.ID] = 910

	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{plan},
		Streams: []dispatcharr.Stream{{ID: 21}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	require.Len(t, up.created, 1)
	assert.Equal(t, "teamarr-exception-5-spanish", up.created[0].TvgID)
	require.Len(t, st.creates, 1)
	row := st.creates[0]
	assert.Equal(t, "spanish", row.ExceptionKeyword)
	assert.Nil(t, row.ScheduledDeleteAt)
	assert.Equal(t, "created for keyword spanish", st.details[0])
}

func TestSync_ManualTimingCreatesNothing(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.CreateTiming = domain.CreateManual
	group.CreateUnmatchedChannels = true

	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	res, err := m.Sync(context.Background(), SyncInput{
		Group: group,
		Plans: []epg.EventChannel{
			eventPlan(ev, matched(11, "ESPN")),
			{ID: epg.ExceptionChannelID(group.ID, "spanish"), Name: "Spanish", Exception: "spanish",
				Streams: []domain.MatchedStream{{StreamID: 21, StreamName: "TUDN", ExceptionKeyword: "spanish"}}},
		},
		Streams:   []dispatcharr.Stream{{ID: 11}, {ID: 21}, {ID: 77}},
		Unmatched: []dispatcharr.Stream{{ID: 77, Name: "Random Sports Feed"}},
		Now:       time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, up.created)
}

func TestSync_UnmatchedPassthrough(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	srcID := 3
	group := nflGroup()
	group.CreateUnmatchedChannels = true
	group.UnmatchedChannelEPGSourceID = &srcID
	up.guideByName["Random Sports Feed"] = 901

	in := SyncInput{
		Group:     group,
		Streams:   []dispatcharr.Stream{{ID: 77, Name: "Random Sports Feed"}},
		Unmatched: []dispatcharr.Stream{{ID: 77, Name: "Random Sports Feed"}},
		Now:       time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	}
	res, err := m.Sync(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	require.Len(t, up.created, 1)
	assert.Equal(t, "", up.created[0].TvgID)
	assert.Equal(t, "Random Sports Feed", up.created[0].Name)
	assert.Equal(t, 901, up.epgAttached[101])

	require.Len(t, st.creates, 1)
	assert.True(t, st.creates[0].Unmatched)
	assert.Equal(t, 77, st.creates[0].DispatcharrStreamID)
	assert.Nil(t, st.creates[0].ScheduledDeleteAt)

	second, err := m.Sync(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Len(t, up.created, 1)
}

func TestSync_SeparateModeCreatesPerStream(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.StreamMode = domain.StreamModeSeparate
	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))

	st.rows = []domain.ManagedChannel{{
		ID: 1, EventGroupID: 5, DispatcharrChannelID: 90,
		DispatcharrStreamID: 11, ESPNEventID: ev.ID,
	}}

	plan11 := eventPlan(ev, matched(11, "ESPN"))
	plan11.ID = epg.StreamChannelID(ev.ID, 11)
	plan12 := eventPlan(ev, matched(12, "FOX"))
	plan12.ID = epg.StreamChannelID(ev.ID, 12)

	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{plan11, plan12},
		Streams: []dispatcharr.Stream{{ID: 11}, {ID: 12}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, up.created, 1)
	assert.Equal(t, "teamarr-event-401547401-s12", up.created[0].TvgID)
}

func TestSync_StreamRemovedDeletes(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	logo := 502
	group := nflGroup()
	group.DeleteTiming = domain.DeleteStreamRemoved
	st.rows = []domain.ManagedChannel{
		{ID: 1, EventGroupID: 5, DispatcharrChannelID: 101, DispatcharrStreamID: 11, ESPNEventID: "401547401", ChannelName: "Kept"},
		{ID: 2, EventGroupID: 5, DispatcharrChannelID: 102, DispatcharrStreamID: 12, ESPNEventID: "401547999", ChannelName: "Gone", LogoID: &logo},
	}

	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Streams: []dispatcharr.Stream{{ID: 11}},
		Now:     time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []int{102}, up.deleted)
	assert.Equal(t, []int64{2}, st.softDeleted)
	assert.Equal(t, []int{502}, up.logosDeleted)
}

func TestSync_MergeChannelSurvivesPrimaryStreamChurn(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.DeleteTiming = domain.DeleteStreamRemoved
	ev := cowboysGiants(time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC))
	st.rows = []domain.ManagedChannel{{
		ID: 1, EventGroupID: 5, DispatcharrChannelID: 101,
		DispatcharrStreamID: 11, ESPNEventID: ev.ID,
	}}

	// Stream 11 churned away but the event still has a feed on 12.
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{eventPlan(ev, matched(12, "FOX"))},
		Streams: []dispatcharr.Stream{{ID: 12}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 0, res.Created)
	assert.Empty(t, up.deleted)
}

func TestSync_ScheduledTimingIgnoresStreamChurn(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	// day_after group: the event channel waits for its schedule, but the
	// unmatched channel dies with its stream.
	group := nflGroup()
	group.CreateUnmatchedChannels = true
	st.rows = []domain.ManagedChannel{
		{ID: 1, EventGroupID: 5, DispatcharrChannelID: 101, DispatcharrStreamID: 11, ESPNEventID: "401547401"},
		{ID: 2, EventGroupID: 5, DispatcharrChannelID: 102, DispatcharrStreamID: 99, Unmatched: true},
	}

	res, err := m.Sync(context.Background(), SyncInput{
		Group: group,
		Now:   time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []int{102}, up.deleted)
	assert.Equal(t, []int64{2}, st.softDeleted)
}

func TestSync_ManualDeleteNeverDiffs(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.DeleteTiming = domain.DeleteManual
	st.rows = []domain.ManagedChannel{
		{ID: 1, EventGroupID: 5, DispatcharrChannelID: 101, DispatcharrStreamID: 11, ESPNEventID: "401547401"},
		{ID: 2, EventGroupID: 5, DispatcharrChannelID: 102, DispatcharrStreamID: 99, Unmatched: true},
	}

	res, err := m.Sync(context.Background(), SyncInput{
		Group: group,
		Now:   time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Empty(t, up.deleted)
}

func TestSync_ExceptionSurvivesWhileKeywordStreamed(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	group := nflGroup()
	group.ExceptionKeywords = []string{"spanish"}
	st.rows = []domain.ManagedChannel{{
		ID: 1, EventGroupID: 5, DispatcharrChannelID: 101,
		DispatcharrStreamID: 21, ExceptionKeyword: "spanish",
	}}

	// The original stream churned but another spanish feed exists.
	plan := epg.EventChannel{
		ID: epg.ExceptionChannelID(group.ID, "spanish"), Name: "Spanish", Exception: "spanish",
		Streams: []domain.MatchedStream{{StreamID: 22, StreamName: "TUDN 2", ExceptionKeyword: "spanish"}},
	}
	res, err := m.Sync(context.Background(), SyncInput{
		Group:   group,
		Plans:   []epg.EventChannel{plan},
		Streams: []dispatcharr.Stream{{ID: 22}},
		Now:     time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Deleted)

	// Keyword no longer carried by any stream: the channel goes.
	res, err = m.Sync(context.Background(), SyncInput{
		Group: group,
		Now:   time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []int{101}, up.deleted)
}

func TestSweepDue(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	sharedLogo := 501
	st.referenced[sharedLogo] = true
	st.due = []domain.ManagedChannel{
		{ID: 1, DispatcharrChannelID: 101, ChannelName: "Done A", LogoID: &sharedLogo},
		{ID: 2, DispatcharrChannelID: 102, ChannelName: "Done B"},
	}

	removed, errs := m.SweepDue(context.Background(), time.Now())
	assert.Empty(t, errs)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []int{101, 102}, up.deleted)
	assert.Equal(t, []int64{1, 2}, st.softDeleted)
	// Logo still referenced by another channel stays put.
	assert.Empty(t, up.logosDeleted)
}

func TestSweepDue_UpstreamAlreadyGone(t *testing.T) {
	up := newFakeUpstream()
	up.deleteErr = notFound("delete channel")
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	st.due = []domain.ManagedChannel{{ID: 1, DispatcharrChannelID: 101, ChannelName: "Ghost"}}

	removed, errs := m.SweepDue(context.Background(), time.Now())
	assert.Empty(t, errs)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []int64{1}, st.softDeleted)
}

func TestRepairEPG(t *testing.T) {
	up := newFakeUpstream()
	st := newFakeStore()
	m := NewManager(up, st, time.UTC, nil)

	attached := 44
	up.guideByTvgID["teamarr-event-401547401"] = 920
	upstream := []dispatcharr.Channel{
		// Needs repair and the guide is now imported.
		{ID: 300, TvgID: "teamarr-event-401547401"},
		// Foreign channel, untouched.
		{ID: 301, TvgID: "espn.nfl"},
		// Already attached.
		{ID: 302, TvgID: "teamarr-team-1", EPGDataID: &attached},
		// Guide still missing, skipped until the next pass.
		{ID: 303, TvgID: "teamarr-exception-5-spanish"},
	}

	repaired := m.RepairEPG(context.Background(), upstream)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, map[int]int{300: 920}, up.epgAttached)
}

func TestExpectedTvgID(t *testing.T) {
	group := nflGroup()
	mc := domain.ManagedChannel{ESPNEventID: "401547401", DispatcharrStreamID: 11}

	assert.Equal(t, "teamarr-event-401547401", ExpectedTvgID(group, mc))

	group.StreamMode = domain.StreamModeSeparate
	assert.Equal(t, "teamarr-event-401547401-s11", ExpectedTvgID(group, mc))

	assert.Equal(t, "teamarr-exception-5-spanish",
		ExpectedTvgID(group, domain.ManagedChannel{ExceptionKeyword: "spanish"}))
	assert.Equal(t, "", ExpectedTvgID(group, domain.ManagedChannel{Unmatched: true}))
}
