// SPDX-License-Identifier: MIT

package sports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/domain"
)

type stubLister struct {
	teams []domain.Team
	err   error
	calls int
}

func (l *stubLister) Teams(_ context.Context, _ domain.League) ([]domain.Team, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.teams, nil
}

func iplEvent(id string) domain.Event {
	return domain.Event{
		ID:        id,
		Provider:  domain.ProviderSportsDB,
		Name:      "Mumbai Indians vs Chennai Super Kings",
		StartTime: time.Now().Add(time.Hour),
		League:    domain.LeagueIPL,
		Sport:     domain.SportCricket,
		HomeTeam: domain.Team{
			ID: "135894", Provider: domain.ProviderSportsDB,
			Name: "Mumbai Indians", League: domain.LeagueIPL, Sport: domain.SportCricket,
		},
		AwayTeam: domain.Team{
			ID: "135896", Provider: domain.ProviderSportsDB,
			Name: "Chennai Super Kings", League: domain.LeagueIPL, Sport: domain.SportCricket,
		},
		Status: domain.EventStatus{State: domain.StateScheduled},
	}
}

func iplDirectory() []domain.Team {
	return []domain.Team{
		{
			ID: "1000", Provider: domain.ProviderESPN, Name: "Mumbai Indians",
			ShortName: "Mumbai", Abbreviation: "MI",
			LogoURL: "https://a.espncdn.com/i/teamlogos/cricket/500/1000.png",
		},
		{
			ID: "1001", Provider: domain.ProviderESPN, Name: "Chennai Super Kings",
			ShortName: "Chennai", Abbreviation: "CSK",
			LogoURL: "https://a.espncdn.com/i/teamlogos/cricket/500/1001.png",
		},
	}
}

func TestCricket_DecoratesTeams(t *testing.T) {
	schedules := &stubProvider{events: []domain.Event{iplEvent("2052711")}}
	directory := &stubLister{teams: iplDirectory()}
	hybrid := NewCricket(schedules, directory)

	events, err := hybrid.Events(context.Background(), domain.LeagueIPL, time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)

	home := events[0].HomeTeam
	assert.Equal(t, "135894", home.ID, "schedule provider id is kept")
	assert.Equal(t, domain.ProviderSportsDB, home.Provider)
	assert.Equal(t, "MI", home.Abbreviation)
	assert.Equal(t, "Mumbai", home.ShortName)
	assert.Equal(t, "https://a.espncdn.com/i/teamlogos/cricket/500/1000.png", home.LogoURL)

	assert.Equal(t, "CSK", events[0].AwayTeam.Abbreviation)
}

func TestCricket_DirectoryFetchedOnce(t *testing.T) {
	schedules := &stubProvider{events: []domain.Event{iplEvent("2052711")}}
	directory := &stubLister{teams: iplDirectory()}
	hybrid := NewCricket(schedules, directory)

	_, err := hybrid.Events(context.Background(), domain.LeagueIPL, time.Now())
	require.NoError(t, err)
	_, err = hybrid.Events(context.Background(), domain.LeagueIPL, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, directory.calls)
}

func TestCricket_DirectoryFailureTolerated(t *testing.T) {
	schedules := &stubProvider{events: []domain.Event{iplEvent("2052711")}}
	directory := &stubLister{err: errors.New("directory down")}
	hybrid := NewCricket(schedules, directory)

	events, err := hybrid.Events(context.Background(), domain.LeagueIPL, time.Now())
	require.NoError(t, err, "schedules flow without metadata")
	require.Len(t, events, 1)
	assert.Empty(t, events[0].HomeTeam.Abbreviation)
	assert.Equal(t, "Mumbai Indians", events[0].HomeTeam.Name)
}

func TestCricket_UnknownTeamLeftAlone(t *testing.T) {
	ev := iplEvent("2052711")
	ev.HomeTeam.Name = "Punjab Kings"
	schedules := &stubProvider{events: []domain.Event{ev}}
	directory := &stubLister{teams: iplDirectory()}
	hybrid := NewCricket(schedules, directory)

	events, err := hybrid.Events(context.Background(), domain.LeagueIPL, time.Now())
	require.NoError(t, err)
	assert.Empty(t, events[0].HomeTeam.LogoURL)
	assert.Equal(t, "CSK", events[0].AwayTeam.Abbreviation)
}

func TestCricket_StatsPassThrough(t *testing.T) {
	schedules := &stubProvider{stats: &domain.TeamStats{Record: "3-2", Streak: "W2"}}
	hybrid := NewCricket(schedules, &stubLister{})

	stats, err := hybrid.TeamStats(context.Background(), "135894", domain.LeagueIPL)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "3-2", stats.Record)
	assert.Equal(t, 1, schedules.statsCalls)
}
