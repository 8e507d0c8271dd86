// SPDX-License-Identifier: MIT

package domain

import (
	"testing"
	"time"
)

func TestCanonicalState(t *testing.T) {
	tests := []struct {
		raw  string
		want GameState
	}{
		{"pre", StateScheduled},
		{"in", StateLive},
		{"post", StateFinal},
		{"STATUS_SCHEDULED", StateScheduled},
		{"STATUS_IN_PROGRESS", StateLive},
		{"STATUS_HALFTIME", StateLive},
		{"STATUS_FINAL", StateFinal},
		{"STATUS_POSTPONED", StatePostponed},
		{"STATUS_CANCELED", StateCancelled},
		{"canceled", StateCancelled},
		{"", StateScheduled},
		{"garbage", StateScheduled},
	}
	for _, tt := range tests {
		if got := CanonicalState(tt.raw); got != tt.want {
			t.Errorf("CanonicalState(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestEventValidate(t *testing.T) {
	base := Event{
		ID:        "401547435",
		Provider:  ProviderESPN,
		Name:      "Dallas Cowboys at New York Giants",
		StartTime: time.Date(2025, 9, 14, 17, 0, 0, 0, time.UTC),
		HomeTeam:  Team{ID: "19", Name: "New York Giants", League: LeagueNFL},
		AwayTeam:  Team{ID: "6", Name: "Dallas Cowboys", League: LeagueNFL},
		League:    LeagueNFL,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	noStart := base
	noStart.StartTime = time.Time{}
	if err := noStart.Validate(); err == nil {
		t.Error("zero start time accepted")
	}

	crossLeague := base
	crossLeague.AwayTeam.League = LeagueNBA
	if err := crossLeague.Validate(); err == nil {
		t.Error("cross-league teams accepted")
	}
}

func TestEventLocalDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// 1:00 UTC is the previous evening in New York.
	e := Event{StartTime: time.Date(2025, 9, 15, 1, 0, 0, 0, time.UTC)}
	got := e.LocalDate(ny)
	want := time.Date(2025, 9, 14, 0, 0, 0, 0, ny)
	if !got.Equal(want) {
		t.Errorf("LocalDate = %v, want %v", got, want)
	}
}

func TestProgrammeOverlaps(t *testing.T) {
	mk := func(ch string, startH, stopH int) Programme {
		day := time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)
		return Programme{
			ChannelID: ch,
			Start:     day.Add(time.Duration(startH) * time.Hour),
			Stop:      day.Add(time.Duration(stopH) * time.Hour),
		}
	}
	if !mk("a", 1, 3).Overlaps(mk("a", 2, 4)) {
		t.Error("overlapping programmes reported disjoint")
	}
	if mk("a", 1, 3).Overlaps(mk("a", 3, 5)) {
		t.Error("back-to-back programmes reported overlapping")
	}
	if mk("a", 1, 3).Overlaps(mk("b", 2, 4)) {
		t.Error("different channels reported overlapping")
	}
}
