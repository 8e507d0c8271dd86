// SPDX-License-Identifier: MIT

package channels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/domain"
)

func TestCreateAllowed(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Kickoff Nov 4 2025 18:00 ET.
	start := time.Date(2025, 11, 4, 18, 0, 0, 0, loc)

	tests := []struct {
		name   string
		timing domain.CreateTiming
		now    time.Time
		want   bool
	}{
		{"stream available is always open", domain.CreateOnStreamAvailable, time.Date(2025, 10, 1, 0, 0, 0, 0, loc), true},
		{"same day before midnight", domain.CreateSameDay, time.Date(2025, 11, 3, 23, 59, 0, 0, loc), false},
		{"same day at midnight", domain.CreateSameDay, time.Date(2025, 11, 4, 0, 0, 0, 0, loc), true},
		{"day before opens at prior midnight", domain.CreateDayBefore, time.Date(2025, 11, 3, 0, 0, 0, 0, loc), true},
		{"day before too early", domain.CreateDayBefore, time.Date(2025, 11, 2, 23, 59, 59, 0, loc), false},
		{"two days before", domain.CreateTwoDaysBefore, time.Date(2025, 11, 2, 0, 0, 0, 0, loc), true},
		{"manual never auto-creates", domain.CreateManual, time.Date(2025, 11, 4, 19, 0, 0, 0, loc), false},
		{"unknown timing never auto-creates", domain.CreateTiming("whenever"), time.Date(2025, 11, 4, 19, 0, 0, 0, loc), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CreateAllowed(tc.timing, start, tc.now, loc))
		})
	}
}

func TestCreateAllowed_LocalDayNotUTCDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Nov 5 01:00 UTC is still Nov 4 evening in New York, so the same-day
	// window opened at Nov 4 midnight ET.
	start := time.Date(2025, 11, 5, 1, 0, 0, 0, time.UTC)
	now := time.Date(2025, 11, 4, 5, 0, 0, 0, time.UTC) // Nov 4 00:00 ET

	assert.True(t, CreateAllowed(domain.CreateSameDay, start, now, loc))
	assert.False(t, CreateAllowed(domain.CreateSameDay, start, now.Add(-time.Second), loc))
}

func TestDeleteAt(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Game ends Nov 4 2025 21:30 ET.
	end := time.Date(2025, 11, 4, 21, 30, 0, 0, loc)

	tests := []struct {
		name   string
		timing domain.DeleteTiming
		want   time.Time
	}{
		{"same day", domain.DeleteSameDay, time.Date(2025, 11, 4, 23, 59, 59, 0, loc)},
		{"day after", domain.DeleteDayAfter, time.Date(2025, 11, 5, 23, 59, 59, 0, loc)},
		{"two days after", domain.DeleteTwoDaysAfter, time.Date(2025, 11, 6, 23, 59, 59, 0, loc)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeleteAt(tc.timing, end, loc)
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestDeleteAt_EndTimeAnchorsDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// A west-coast game ending after midnight ET anchors on the end date,
	// deferring deletion a day relative to kickoff.
	end := time.Date(2025, 11, 5, 1, 30, 0, 0, loc)
	got := DeleteAt(domain.DeleteSameDay, end, loc)
	require.NotNil(t, got)
	assert.True(t, time.Date(2025, 11, 5, 23, 59, 59, 0, loc).Equal(*got))
}

func TestDeleteAt_NoSchedule(t *testing.T) {
	end := time.Date(2025, 11, 4, 21, 30, 0, 0, time.UTC)
	assert.Nil(t, DeleteAt(domain.DeleteStreamRemoved, end, time.UTC))
	assert.Nil(t, DeleteAt(domain.DeleteManual, end, time.UTC))
}
