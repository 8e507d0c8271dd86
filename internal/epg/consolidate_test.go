// SPDX-License-Identifier: MIT

package epg

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/domain"
)

func writeFragment(t *testing.T, path string, channels ...Channel) {
	t.Helper()
	tv := NewTV(time.Date(2025, 11, 2, 6, 0, 0, 0, time.UTC))
	for _, ch := range channels {
		start := time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)
		tv.Append(ch, []domain.Programme{{
			ChannelID: ch.ID,
			Title:     "Programme on " + ch.ID,
			Start:     start,
			Stop:      start.Add(time.Hour),
		}})
	}
	require.NoError(t, WriteFile(path, tv))
}

func TestConsolidate_MergesAndArchives(t *testing.T) {
	dir := t.TempDir()
	writeFragment(t, TeamsPath(dir),
		Channel{ID: "teamarr-team-1", DisplayName: []string{"Giants All Day"}})
	writeFragment(t, EventPath(dir, 5),
		Channel{ID: "teamarr-event-100", DisplayName: []string{"From Group Five"}})
	writeFragment(t, EventPath(dir, 7),
		Channel{ID: "teamarr-event-100", DisplayName: []string{"From Group Seven"}},
		Channel{ID: "teamarr-event-200", DisplayName: []string{"Other Game"}})

	c := NewConsolidator(dir)
	res, err := c.Consolidate(time.Date(2025, 11, 2, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Fragments)
	assert.Equal(t, 3, res.Channels)
	assert.Equal(t, 4, res.Programmes)
	assert.Empty(t, res.Skipped)

	out, err := ReadFile(OutputPath(dir))
	require.NoError(t, err)
	require.Len(t, out.Channels, 3)
	assert.Equal(t, "teamarr-team-1", out.Channels[0].ID)
	// Duplicate channel ids keep the first occurrence.
	assert.Equal(t, []string{"From Group Five"}, out.Channels[1].DisplayName)
	assert.Len(t, out.Programmes, 4)

	// Event fragments archive to .bak; teams.xml stays in place.
	assert.NoFileExists(t, EventPath(dir, 5))
	assert.NoFileExists(t, EventPath(dir, 7))
	assert.FileExists(t, EventPath(dir, 5)+".bak")
	assert.FileExists(t, EventPath(dir, 7)+".bak")
	assert.FileExists(t, TeamsPath(dir))
	assert.NoFileExists(t, TeamsPath(dir)+".bak")
}

func TestConsolidate_SecondRunKeepsTeamChannels(t *testing.T) {
	dir := t.TempDir()
	writeFragment(t, TeamsPath(dir),
		Channel{ID: "teamarr-team-1", DisplayName: []string{"Giants All Day"}})
	writeFragment(t, EventPath(dir, 5),
		Channel{ID: "teamarr-event-100", DisplayName: []string{"Game"}})

	c := NewConsolidator(dir)
	_, err := c.Consolidate(time.Now())
	require.NoError(t, err)

	// A cycle that refreshed no event groups still carries the teams.
	res, err := c.Consolidate(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fragments)
	assert.Equal(t, 1, res.Channels)

	out, err := ReadFile(OutputPath(dir))
	require.NoError(t, err)
	require.Len(t, out.Channels, 1)
	assert.Equal(t, "teamarr-team-1", out.Channels[0].ID)
}

func TestConsolidate_SkipsCorruptFragment(t *testing.T) {
	dir := t.TempDir()
	writeFragment(t, EventPath(dir, 5),
		Channel{ID: "teamarr-event-100", DisplayName: []string{"Game"}})
	require.NoError(t, os.WriteFile(EventPath(dir, 9), []byte("<tv><channel></tv"), 0o644))

	c := NewConsolidator(dir)
	res, err := c.Consolidate(time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Fragments)
	assert.Equal(t, []string{"event_epg_9.xml"}, res.Skipped)
	// Corrupt fragments are left unarchived for inspection.
	assert.FileExists(t, EventPath(dir, 9))
	assert.FileExists(t, EventPath(dir, 5)+".bak")
}

func TestConsolidate_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	c := NewConsolidator(dir)
	res, err := c.Consolidate(time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Channels)
	assert.FileExists(t, OutputPath(dir))
}

func TestSweep_RemovesOnlyStaleEventBackups(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	stale := EventPath(dir, 3) + ".bak"
	fresh := EventPath(dir, 5) + ".bak"
	teams := TeamsPath(dir) + ".bak"
	for _, f := range []string{stale, fresh, teams} {
		require.NoError(t, os.WriteFile(f, []byte("<tv></tv>"), 0o644))
	}
	old := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(teams, old, old))

	c := NewConsolidator(dir)
	removed, err := c.Sweep(now.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, teams)
}
