// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCache_MissIsSilent(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.GetMatchCache(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMatchCache_PutGetStamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := MatchCacheEntry{
		Fingerprint:        "fp-1",
		EventGroupID:       3,
		StreamID:           81,
		EventID:            "401671716",
		League:             "nfl",
		Snapshot:           []byte(`{"id":"401671716"}`),
		LastSeenGeneration: 10,
	}
	require.NoError(t, s.PutMatchCache(ctx, entry))

	got, err := s.GetMatchCache(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "401671716", got.EventID)
	assert.Equal(t, "nfl", got.League)
	assert.JSONEq(t, `{"id":"401671716"}`, string(got.Snapshot))
	assert.Equal(t, int64(10), got.LastSeenGeneration)

	// Re-put with a new snapshot replaces the payload.
	entry.Snapshot = []byte(`{"id":"401671716","status":"final"}`)
	entry.LastSeenGeneration = 11
	require.NoError(t, s.PutMatchCache(ctx, entry))

	got, err = s.GetMatchCache(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.LastSeenGeneration)
	assert.Contains(t, string(got.Snapshot), "final")

	require.NoError(t, s.StampMatchCache(ctx, "fp-1", 12))
	got, err = s.GetMatchCache(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.LastSeenGeneration)
}

func TestSweepMatchCache_EvictsOnlyStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, gen := range []int64{5, 40, 90} {
		require.NoError(t, s.PutMatchCache(ctx, MatchCacheEntry{
			Fingerprint:        string(rune('a' + i)),
			EventGroupID:       1,
			StreamID:           i,
			EventID:            "e",
			League:             "nfl",
			Snapshot:           []byte(`{}`),
			LastSeenGeneration: gen,
		}))
	}

	evicted, err := s.SweepMatchCache(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted, "only the generation-5 entry is stale")

	size, err := s.MatchCacheSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	kept, err := s.GetMatchCache(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, kept, "entry at exactly the cutoff survives")
}
