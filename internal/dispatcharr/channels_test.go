// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_RoundTrip(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	num := 212.0
	created, err := c.CreateChannel(ctx, ChannelCreate{
		Name:           "NFL: Cowboys vs Giants",
		ChannelNumber:  &num,
		ChannelGroupID: 1,
		TvgID:          "teamarr-event-401547401",
		Streams:        []int{101},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.NotEmpty(t, created.UUID, "upstream assigns the stable uuid")
	assert.Equal(t, "teamarr-event-401547401", created.TvgID)
	assert.Equal(t, 212.0, created.ChannelNumber)
	assert.Equal(t, []int{101}, created.Streams)

	stored := mock.StoredChannel(created.ID)
	require.NotNil(t, stored)
	assert.Equal(t, created.UUID, stored.UUID)

	got, err := c.Channel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "NFL: Cowboys vs Giants", got.Name)
}

func TestUpdateChannel_PartialPatch(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	created, err := c.CreateChannel(ctx, ChannelCreate{Name: "before", ChannelGroupID: 1})
	require.NoError(t, err)

	updated, err := c.UpdateChannel(ctx, created.ID, map[string]any{
		"name":    "after",
		"streams": []int{102, 103},
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, []int{102, 103}, updated.Streams)
	assert.Equal(t, created.UUID, updated.UUID, "patch must not touch identity")
}

func TestDeleteChannel(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	created, err := c.CreateChannel(ctx, ChannelCreate{Name: "short lived", ChannelGroupID: 1})
	require.NoError(t, err)

	require.NoError(t, c.DeleteChannel(ctx, created.ID))

	_, err = c.Channel(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetChannelEPG(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	created, err := c.CreateChannel(ctx, ChannelCreate{Name: "with epg", ChannelGroupID: 1})
	require.NoError(t, err)

	require.NoError(t, c.SetChannelEPG(ctx, created.ID, 77))

	stored := mock.StoredChannel(created.ID)
	require.NotNil(t, stored)
	require.NotNil(t, stored.EPGDataID)
	assert.Equal(t, 77, *stored.EPGDataID)
}

func TestEnsureLogo_CreatesThenDeduplicates(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	const logoURL = "https://a.espncdn.com/i/teamlogos/nfl/500/dal.png"

	first, err := c.EnsureLogo(ctx, "Dallas Cowboys", logoURL)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	// The second create collides on URL upstream; EnsureLogo resolves it
	// by lookup instead of surfacing the validation error.
	second, err := c.EnsureLogo(ctx, "Dallas Cowboys", logoURL)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestProfileChannelToggle(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)
	ctx := context.Background()

	enabled, err := c.ProfileChannelEnabled(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, enabled, "membership defaults to disabled")

	require.NoError(t, c.SetProfileChannelEnabled(ctx, 2, 10, true))

	enabled, err = c.ProfileChannelEnabled(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, c.SetProfileChannelEnabled(ctx, 2, 10, false))

	enabled, err = c.ProfileChannelEnabled(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTriggerEPGImport(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock)

	require.NoError(t, c.TriggerEPGImport(context.Background(), 4))
	assert.Equal(t, []int{4}, mock.EPGImports())
}
