// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// Channel is the upstream channel record. UUID is the immutable
// identifier; the numeric ID can be reassigned after an upstream
// database restore.
type Channel struct {
	ID             int     `json:"id"`
	ChannelNumber  float64 `json:"channel_number"`
	Name           string  `json:"name"`
	ChannelGroupID int     `json:"channel_group_id"`
	TvgID          string  `json:"tvg_id"`
	UUID           string  `json:"uuid"`
	LogoID         *int    `json:"logo_id"`
	EPGDataID      *int    `json:"epg_data_id"`
	Streams        []int   `json:"streams"`
}

// ChannelCreate is the creation payload.
type ChannelCreate struct {
	Name           string  `json:"name"`
	ChannelNumber  float64 `json:"channel_number"`
	ChannelGroupID int     `json:"channel_group_id"`
	TvgID          string  `json:"tvg_id"`
	Streams        []int   `json:"streams"`
	LogoID         *int    `json:"logo_id,omitempty"`
}

// ChannelGroup is an upstream channel group.
type ChannelGroup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Channels lists every upstream channel.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	return fetchAll[Channel](ctx, c, "/api/channels/channels/?page_size=1000")
}

// Channel fetches one channel by upstream id.
func (c *Client) Channel(ctx context.Context, id int) (*Channel, error) {
	body, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/api/channels/channels/%d/", id), nil)
	if err != nil {
		return nil, err
	}
	var ch Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("decode channel: %w", err)
	}
	return &ch, nil
}

// CreateChannel creates an upstream channel and returns the stored
// record, including the assigned id and uuid.
func (c *Client) CreateChannel(ctx context.Context, req ChannelCreate) (*Channel, error) {
	body, err := c.Request(ctx, http.MethodPost, "/api/channels/channels/", req)
	if err != nil {
		return nil, err
	}
	var ch Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("decode created channel: %w", err)
	}
	return &ch, nil
}

// UpdateChannel applies a partial update. Only the fields present in
// patch are touched upstream.
func (c *Client) UpdateChannel(ctx context.Context, id int, patch map[string]any) (*Channel, error) {
	body, err := c.Request(ctx, http.MethodPatch, fmt.Sprintf("/api/channels/channels/%d/", id), patch)
	if err != nil {
		return nil, err
	}
	var ch Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("decode updated channel: %w", err)
	}
	return &ch, nil
}

// DeleteChannel removes an upstream channel.
func (c *Client) DeleteChannel(ctx context.Context, id int) error {
	_, err := c.Request(ctx, http.MethodDelete, fmt.Sprintf("/api/channels/channels/%d/", id), nil)
	return err
}

// SetChannelEPG points a channel at an EPG record so programmes attach
// to it after the next import.
func (c *Client) SetChannelEPG(ctx context.Context, channelID, epgDataID int) error {
	endpoint := fmt.Sprintf("/api/channels/channels/%d/set-epg/", channelID)
	_, err := c.Request(ctx, http.MethodPost, endpoint, map[string]int{"epg_data_id": epgDataID})
	return err
}

// ChannelGroups lists the upstream channel groups.
func (c *Client) ChannelGroups(ctx context.Context) ([]ChannelGroup, error) {
	return fetchAll[ChannelGroup](ctx, c, "/api/channels/groups/")
}
