// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// ProfileChannelEnabled reports whether a channel is enabled in the
// given channel profile.
func (c *Client) ProfileChannelEnabled(ctx context.Context, profileID, channelID int) (bool, error) {
	endpoint := fmt.Sprintf("/api/channels/profiles/%d/channels/%d/", profileID, channelID)
	body, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("decode profile channel: %w", err)
	}
	return payload.Enabled, nil
}

// SetProfileChannelEnabled toggles a channel's membership in a channel
// profile.
func (c *Client) SetProfileChannelEnabled(ctx context.Context, profileID, channelID int, enabled bool) error {
	endpoint := fmt.Sprintf("/api/channels/profiles/%d/channels/%d/", profileID, channelID)
	_, err := c.Request(ctx, http.MethodPatch, endpoint, map[string]bool{"enabled": enabled})
	return err
}
