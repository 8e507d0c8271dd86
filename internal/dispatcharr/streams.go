// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"net/url"
)

// Stream is one playable stream from an upstream M3U account.
type Stream struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ChannelGroup int    `json:"channel_group"`
}

// StreamsForGroup lists the streams currently carried by the named
// upstream channel group.
func (c *Client) StreamsForGroup(ctx context.Context, groupName string) ([]Stream, error) {
	params := url.Values{}
	params.Set("channel_group", groupName)
	params.Set("page_size", "250")
	return fetchAll[Stream](ctx, c, "/api/channels/streams/?"+params.Encode())
}
