// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"net/http"
	"net/url"
)

// TriggerEPGImport asks Dispatcharr to re-ingest the given EPG source.
// Upstream answers 202 and imports asynchronously.
func (c *Client) TriggerEPGImport(ctx context.Context, sourceID int) error {
	_, err := c.Request(ctx, http.MethodPost, "/api/epg/import/", map[string]int{"id": sourceID})
	return err
}

// EPGData is one guide record inside an imported EPG source, keyed by
// tvg_id. Records appear only after the source's next import.
type EPGData struct {
	ID        int    `json:"id"`
	TvgID     string `json:"tvg_id"`
	Name      string `json:"name"`
	EPGSource int    `json:"epg_source"`
}

// EPGDataForTvgID resolves the guide record carrying the given tvg_id.
// A tvg_id the source has not imported yet yields ErrNotFound.
func (c *Client) EPGDataForTvgID(ctx context.Context, tvgID string) (*EPGData, error) {
	params := url.Values{}
	params.Set("tvg_id", tvgID)
	list, err := fetchAll[EPGData](ctx, c, "/api/epg/data/?"+params.Encode())
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].TvgID == tvgID {
			return &list[i], nil
		}
	}
	return nil, &APIError{Sentinel: ErrNotFound, Operation: "epg data " + tvgID, Status: 404}
}

// EPGDataByName searches a source's guide records by display name, for
// passthrough channels that carry no generated tvg_id.
func (c *Client) EPGDataByName(ctx context.Context, sourceID int, name string) (*EPGData, error) {
	params := url.Values{}
	params.Set("search", name)
	list, err := fetchAll[EPGData](ctx, c, "/api/epg/data/?"+params.Encode())
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].EPGSource == sourceID && list[i].Name == name {
			return &list[i], nil
		}
	}
	return nil, &APIError{Sentinel: ErrNotFound, Operation: "epg data by name " + name, Status: 404}
}
