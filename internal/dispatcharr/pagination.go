// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
)

// page is the DRF pagination envelope.
type page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

// fetchAll walks a paginated endpoint, following next links until
// exhausted. Endpoints that answer with a bare array yield a single
// page.
func fetchAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var out []T
	next := endpoint
	for next != "" {
		body, err := c.Request(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		items, link, err := decodeList[T](body)
		if err != nil {
			return nil, fmt.Errorf("decode page %s: %w", endpointPath(next), err)
		}
		out = append(out, items...)
		next, err = relativeNext(link)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeList accepts both a bare JSON array and the paginated envelope.
func decodeList[T any](body []byte) ([]T, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", err
		}
		return items, "", nil
	}
	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, "", err
	}
	return p.Results, p.Next, nil
}

// relativeNext strips scheme and host from an absolute next link so it
// resolves against the configured base URL; upstream may advertise
// itself under a different host than the one we dialed.
func relativeNext(next string) (string, error) {
	if next == "" {
		return "", nil
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", next, err)
	}
	if !u.IsAbs() {
		return next, nil
	}
	rel := u.Path
	if u.RawQuery != "" {
		rel += "?" + u.RawQuery
	}
	return rel, nil
}
