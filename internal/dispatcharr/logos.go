// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Logo is an upstream channel logo record.
type Logo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Logos lists every upstream logo.
func (c *Client) Logos(ctx context.Context) ([]Logo, error) {
	return fetchAll[Logo](ctx, c, "/api/channels/logos/?page_size=1000")
}

// CreateLogo registers a logo URL upstream.
func (c *Client) CreateLogo(ctx context.Context, name, logoURL string) (*Logo, error) {
	payload := map[string]string{"name": name, "url": logoURL}
	body, err := c.Request(ctx, http.MethodPost, "/api/channels/logos/", payload)
	if err != nil {
		return nil, err
	}
	var logo Logo
	if err := json.Unmarshal(body, &logo); err != nil {
		return nil, fmt.Errorf("decode created logo: %w", err)
	}
	return &logo, nil
}

// DeleteLogo removes an upstream logo.
func (c *Client) DeleteLogo(ctx context.Context, id int) error {
	_, err := c.Request(ctx, http.MethodDelete, fmt.Sprintf("/api/channels/logos/%d/", id), nil)
	return err
}

// EnsureLogo creates the logo, de-duplicating on the upstream "already
// exists" rejection by locating the existing record via its URL.
func (c *Client) EnsureLogo(ctx context.Context, name, logoURL string) (*Logo, error) {
	logo, err := c.CreateLogo(ctx, name, logoURL)
	if err == nil {
		return logo, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !errors.Is(err, ErrValidation) ||
		!strings.Contains(strings.ToLower(apiErr.Body), "already exists") {
		return nil, err
	}

	existing, listErr := c.Logos(ctx)
	if listErr != nil {
		return nil, listErr
	}
	for i := range existing {
		if existing[i].URL == logoURL {
			return &existing[i], nil
		}
	}
	// Upstream claimed a duplicate we cannot find; surface the original
	// rejection.
	return nil, err
}
