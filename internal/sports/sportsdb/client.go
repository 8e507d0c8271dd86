// SPDX-License-Identifier: MIT

// Package sportsdb fetches events and schedules from TheSportsDB v1 API.
// It covers the leagues ESPN's site API does not carry, cricket foremost,
// and doubles as a fallback source for the majors.
package sportsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/sports"
)

const (
	defaultBaseURL = "https://www.thesportsdb.com/api/v1/json"

	// The shared free-tier key. Paid keys raise the rate limits but the
	// wire format is identical.
	defaultAPIKey = "3"

	defaultTimeout        = 15 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 500 * time.Millisecond
	defaultRateLimit      = 2
	defaultRateLimitBurst = 5
)

// leagueNames maps leagues onto TheSportsDB's strLeague values, used as
// the eventsday filter.
var leagueNames = map[domain.League]string{
	domain.LeagueIPL: "Indian Premier League",
	domain.LeagueEPL: "English Premier League",
	domain.LeagueMLS: "American Major League Soccer",
	domain.LeagueNFL: "NFL",
	domain.LeagueNBA: "NBA",
	domain.LeagueNHL: "NHL",
	domain.LeagueMLB: "MLB",
}

// Client talks to TheSportsDB. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// Options configures the client; zero values take defaults.
type Options struct {
	// BaseURL overrides the API origin, mainly for tests.
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
}

func normalizeOptions(opts Options) Options {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		opts.APIKey = defaultAPIKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "teamarr"
	}
	return opts
}

// New creates a TheSportsDB client.
func New(opts Options) *Client {
	opts = normalizeOptions(opts)

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		userAgent:  opts.UserAgent,
		logger:     log.WithComponent("sportsdb"),
	}
}

// Events lists the league's events on the given day.
func (c *Client) Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error) {
	name, ok := leagueNames[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	params := url.Values{
		"d": {date.Format("2006-01-02")},
		"l": {name},
	}
	var resp eventsResponse
	if err := c.get(ctx, "eventsday.php", params, &resp); err != nil {
		return nil, err
	}

	raws := resp.list()
	events := make([]domain.Event, 0, len(raws))
	for _, raw := range raws {
		ev, err := c.toEvent(raw, league)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("event", "sportsdb.event.skipped").
				Str("sportsdb_id", raw.IDEvent).
				Str("league", string(league)).
				Msg("dropping malformed event")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Event fetches one event by id. The API answers {"events": null} for
// unknown ids rather than a 404.
func (c *Client) Event(ctx context.Context, id string, league domain.League) (*domain.Event, error) {
	if _, ok := leagueNames[league]; !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var resp eventsResponse
	if err := c.get(ctx, "lookupevent.php", url.Values{"id": {id}}, &resp); err != nil {
		return nil, err
	}

	raws := resp.list()
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: %s", sports.ErrEventNotFound, id)
	}

	ev, err := c.toEvent(raws[0], league)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// TeamSchedule merges the team's recent and upcoming events and returns
// the ones inside [today − 7d, today + daysAhead], ascending. The free
// tier caps both lists at five entries which covers the window for every
// league we route here.
func (c *Client) TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error) {
	if _, ok := leagueNames[league]; !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var last, next eventsResponse
	if err := c.get(ctx, "eventslast.php", url.Values{"id": {teamID}}, &last); err != nil {
		return nil, err
	}
	if err := c.get(ctx, "eventsnext.php", url.Values{"id": {teamID}}, &next); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, daysAhead+1)

	seen := make(map[string]bool)
	var events []domain.Event
	for _, raw := range append(last.list(), next.list()...) {
		if raw.IDEvent == "" || seen[raw.IDEvent] {
			continue
		}
		seen[raw.IDEvent] = true

		ev, err := c.toEvent(raw, league)
		if err != nil {
			continue
		}
		if ev.StartTime.Before(from) || ev.StartTime.After(to) {
			continue
		}
		events = append(events, ev)
	}
	sortEvents(events)
	return events, nil
}

// TeamStats derives record and streak from the team's last results. The
// API has no standings endpoint on the free tier, so form over the last
// games is the best available signal.
func (c *Client) TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error) {
	if _, ok := leagueNames[league]; !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var resp eventsResponse
	if err := c.get(ctx, "eventslast.php", url.Values{"id": {teamID}}, &resp); err != nil {
		return nil, err
	}
	return formStats(resp.list(), teamID), nil
}

// SearchTeams looks a team up by name, used when an ESPN id cannot be
// mapped onto TheSportsDB.
func (c *Client) SearchTeams(ctx context.Context, name string) ([]domain.Team, error) {
	var resp teamsResponse
	if err := c.get(ctx, "searchteams.php", url.Values{"t": {name}}, &resp); err != nil {
		return nil, err
	}

	teams := make([]domain.Team, 0, len(resp.Teams))
	for _, raw := range resp.Teams {
		teams = append(teams, normalizeTeam(raw))
	}
	return teams, nil
}

// statusError carries a non-2xx answer so callers can map specific codes.
type statusError struct {
	status int
	path   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sportsdb: %s returned HTTP %d", e.path, e.status)
}

// get performs one GET with bounded retries on transport errors and 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	rawURL := c.baseURL + "/" + c.apiKey + "/" + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	maxAttempts := c.maxRetries + 1
	var lastErr error

	start := time.Now()
	defer func() {
		metrics.ObserveProviderRequest("sportsdb", time.Since(start).Seconds())
	}()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				if serr := sleepWithContext(ctx, c.backoff*time.Duration(attempt)); serr != nil {
					return serr
				}
				continue
			}
			metrics.IncProviderRequest("sportsdb", "error")
			return fmt.Errorf("sportsdb: %s: %w", path, err)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		// The free tier answers 429 when the per-minute budget is spent.
		if (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests) && attempt < maxAttempts {
			lastErr = &statusError{status: resp.StatusCode, path: path}
			if serr := sleepWithContext(ctx, c.backoff*time.Duration(attempt)); serr != nil {
				return serr
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			metrics.IncProviderRequest("sportsdb", "error")
			return &statusError{status: resp.StatusCode, path: path}
		}

		if err := json.Unmarshal(body, target); err != nil {
			metrics.IncProviderRequest("sportsdb", "error")
			return fmt.Errorf("sportsdb: decode %s: %w", path, err)
		}
		metrics.IncProviderRequest("sportsdb", "success")
		return nil
	}

	metrics.IncProviderRequest("sportsdb", "error")
	if lastErr != nil {
		return fmt.Errorf("sportsdb: %s: %w", path, lastErr)
	}
	return fmt.Errorf("sportsdb: %s: request failed", path)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Source identifies this catalog in span labels.
func (c *Client) Source() domain.Provider { return domain.ProviderSportsDB }

var _ sports.Provider = (*Client)(nil)
