// SPDX-License-Identifier: MIT

// Package espn fetches events, schedules and team context from the ESPN
// site API and normalizes the payloads into domain types.
package espn

import (
	"context"
	"errors"
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
	defaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

	defaultTimeout        = 20 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 250 * time.Millisecond
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
)

// leaguePaths maps leagues onto the API's sport/league path segments.
// Cricket is absent on purpose; those schedules come from TheSportsDB.
var leaguePaths = map[domain.League]string{
	domain.LeagueNFL:   "football/nfl",
	domain.LeagueNCAAF: "football/college-football",
	domain.LeagueNBA:   "basketball/nba",
	domain.LeagueWNBA:  "basketball/wnba",
	domain.LeagueNCAAB: "basketball/mens-college-basketball",
	domain.LeagueNHL:   "hockey/nhl",
	domain.LeagueMLB:   "baseball/mlb",
	domain.LeagueMLS:   "soccer/usa.1",
	domain.LeagueEPL:   "soccer/eng.1",
	domain.LeagueUFC:   "mma/ufc",
}

// teamDirectoryPaths extends Teams to leagues whose schedules come from
// elsewhere; ESPN still carries the better logos and short names.
var teamDirectoryPaths = map[domain.League]string{
	domain.LeagueIPL: "cricket/8048",
}

// Client talks to the ESPN site API. Safe for concurrent use.
type Client struct {
	baseURL    string
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

// New creates an ESPN client.
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
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		userAgent:  opts.UserAgent,
		logger:     log.WithComponent("espn"),
	}
}

// Events lists the league's events on the given day via the scoreboard.
func (c *Client) Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error) {
	path, ok := leaguePaths[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	params := url.Values{"dates": {date.Format("20060102")}}
	var resp scoreboardResponse
	if err := c.get(ctx, path+"/scoreboard", params, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(resp.Events))
	for _, raw := range resp.Events {
		ev, err := c.toEvent(raw, league)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("event", "espn.event.skipped").
				Str("espn_id", raw.ID).
				Str("league", string(league)).
				Msg("dropping malformed event")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Event fetches one event via the summary endpoint.
func (c *Client) Event(ctx context.Context, id string, league domain.League) (*domain.Event, error) {
	path, ok := leaguePaths[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	params := url.Values{"event": {id}}
	var resp summaryResponse
	if err := c.get(ctx, path+"/summary", params, &resp); err != nil {
		var se *statusError
		// The API answers 400 for ids it has never seen and 404 for
		// expired ones.
		if errors.As(err, &se) && (se.status == http.StatusBadRequest || se.status == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", sports.ErrEventNotFound, id)
		}
		return nil, err
	}

	ev, err := c.fromSummary(resp, league)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// TeamSchedule returns the team's events inside the window
// [today − 7d, today + daysAhead], ascending. The API returns the whole
// season; the window keeps enough of the past for last-game context.
func (c *Client) TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error) {
	path, ok := leaguePaths[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var resp scheduleResponse
	if err := c.get(ctx, path+"/teams/"+url.PathEscape(teamID)+"/schedule", nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, daysAhead+1)

	events := make([]domain.Event, 0, len(resp.Events))
	for _, raw := range resp.Events {
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

// TeamStats resolves record, streak, rank and standing for a team.
func (c *Client) TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error) {
	path, ok := leaguePaths[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var resp teamResponse
	if err := c.get(ctx, path+"/teams/"+url.PathEscape(teamID), nil, &resp); err != nil {
		return nil, err
	}
	return statsFromTeam(resp.Team), nil
}

// Teams lists the league's teams, used by the soccer competition index
// and the cricket metadata join.
func (c *Client) Teams(ctx context.Context, league domain.League) ([]domain.Team, error) {
	path, ok := leaguePaths[league]
	if !ok {
		path, ok = teamDirectoryPaths[league]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", sports.ErrUnsupportedLeague, league)
	}

	var resp teamsResponse
	if err := c.get(ctx, path+"/teams", url.Values{"limit": {"500"}}, &resp); err != nil {
		return nil, err
	}

	var teams []domain.Team
	for _, sp := range resp.Sports {
		for _, lg := range sp.Leagues {
			for _, entry := range lg.Teams {
				teams = append(teams, normalizeTeam(entry.Team, league))
			}
		}
	}
	return teams, nil
}

// statusError carries a non-2xx answer so callers can map specific codes.
type statusError struct {
	status int
	path   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("espn: %s returned HTTP %d", e.path, e.status)
}

// get performs one GET with bounded retries on transport errors and 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	rawURL := c.baseURL + "/" + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	maxAttempts := c.maxRetries + 1
	var lastErr error

	start := time.Now()
	defer func() {
		metrics.ObserveProviderRequest("espn", time.Since(start).Seconds())
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
			metrics.IncProviderRequest("espn", "error")
			return fmt.Errorf("espn: %s: %w", path, err)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 && attempt < maxAttempts {
			lastErr = &statusError{status: resp.StatusCode, path: path}
			if serr := sleepWithContext(ctx, c.backoff*time.Duration(attempt)); serr != nil {
				return serr
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			metrics.IncProviderRequest("espn", "error")
			return &statusError{status: resp.StatusCode, path: path}
		}

		if err := json.Unmarshal(body, target); err != nil {
			metrics.IncProviderRequest("espn", "error")
			return fmt.Errorf("espn: decode %s: %w", path, err)
		}
		metrics.IncProviderRequest("espn", "success")
		return nil
	}

	metrics.IncProviderRequest("espn", "error")
	if lastErr != nil {
		return fmt.Errorf("espn: %s: %w", path, lastErr)
	}
	return fmt.Errorf("espn: %s: request failed", path)
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
func (c *Client) Source() domain.Provider { return domain.ProviderESPN }

var _ sports.Provider = (*Client)(nil)
