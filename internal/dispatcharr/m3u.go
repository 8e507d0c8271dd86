// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/teamarr/teamarr/internal/metrics"
)

// Account is an upstream M3U playlist account.
type Account struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastMessage string    `json:"last_message"`
}

// Account status values reported by upstream.
const (
	accountStatusIdle     = "idle"
	accountStatusFetching = "fetching"
	accountStatusError    = "error"
	accountStatusSuccess  = "success"
	accountStatusDisabled = "disabled"
)

// Per-account refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeTimeout = "timeout"
)

// AccountOutcome records how one account's refresh ended.
type AccountOutcome struct {
	Name    string
	Outcome string
	Message string
}

// RefreshResult aggregates a refresh batch. Timeouts count as failures.
type RefreshResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Accounts  map[int]AccountOutcome
}

// RefreshOptions tunes the refresh batch; zero values take defaults.
type RefreshOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	SkipIfRecent time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 120 * time.Second
	defaultSkipIfRecent = 10 * time.Minute
)

func normalizeRefreshOptions(opts RefreshOptions) RefreshOptions {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	if opts.SkipIfRecent < 0 {
		opts.SkipIfRecent = defaultSkipIfRecent
	}
	return opts
}

// M3UAccounts lists the upstream playlist accounts.
func (c *Client) M3UAccounts(ctx context.Context) ([]Account, error) {
	return fetchAll[Account](ctx, c, "/api/m3u/accounts/")
}

// M3UAccount fetches one playlist account.
func (c *Client) M3UAccount(ctx context.Context, id int) (*Account, error) {
	body, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/api/m3u/accounts/%d/", id), nil)
	if err != nil {
		return nil, err
	}
	var a Account
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &a, nil
}

// TriggerM3URefresh starts an asynchronous playlist refresh upstream.
func (c *Client) TriggerM3URefresh(ctx context.Context, id int) error {
	_, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/api/m3u/refresh/%d/", id), nil)
	return err
}

// RefreshAllAccounts triggers a refresh for every eligible account in
// parallel, then polls each account until its updated_at moves, its
// status turns error, or the batch timeout elapses. Accounts refreshed
// within SkipIfRecent and disabled accounts are skipped. The batch is
// failure-tolerant: one account's outcome never aborts the others.
func (c *Client) RefreshAllAccounts(ctx context.Context, opts RefreshOptions) (*RefreshResult, error) {
	opts = normalizeRefreshOptions(opts)

	accounts, err := c.M3UAccounts(ctx)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Accounts: make(map[int]AccountOutcome)}
	now := timeNow()

	var eligible []Account
	baseline := make(map[int]time.Time)
	for _, a := range accounts {
		switch {
		case a.Status == accountStatusDisabled:
			result.Accounts[a.ID] = AccountOutcome{Name: a.Name, Outcome: OutcomeSkipped, Message: "account disabled"}
			result.Skipped++
			metrics.IncM3URefresh("skipped")
		case opts.SkipIfRecent > 0 && !a.UpdatedAt.IsZero() && now.Sub(a.UpdatedAt) < opts.SkipIfRecent:
			result.Accounts[a.ID] = AccountOutcome{Name: a.Name, Outcome: OutcomeSkipped, Message: "recently refreshed"}
			result.Skipped++
			metrics.IncM3URefresh("skipped")
		default:
			eligible = append(eligible, a)
			baseline[a.ID] = a.UpdatedAt
		}
	}

	if len(eligible) == 0 {
		return result, nil
	}

	c.logger.Info().
		Str("event", "dispatcharr.m3u.refresh_start").
		Int("accounts", len(eligible)).
		Int("skipped", result.Skipped).
		Msg("triggering playlist refreshes")

	// Fan out one trigger per account. Trigger failures are recorded,
	// not propagated, so the group error is always nil.
	var mu sync.Mutex
	var pending []Account
	var g errgroup.Group
	for _, a := range eligible {
		g.Go(func() error {
			if err := c.TriggerM3URefresh(ctx, a.ID); err != nil {
				c.logger.Warn().
					Err(err).
					Str("event", "dispatcharr.m3u.trigger_failed").
					Int("account_id", a.ID).
					Str("account", a.Name).
					Msg("playlist refresh trigger failed")
				mu.Lock()
				result.Accounts[a.ID] = AccountOutcome{Name: a.Name, Outcome: OutcomeFailed, Message: err.Error()}
				result.Failed++
				mu.Unlock()
				metrics.IncM3URefresh("failure")
				return nil
			}
			mu.Lock()
			pending = append(pending, a)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.pollRefreshes(ctx, opts, pending, baseline, result)

	c.logger.Info().
		Str("event", "dispatcharr.m3u.refresh_done").
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("playlist refresh batch finished")
	return result, nil
}

// pollRefreshes watches the pending accounts single-threaded at a fixed
// cadence until each completes or the batch deadline passes.
func (c *Client) pollRefreshes(ctx context.Context, opts RefreshOptions, pending []Account, baseline map[int]time.Time, result *RefreshResult) {
	if len(pending) == 0 {
		return
	}

	watch := make(map[int]Account, len(pending))
	started := timeNow()
	deadline := started.Add(opts.Timeout)
	for _, a := range pending {
		watch[a.ID] = a
	}

	for len(watch) > 0 {
		if !timeNow().Before(deadline) {
			break
		}
		if err := sleepWithContext(ctx, opts.PollInterval); err != nil {
			break
		}

		for id, a := range watch {
			acct, err := c.M3UAccount(ctx, id)
			if err != nil {
				// The refresh may still land; keep polling until the
				// deadline decides.
				c.logger.Warn().
					Err(err).
					Str("event", "dispatcharr.m3u.poll_failed").
					Int("account_id", id).
					Msg("account poll failed")
				continue
			}

			switch {
			case acct.Status == accountStatusError:
				msg := acct.LastMessage
				if msg == "" {
					msg = "upstream reported refresh error"
				}
				result.Accounts[id] = AccountOutcome{Name: a.Name, Outcome: OutcomeFailed, Message: msg}
				result.Failed++
				metrics.IncM3URefresh("failure")
				metrics.ObserveM3URefresh(timeNow().Sub(started).Seconds())
				delete(watch, id)
			case !acct.UpdatedAt.Equal(baseline[id]):
				result.Accounts[id] = AccountOutcome{Name: a.Name, Outcome: OutcomeSuccess}
				result.Succeeded++
				metrics.IncM3URefresh("success")
				metrics.ObserveM3URefresh(timeNow().Sub(started).Seconds())
				delete(watch, id)
			}
		}
	}

	for id, a := range watch {
		result.Accounts[id] = AccountOutcome{Name: a.Name, Outcome: OutcomeTimeout, Message: "refresh did not complete before the batch timeout"}
		result.Failed++
		metrics.IncM3URefresh("timeout")
		metrics.ObserveM3URefresh(opts.Timeout.Seconds())
	}
}
