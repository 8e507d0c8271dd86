// SPDX-License-Identifier: MIT

// Package dispatcharr is the HTTP client for the upstream channel
// manager. One request core carries bearer auth with a shared token
// cache, bounded retries, rate limiting, and the error taxonomy; typed
// wrappers per API area sit on top.
package dispatcharr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/telemetry"
)

// Client talks to one Dispatcharr instance as one account.
type Client struct {
	baseURL    string
	username   string
	password   string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	userAgent  string
	tokens     *TokenCache
	logger     zerolog.Logger
	rnd        *rand.Rand
	mu         sync.Mutex
}

// Options configures the client behavior.
type Options struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	MaxRetries            int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	UserAgent             string
	RateLimit             rate.Limit
	RateLimitBurst        int
	// Tokens shares the session cache across clients; nil uses the
	// process-wide cache.
	Tokens *TokenCache
}

const (
	defaultTimeout        = 30 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
)

// New creates a Dispatcharr client for the given account.
func New(baseURL, username, password string, opts Options) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	nopts := normalizeOptions(opts)

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: nopts.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
	}

	tokens := nopts.Tokens
	if tokens == nil {
		tokens = defaultTokens
	}

	return &Client{
		baseURL:  trimmed,
		username: username,
		password: password,
		http: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		maxRetries: nopts.MaxRetries,
		backoff:    nopts.Backoff,
		maxBackoff: nopts.MaxBackoff,
		userAgent:  nopts.UserAgent,
		tokens:     tokens,
		logger:     log.WithComponent("dispatcharr"),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = opts.Timeout
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
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
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

// BaseURL returns the configured upstream base URL without a trailing
// slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Request performs one authenticated API call and returns the response
// body. A 401 clears the cached session exactly once and retries the
// original call; a second 401 surfaces as an auth failure. Non-2xx
// statuses map onto the package sentinels.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	op := method + " " + endpointPath(endpoint)

	token, err := c.token(ctx)
	if err != nil {
		metrics.IncDispatcharrRequest(method, "auth")
		return nil, err
	}

	status, data, err := c.exchange(ctx, method, endpoint, payload, token)
	if err != nil {
		metrics.IncDispatcharrRequest(method, "network")
		return nil, &APIError{Sentinel: ErrNetwork, Operation: op, Err: err}
	}

	if status == http.StatusUnauthorized {
		c.invalidate()
		token, err = c.token(ctx)
		if err != nil {
			metrics.IncDispatcharrRequest(method, "auth")
			return nil, err
		}
		status, data, err = c.exchange(ctx, method, endpoint, payload, token)
		if err != nil {
			metrics.IncDispatcharrRequest(method, "network")
			return nil, &APIError{Sentinel: ErrNetwork, Operation: op, Err: err}
		}
		if status == http.StatusUnauthorized {
			metrics.IncDispatcharrRequest(method, "auth")
			return nil, &APIError{Sentinel: ErrAuth, Operation: op, Status: status, Body: snippet(data)}
		}
	}

	if status >= http.StatusBadRequest {
		apiErr := c.apiError(op, status, data)
		metrics.IncDispatcharrRequest(method, outcomeFor(apiErr))
		return nil, apiErr
	}

	metrics.IncDispatcharrRequest(method, "success")
	return data, nil
}

// exchange runs one do round-trip and drains the response.
func (c *Client) exchange(ctx context.Context, method, endpoint string, payload []byte, bearer string) (int, []byte, error) {
	resp, err := c.do(ctx, method, endpoint, payload, bearer)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func (c *Client) apiError(op string, status int, body []byte) error {
	sentinel := classify(status)
	detail := ""
	switch sentinel {
	case ErrValidation, ErrUpstreamState:
		detail = ParseFieldErrors(body)
	default:
		detail = snippet(body)
	}
	return &APIError{Sentinel: sentinel, Operation: op, Status: status, Body: detail}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamState):
		return "conflict"
	case errors.Is(err, ErrServer):
		return "server"
	}
	return "network"
}

// do executes one HTTP exchange against baseURL+endpoint with rate
// limiting, client spans, and bounded retries on transport errors and
// 5xx. The final response is returned with its body unread; 4xx counts
// as an answer, not a retry.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, bearer string) (*http.Response, error) {
	rawURL := c.baseURL + endpoint
	tracer := telemetry.Tracer("teamarr.dispatcharr")
	route, urlLabel := traceLabels(rawURL)
	ctx, span := tracer.Start(ctx, "teamarr.dispatcharr.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.url", urlLabel),
	)
	defer span.End()

	maxAttempts := c.maxRetries + 1
	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := tracer.Start(ctx, "teamarr.dispatcharr.request.attempt", trace.WithSpanKind(trace.SpanKindClient))
		attemptSpan.SetAttributes(
			attribute.Int("attempt", attempt),
			attribute.Bool("retry", attempt > 1),
		)

		if c.limiter != nil {
			if err := c.limiter.Wait(attemptCtx); err != nil {
				attemptSpan.RecordError(err)
				attemptSpan.SetStatus(codes.Error, err.Error())
				attemptSpan.End()
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reqBody)
		if err != nil {
			attemptSpan.RecordError(err)
			attemptSpan.SetStatus(codes.Error, err.Error())
			attemptSpan.End()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		c.applyHeaders(req, payload != nil, bearer)
		otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := c.http.Do(req)
		duration := time.Since(start)
		metrics.ObserveDispatcharrRequest(duration.Seconds())

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		retry := (err != nil || status >= http.StatusInternalServerError) && attempt < maxAttempts

		attemptSpan.SetAttributes(telemetry.HTTPAttributes(method, route, urlLabel, status)...)
		if err != nil {
			attemptSpan.RecordError(err)
		}
		if err != nil || status >= http.StatusBadRequest {
			statusText := http.StatusText(status)
			if statusText == "" {
				statusText = "request failed"
			}
			attemptSpan.SetStatus(codes.Error, statusText)
		} else {
			attemptSpan.SetStatus(codes.Ok, "")
		}
		attemptSpan.End()

		if err == nil && !retry {
			span.SetAttributes(telemetry.HTTPAttributes(method, route, urlLabel, status)...)
			if status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return resp, nil
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		lastErr = err
		lastStatus = status

		if !retry {
			break
		}

		wait := c.backoffFor(attempt - 1)
		if err := sleepWithContext(ctx, wait); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if lastStatus > 0 {
		span.SetAttributes(telemetry.HTTPAttributes(method, route, urlLabel, lastStatus)...)
		if lastStatus >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(lastStatus))
		}
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		return nil, lastErr
	}
	return nil, fmt.Errorf("request failed")
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool, bearer string) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
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

func traceLabels(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, rawURL
	}
	route := u.Path
	if route == "" {
		route = "/"
	}
	urlLabel := route
	if u.RawQuery != "" {
		urlLabel += "?"
	}
	return route, urlLabel
}

func endpointPath(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
