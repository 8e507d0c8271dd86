// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/teamarr/teamarr/internal/metrics"
)

const (
	// tokenLifetime is assumed when the access token carries no exp claim.
	tokenLifetime = 5 * time.Minute
	// tokenBuffer re-authenticates this long before actual expiry so a
	// token never dies mid-request.
	tokenBuffer = time.Minute
)

var timeNow = time.Now

// session holds the bearer credentials for one (baseURL, username) pair.
// Its mutex is held across the network exchange so concurrent callers on
// the same account observe at most one in-flight authentication.
type session struct {
	mu        sync.Mutex
	access    string
	refresh   string
	expiresAt time.Time
}

// TokenCache shares sessions across every client pointed at the same
// account. The zero value is not usable; use NewTokenCache.
type TokenCache struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewTokenCache() *TokenCache {
	return &TokenCache{sessions: make(map[string]*session)}
}

// defaultTokens is the process-wide cache used when a client is built
// without an explicit one.
var defaultTokens = NewTokenCache()

func (tc *TokenCache) session(baseURL, username string) *session {
	key := baseURL + "\n" + username
	tc.mu.Lock()
	defer tc.mu.Unlock()
	s, ok := tc.sessions[key]
	if !ok {
		s = &session{}
		tc.sessions[key] = s
	}
	return s
}

// token returns a valid bearer token, authenticating when the cached one
// is absent or inside the expiry buffer.
func (c *Client) token(ctx context.Context) (string, error) {
	s := c.tokens.session(c.baseURL, c.username)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access != "" && timeNow().Before(s.expiresAt.Add(-tokenBuffer)) {
		return s.access, nil
	}
	return c.authenticate(ctx, s)
}

// invalidate drops the cached session so the next call re-authenticates
// from scratch.
func (c *Client) invalidate() {
	s := c.tokens.session(c.baseURL, c.username)
	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// authenticate refreshes the access token, falling back to a full
// password exchange. Caller holds s.mu.
func (c *Client) authenticate(ctx context.Context, s *session) (string, error) {
	if s.refresh != "" {
		if err := c.refreshAccess(ctx, s); err == nil {
			metrics.IncAuthExchange("refresh", "success")
			return s.access, nil
		}
		metrics.IncAuthExchange("refresh", "failure")
		c.logger.Debug().
			Str("event", "dispatcharr.auth.refresh_failed").
			Str("username", c.username).
			Msg("token refresh failed, falling back to password exchange")
	}

	if err := c.passwordExchange(ctx, s); err != nil {
		metrics.IncAuthExchange("password", "failure")
		return "", err
	}
	metrics.IncAuthExchange("password", "success")
	return s.access, nil
}

func (c *Client) refreshAccess(ctx context.Context, s *session) error {
	body, err := json.Marshal(map[string]string{"refresh": s.refresh})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/accounts/token/refresh/", body, "")
	if err != nil {
		return &APIError{Sentinel: ErrNetwork, Operation: "token refresh", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Sentinel: ErrAuth, Operation: "token refresh", Status: resp.StatusCode}
	}

	var payload struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode token refresh response: %w", err)
	}
	if payload.Access == "" {
		return &APIError{Sentinel: ErrAuth, Operation: "token refresh", Body: "empty access token"}
	}

	s.access = payload.Access
	if payload.Refresh != "" {
		s.refresh = payload.Refresh
	}
	s.expiresAt = tokenExpiry(s.access, timeNow())
	return nil
}

func (c *Client) passwordExchange(ctx context.Context, s *session) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/accounts/token/", body, "")
	if err != nil {
		return &APIError{Sentinel: ErrNetwork, Operation: "token exchange", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Sentinel: ErrAuth, Operation: "token exchange", Status: resp.StatusCode}
	}

	var payload struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode token exchange response: %w", err)
	}
	if payload.Access == "" {
		return &APIError{Sentinel: ErrAuth, Operation: "token exchange", Body: "empty access token"}
	}

	s.access = payload.Access
	s.refresh = payload.Refresh
	s.expiresAt = tokenExpiry(s.access, timeNow())
	return nil
}

// tokenExpiry reads the exp claim from the access token. We are the
// consumer, not the issuer, so the signature is not verified here; a
// token without a parseable claim gets the default lifetime.
func tokenExpiry(access string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(tokenLifetime)
}
