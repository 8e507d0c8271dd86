// SPDX-License-Identifier: MIT

package dispatcharr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrAuth          = errors.New("dispatcharr: authentication failed")
	ErrNetwork       = errors.New("dispatcharr: host unreachable or transport failure")
	ErrValidation    = errors.New("dispatcharr: request rejected")
	ErrServer        = errors.New("dispatcharr: internal error (5xx)")
	ErrUpstreamState = errors.New("dispatcharr: upstream state conflict")
	ErrNotFound      = errors.New("dispatcharr: resource not found")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("dispatcharr: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// classify maps an HTTP status to its sentinel.
func classify(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrNotFound
	case status == 409:
		return ErrUpstreamState
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	}
	return nil
}

// ParseFieldErrors flattens a DRF-style error body into one human string.
// Handles {"field": ["msg", ...]} maps, {"detail": "msg"} objects, and
// plain strings; anything else is returned verbatim.
func ParseFieldErrors(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return trimmed
	}

	if detail, ok := fields["detail"]; ok && len(fields) == 1 {
		var msg string
		if err := json.Unmarshal(detail, &msg); err == nil {
			return msg
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		var msgs []string
		if err := json.Unmarshal(fields[name], &msgs); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(msgs, ", ")))
			continue
		}
		var single string
		if err := json.Unmarshal(fields[name], &single); err == nil {
			parts = append(parts, fmt.Sprintf("%s: %s", name, single))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, string(fields[name])))
	}
	if len(parts) == 0 {
		return trimmed
	}
	return strings.Join(parts, "; ")
}
