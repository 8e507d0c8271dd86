// SPDX-License-Identifier: MIT

// Package log owns the process logger: a zerolog base configured once,
// component-tagged children, request-id plumbing for the API, and the
// recent-entries ring the status endpoints read.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

// ContextWithRequestID binds the id that request-scoped loggers pick up.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext reads the bound request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithComponentFromContext builds a component logger carrying whatever
// correlation the context holds: the request id when one is bound, trace
// and span ids when the context rides a valid span.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	lc := logger().With().Str("component", component)
	if ctx == nil {
		return lc.Logger()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	return lc.Logger()
}
