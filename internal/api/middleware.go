// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/teamarr/teamarr/internal/log"
)

// requestContext stamps each request with an id and binds it into the
// logging context so every handler log line carries it.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

// instrument records per-request duration and access logs.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(code)).Observe(elapsed.Seconds())

		log.WithComponentFromContext(r.Context(), "api").Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", code).
			Dur("elapsed", elapsed).
			Msg("request served")
	})
}
