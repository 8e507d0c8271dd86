// SPDX-License-Identifier: MIT

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamarr_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})

	fileRequestsDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_file_requests_denied_total",
		Help: "Guide file requests denied, by reason",
	}, []string{"reason"})

	fileRequestsAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamarr_file_requests_allowed_total",
		Help: "Guide file requests served",
	})

	fileCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamarr_file_cache_hits_total",
		Help: "Guide file requests answered 304 via ETag",
	})
)

func recordFileDenied(reason string) { fileRequestsDeniedTotal.WithLabelValues(reason).Inc() }

func recordFileAllowed() { fileRequestsAllowedTotal.Inc() }

func recordFileCacheHit() { fileCacheHitsTotal.Inc() }
