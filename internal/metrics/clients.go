// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream channel manager client
	dispatcharrRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_dispatcharr_requests_total",
		Help: "Dispatcharr API requests by method and outcome",
	}, []string{"method", "outcome"}) // outcome=success|auth|validation|server|network

	dispatcharrRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teamarr_dispatcharr_request_duration_seconds",
		Help:    "Dispatcharr API request latency",
		Buckets: prometheus.DefBuckets,
	})

	authExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_auth_exchanges_total",
		Help: "Token acquisitions by path and outcome",
	}, []string{"path", "outcome"}) // path=refresh|password outcome=success|failure

	// Sports providers
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_provider_requests_total",
		Help: "Sports provider requests by provider and outcome",
	}, []string{"provider", "outcome"}) // outcome=success|error|timeout

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamarr_provider_request_duration_seconds",
		Help:    "Sports provider request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	providerCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_provider_cache_total",
		Help: "Provider response cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	// M3U refresh fan-out
	m3uRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_m3u_refresh_total",
		Help: "M3U account refresh outcomes",
	}, []string{"outcome"}) // outcome=success|failure|skipped|timeout

	m3uRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teamarr_m3u_refresh_duration_seconds",
		Help:    "Time until an account refresh completed or timed out",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 180},
	})
)

func IncDispatcharrRequest(method, outcome string) {
	dispatcharrRequestsTotal.WithLabelValues(method, outcome).Inc()
}

func ObserveDispatcharrRequest(seconds float64) {
	dispatcharrRequestDuration.Observe(seconds)
}

func IncAuthExchange(path, outcome string) {
	authExchangesTotal.WithLabelValues(path, outcome).Inc()
}

func IncProviderRequest(provider, outcome string) {
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

func ObserveProviderRequest(provider string, seconds float64) {
	providerRequestDuration.WithLabelValues(provider).Observe(seconds)
}

func IncProviderCache(result string) { providerCacheTotal.WithLabelValues(result).Inc() }

func IncM3URefresh(outcome string) { m3uRefreshTotal.WithLabelValues(outcome).Inc() }

func ObserveM3URefresh(seconds float64) { m3uRefreshDuration.Observe(seconds) }
