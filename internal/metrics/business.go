// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics
	generationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_generation_runs_total",
		Help: "Generation runs by outcome",
	}, []string{"outcome"}) // outcome=success|error|cancelled

	generationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teamarr_generation_duration_seconds",
		Help:    "Wall time of a full generation run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	generationCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamarr_generation_counter",
		Help: "Monotonic generation counter from the update tracker",
	})

	// Matching metrics
	streamsMatched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_streams_matched",
		Help: "Streams matched per group and detection tier (last run)",
	}, []string{"group", "tier"}) // tier=cache|team|event_name|league_keyword

	streamsUnmatched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_streams_unmatched",
		Help: "Streams left unmatched per group (last run)",
	}, []string{"group"})

	matchCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_match_cache_total",
		Help: "Fingerprint cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	exceptionStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_streams_exception",
		Help: "Streams routed by exception keyword per group (last run)",
	}, []string{"group"})

	// Event fetch metrics
	eventsFetched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_events_fetched",
		Help: "Events fetched per league in the last run",
	}, []string{"league"})

	// XMLTV metrics
	xmltvChannelsWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamarr_xmltv_channels_written",
		Help: "Channels written to the consolidated XMLTV in last run",
	})
	xmltvProgrammesWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamarr_xmltv_programmes_written",
		Help: "Programmes written to the consolidated XMLTV in last run",
	})
	xmltvWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamarr_xmltv_write_errors_total",
		Help: "Total number of XMLTV write failures",
	})

	// Error metrics for run stages
	runFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_run_failures_total",
		Help: "Total number of run failures by stage",
	}, []string{"stage"}) // stage=config|streams|events|match|channels|epg|consolidate|import
)

func RecordGenerationRun(outcome string, seconds float64) {
	generationRunsTotal.WithLabelValues(outcome).Inc()
	generationDurationSeconds.Observe(seconds)
}

func RecordGenerationCounter(n int64) { generationCounter.Set(float64(n)) }

func RecordStreamsMatched(group, tier string, n int) {
	streamsMatched.WithLabelValues(group, tier).Set(float64(n))
}

func RecordStreamsUnmatched(group string, n int) {
	streamsUnmatched.WithLabelValues(group).Set(float64(n))
}

func RecordExceptionStreams(group string, n int) {
	exceptionStreams.WithLabelValues(group).Set(float64(n))
}

func IncMatchCache(result string) { matchCacheTotal.WithLabelValues(result).Inc() }

func RecordEventsFetched(league string, n int) {
	eventsFetched.WithLabelValues(league).Set(float64(n))
}

func RecordXMLTV(channels, programmes int, writeErr error) {
	xmltvChannelsWritten.Set(float64(channels))
	xmltvProgrammesWritten.Set(float64(programmes))
	if writeErr != nil {
		xmltvWriteErrors.Inc()
	}
}

func IncRunFailure(stage string) { runFailuresTotal.WithLabelValues(stage).Inc() }
