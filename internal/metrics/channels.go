// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelsManaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamarr_channels_managed",
		Help: "Managed channels currently tracked (not soft-deleted)",
	})

	channelsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamarr_channels_created_total",
		Help: "Managed channels created upstream",
	})

	channelsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_channels_deleted_total",
		Help: "Managed channels deleted by reason",
	}, []string{"reason"}) // reason=scheduled|stream_removed|manual|orphan

	reconcileIssues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_reconcile_issues",
		Help: "Reconciliation issues found in the last sweep",
	}, []string{"type"}) // type=orphan_teamarr|orphan_dispatcharr|duplicate|drift

	reconcileFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_reconcile_fixes_total",
		Help: "Automatic reconciliation fixes by type and outcome",
	}, []string{"type", "outcome"}) // outcome=applied|failed|skipped
)

func RecordChannelsManaged(n int) { channelsManaged.Set(float64(n)) }

func IncChannelCreated() { channelsCreatedTotal.Inc() }

func IncChannelDeleted(reason string) { channelsDeletedTotal.WithLabelValues(reason).Inc() }

func RecordReconcileIssues(issueType string, n int) {
	reconcileIssues.WithLabelValues(issueType).Set(float64(n))
}

func IncReconcileFix(issueType, outcome string) {
	reconcileFixesTotal.WithLabelValues(issueType, outcome).Inc()
}
