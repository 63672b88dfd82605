package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "search_requests_total",
			Help:      "Search requests by producing strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "search_fallbacks_total",
			Help:      "Fallback level attempts by level and result (hit/empty/error/skipped)",
		},
		[]string{"level", "result"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	TemporalFilterDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "temporal_filter_dropped_total",
			Help:      "Temporal ranges dropped because the matching rule cannot run hybrid retrieval",
		},
		[]string{"rule"},
	)

	TenantMismatchDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "tenant_mismatch_dropped_total",
			Help:      "Rows returned by the index for a different tenant and dropped before scoring",
		},
	)

	QuotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "quota_rejections_total",
			Help:      "Searches rejected by the per-tenant quota",
		},
	)
)

var searchMetricsOnce sync.Once

// RegisterSearchMetrics registers the search pipeline metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	searchMetricsOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchFallbacksTotal,
			SearchDuration,
			TemporalFilterDroppedTotal,
			TenantMismatchDroppedTotal,
			QuotaRejectionsTotal,
		)
	})
}
