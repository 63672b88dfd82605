package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Query embedding metrics. Labels carry the configured provider and model.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Provider calls by status (success/error), retries included",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Latency of successful provider calls",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		},
		[]string{"provider", "model"},
	)

	EmbeddingRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "retries_total",
			Help:      "Extra attempts after a 429 or 5xx provider response",
		},
		[]string{"provider", "model"},
	)

	EmbeddingRateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the local provider rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"provider"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens billed for query embeddings (type=prompt/total)",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "errors_total",
			Help:      "Failed provider calls by cause",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "budget_tokens_remaining",
			Help:      "Tokens left in the daily or monthly embedding budget",
		},
		[]string{"provider", "period"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Query embedding cache lookups (result=hit/miss)",
		},
		[]string{"result"},
	)
)

var embeddingMetricsOnce sync.Once

// RegisterEmbeddingMetrics registers the query embedding metrics. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	embeddingMetricsOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingRetriesTotal,
			EmbeddingRateLimitWait,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBudgetTokensRemaining,
			EmbeddingCacheTotal,
		)
	})
}
