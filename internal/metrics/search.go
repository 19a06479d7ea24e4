package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and collaborator Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "searches_total",
			Help:      "Total number of search invocations",
		},
		[]string{"mode", "cache"}, // mode: "single"/"stream", cache: "hit"/"miss"/"bypass"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caselight",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "remote_requests_total",
			Help:      "Total remote search provider requests by final status",
		},
		[]string{"provider", "status"}, // status: "success"/"error"
	)

	RemoteRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "remote_retries_total",
			Help:      "Total remote search provider retry attempts",
		},
		[]string{"provider"},
	)

	// BestEffortFailuresTotal records failures of operations that are
	// swallowed by design: warm-cache upserts, cache reads/writes, and
	// hit-count bumps. The caller never observes them; this counter does.
	BestEffortFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "best_effort_failures_total",
			Help:      "Swallowed failures of best-effort side operations",
		},
		[]string{"operation"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "generation_requests_total",
			Help:      "Total number of answer generation requests",
		},
		[]string{"model", "mode", "status"}, // mode: "sync"/"stream"
	)

	CacheSweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caselight",
			Name:      "cache_sweep_deleted_total",
			Help:      "Total expired cache rows removed by the sweep loop",
		},
	)
)

// RegisterSearchMetrics registers search metrics explicitly (no init()).
func RegisterSearchMetrics() {
	prometheus.MustRegister(
		SearchesTotal,
		SearchDuration,
		RemoteRequestsTotal,
		RemoteRetriesTotal,
		BestEffortFailuresTotal,
		EmbeddingRequestsTotal,
		GenerationRequestsTotal,
		CacheSweepDeleted,
	)
}
