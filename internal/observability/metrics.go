// Package observability provides observability utilities for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics for monitoring request throughput and latency.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_http_requests_total",
			Help: "Total HTTP requests by method, route pattern, and status",
		},
		[]string{"method", "pattern", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xyprissgo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "pattern"},
	)
)

// Router metrics.
var (
	RouterLookupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_router_lookups_total",
		Help: "Total route trie lookups",
	})

	RouterLookupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_router_lookup_failures_total",
		Help: "Route trie lookups that matched no route",
	})
)

// Cache metrics.
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_cache_hits_total",
		Help: "Total response cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_cache_misses_total",
		Help: "Total response cache misses",
	})

	CacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_cache_evictions_total",
		Help: "Total cache entries evicted under memory or count pressure",
	})

	CacheEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xyprissgo_cache_entries",
		Help: "Current number of entries in the response cache",
	})
)

// Rate limiter metrics.
var (
	RateLimitRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_rate_limit_rejects_total",
			Help: "Total requests rejected by the rate limiter, by scope",
		},
		[]string{"scope"},
	)

	RateLimitAllowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_rate_limit_allows_total",
			Help: "Total requests allowed by the rate limiter, by scope",
		},
		[]string{"scope"},
	)
)

// Cluster and autoscaler metrics.
var (
	WorkerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xyprissgo_worker_state",
			Help: "Worker state (1 for the current state, 0 otherwise), by worker id and state",
		},
		[]string{"worker_id", "state"},
	)

	WorkerRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_worker_restarts_total",
			Help: "Total worker restarts, by worker id",
		},
		[]string{"worker_id"},
	)

	AutoscalerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_autoscaler_decisions_total",
			Help: "Total autoscaler decisions, by direction (scale_up, scale_down, hold)",
		},
		[]string{"direction"},
	)

	AutoscalerWorkerCountGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xyprissgo_autoscaler_worker_count",
		Help: "Current worker count as tracked by the autoscaler",
	})
)

// IPC metrics.
var (
	IPCMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xyprissgo_ipc_messages_total",
			Help: "Total IPC messages sent, by kind",
		},
		[]string{"kind"},
	)

	IPCOversizeRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xyprissgo_ipc_oversize_rejects_total",
		Help: "Total IPC messages rejected for exceeding the size limit",
	})
)
