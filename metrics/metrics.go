package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Domain counters
	MarkerScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gormazar_marker_scans_total",
			Help: "Accepted marker scan increments",
		},
		[]string{"marker"},
	)

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gormazar_registrations_total",
			Help: "Registration requests by outcome",
		},
		[]string{"result"}, // "created", "existing"
	)

	Completions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gormazar_completions_total",
			Help: "Users that scanned every marker",
		},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gormazar_session_duration_seconds",
			Help:    "Reported session durations",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
	)

	// StatsDrift is the difference between a stored counter and the value recomputed from user rows.
	StatsDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gormazar_stats_drift",
			Help: "Stored aggregate minus recomputed value, per counter",
		},
		[]string{"counter"},
	)

	// Cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gormazar_cache_hits_total",
			Help: "Stats cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gormazar_cache_misses_total",
			Help: "Stats cache misses",
		},
	)

	// CacheBreakerState is 0 closed, 1 half-open, 2 open.
	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gormazar_cache_breaker_state",
			Help: "State of the Redis cache circuit breaker",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)
