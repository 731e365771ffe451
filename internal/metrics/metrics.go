package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	SeenNew       = "new"
	SeenDuplicate = "duplicate"
	SeenError     = "error"
)

// Search metrics. Labels are limited to mode and status so cardinality
// stays bounded however many searches a process runs.
var (
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramsearch_simulations_total",
		Help: "Simulations run, by search mode and result",
	}, []string{"mode", "result"})

	SimulationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paramsearch_simulation_duration_ms",
		Help:    "Simulation latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
	}, []string{"mode"})

	DuplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramsearch_duplicates_skipped_total",
		Help: "Configurations skipped because they were already simulated",
	}, []string{"mode"})

	SearchesActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paramsearch_searches_active",
		Help: "Searches currently running",
	}, []string{"mode"})

	SearchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramsearch_searches_finished_total",
		Help: "Searches finished, by mode and terminal status",
	}, []string{"mode", "status"})

	SearchProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paramsearch_search_progress_ratio",
		Help: "Progress of the most recently updated search (0.0 to 1.0)",
	}, []string{"mode"})

	BestRating = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paramsearch_best_rating",
		Help: "Rating of the best resident strategy of the most recently updated search",
	}, []string{"mode"})

	ResidentStrategies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paramsearch_resident_strategies",
		Help: "Strategies held by the selector when the last search finished",
	}, []string{"mode"})

	SeenSetOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramsearch_seen_set_operations_total",
		Help: "Seen-set lookups by outcome",
	}, []string{"outcome"})

	SeenSetHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paramsearch_seen_set_hit_rate",
		Help: "Share of seen-set lookups that found a duplicate (0.0 to 1.0)",
	})
)

// Infrastructure metrics
var (
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paramsearch_database_connections_active",
		Help: "Number of acquired database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paramsearch_database_connections_idle",
		Help: "Number of idle database connections",
	})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paramsearch_api_request_duration_ms",
		Help:    "Status API request latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"method", "route", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paramsearch_http_requests_total",
		Help: "Status API requests",
	}, []string{"method", "route", "status"})
)

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, route, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, route, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, route, statusCode).Inc()
}
