package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route pattern
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vscubing_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vscubing_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// SolveAdmissions counts createSolve decisions by outcome
	SolveAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vscubing_solve_admissions_total",
			Help: "Solve admission decisions by outcome",
		},
		[]string{"outcome"},
	)

	ValidatorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vscubing_validator_duration_seconds",
			Help:    "Reconstruction validator latency by verdict",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verdict"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vscubing_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	RoundSessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vscubing_round_sessions_finished_total",
			Help: "Round sessions moved to finished, by reason",
		},
		[]string{"reason"},
	)
)

// RecordDBOperation records the duration of a database operation
func RecordDBOperation(operation string, table string, startTime time.Time) {
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}
