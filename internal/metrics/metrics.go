package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursecast_conversions_total",
			Help: "Total number of conversion jobs by outcome",
		},
		[]string{"outcome"}, // "completed", "failed", "skipped"
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursecast_conversion_duration_seconds",
			Help:    "Wall time of conversion jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		},
		[]string{"outcome"},
	)

	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursecast_conversion_failures_total",
			Help: "Failed conversions by error class",
		},
		[]string{"class"},
	)

	ConversionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coursecast_conversions_in_flight",
			Help: "Number of conversion jobs currently running",
		},
	)
)

// Dispatch metrics
var (
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursecast_dispatch_total",
			Help: "Conversion requests by result",
		},
		[]string{"source", "result"}, // source: "single", "bulk"; result: "queued", "skipped", "error"
	)

	BulkRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursecast_bulk_runs_total",
			Help: "Total number of bulk conversion runs",
		},
	)
)

// Queue metrics
var (
	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coursecast_queue_jobs",
			Help: "Conversion jobs in the queue by status",
		},
		[]string{"status"},
	)

	JobsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursecast_jobs_reclaimed_total",
			Help: "Running jobs failed after their heartbeat went stale",
		},
	)
)

// Capability metrics
var (
	CapabilityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursecast_capability_checks_total",
			Help: "Capability probe checks by source",
		},
		[]string{"source"}, // "cache", "probe"
	)

	CapabilityAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coursecast_capability_available",
			Help: "Whether the transcoder is usable (1 = available, 0 = unavailable)",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursecast_http_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursecast_http_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// BoolGauge converts a flag into a gauge value.
func BoolGauge(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
