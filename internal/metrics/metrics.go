package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered with the default registry through promauto

var (
	// ==================== HTTP METRICS ====================

	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsTotal counts total HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsInFlight tracks currently processing requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// ==================== RATE LIMITING METRICS ====================

	RateLimitedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate-limited requests",
		},
	)

	RateLimitAllowedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_allowed_requests_total",
			Help: "Total number of requests allowed by rate limiter",
		},
	)

	// ==================== REGISTRY METRICS ====================

	// URLsCreatedTotal counts records created, split by custom or generated code
	URLsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urls_created_total",
			Help: "Total number of URLs created",
		},
		[]string{"kind"},
	)

	// ValidationFailuresTotal counts rejected shorten requests per field
	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of shorten requests rejected by validation",
		},
		[]string{"field"},
	)

	// ClicksRecordedTotal counts click events
	ClicksRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_recorded_total",
			Help: "Total number of click events recorded",
		},
	)

	// ExpiredRejectionsTotal counts clicks refused because the record expired
	ExpiredRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expired_rejections_total",
			Help: "Total number of clicks rejected on expired URLs",
		},
	)

	// GeneratedCollisionsTotal counts generated codes that matched a held record
	GeneratedCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generated_shortcode_collisions_total",
			Help: "Total number of generated shortcodes already held by a record",
		},
	)

	// Gauges below are refreshed by the statistics reporter

	ActiveURLsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_urls",
			Help: "Number of active (non-expired) URLs",
		},
	)

	ExpiredURLsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_expired_urls",
			Help: "Number of expired URLs still held",
		},
	)

	TotalClicksGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_total_clicks",
			Help: "Sum of click counts over all held URLs",
		},
	)

	// ==================== DIAGNOSTIC LOG METRICS ====================

	// DiagnosticLogsTotal counts diagnostic entries by level and delivery outcome
	DiagnosticLogsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_logs_total",
			Help: "Total number of diagnostic log entries by outcome",
		},
		[]string{"level", "outcome"}, // sent, failed, dropped
	)

	// DiagnosticSendDuration tracks how long each sink delivery takes
	DiagnosticSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diagnostic_log_send_duration_seconds",
			Help:    "Duration of diagnostic log deliveries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"sink"},
	)

	// ==================== DATABASE METRICS ====================

	// DatabaseQueryDuration tracks database query latency
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// DatabaseErrorsTotal counts database errors
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)
)

// Outcomes used with DiagnosticLogsTotal
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// RecordURLCreated increments URL creation counter
func RecordURLCreated(custom bool) {
	kind := "generated"
	if custom {
		kind = "custom"
	}
	URLsCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordValidationFailure increments the counter for every rejected field
func RecordValidationFailure(fields ...string) {
	for _, field := range fields {
		ValidationFailuresTotal.WithLabelValues(field).Inc()
	}
}

// RecordClickRecorded increments click recording counter
func RecordClickRecorded() {
	ClicksRecordedTotal.Inc()
}

func RecordExpiredRejection() {
	ExpiredRejectionsTotal.Inc()
}

func RecordGeneratedCollision() {
	GeneratedCollisionsTotal.Inc()
}

// RecordRegistryStats publishes a statistics snapshot to the registry gauges
func RecordRegistryStats(active, expired int, totalClicks int64) {
	ActiveURLsGauge.Set(float64(active))
	ExpiredURLsGauge.Set(float64(expired))
	TotalClicksGauge.Set(float64(totalClicks))
}

// RecordDiagnosticLog increments the diagnostic counter for level and outcome
func RecordDiagnosticLog(level, outcome string) {
	DiagnosticLogsTotal.WithLabelValues(level, outcome).Inc()
}

// RecordRateLimited increments rate-limited requests counter
func RecordRateLimited() {
	RateLimitedRequestsTotal.Inc()
}

// RecordRateLimitAllowed increments allowed requests counter
func RecordRateLimitAllowed() {
	RateLimitAllowedRequestsTotal.Inc()
}
