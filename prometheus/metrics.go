package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Document writes by kind and outcome
	DocumentWriteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_document_writes_total",
			Help: "Total number of document writes by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome is "ok", "conflict", "error"
	)

	// Optimistic concurrency losses
	ConflictCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_write_conflicts_total",
			Help: "Total number of expected-revision conflicts",
		},
		[]string{"kind"},
	)

	// Onboarding state machine transitions
	OnboardingTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_onboarding_transitions_total",
			Help: "Total number of onboarding state transitions",
		},
		[]string{"transition"}, // "invite", "open", "save", "submit", "approve", "request_changes", "expire"
	)

	// Access list operations
	AccessOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_access_operations_total",
			Help: "Total number of access list operations",
		},
		[]string{"operation"}, // "grant", "revoke", "resolve", "login", "password_change"
	)

	// Usage tracker operations
	UsageOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_usage_operations_total",
			Help: "Total number of usage tracker operations",
		},
		[]string{"operation"}, // "mark", "check"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcfg_errors_total",
			Help: "Total number of engine errors by type",
		},
		[]string{"type"}, // "not_found", "conflict", "unauthorized", "validation", etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantcfg_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Store operation duration
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantcfg_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "read", "write", "history", "list", "remove"
	)
)

// Gauge metrics
var (
	// Active tenants
	ActiveTenantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantcfg_active_tenants",
			Help: "Number of tenants known to the store",
		},
	)

	// Pending onboarding sessions
	PendingSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantcfg_pending_sessions",
			Help: "Number of non-terminal onboarding sessions",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenantcfg_info",
			Help: "Information about the tenant config service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(DocumentWriteCounter)
	prometheus.MustRegister(ConflictCounter)
	prometheus.MustRegister(OnboardingTransitionCounter)
	prometheus.MustRegister(AccessOperationCounter)
	prometheus.MustRegister(UsageOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(ErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(StoreOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTenantsGauge)
	prometheus.MustRegister(PendingSessionsGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackStoreOperation measures document store operation durations
func TrackStoreOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		StoreOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordDocumentWrite records a document write by kind and outcome
func RecordDocumentWrite(kind, outcome string) {
	DocumentWriteCounter.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

// RecordConflict records an optimistic concurrency loss
func RecordConflict(kind string) {
	ConflictCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordTransition records an onboarding state transition
func RecordTransition(transition string) {
	OnboardingTransitionCounter.With(prometheus.Labels{"transition": transition}).Inc()
}

// RecordAccessOperation records an access list operation
func RecordAccessOperation(operation string) {
	AccessOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordUsageOperation records a usage tracker operation
func RecordUsageOperation(operation string) {
	UsageOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordError records an engine error by type
func RecordError(errorType string) {
	ErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// UpdateActiveTenants updates the active tenants gauge
func UpdateActiveTenants(count int) {
	ActiveTenantsGauge.Set(float64(count))
}

// UpdatePendingSessions updates the pending sessions gauge
func UpdatePendingSessions(count int) {
	PendingSessionsGauge.Set(float64(count))
}
