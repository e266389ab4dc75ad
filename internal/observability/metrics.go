package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the SCIM provisioning service.
// Metrics are organized by subsystem: SCIM operations, list queries, and HTTP
// traffic. All counters and histograms are registered via promauto for
// automatic registration with the default Prometheus registry.
type Metrics struct {
	// OperationsTotal counts SCIM operations, labeled by resource type,
	// operation (list, get, create, replace, patch, delete), and status
	// (success, error).
	OperationsTotal *prometheus.CounterVec

	// OperationDuration observes SCIM operation duration in seconds, labeled
	// by resource type and operation.
	OperationDuration *prometheus.HistogramVec

	// OperationErrors counts SCIM operation failures, labeled by resource
	// type, operation, and error kind (not_found, uniqueness, invalid_filter,
	// invalid_value, internal).
	OperationErrors *prometheus.CounterVec

	// ListResults observes the number of resources returned per list page,
	// labeled by resource type.
	ListResults *prometheus.HistogramVec

	// FilteredLists counts list operations that carried a filter expression,
	// labeled by resource type.
	FilteredLists *prometheus.CounterVec

	// HTTPRequestsTotal counts HTTP requests, labeled by method, route, and
	// status code class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP request duration in seconds, labeled
	// by method and route.
	HTTPRequestDuration *prometheus.HistogramVec

	// RateLimitRejections counts requests rejected by the per-client rate
	// limiter.
	RateLimitRejections prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of SCIM operations by resource type, operation, and status",
		}, []string{"resource_type", "operation", "status"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of SCIM operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resource_type", "operation"}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of failed SCIM operations by error kind",
		}, []string{"resource_type", "operation", "kind"}),
		ListResults: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_results",
			Help:      "Number of resources returned per list page",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"resource_type"}),
		FilteredLists: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_lists_total",
			Help:      "Total number of list operations carrying a filter expression",
		}, []string{"resource_type"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
	}
}

// RecordOperation records a completed SCIM operation.
func (m *Metrics) RecordOperation(resourceType, operation, status string, durationSeconds float64) {
	m.OperationsTotal.WithLabelValues(resourceType, operation, status).Inc()
	m.OperationDuration.WithLabelValues(resourceType, operation).Observe(durationSeconds)
}

// RecordOperationError records a failed SCIM operation by error kind.
func (m *Metrics) RecordOperationError(resourceType, operation, kind string) {
	m.OperationErrors.WithLabelValues(resourceType, operation, kind).Inc()
}

// RecordListPage records the size of a returned list page.
func (m *Metrics) RecordListPage(resourceType string, resultCount int, filtered bool) {
	m.ListResults.WithLabelValues(resourceType).Observe(float64(resultCount))
	if filtered {
		m.FilteredLists.WithLabelValues(resourceType).Inc()
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordRateLimitRejection records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimitRejection() {
	m.RateLimitRejections.Inc()
}
