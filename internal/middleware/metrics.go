package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitRequests     = "ratewings_rate_limit_requests_total"
	MetricRateLimitBlocked      = "ratewings_rate_limit_blocked_total"
	MetricRateLimitStoreErrors  = "ratewings_rate_limit_store_errors_total"
	MetricHTTPRequestDuration   = "ratewings_http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "ratewings_http_requests_total"
	MetricHTTPRequestSizeBytes  = "ratewings_http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "ratewings_http_response_size_bytes"
)

// Metrics contains Prometheus metrics for the middleware chain.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitStoreErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
}

// NewMetrics creates the middleware collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	httpLabels := []string{"method", "path", "status"}
	return &Metrics{
		rateLimitRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitRequests,
				Help: "Total number of rate limit checks by route and key type",
			},
			[]string{"endpoint", "key_type"},
		),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"endpoint", "key_type"},
		),
		rateLimitStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitStoreErrors,
				Help: "Total number of rate limit store errors (requests allowed through)",
			},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			httpLabels,
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			httpLabels,
		),
		httpRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestSizeBytes,
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64 B to 1 MB
			},
			httpLabels,
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			httpLabels,
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitStoreErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}

// IncRateLimitRequests counts one rate limit check.
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked counts one rejected request.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitStoreErrors counts one store failure that let a request through.
func (m *Metrics) IncRateLimitStoreErrors() {
	if m == nil {
		return
	}
	m.rateLimitStoreErrors.Inc()
}

// ObserveHTTPRequest records one completed request.
// path must already be normalized.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}
