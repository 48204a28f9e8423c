// Package jobs provides Prometheus metrics for ratewings batch jobs
// (comment backfill, data import).
package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricJobsTotal      = "ratewings_jobs_total"
	MetricJobDuration    = "ratewings_job_duration_seconds"
	MetricJobErrorsTotal = "ratewings_job_errors_total"
	MetricJobItemsTotal  = "ratewings_job_items_total"
)

// Job types.
const (
	JobTypeCommentBackfill = "comment_backfill"
	JobTypeDataImport      = "data_import"
)

// Job completion statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Item results recorded per processed record.
const (
	ItemUpdated = "updated"
	ItemSkipped = "skipped"
	ItemFailed  = "failed"
)

// Metrics holds job collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobErrors   *prometheus.CounterVec
	jobItems    *prometheus.CounterVec
}

// NewMetrics creates unregistered job metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobsTotal,
				Help: "Total number of job runs by type and status",
			},
			[]string{"job_type", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobDuration,
				Help:    "Job run duration in seconds by type",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobErrorsTotal,
				Help: "Total number of job errors by type and error type",
			},
			[]string{"job_type", "error_type"},
		),
		jobItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobItemsTotal,
				Help: "Total number of records processed by jobs by type and result",
			},
			[]string{"job_type", "result"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.jobsTotal, m.jobDuration, m.jobErrors, m.jobItems}
}

// IncJobsTotal counts a finished run.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records a run duration in seconds.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors counts an error such as "database_error" or "http_error".
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}

// AddItems counts n processed records with the given result.
func (m *Metrics) AddItems(jobType, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobItems.WithLabelValues(jobType, result).Add(float64(n))
}

// Start begins timing a run of jobType. The returned function records the
// duration and a success or failure status depending on err.
func (m *Metrics) Start(jobType string) func(err error) {
	start := time.Now()
	return func(err error) {
		m.ObserveJobDuration(jobType, time.Since(start).Seconds())
		if err != nil {
			m.IncJobsTotal(jobType, StatusFailure)
			return
		}
		m.IncJobsTotal(jobType, StatusSuccess)
	}
}
