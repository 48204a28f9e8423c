package location

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricLocationsCreated = "ratewings_locations_created_total"
	MetricReviewsCreated   = "ratewings_reviews_created_total"
	MetricReviewUpdates    = "ratewings_review_updates_total"
	MetricMerges           = "ratewings_location_merges_total"
	MetricReviewsMoved     = "ratewings_reviews_moved_total"
	MetricSearchResults    = "ratewings_search_results"
)

// Metrics contains Prometheus metrics for location and review activity.
// All operations are thread-safe.
type Metrics struct {
	locationsCreated prometheus.Counter
	reviewsCreated   prometheus.Counter
	reviewUpdates    prometheus.Counter
	merges           prometheus.Counter
	reviewsMoved     prometheus.Counter
	searchResults    prometheus.Histogram
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		locationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLocationsCreated,
			Help: "Total number of wing locations created",
		}),
		reviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReviewsCreated,
			Help: "Total number of reviews created",
		}),
		reviewUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReviewUpdates,
			Help: "Total number of review updates",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMerges,
			Help: "Total number of location merges",
		}),
		reviewsMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReviewsMoved,
			Help: "Total number of reviews reassigned by merges",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchResults,
			Help:    "Number of locations matching a search before pagination",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
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
		m.locationsCreated,
		m.reviewsCreated,
		m.reviewUpdates,
		m.merges,
		m.reviewsMoved,
		m.searchResults,
	}
}

// The methods below are nil-safe so a Service can run without metrics.

func (m *Metrics) incLocationsCreated() {
	if m != nil {
		m.locationsCreated.Inc()
	}
}

func (m *Metrics) incReviewsCreated() {
	if m != nil {
		m.reviewsCreated.Inc()
	}
}

func (m *Metrics) incReviewUpdates() {
	if m != nil {
		m.reviewUpdates.Inc()
	}
}

func (m *Metrics) observeMerge(moved int64) {
	if m != nil {
		m.merges.Inc()
		m.reviewsMoved.Add(float64(moved))
	}
}

func (m *Metrics) observeSearch(total int) {
	if m != nil {
		m.searchResults.Observe(float64(total))
	}
}
