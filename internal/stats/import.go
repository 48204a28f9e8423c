// Package stats tracks counters for batch imports.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ImportStats counts the outcome of an import run. Safe for concurrent use.
type ImportStats struct {
	entries          atomic.Int64
	locationsCreated atomic.Int64
	locationsReused  atomic.Int64
	reviewsCreated   atomic.Int64
	failed           atomic.Int64
}

// NewImportStats creates zeroed counters.
func NewImportStats() *ImportStats {
	return &ImportStats{}
}

// RecordEntry counts one input entry, whatever its outcome.
func (s *ImportStats) RecordEntry() { s.entries.Add(1) }

// RecordLocationCreated counts a location created by the import.
func (s *ImportStats) RecordLocationCreated() { s.locationsCreated.Add(1) }

// RecordLocationReused counts an entry matched to an existing location.
func (s *ImportStats) RecordLocationReused() { s.locationsReused.Add(1) }

// RecordReviewCreated counts a stored review.
func (s *ImportStats) RecordReviewCreated() { s.reviewsCreated.Add(1) }

// RecordFailure counts an entry that could not be imported.
func (s *ImportStats) RecordFailure() { s.failed.Add(1) }

func (s *ImportStats) Entries() int64          { return s.entries.Load() }
func (s *ImportStats) LocationsCreated() int64 { return s.locationsCreated.Load() }
func (s *ImportStats) LocationsReused() int64  { return s.locationsReused.Load() }
func (s *ImportStats) ReviewsCreated() int64   { return s.reviewsCreated.Load() }
func (s *ImportStats) Failed() int64           { return s.failed.Load() }

// Reset zeroes every counter.
func (s *ImportStats) Reset() {
	s.entries.Store(0)
	s.locationsCreated.Store(0)
	s.locationsReused.Store(0)
	s.reviewsCreated.Store(0)
	s.failed.Store(0)
}

func (s *ImportStats) String() string {
	return fmt.Sprintf("entries=%d locations_created=%d locations_reused=%d reviews_created=%d failed=%d",
		s.Entries(), s.LocationsCreated(), s.LocationsReused(), s.ReviewsCreated(), s.Failed())
}

// LogSummary logs the counters at INFO level.
func (s *ImportStats) LogSummary(logger *slog.Logger, source string) {
	logger.Info("import statistics",
		"source", source,
		"entries", s.Entries(),
		"locations_created", s.LocationsCreated(),
		"locations_reused", s.LocationsReused(),
		"reviews_created", s.ReviewsCreated(),
		"failed", s.Failed(),
	)
}
