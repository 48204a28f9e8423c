package ranking

import (
	"time"

	"github.com/mampersat/ratewings2025/internal/geo"
)

// Aggregate holds the derived review statistics for one location.
// AverageRating and AverageHeat are nil when the location has no reviews.
// AverageHeat is also nil when none of the reviews carry a heat value.
type Aggregate struct {
	AverageRating  *float64
	AverageHeat    *float64
	ReviewCount    int
	LastReviewedAt *time.Time
}

// Rating returns the average rating, or 0 for an unreviewed location.
func (a Aggregate) Rating() float64 {
	if a.AverageRating == nil {
		return 0
	}
	return *a.AverageRating
}

// Heat returns the average heat, or 0 when no heat was reported.
func (a Aggregate) Heat() float64 {
	if a.AverageHeat == nil {
		return 0
	}
	return *a.AverageHeat
}

// ReviewSample is the subset of a review that feeds an Aggregate.
type ReviewSample struct {
	Rating    float64
	Heat      *int
	CreatedAt *time.Time
}

// Summarize computes the aggregate for a set of reviews belonging to a single location.
func Summarize(samples []ReviewSample) Aggregate {
	var agg Aggregate
	if len(samples) == 0 {
		return agg
	}

	var ratingSum, heatSum float64
	var heatCount int
	for _, s := range samples {
		ratingSum += s.Rating
		if s.Heat != nil {
			heatSum += float64(*s.Heat)
			heatCount++
		}
		if s.CreatedAt != nil && (agg.LastReviewedAt == nil || s.CreatedAt.After(*agg.LastReviewedAt)) {
			t := *s.CreatedAt
			agg.LastReviewedAt = &t
		}
	}

	agg.ReviewCount = len(samples)
	avgRating := ratingSum / float64(len(samples))
	agg.AverageRating = &avgRating
	if heatCount > 0 {
		avgHeat := heatSum / float64(heatCount)
		agg.AverageHeat = &avgHeat
	}
	return agg
}

// Candidate is a location as seen by the ranking engine.
// Point is nil when the location has no coordinates.
type Candidate struct {
	ID    int64
	Name  string
	Point *geo.Point
}

// FilterMinRating keeps the candidates whose average rating is at least minRating.
// Unreviewed locations never satisfy a minimum rating.
func FilterMinRating(candidates []Candidate, aggregates map[int64]Aggregate, minRating float64) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		agg := aggregates[c.ID]
		if agg.AverageRating == nil || *agg.AverageRating < minRating {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
