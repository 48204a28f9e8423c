package ranking

import (
	"math"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestSummarize(t *testing.T) {
	t.Run("no reviews", func(t *testing.T) {
		agg := Summarize(nil)
		if agg.AverageRating != nil || agg.AverageHeat != nil || agg.LastReviewedAt != nil {
			t.Errorf("expected nil averages, got %+v", agg)
		}
		if agg.ReviewCount != 0 {
			t.Errorf("expected count 0, got %d", agg.ReviewCount)
		}
		if agg.Rating() != 0 || agg.Heat() != 0 {
			t.Error("expected zero rating and heat for an unreviewed location")
		}
	})

	t.Run("mixed reviews", func(t *testing.T) {
		t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		t2 := time.Date(2024, 7, 4, 18, 30, 0, 0, time.UTC)
		agg := Summarize([]ReviewSample{
			{Rating: 8, Heat: intPtr(4), CreatedAt: &t1},
			{Rating: 6},
			{Rating: 7, Heat: intPtr(6), CreatedAt: &t2},
		})

		if agg.ReviewCount != 3 {
			t.Errorf("expected count 3, got %d", agg.ReviewCount)
		}
		if math.Abs(agg.Rating()-7) > 1e-9 {
			t.Errorf("expected average rating 7, got %f", agg.Rating())
		}
		// Heat averages only the reviews that carry one.
		if math.Abs(agg.Heat()-5) > 1e-9 {
			t.Errorf("expected average heat 5, got %f", agg.Heat())
		}
		if agg.LastReviewedAt == nil || !agg.LastReviewedAt.Equal(t2) {
			t.Errorf("expected last reviewed %v, got %v", t2, agg.LastReviewedAt)
		}
	})

	t.Run("no heat reported", func(t *testing.T) {
		agg := Summarize([]ReviewSample{{Rating: 5}, {Rating: 9}})
		if agg.AverageHeat != nil {
			t.Errorf("expected nil average heat, got %v", *agg.AverageHeat)
		}
		if agg.LastReviewedAt != nil {
			t.Errorf("expected nil last reviewed, got %v", agg.LastReviewedAt)
		}
	})
}
