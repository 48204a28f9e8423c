package location

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func int64Ptr(i int64) *int64 { return &i }

func mustCreateLocation(t *testing.T, s Store, name string, address *string, lat, lon *float64) *Location {
	t.Helper()
	loc := &Location{Name: name, Address: address, Lat: lat, Lon: lon}
	if err := s.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation(%q) failed: %v", name, err)
	}
	return loc
}

func mustCreateReview(t *testing.T, s Store, locationID int64, rating float64, heat *int, comment *string) *Review {
	t.Helper()
	r := &Review{LocationID: locationID, Rating: rating, Heat: heat, Comment: comment}
	if err := s.CreateReview(context.Background(), r); err != nil {
		t.Fatalf("CreateReview(location %d) failed: %v", locationID, err)
	}
	return r
}

// runStoreSuite exercises the Store contract against a fresh store per subtest.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get location", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "  Anchor Bar ", strPtr("1047 Main St"), floatPtr(42.9), floatPtr(-78.87))
		b := mustCreateLocation(t, s, "Duff's", nil, nil, nil)

		if a.ID == 0 || b.ID <= a.ID {
			t.Errorf("expected increasing ids, got %d then %d", a.ID, b.ID)
		}
		if a.Name != "Anchor Bar" {
			t.Errorf("expected trimmed name, got %q", a.Name)
		}

		got, err := s.GetLocation(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetLocation failed: %v", err)
		}
		if got.Name != "Anchor Bar" || got.Address == nil || *got.Address != "1047 Main St" {
			t.Errorf("unexpected location: %+v", got)
		}
		if got.Lat == nil || math.Abs(*got.Lat-42.9) > 1e-9 {
			t.Errorf("unexpected lat: %v", got.Lat)
		}

		if _, err := s.GetLocation(ctx, 9999); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
	})

	t.Run("create location validation", func(t *testing.T) {
		s := newStore(t)
		if err := s.CreateLocation(ctx, &Location{Name: "   "}); !errors.Is(err, ErrEmptyName) {
			t.Errorf("expected ErrEmptyName, got %v", err)
		}
		if err := s.CreateLocation(ctx, &Location{Name: "Half", Lat: floatPtr(1)}); err == nil {
			t.Error("expected error for a partial coordinate")
		}
	})

	t.Run("list locations filters", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", strPtr("Main Street"), nil, nil)
		b := mustCreateLocation(t, s, "Duff's", strPtr("Sheridan Dr"), nil, nil)
		c := mustCreateLocation(t, s, "Gabriel's Gate", strPtr("Allen St"), nil, nil)
		d := mustCreateLocation(t, s, "100%_Wings", nil, nil, nil)

		tests := []struct {
			name   string
			filter LocationFilter
			want   []int64
		}{
			{name: "all", filter: LocationFilter{}, want: []int64{a.ID, b.ID, c.ID, d.ID}},
			{name: "name substring case-insensitive", filter: LocationFilter{Search: "ANCHOR"}, want: []int64{a.ID}},
			{name: "address substring", filter: LocationFilter{Search: "sheridan"}, want: []int64{b.ID}},
			{name: "matches name or address", filter: LocationFilter{Search: "a"}, want: []int64{a.ID, b.ID, c.ID}},
			{name: "wildcards match literally", filter: LocationFilter{Search: "%_"}, want: []int64{d.ID}},
			{name: "id set", filter: LocationFilter{IDs: []int64{c.ID, a.ID, 9999}}, want: []int64{a.ID, c.ID}},
			{name: "id set and search", filter: LocationFilter{IDs: []int64{a.ID, b.ID}, Search: "duff"}, want: []int64{b.ID}},
			{name: "no match", filter: LocationFilter{Search: "zzz"}, want: []int64{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				locs, err := s.ListLocations(ctx, tt.filter)
				if err != nil {
					t.Fatalf("ListLocations failed: %v", err)
				}
				got := make([]int64, 0, len(locs))
				for _, l := range locs {
					got = append(got, l.ID)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Fatalf("expected %v, got %v", tt.want, got)
					}
				}
			})
		}
	})

	t.Run("reviews and aggregates", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		b := mustCreateLocation(t, s, "Duff's", nil, nil, nil)
		empty := mustCreateLocation(t, s, "Empty", nil, nil, nil)

		mustCreateReview(t, s, a.ID, 8, intPtr(4), strPtr("crispy"))
		mustCreateReview(t, s, a.ID, 6, nil, nil)
		r3 := mustCreateReview(t, s, b.ID, 9, intPtr(9), nil)

		if r3.CreatedAt == nil {
			t.Error("expected CreatedAt to default to insertion time")
		}

		aggs, err := s.Aggregates(ctx, []int64{a.ID, b.ID, empty.ID})
		if err != nil {
			t.Fatalf("Aggregates failed: %v", err)
		}
		aggA := aggs[a.ID]
		if aggA.ReviewCount != 2 || math.Abs(aggA.Rating()-7) > 1e-9 || math.Abs(aggA.Heat()-4) > 1e-9 {
			t.Errorf("unexpected aggregate for a: %+v", aggA)
		}
		if aggA.LastReviewedAt == nil {
			t.Error("expected last reviewed time for a")
		}
		if _, ok := aggs[empty.ID]; ok {
			t.Error("expected no aggregate for an unreviewed location")
		}

		if err := s.CreateReview(ctx, &Review{LocationID: 9999, Rating: 5}); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
		if err := s.CreateReview(ctx, &Review{LocationID: a.ID, Rating: 5, Heat: intPtr(11)}); !errors.Is(err, ErrHeatRange) {
			t.Errorf("expected ErrHeatRange, got %v", err)
		}
	})

	t.Run("explicit created_at is kept", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		when := time.Date(2023, 9, 1, 18, 30, 0, 0, time.UTC)
		r := &Review{LocationID: a.ID, Rating: 7, CreatedAt: &when}
		if err := s.CreateReview(ctx, r); err != nil {
			t.Fatalf("CreateReview failed: %v", err)
		}

		got, err := s.GetReview(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetReview failed: %v", err)
		}
		if got.CreatedAt == nil || !got.CreatedAt.Equal(when) {
			t.Errorf("expected created_at %v, got %v", when, got.CreatedAt)
		}

		if _, err := s.GetReview(ctx, 9999); !errors.Is(err, ErrReviewNotFound) {
			t.Errorf("expected ErrReviewNotFound, got %v", err)
		}
	})

	t.Run("list reviews", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		b := mustCreateLocation(t, s, "Duff's", nil, nil, nil)
		var ids []int64
		for i := 0; i < 5; i++ {
			loc := a.ID
			if i%2 == 1 {
				loc = b.ID
			}
			ids = append(ids, mustCreateReview(t, s, loc, float64(i), nil, nil).ID)
		}

		all, err := s.ListReviews(ctx, ReviewFilter{})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(all) != 5 || all[0].ID != ids[0] || all[4].ID != ids[4] {
			t.Errorf("expected all reviews in id order, got %d", len(all))
		}

		page, err := s.ListReviews(ctx, ReviewFilter{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(page) != 2 || page[0].ID != ids[1] || page[1].ID != ids[2] {
			t.Errorf("unexpected page: %+v", page)
		}

		onlyB, err := s.ListReviews(ctx, ReviewFilter{LocationID: &b.ID})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(onlyB) != 2 {
			t.Errorf("expected 2 reviews for b, got %d", len(onlyB))
		}

		past, err := s.ListReviews(ctx, ReviewFilter{Offset: 50, Limit: 10})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(past) != 0 {
			t.Errorf("expected empty page past the end, got %d", len(past))
		}
	})

	t.Run("update review", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		b := mustCreateLocation(t, s, "Duff's", nil, nil, nil)
		r := mustCreateReview(t, s, a.ID, 5, nil, strPtr("ok"))

		updated, err := s.UpdateReview(ctx, r.ID, ReviewPatch{Rating: floatPtr(9.5), Heat: intPtr(6)})
		if err != nil {
			t.Fatalf("UpdateReview failed: %v", err)
		}
		if updated.Rating != 9.5 || updated.Heat == nil || *updated.Heat != 6 {
			t.Errorf("patch not applied: %+v", updated)
		}
		if updated.Comment == nil || *updated.Comment != "ok" || updated.LocationID != a.ID {
			t.Errorf("unpatched fields changed: %+v", updated)
		}

		moved, err := s.UpdateReview(ctx, r.ID, ReviewPatch{LocationID: &b.ID})
		if err != nil {
			t.Fatalf("UpdateReview failed: %v", err)
		}
		if moved.LocationID != b.ID {
			t.Errorf("expected location %d, got %d", b.ID, moved.LocationID)
		}

		if _, err := s.UpdateReview(ctx, r.ID, ReviewPatch{LocationID: int64Ptr(9999)}); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound, got %v", err)
		}
		if _, err := s.UpdateReview(ctx, 9999, ReviewPatch{Rating: floatPtr(1)}); !errors.Is(err, ErrReviewNotFound) {
			t.Errorf("expected ErrReviewNotFound, got %v", err)
		}
		if _, err := s.UpdateReview(ctx, r.ID, ReviewPatch{Heat: intPtr(-1)}); !errors.Is(err, ErrHeatRange) {
			t.Errorf("expected ErrHeatRange, got %v", err)
		}
	})

	t.Run("merge moves reviews and deletes source", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		b := mustCreateLocation(t, s, "anchor bar", nil, nil, nil)
		for i := 0; i < 3; i++ {
			mustCreateReview(t, s, a.ID, 7, nil, nil)
		}
		mustCreateReview(t, s, b.ID, 9, nil, nil)

		res, err := s.MergeLocations(ctx, a.ID, b.ID)
		if err != nil {
			t.Fatalf("MergeLocations failed: %v", err)
		}
		if res.ReviewsMoved != 3 || res.LocationDeleted != a.ID {
			t.Errorf("unexpected merge result: %+v", res)
		}

		if _, err := s.GetLocation(ctx, a.ID); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected source location deleted, got %v", err)
		}
		reviews, err := s.ListReviews(ctx, ReviewFilter{LocationID: &b.ID})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(reviews) != 4 {
			t.Errorf("expected 4 reviews on target, got %d", len(reviews))
		}
	})

	t.Run("merge rejects invalid input without mutation", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		mustCreateReview(t, s, a.ID, 7, nil, nil)

		if _, err := s.MergeLocations(ctx, a.ID, a.ID); !errors.Is(err, ErrSameLocation) {
			t.Errorf("expected ErrSameLocation, got %v", err)
		}
		if _, err := s.MergeLocations(ctx, a.ID, 9999); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound for missing target, got %v", err)
		}
		if _, err := s.MergeLocations(ctx, 9999, a.ID); !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("expected ErrLocationNotFound for missing source, got %v", err)
		}

		if _, err := s.GetLocation(ctx, a.ID); err != nil {
			t.Errorf("location should still exist: %v", err)
		}
		reviews, err := s.ListReviews(ctx, ReviewFilter{LocationID: &a.ID})
		if err != nil {
			t.Fatalf("ListReviews failed: %v", err)
		}
		if len(reviews) != 1 {
			t.Errorf("expected 1 review untouched, got %d", len(reviews))
		}
	})

	t.Run("backfill setters only fill nulls", func(t *testing.T) {
		s := newStore(t)
		a := mustCreateLocation(t, s, "Anchor Bar", nil, nil, nil)
		withHeat := mustCreateReview(t, s, a.ID, 7, intPtr(3), strPtr("Heat: 8"))
		noHeat := mustCreateReview(t, s, a.ID, 7, nil, strPtr("Heat: 5"))
		mustCreateReview(t, s, a.ID, 7, nil, nil)

		pending, err := s.ListReviewsForBackfill(ctx)
		if err != nil {
			t.Fatalf("ListReviewsForBackfill failed: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != noHeat.ID {
			t.Fatalf("expected only review %d pending, got %+v", noHeat.ID, pending)
		}

		changed, err := s.SetReviewHeat(ctx, withHeat.ID, 8)
		if err != nil || changed {
			t.Errorf("expected existing heat kept, changed=%v err=%v", changed, err)
		}
		changed, err = s.SetReviewHeat(ctx, noHeat.ID, 5)
		if err != nil || !changed {
			t.Errorf("expected heat filled, changed=%v err=%v", changed, err)
		}

		changed, err = s.SetReviewCreatedAt(ctx, noHeat.ID, time.Now())
		if err != nil || changed {
			t.Errorf("expected existing created_at kept, changed=%v err=%v", changed, err)
		}

		got, err := s.GetReview(ctx, noHeat.ID)
		if err != nil {
			t.Fatalf("GetReview failed: %v", err)
		}
		if got.Heat == nil || *got.Heat != 5 {
			t.Errorf("expected heat 5, got %v", got.Heat)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := newStore(t).Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
