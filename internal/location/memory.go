package location

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mampersat/ratewings2025/internal/ranking"
)

// InMemoryStore implements Store with in-memory maps.
// Used for tests and when no database is configured.
type InMemoryStore struct {
	mu           sync.RWMutex
	locations    map[int64]*Location
	reviews      map[int64]*Review
	nextLocation int64
	nextReview   int64
	now          func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		locations: make(map[int64]*Location),
		reviews:   make(map[int64]*Review),
		now:       time.Now,
	}
}

// CreateLocation stores a copy of loc and writes the assigned ID back.
func (s *InMemoryStore) CreateLocation(_ context.Context, loc *Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLocation++
	loc.ID = s.nextLocation
	loc.CreatedAt = s.now().UTC()
	s.locations[loc.ID] = loc.clone()
	return nil
}

// GetLocation returns a copy of the stored location.
func (s *InMemoryStore) GetLocation(_ context.Context, id int64) (*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return loc.clone(), nil
}

// ListLocations returns copies of matching locations ordered by id.
func (s *InMemoryStore) ListLocations(_ context.Context, filter LocationFilter) ([]*Location, error) {
	needle := strings.ToLower(strings.TrimSpace(filter.Search))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Location, 0, len(s.locations))
	if len(filter.IDs) > 0 {
		seen := make(map[int64]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if loc, ok := s.locations[id]; ok && matchesSearch(loc, needle) {
				out = append(out, loc.clone())
			}
		}
	} else {
		for _, loc := range s.locations {
			if matchesSearch(loc, needle) {
				out = append(out, loc.clone())
			}
		}
	}

	slices.SortFunc(out, func(a, b *Location) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Aggregates summarizes the reviews of each requested location.
func (s *InMemoryStore) Aggregates(_ context.Context, ids []int64) (map[int64]ranking.Aggregate, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make(map[int64][]ranking.ReviewSample)
	for _, r := range s.reviews {
		if _, ok := wanted[r.LocationID]; ok {
			samples[r.LocationID] = append(samples[r.LocationID], r.sample())
		}
	}

	out := make(map[int64]ranking.Aggregate, len(samples))
	for id, ss := range samples {
		out[id] = ranking.Summarize(ss)
	}
	return out, nil
}

// CreateReview stores a copy of review and writes the assigned ID back.
func (s *InMemoryStore) CreateReview(_ context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[review.LocationID]; !ok {
		return ErrLocationNotFound
	}

	s.nextReview++
	review.ID = s.nextReview
	if review.CreatedAt == nil {
		now := s.now().UTC()
		review.CreatedAt = &now
	}
	s.reviews[review.ID] = review.clone()
	return nil
}

// GetReview returns a copy of the stored review.
func (s *InMemoryStore) GetReview(_ context.Context, id int64) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return r.clone(), nil
}

// ListReviews returns copies of matching reviews ordered by id.
func (s *InMemoryStore) ListReviews(_ context.Context, filter ReviewFilter) ([]*Review, error) {
	s.mu.RLock()
	matched := make([]*Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if filter.LocationID != nil && r.LocationID != *filter.LocationID {
			continue
		}
		matched = append(matched, r.clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *Review) int { return cmp.Compare(a.ID, b.ID) })

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []*Review{}, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// UpdateReview applies patch to the stored review.
func (s *InMemoryStore) UpdateReview(_ context.Context, id int64, patch ReviewPatch) (*Review, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if patch.LocationID != nil {
		if _, ok := s.locations[*patch.LocationID]; !ok {
			return nil, ErrLocationNotFound
		}
	}

	patch.apply(r)
	return r.clone(), nil
}

// MergeLocations reassigns reviews and deletes the source under a single write lock.
func (s *InMemoryStore) MergeLocations(_ context.Context, fromID, intoID int64) (MergeResult, error) {
	if fromID == intoID {
		return MergeResult{}, ErrSameLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[fromID]; !ok {
		return MergeResult{}, ErrLocationNotFound
	}
	if _, ok := s.locations[intoID]; !ok {
		return MergeResult{}, ErrLocationNotFound
	}

	var moved int64
	for _, r := range s.reviews {
		if r.LocationID == fromID {
			r.LocationID = intoID
			moved++
		}
	}
	delete(s.locations, fromID)

	return MergeResult{ReviewsMoved: moved, LocationDeleted: fromID}, nil
}

// ListReviewsForBackfill returns commented reviews missing heat or created_at.
func (s *InMemoryStore) ListReviewsForBackfill(_ context.Context) ([]*Review, error) {
	s.mu.RLock()
	out := make([]*Review, 0)
	for _, r := range s.reviews {
		if r.Comment == nil || *r.Comment == "" {
			continue
		}
		if r.Heat == nil || r.CreatedAt == nil {
			out = append(out, r.clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Review) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// SetReviewHeat fills a null heat value.
func (s *InMemoryStore) SetReviewHeat(_ context.Context, id int64, heat int) (bool, error) {
	if err := validateHeat(&heat); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return false, ErrReviewNotFound
	}
	if r.Heat != nil {
		return false, nil
	}
	r.Heat = &heat
	return true, nil
}

// SetReviewCreatedAt fills a null created_at value.
func (s *InMemoryStore) SetReviewCreatedAt(_ context.Context, id int64, t time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return false, ErrReviewNotFound
	}
	if r.CreatedAt != nil {
		return false, nil
	}
	utc := t.UTC()
	r.CreatedAt = &utc
	return true, nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

// SeedReview stores a review as-is, including a nil CreatedAt.
// Used to reproduce legacy rows in tests.
func (s *InMemoryStore) SeedReview(review *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[review.LocationID]; !ok {
		return ErrLocationNotFound
	}
	s.nextReview++
	review.ID = s.nextReview
	s.reviews[review.ID] = review.clone()
	return nil
}
