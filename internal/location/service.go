package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mampersat/ratewings2025/internal/events"
	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/ranking"
)

// SearchParams describes a location search.
type SearchParams struct {
	IDs    []int64
	Search string
	// Origin enables the distance filter; MaxDistance <= 0 uses the default radius.
	Origin      *geo.Point
	MaxDistance float64
	// MinRating, when set, drops locations below it and all unreviewed locations.
	MinRating *float64
	Sort      ranking.SortMode
	Offset    int
	Limit     int
}

// SearchResult is one ranked location.
type SearchResult struct {
	Location  *Location
	Aggregate ranking.Aggregate
	Distance  *float64
}

// SearchPage is a page of search results.
type SearchPage struct {
	Results []SearchResult
	Total   int
}

// LocationDetail is a location together with its review statistics.
type LocationDetail struct {
	Location  *Location
	Aggregate ranking.Aggregate
}

// ReviewDetail is a review with the name and address of its location.
type ReviewDetail struct {
	Review          *Review
	LocationName    string
	LocationAddress *string
}

// Service implements location and review use cases over a Store.
type Service struct {
	store     Store
	publisher events.Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

// NewService creates a Service. A nil publisher discards events and nil
// metrics disables instrumentation.
func NewService(store Store, publisher events.Publisher, metrics *Metrics, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, metrics: metrics, logger: logger}
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// CreateLocation validates and stores a new location.
func (s *Service) CreateLocation(ctx context.Context, loc *Location) error {
	if err := s.store.CreateLocation(ctx, loc); err != nil {
		return err
	}
	s.metrics.incLocationsCreated()
	return nil
}

// Location returns one location with its aggregate.
func (s *Service) Location(ctx context.Context, id int64) (LocationDetail, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return LocationDetail{}, err
	}
	aggs, err := s.store.Aggregates(ctx, []int64{id})
	if err != nil {
		return LocationDetail{}, fmt.Errorf("failed to load aggregate: %w", err)
	}
	return LocationDetail{Location: loc, Aggregate: aggs[id]}, nil
}

// Search filters candidates in the store, applies the minimum rating and ranks the rest.
func (s *Service) Search(ctx context.Context, p SearchParams) (SearchPage, error) {
	locs, err := s.store.ListLocations(ctx, LocationFilter{IDs: p.IDs, Search: p.Search})
	if err != nil {
		return SearchPage{}, fmt.Errorf("failed to list locations: %w", err)
	}

	byID := make(map[int64]*Location, len(locs))
	ids := make([]int64, 0, len(locs))
	candidates := make([]ranking.Candidate, 0, len(locs))
	for _, loc := range locs {
		byID[loc.ID] = loc
		ids = append(ids, loc.ID)
		candidates = append(candidates, loc.Candidate())
	}

	aggs, err := s.store.Aggregates(ctx, ids)
	if err != nil {
		return SearchPage{}, fmt.Errorf("failed to load aggregates: %w", err)
	}

	if p.MinRating != nil {
		candidates = ranking.FilterMinRating(candidates, aggs, *p.MinRating)
	}

	page := ranking.Rank(candidates, aggs, ranking.Query{
		Origin:      p.Origin,
		MaxDistance: p.MaxDistance,
		Sort:        p.Sort,
		Offset:      p.Offset,
		Limit:       p.Limit,
	})
	s.metrics.observeSearch(page.Total)

	out := SearchPage{Results: make([]SearchResult, 0, len(page.Results)), Total: page.Total}
	for _, r := range page.Results {
		out.Results = append(out.Results, SearchResult{
			Location:  byID[r.ID],
			Aggregate: r.Aggregate,
			Distance:  r.Distance,
		})
	}
	return out, nil
}

// Duplicates groups every location by normalized name.
func (s *Service) Duplicates(ctx context.Context) ([]ranking.DuplicateGroup, error) {
	locs, err := s.store.ListLocations(ctx, LocationFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	ids := make([]int64, 0, len(locs))
	for _, loc := range locs {
		ids = append(ids, loc.ID)
	}
	aggs, err := s.store.Aggregates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregates: %w", err)
	}

	candidates := make([]ranking.DuplicateCandidate, 0, len(locs))
	for _, loc := range locs {
		candidates = append(candidates, ranking.DuplicateCandidate{
			ID:          loc.ID,
			Name:        loc.Name,
			Address:     loc.Address,
			ReviewCount: aggs[loc.ID].ReviewCount,
		})
	}
	return ranking.FindDuplicates(candidates), nil
}

// Merge folds fromID into intoID and publishes a merge event.
func (s *Service) Merge(ctx context.Context, fromID, intoID int64) (MergeResult, error) {
	res, err := s.store.MergeLocations(ctx, fromID, intoID)
	if err != nil {
		return MergeResult{}, err
	}
	s.metrics.observeMerge(res.ReviewsMoved)
	s.publish(ctx, events.SubjectLocationsMerged, events.MergeEvent{
		FromID:       fromID,
		IntoID:       intoID,
		ReviewsMoved: res.ReviewsMoved,
	})
	return res, nil
}

// CreateReview stores a review and publishes a created event.
func (s *Service) CreateReview(ctx context.Context, review *Review) error {
	if err := s.store.CreateReview(ctx, review); err != nil {
		return err
	}
	s.metrics.incReviewsCreated()
	s.publish(ctx, events.SubjectReviewCreated, reviewEvent(review))
	return nil
}

// Review returns one review with its location's name and address.
func (s *Service) Review(ctx context.Context, id int64) (ReviewDetail, error) {
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return ReviewDetail{}, err
	}
	details, err := s.withLocations(ctx, []*Review{r})
	if err != nil {
		return ReviewDetail{}, err
	}
	return details[0], nil
}

// Reviews lists reviews with their location's name and address.
func (s *Service) Reviews(ctx context.Context, filter ReviewFilter) ([]ReviewDetail, error) {
	reviews, err := s.store.ListReviews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return s.withLocations(ctx, reviews)
}

// UpdateReview applies a partial update and publishes an updated event.
func (s *Service) UpdateReview(ctx context.Context, id int64, patch ReviewPatch) (ReviewDetail, error) {
	r, err := s.store.UpdateReview(ctx, id, patch)
	if err != nil {
		return ReviewDetail{}, err
	}
	s.metrics.incReviewUpdates()
	s.publish(ctx, events.SubjectReviewUpdated, reviewEvent(r))

	details, err := s.withLocations(ctx, []*Review{r})
	if err != nil {
		return ReviewDetail{}, err
	}
	return details[0], nil
}

func (s *Service) withLocations(ctx context.Context, reviews []*Review) ([]ReviewDetail, error) {
	seen := make(map[int64]struct{}, len(reviews))
	ids := make([]int64, 0, len(reviews))
	for _, r := range reviews {
		if _, ok := seen[r.LocationID]; !ok {
			seen[r.LocationID] = struct{}{}
			ids = append(ids, r.LocationID)
		}
	}

	byID := make(map[int64]*Location, len(ids))
	if len(ids) > 0 {
		locs, err := s.store.ListLocations(ctx, LocationFilter{IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("failed to load review locations: %w", err)
		}
		for _, loc := range locs {
			byID[loc.ID] = loc
		}
	}

	out := make([]ReviewDetail, 0, len(reviews))
	for _, r := range reviews {
		d := ReviewDetail{Review: r}
		if loc, ok := byID[r.LocationID]; ok {
			d.LocationName = loc.Name
			d.LocationAddress = loc.Address
		}
		out = append(out, d)
	}
	return out, nil
}

// publish sends an event; failures are logged and never returned.
func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func reviewEvent(r *Review) events.ReviewEvent {
	return events.ReviewEvent{ReviewID: r.ID, LocationID: r.LocationID, Rating: r.Rating, Heat: r.Heat}
}
