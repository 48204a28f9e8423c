package location

import (
	"context"
	"time"

	"github.com/mampersat/ratewings2025/internal/ranking"
)

// Store defines persistence for locations and reviews.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateLocation inserts a location and assigns its ID and CreatedAt.
	CreateLocation(ctx context.Context, loc *Location) error

	// GetLocation returns ErrLocationNotFound when the id does not exist.
	GetLocation(ctx context.Context, id int64) (*Location, error)

	// ListLocations returns matching locations ordered by id ascending.
	ListLocations(ctx context.Context, filter LocationFilter) ([]*Location, error)

	// Aggregates computes review statistics for the given location ids.
	// Ids without reviews are absent from the result.
	Aggregates(ctx context.Context, ids []int64) (map[int64]ranking.Aggregate, error)

	// CreateReview inserts a review and assigns its ID.
	// A nil CreatedAt defaults to the insertion time.
	// Returns ErrLocationNotFound when the referenced location does not exist.
	CreateReview(ctx context.Context, review *Review) error

	// GetReview returns ErrReviewNotFound when the id does not exist.
	GetReview(ctx context.Context, id int64) (*Review, error)

	// ListReviews returns matching reviews ordered by id ascending.
	ListReviews(ctx context.Context, filter ReviewFilter) ([]*Review, error)

	// UpdateReview applies a partial update and returns the updated review.
	UpdateReview(ctx context.Context, id int64, patch ReviewPatch) (*Review, error)

	// MergeLocations moves every review of fromID onto intoID and deletes fromID.
	// Both locations must exist and differ. The operation is atomic.
	MergeLocations(ctx context.Context, fromID, intoID int64) (MergeResult, error)

	// ListReviewsForBackfill returns every review with a comment and a null
	// heat or created_at column.
	ListReviewsForBackfill(ctx context.Context) ([]*Review, error)

	// SetReviewHeat sets heat only when it is currently null.
	// Reports whether a row changed.
	SetReviewHeat(ctx context.Context, id int64, heat int) (bool, error)

	// SetReviewCreatedAt sets created_at only when it is currently null.
	// Reports whether a row changed.
	SetReviewCreatedAt(ctx context.Context, id int64, t time.Time) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
