// Package location provides the wing location and review domain model,
// storage implementations and the search service built on the ranking engine.
package location

import (
	"errors"
	"strings"
	"time"

	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/ranking"
)

var (
	// ErrLocationNotFound is returned when a location id does not exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrReviewNotFound is returned when a review id does not exist.
	ErrReviewNotFound = errors.New("review not found")

	// ErrSameLocation is returned when a merge names the same location twice.
	ErrSameLocation = errors.New("cannot merge a location into itself")

	// ErrEmptyName is returned when a location name is blank.
	ErrEmptyName = errors.New("location name is required")

	// ErrHeatRange is returned when a heat value falls outside 0-10.
	ErrHeatRange = errors.New("heat must be between 0 and 10")
)

// Heat scale bounds.
const (
	MinHeat = 0
	MaxHeat = 10
)

// Location is a wing restaurant. Lat and Lon are both set or both nil.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	CreatedAt time.Time `json:"-"`
}

// Validate normalizes the name and checks the coordinate pair.
func (l *Location) Validate() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return ErrEmptyName
	}
	return geo.ValidatePair(l.Lat, l.Lon)
}

// Point returns the location's coordinates, or nil when it has none.
func (l *Location) Point() *geo.Point {
	p, ok := geo.PointFrom(l.Lat, l.Lon)
	if !ok {
		return nil
	}
	return &p
}

// Candidate converts the location into ranking engine input.
func (l *Location) Candidate() ranking.Candidate {
	return ranking.Candidate{ID: l.ID, Name: l.Name, Point: l.Point()}
}

func (l *Location) clone() *Location {
	c := *l
	c.Address = cloneString(l.Address)
	c.Lat = cloneFloat(l.Lat)
	c.Lon = cloneFloat(l.Lon)
	return &c
}

// Review is one rating of a location.
// CreatedAt is nil only for legacy rows that predate the column.
type Review struct {
	ID         int64      `json:"id"`
	LocationID int64      `json:"location_id"`
	Rating     float64    `json:"rating"`
	Heat       *int       `json:"heat"`
	Comment    *string    `json:"comment"`
	CreatedAt  *time.Time `json:"created_at"`
}

// Validate checks the heat range.
func (r *Review) Validate() error {
	return validateHeat(r.Heat)
}

func (r *Review) sample() ranking.ReviewSample {
	return ranking.ReviewSample{Rating: r.Rating, Heat: r.Heat, CreatedAt: r.CreatedAt}
}

func (r *Review) clone() *Review {
	c := *r
	c.Comment = cloneString(r.Comment)
	if r.Heat != nil {
		h := *r.Heat
		c.Heat = &h
	}
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		c.CreatedAt = &t
	}
	return &c
}

// ReviewPatch holds the fields of a partial review update. Nil fields are left unchanged.
type ReviewPatch struct {
	LocationID *int64
	Rating     *float64
	Comment    *string
	Heat       *int
}

// Validate checks the heat range.
func (p ReviewPatch) Validate() error {
	return validateHeat(p.Heat)
}

// Empty reports whether the patch changes nothing.
func (p ReviewPatch) Empty() bool {
	return p.LocationID == nil && p.Rating == nil && p.Comment == nil && p.Heat == nil
}

func (p ReviewPatch) apply(r *Review) {
	if p.LocationID != nil {
		r.LocationID = *p.LocationID
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
	if p.Comment != nil {
		r.Comment = cloneString(p.Comment)
	}
	if p.Heat != nil {
		h := *p.Heat
		r.Heat = &h
	}
}

// LocationFilter narrows ListLocations. Both filters are AND-combined.
type LocationFilter struct {
	// IDs restricts results to the given ids when non-empty.
	IDs []int64
	// Search matches a case-insensitive substring of name or address.
	Search string
}

// ReviewFilter narrows and paginates ListReviews.
type ReviewFilter struct {
	LocationID *int64
	Offset     int
	// Limit <= 0 means no limit.
	Limit int
}

// MergeResult reports the effect of a merge.
type MergeResult struct {
	ReviewsMoved    int64 `json:"reviews_moved"`
	LocationDeleted int64 `json:"location_deleted"`
}

func validateHeat(h *int) error {
	if h != nil && (*h < MinHeat || *h > MaxHeat) {
		return ErrHeatRange
	}
	return nil
}

func matchesSearch(l *Location, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(l.Name), needle) {
		return true
	}
	return l.Address != nil && strings.Contains(strings.ToLower(*l.Address), needle)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
