package ranking

import (
	"slices"

	"github.com/mampersat/ratewings2025/internal/geo"
)

// Query describes one ranking request.
type Query struct {
	// Origin enables the geographic filter and attaches distances to results.
	Origin *geo.Point
	// MaxDistance is the cutoff in miles; <= 0 means geo.DefaultMaxDistanceMiles.
	// Ignored without an Origin.
	MaxDistance float64
	Sort        SortMode
	Offset      int
	Limit       int
}

// Result is one ranked location. The candidate is copied, never shared.
type Result struct {
	Candidate
	Aggregate Aggregate
	// Distance in miles from the query origin; nil when no origin was given.
	Distance *float64
}

// Page is a paginated slice of ranked results.
type Page struct {
	Results []Result
	// Total is the number of results that survived filtering, before pagination.
	Total int
}

// Rank filters, orders and paginates candidates.
// Aggregates missing from the map are treated as zero aggregates.
func Rank(candidates []Candidate, aggregates map[int64]Aggregate, q Query) Page {
	maxDistance := q.MaxDistance
	if maxDistance <= 0 {
		maxDistance = geo.DefaultMaxDistanceMiles
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r := Result{Candidate: c, Aggregate: aggregates[c.ID]}
		if c.Point != nil {
			p := *c.Point
			r.Point = &p
		}

		if q.Origin != nil {
			if c.Point == nil {
				continue
			}
			d := geo.DistanceMiles(*q.Origin, *c.Point)
			if d > maxDistance {
				continue
			}
			r.Distance = &d
		}

		results = append(results, r)
	}

	slices.SortStableFunc(results, compareWith(keysFor(q.Sort, q.Origin != nil)))

	return Page{
		Results: paginate(results, q.Offset, q.Limit),
		Total:   len(results),
	}
}

// paginate returns the [offset, offset+limit) window. A non-positive limit
// or an offset past the end yields an empty, non-nil slice.
func paginate(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) || end < offset {
		end = len(results)
	}
	return results[offset:end]
}
