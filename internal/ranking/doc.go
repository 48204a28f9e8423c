// Package ranking orders wing locations for search results.
//
// The engine is a pure function over an already-loaded snapshot: callers
// hand it the candidate locations and their review aggregates, and get back
// a deterministically ordered, paginated page.
//
// Basic Usage:
//
//	page := ranking.Rank(candidates, aggregates, ranking.Query{
//		Origin:      &geo.Point{Lat: 42.88, Lon: -78.87},
//		MaxDistance: 10,
//		Sort:        ranking.SortRating,
//		Offset:      0,
//		Limit:       20,
//	})
//
// Geographic filtering:
//
// When an origin is supplied every candidate without coordinates is dropped,
// and so is every candidate farther than MaxDistance miles (20 by default).
// Distance is a hard cutoff, never a soft sort key. With no explicit sort
// mode, results are ordered by ascending distance; an explicit mode replaces
// distance ordering entirely.
//
// Determinism:
//
// Each sort mode is a list of comparator keys. Names compare
// case-insensitively and the location id is the last key of every list, so
// ties never depend on input order and pagination windows partition the
// full ordering.
//
// Duplicates:
//
// FindDuplicates groups locations whose normalized names match (lowercased,
// trimmed, internal whitespace collapsed). It is used by the admin merge flow.
package ranking
