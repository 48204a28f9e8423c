package ranking

import (
	"cmp"
	"strings"
)

// SortMode selects the ordering applied to search results.
type SortMode string

// Supported sort modes. SortDefault means "no explicit mode": name order,
// or distance order when the query carries an origin.
const (
	SortDefault          SortMode = ""
	SortName             SortMode = "name"
	SortRating           SortMode = "rating"
	SortHeat             SortMode = "heat"
	SortReviews          SortMode = "reviews"
	SortDateCreated      SortMode = "date_created"
	SortRecentlyReviewed SortMode = "recently_reviewed"
)

// SortModes lists every explicit sort mode accepted by ParseSortMode.
var SortModes = []SortMode{
	SortName,
	SortRating,
	SortHeat,
	SortReviews,
	SortDateCreated,
	SortRecentlyReviewed,
}

// ParseSortMode maps a query-string value to a SortMode.
// The empty string and "none" map to SortDefault. Unknown values return false.
func ParseSortMode(s string) (SortMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return SortDefault, true
	}
	for _, m := range SortModes {
		if string(m) == s {
			return m, true
		}
	}
	return SortDefault, false
}

// compareKey orders two results; negative means a sorts first.
type compareKey func(a, b *Result) int

func byRatingDesc(a, b *Result) int {
	return cmp.Compare(b.Aggregate.Rating(), a.Aggregate.Rating())
}

func byHeatDesc(a, b *Result) int {
	return cmp.Compare(b.Aggregate.Heat(), a.Aggregate.Heat())
}

func byReviewCountDesc(a, b *Result) int {
	return cmp.Compare(b.Aggregate.ReviewCount, a.Aggregate.ReviewCount)
}

func byIDDesc(a, b *Result) int {
	return cmp.Compare(b.ID, a.ID)
}

func byIDAsc(a, b *Result) int {
	return cmp.Compare(a.ID, b.ID)
}

// byReviewedFirst puts locations with at least one review ahead of unreviewed ones.
func byReviewedFirst(a, b *Result) int {
	aReviewed := a.Aggregate.ReviewCount > 0
	bReviewed := b.Aggregate.ReviewCount > 0
	switch {
	case aReviewed == bReviewed:
		return 0
	case aReviewed:
		return -1
	default:
		return 1
	}
}

// byLastReviewDesc orders by most recent review; a missing timestamp sorts last.
func byLastReviewDesc(a, b *Result) int {
	at, bt := a.Aggregate.LastReviewedAt, b.Aggregate.LastReviewedAt
	switch {
	case at == nil && bt == nil:
		return 0
	case at == nil:
		return 1
	case bt == nil:
		return -1
	default:
		return bt.Compare(*at)
	}
}

func byDistanceAsc(a, b *Result) int {
	switch {
	case a.Distance == nil && b.Distance == nil:
		return 0
	case a.Distance == nil:
		return 1
	case b.Distance == nil:
		return -1
	default:
		return cmp.Compare(*a.Distance, *b.Distance)
	}
}

// byNameAsc compares names case-insensitively, falling back to the raw
// name so that "Wings" and "wings" still have a fixed order.
func byNameAsc(a, b *Result) int {
	if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// keysFor returns the comparator chain for a mode. Every chain ends with
// byIDAsc so the ordering is total.
func keysFor(mode SortMode, hasOrigin bool) []compareKey {
	switch mode {
	case SortRating:
		return []compareKey{byRatingDesc, byNameAsc, byIDAsc}
	case SortHeat:
		return []compareKey{byHeatDesc, byNameAsc, byIDAsc}
	case SortReviews:
		return []compareKey{byReviewCountDesc, byNameAsc, byIDAsc}
	case SortDateCreated:
		return []compareKey{byIDDesc, byNameAsc}
	case SortRecentlyReviewed:
		return []compareKey{byReviewedFirst, byLastReviewDesc, byNameAsc, byIDAsc}
	case SortDefault:
		if hasOrigin {
			return []compareKey{byDistanceAsc, byNameAsc, byIDAsc}
		}
	}
	return []compareKey{byNameAsc, byIDAsc}
}

func compareWith(keys []compareKey) func(a, b Result) int {
	return func(a, b Result) int {
		for _, k := range keys {
			if c := k(&a, &b); c != 0 {
				return c
			}
		}
		return 0
	}
}
