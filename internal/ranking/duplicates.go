package ranking

import (
	"cmp"
	"slices"
	"strings"
)

// DuplicateCandidate is the per-location input to FindDuplicates.
type DuplicateCandidate struct {
	ID          int64
	Name        string
	Address     *string
	ReviewCount int
}

// DuplicateGroup is a set of two or more locations sharing a normalized name.
type DuplicateGroup struct {
	NormalizedName string
	Locations      []DuplicateCandidate
}

// NormalizeName lowercases a name, trims it and collapses internal whitespace
// runs to a single space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// FindDuplicates groups locations by normalized name. Empty names never match,
// groups of one are dropped, groups are ordered by key and members by id.
func FindDuplicates(locations []DuplicateCandidate) []DuplicateGroup {
	byKey := make(map[string][]DuplicateCandidate)
	for _, loc := range locations {
		key := NormalizeName(loc.Name)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], loc)
	}

	groups := make([]DuplicateGroup, 0)
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sorted := slices.Clone(members)
		slices.SortFunc(sorted, func(a, b DuplicateCandidate) int {
			return cmp.Compare(a.ID, b.ID)
		})
		groups = append(groups, DuplicateGroup{NormalizedName: key, Locations: sorted})
	}

	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		return cmp.Compare(a.NormalizedName, b.NormalizedName)
	})
	return groups
}
