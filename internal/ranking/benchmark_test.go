package ranking

import (
	"fmt"
	"testing"

	"github.com/mampersat/ratewings2025/internal/geo"
)

func benchmarkCandidates(n int) ([]Candidate, map[int64]Aggregate) {
	candidates := make([]Candidate, n)
	aggregates := make(map[int64]Aggregate, n)
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		candidates[i] = Candidate{
			ID:    id,
			Name:  fmt.Sprintf("Wing Spot %d", i%97),
			Point: &geo.Point{Lat: 42.5 + float64(i%100)*0.01, Lon: -79.0 + float64(i%50)*0.01},
		}
		avg := float64(i % 11)
		aggregates[id] = Aggregate{AverageRating: &avg, ReviewCount: i % 7}
	}
	return candidates, aggregates
}

// BenchmarkRankByRating measures sorting 1000 locations by rating.
func BenchmarkRankByRating(b *testing.B) {
	candidates, aggregates := benchmarkCandidates(1000)
	q := Query{Sort: SortRating, Limit: 50}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(candidates, aggregates, q)
	}
}

// BenchmarkRankByDistance measures the geo filter plus distance ordering.
func BenchmarkRankByDistance(b *testing.B) {
	candidates, aggregates := benchmarkCandidates(1000)
	q := Query{Origin: &geo.Point{Lat: 42.8864, Lon: -78.8784}, MaxDistance: 50, Limit: 50}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(candidates, aggregates, q)
	}
}

// BenchmarkFindDuplicates measures grouping 1000 locations by normalized name.
func BenchmarkFindDuplicates(b *testing.B) {
	locations := make([]DuplicateCandidate, 1000)
	for i := range locations {
		locations[i] = DuplicateCandidate{ID: int64(i + 1), Name: fmt.Sprintf("  Wing  Spot %d ", i%97)}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FindDuplicates(locations)
	}
}
