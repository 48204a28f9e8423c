// Package geo provides coordinate validation and great-circle distance math
// for location search.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used by DistanceMiles.
const EarthRadiusMiles = 3958.8

// DefaultMaxDistanceMiles is the search radius applied when a caller supplies
// an origin without an explicit max distance.
const DefaultMaxDistanceMiles = 20.0

// Coordinate validation errors.
var (
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
	ErrPartialPoint   = errors.New("lat and lon must be provided together")
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within the valid coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// PointFrom builds a Point from nullable components.
// Returns false when either component is missing.
func PointFrom(lat, lon *float64) (Point, bool) {
	if lat == nil || lon == nil {
		return Point{}, false
	}
	return Point{Lat: *lat, Lon: *lon}, true
}

// ValidatePair checks a nullable lat/lon pair: both absent is valid,
// exactly one present is ErrPartialPoint, otherwise ranges are checked.
func ValidatePair(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	p, ok := PointFrom(lat, lon)
	if !ok {
		return ErrPartialPoint
	}
	return p.Validate()
}

// DistanceMiles returns the Haversine great-circle distance between a and b in miles.
func DistanceMiles(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin
	// Rounding can push h just past 1 for antipodal points.
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}
