package geospatial

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DefaultRadiusMeters applies when a session declares a location without a radius.
const DefaultRadiusMeters = 100

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// NewPoint builds an orb point from latitude and longitude, in that order.
func NewPoint(lat, lng float64) (orb.Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Point{}, ErrInvalidCoordinates
	}
	return orb.Point{lng, lat}, nil
}

// Distance returns the great-circle distance in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// WithinRadius reports whether p lies within radiusMeters of center, along
// with the measured distance. A non-positive radius uses DefaultRadiusMeters.
func WithinRadius(center, p orb.Point, radiusMeters float64) (bool, float64) {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	d := Distance(center, p)
	return d <= radiusMeters, d
}
