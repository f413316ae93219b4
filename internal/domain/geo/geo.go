// Package geo provides pure, stateless location math: great-circle
// distance and bearing between coordinates, and polyline progress
// sampling. Nothing here holds state or touches the network.
package geo

import (
	"math"

	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

const earthRadiusKm = 6371.0

// Location is an immutable geographic point, optionally named.
type Location struct {
	Lat  float64
	Lng  float64
	Name string
}

// NewLocation validates and constructs a Location.
func NewLocation(lat, lng float64, name string) (Location, error) {
	if lat < -90 || lat > 90 {
		return Location{}, shared.NewValidationError("lat", "must be within [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return Location{}, shared.NewValidationError("lng", "must be within [-180, 180]")
	}
	return Location{Lat: lat, Lng: lng, Name: name}, nil
}

// DistanceKm returns the great-circle distance between two locations in
// kilometers, via the haversine formula.
func DistanceKm(a, b Location) float64 {
	lat1, lng1 := toRadians(a.Lat), toRadians(a.Lng)
	lat2, lng2 := toRadians(b.Lat), toRadians(b.Lng)

	dLat := lat2 - lat1
	dLng := lng2 - lng1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// BearingDegrees returns the initial compass bearing from a to b, in
// [0, 360).
func BearingDegrees(a, b Location) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	theta := math.Atan2(y, x)
	return math.Mod(toDegrees(theta)+360, 360)
}

// Polyline is an ordered sequence of points approximating a drivable path.
type Polyline struct {
	Points   []Location
	Fallback bool
}

// SampleAt returns the point on the polyline at fractional progress p in
// [0, 1], linearly interpolating between the two adjacent indexed points.
// A polyline with fewer than two points returns its only point (or the
// zero Location if empty).
func (pl Polyline) SampleAt(p float64) Location {
	n := len(pl.Points)
	if n == 0 {
		return Location{}
	}
	if n == 1 {
		return pl.Points[0]
	}
	if p <= 0 {
		return pl.Points[0]
	}
	if p >= 1 {
		return pl.Points[n-1]
	}

	scaled := p * float64(n-1)
	idx := int(scaled)
	frac := scaled - float64(idx)
	if idx >= n-1 {
		return pl.Points[n-1]
	}
	from, to := pl.Points[idx], pl.Points[idx+1]
	return Location{
		Lat: from.Lat + (to.Lat-from.Lat)*frac,
		Lng: from.Lng + (to.Lng-from.Lng)*frac,
	}
}

// TotalDistanceKm sums the great-circle distance across consecutive points.
func (pl Polyline) TotalDistanceKm() float64 {
	total := 0.0
	for i := 0; i < len(pl.Points)-1; i++ {
		total += DistanceKm(pl.Points[i], pl.Points[i+1])
	}
	return total
}

// SyntheticPolyline builds a linear-interpolation fallback route between
// two endpoints at a fixed density: one point per ~5 km, minimum 20
// points, flagged as a fallback.
func SyntheticPolyline(start, end Location) Polyline {
	distance := DistanceKm(start, end)
	points := int(math.Ceil(distance/5.0)) + 1
	if points < 20 {
		points = 20
	}

	pts := make([]Location, points)
	for i := 0; i < points; i++ {
		frac := float64(i) / float64(points-1)
		pts[i] = Location{
			Lat: start.Lat + (end.Lat-start.Lat)*frac,
			Lng: start.Lng + (end.Lng-start.Lng)*frac,
		}
	}
	return Polyline{Points: pts, Fallback: true}
}

// RoundedKey rounds a location's coordinates to 3 decimal places, used to
// key the route cache by (start, end) endpoint pairs.
func RoundedKey(loc Location) (float64, float64) {
	return roundTo(loc.Lat, 3), roundTo(loc.Lng, 3)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
