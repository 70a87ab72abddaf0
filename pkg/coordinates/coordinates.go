// Package coordinates provides great-circle navigation on a spherical Earth:
// bearings, distances, dead reckoning and the flat projection used by the
// radar scope.
package coordinates

import (
	"math"
	"time"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of one nautical mile
	KmPerNauticalMile = 1.852

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// NormalizeHeading ensures a heading is in the range [0, 360).
func NormalizeHeading(heading float64) float64 {
	h := math.Mod(heading, 360.0)
	if h < 0 {
		h += 360.0
	}
	return h
}

// NormalizeLongitude wraps a longitude into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	for lon > 180.0 {
		lon -= 360.0
	}
	for lon < -180.0 {
		lon += 360.0
	}
	return lon
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeHeading(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Uses the Haversine formula for accuracy over short and long distances.
func DistanceNauticalMiles(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lon1Rad := from.Longitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	lon2Rad := to.Longitude * DegreesToRadians

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c / KmPerNauticalMile
}

// Destination returns the point reached by travelling distanceNM along a
// great circle from start on the given initial track.
func Destination(start Geographic, trackDeg, distanceNM float64) Geographic {
	latRad := start.Latitude * DegreesToRadians
	lonRad := start.Longitude * DegreesToRadians
	trackRad := trackDeg * DegreesToRadians

	// Angular distance along the surface
	d := distanceNM * KmPerNauticalMile / EarthRadiusKm

	// lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(track))
	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(d) +
			math.Cos(latRad)*math.Sin(d)*math.Cos(trackRad),
	)

	// lon2 = lon1 + atan2(sin(track)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
	newLonRad := lonRad + math.Atan2(
		math.Sin(trackRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return Geographic{
		Latitude:  newLatRad * RadiansToDegrees,
		Longitude: NormalizeLongitude(newLonRad * RadiansToDegrees),
	}
}

// DeadReckon extrapolates a position forward by elapsed time at a constant
// ground speed (knots) and track. Non-positive speed or elapsed time
// returns start unchanged.
func DeadReckon(start Geographic, speedKnots, trackDeg float64, elapsed time.Duration) Geographic {
	if speedKnots <= 0 || elapsed <= 0 {
		return start
	}
	// 1 knot = 1 nautical mile per hour
	return Destination(start, trackDeg, speedKnots*elapsed.Hours())
}

// Offset is a position relative to a reference point, in nautical miles.
type Offset struct {
	East  float64
	North float64
}

// Range returns the straight-line length of the offset.
func (o Offset) Range() float64 {
	return math.Hypot(o.East, o.North)
}

// OffsetFrom projects target onto a plane centred on origin using its
// great-circle range and bearing, the way a plan-position display draws it.
func OffsetFrom(origin, target Geographic) Offset {
	rng := DistanceNauticalMiles(origin, target)
	brg := Bearing(origin, target) * DegreesToRadians
	return Offset{
		East:  rng * math.Sin(brg),
		North: rng * math.Cos(brg),
	}
}
