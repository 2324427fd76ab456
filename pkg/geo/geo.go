package geo

import (
	"errors"
	"math"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside the valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point represents a geographic coordinate. Altitude is in meters above sea
// level and does not participate in distance calculations.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Validate checks that the point's latitude and longitude are in range.
func Validate(p Point) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return ErrInvalidCoordinate
	}
	if p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidCoordinate
	}
	if p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// Distance calculates the Haversine distance between two points in meters.
// The longitude delta is normalized to [-180, 180] so that pairs straddling
// the antimeridian measure along the short arc.
func Distance(p1, p2 Point) float64 {
	const R = 6371000 // Earth radius in meters
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLon := NormalizeAngle(p2.Lon-p1.Lon) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in degrees.
func Bearing(p1, p2 Point) float64 {
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)
	dLon := (p2.Lon - p1.Lon) * (math.Pi / 180.0)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(y, x)

	return math.Mod(brng*(180.0/math.Pi)+360.0, 360.0)
}

// DestinationPoint calculates the destination point from a start point, given distance (in meters) and bearing (in degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	const R = 6371000 // Earth radius in meters
	lat1 := start.Lat * (math.Pi / 180.0)
	lon1 := start.Lon * (math.Pi / 180.0)
	brng := bearing * (math.Pi / 180.0)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(distMeters/R) +
		math.Cos(lat1)*math.Sin(distMeters/R)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(distMeters/R)*math.Cos(lat1),
		math.Cos(distMeters/R)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: lat2 * (180.0 / math.Pi),
		Lon: NormalizeAngle(lon2 * (180.0 / math.Pi)),
		Alt: start.Alt,
	}
}

// CardinalName maps a bearing in degrees to one of the eight compass
// direction names, for human-readable approach hints.
func CardinalName(bearingDeg float64) string {
	names := []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}
	b := math.Mod(bearingDeg, 360.0)
	if b < 0 {
		b += 360.0
	}
	return names[int(math.Round(b/45.0))%8]
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}
