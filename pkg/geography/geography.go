// Package geography holds the coordinate math used by preprocessing: the
// base position an analysis searches around, and distance helpers.
package geography

import "math"

// Point is a WGS84 coordinate. X is latitude, Y is longitude, matching the
// member setting payload.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BasePosition returns the reference point for a set of member positions.
// A single member uses their own position; a group uses the arithmetic mean
// of all positions. The bool reports whether this is a group.
func BasePosition(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	if len(points) == 1 {
		return points[0], false
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}, true
}

const earthRadiusMeters = 6371000.0

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	la1 := a.X * math.Pi / 180
	la2 := b.X * math.Pi / 180
	dla := (b.X - a.X) * math.Pi / 180
	dlo := (b.Y - a.Y) * math.Pi / 180

	h := math.Sin(dla/2)*math.Sin(dla/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dlo/2)*math.Sin(dlo/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether b lies within radiusMeters of a.
func WithinRadius(a, b Point, radiusMeters float64) bool {
	return DistanceMeters(a, b) <= radiusMeters
}
