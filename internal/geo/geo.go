// Package geo provides the shared geometric primitives: geodesic
// distance and polyline length on the WGS84 sphere,
// closest-point-on-segment, and bounding-rectangle composition and
// expansion. Every distance in the analytical core flows through
// Distance so threshold comparisons stay numerically consistent.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Distance returns the geodesic (haversine) distance between two
// WGS84 points, in meters.
func Distance(a, b orb.Point) float64 {
	return orbgeo.Distance(a, b)
}

// Length returns the geodesic length of an ordered polyline, in
// meters: the sum of Distance over consecutive points.
func Length(line []orb.Point) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += Distance(line[i-1], line[i])
	}
	return total
}

// ClosestPointOnSegment returns the point on segment [a,b] closest to
// p (geodesically) together with the geodesic distance from p to it,
// and the geodesic distance from a to the closest point along the
// segment. It projects into a local equirectangular frame centered on
// the segment (longitude scaled by cos(latitude)) to find the closest
// point, then measures the resulting distances with the exact
// haversine formula, so results stay consistent with every other
// distance computed in the core even though the projection itself is
// an approximation valid at piste/lift scale (tens of meters to a few
// kilometers).
func ClosestPointOnSegment(p, a, b orb.Point) (closest orb.Point, distFromP, distFromA float64) {
	if a == b {
		return a, Distance(p, a), 0
	}

	// cos(lat) scale factor keeps the local frame roughly isotropic.
	latRef := a.Lat() * math.Pi / 180
	cosLat := math.Cos(latRef)
	if cosLat < 1e-9 {
		cosLat = 1e-9
	}

	ax, ay := a.Lon()*cosLat, a.Lat()
	bx, by := b.Lon()*cosLat, b.Lat()
	px, py := p.Lon()*cosLat, p.Lat()

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	cx := ax + t*dx
	cy := ay + t*dy
	closest = orb.Point{cx / cosLat, cy}

	return closest, Distance(p, closest), Distance(a, closest)
}

// ClosestPointOnLine scans every segment of an ordered polyline and
// returns the point closest to p, the distance from p to it, and the
// cumulative geodesic distance from the start of the line to that
// point ("distance along the line"). Returns ok=false for a
// degenerate (fewer than 2 point) line.
func ClosestPointOnLine(p orb.Point, line []orb.Point) (closest orb.Point, distFromP, distAlongLine float64, ok bool) {
	if len(line) < 2 {
		return orb.Point{}, 0, 0, false
	}

	bestDist := math.Inf(1)
	cumulative := 0.0
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		c, d, fromA := ClosestPointOnSegment(p, a, b)
		if d < bestDist {
			bestDist = d
			closest = c
			distAlongLine = cumulative + fromA
		}
		cumulative += Distance(a, b)
	}
	return closest, bestDist, distAlongLine, true
}

// Bound is an axis-aligned bounding rectangle in WGS84 (lon, lat).
type Bound = orb.Bound

// BoundOf computes the minimal enclosing rectangle of a non-empty
// point set.
func BoundOf(points []orb.Point) (Bound, bool) {
	if len(points) == 0 {
		return Bound{}, false
	}
	b := orb.Bound{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b, true
}

// UnionBound returns the smallest rectangle containing both inputs.
func UnionBound(a, b Bound) Bound {
	return a.Union(b)
}

// UnionBoundIf unions two optional bounds, propagating "absent"
// (ok=false) only when both are absent; used when folding bounds over
// a collection that might be empty.
func UnionBoundIf(a Bound, aOK bool, b Bound, bOK bool) (Bound, bool) {
	switch {
	case !aOK && !bOK:
		return Bound{}, false
	case aOK && !bOK:
		return a, true
	case !aOK && bOK:
		return b, true
	default:
		return a.Union(b), true
	}
}

// ExpandBound grows a Bound by amount degrees in every direction.
func ExpandBound(b Bound, amount float64) Bound {
	return orb.Bound{
		Min: orb.Point{b.Min.Lon() - amount, b.Min.Lat() - amount},
		Max: orb.Point{b.Max.Lon() + amount, b.Max.Lat() + amount},
	}
}

// BoundedGeometry pairs a geometry with its bounding rectangle.
// NewBoundedLine computes Rect as the minimal enclosing rectangle of
// the given points; a value built directly, such as one decoded from
// persisted JSON, carries the Rect it was given.
type BoundedGeometry[G any] struct {
	Item G
	Rect Bound
}

// NewBoundedLine builds a BoundedGeometry over an ordered point
// sequence such as a lift line or piste line fragment.
func NewBoundedLine(points []orb.Point) (BoundedGeometry[[]orb.Point], bool) {
	rect, ok := BoundOf(points)
	if !ok {
		return BoundedGeometry[[]orb.Point]{}, false
	}
	return BoundedGeometry[[]orb.Point]{Item: points, Rect: rect}, true
}

// Contains reports whether point p lies within (or on the boundary
// of) b.
func Contains(b Bound, p orb.Point) bool {
	return b.Contains(p)
}

// Intersects reports whether two bounds overlap.
func Intersects(a, b Bound) bool {
	return a.Intersects(b)
}
