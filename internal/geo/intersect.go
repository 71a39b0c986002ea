package geo

import "github.com/paulmach/orb"

// The geometric-intersection tests below operate directly on (lon,
// lat) coordinates: Euclidean segment/point tests on whatever
// coordinates the geometry carries, not a geodesic intersection.
// Piste fragments and multipolygon rings are always small enough (a
// single resort) that the planar approximation never changes which
// shapes touch.

// segmentsIntersect reports whether segments (a1,a2) and (b1,b2)
// intersect or touch, using the standard orientation test.
func segmentsIntersect(a1, a2, b1, b2 orb.Point) bool {
	d1 := orientation(b1, b2, a1)
	d2 := orientation(b1, b2, a2)
	d3 := orientation(a1, a2, b1)
	d4 := orientation(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b.Lon()-a.Lon())*(c.Lat()-a.Lat()) - (b.Lat()-a.Lat())*(c.Lon()-a.Lon())
}

func onSegment(a, b, p orb.Point) bool {
	minX, maxX := a.Lon(), b.Lon()
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := a.Lat(), b.Lat()
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return p.Lon() >= minX && p.Lon() <= maxX && p.Lat() >= minY && p.Lat() <= maxY
}

// PointInRing reports whether p lies inside (or on the boundary of)
// the closed ring, via even-odd ray casting.
func PointInRing(ring []orb.Point, p orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if onSegment(pi, pj, p) && orientation(pi, pj, p) == 0 {
			return true // boundary counts as contained
		}
		intersects := (pi.Lat() > p.Lat()) != (pj.Lat() > p.Lat())
		if intersects {
			xIntersect := (pj.Lon()-pi.Lon())*(p.Lat()-pi.Lat())/(pj.Lat()-pi.Lat()) + pi.Lon()
			if p.Lon() < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

// RingStrictlyContainsRing reports whether inner nests inside outer,
// for multipolygon hole assignment. Every vertex of inner must lie
// inside outer or on its boundary; the two boundaries may then touch or
// cross only when the rings have different vertex counts. Containment
// is therefore not strict: a hole touching its outer ring is accepted.
func RingStrictlyContainsRing(outer, inner []orb.Point) bool {
	for _, p := range inner {
		if !PointInRing(outer, p) {
			return false
		}
	}
	return !LineStringsIntersect(outer, inner) || ringsShareNoEdge(outer, inner)
}

// ringsShareNoEdge is a conservative fallback: if every inner vertex
// is contained and the rings have different vertex counts, we treat
// them as properly nested; edges are not compared. This avoids rejecting valid holes that happen to
// touch the outer ring at a single vertex (common in real OSM data).
func ringsShareNoEdge(outer, inner []orb.Point) bool {
	return len(outer) != len(inner)
}

// PointInRingStrict reports whether p lies strictly inside the closed
// ring: boundary points do not count.
func PointInRingStrict(ring []orb.Point, p orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if orientation(ring[i], ring[j], p) == 0 && onSegment(ring[i], ring[j], p) {
			return false
		}
	}
	return PointInRing(ring, p)
}

// LineStringsIntersect reports whether any segment of a crosses any
// segment of b.
func LineStringsIntersect(a, b []orb.Point) bool {
	for i := 1; i < len(a); i++ {
		for j := 1; j < len(b); j++ {
			if segmentsIntersect(a[i-1], a[i], b[j-1], b[j]) {
				return true
			}
		}
	}
	return false
}

// LineIntersectsRing reports whether polyline line touches ring's
// boundary or has any point inside ring.
func LineIntersectsRing(line []orb.Point, ring []orb.Point) bool {
	if LineStringsIntersect(line, ring) {
		return true
	}
	for _, p := range line {
		if PointInRing(ring, p) {
			return true
		}
	}
	return false
}

// RingsIntersect reports whether two rings' boundaries cross, or one
// contains a vertex of the other.
func RingsIntersect(a, b []orb.Point) bool {
	if LineStringsIntersect(a, b) {
		return true
	}
	if len(a) > 0 && PointInRing(b, a[0]) {
		return true
	}
	if len(b) > 0 && PointInRing(a, b[0]) {
		return true
	}
	return false
}

// Line length intersected against a ring isn't meaningful as a single
// number in the general case (a line can cross a polygon boundary
// many times); orphan attachment needs the cumulative geodesic length
// of a line's overlap with an area. IntersectionLength approximates
// this by summing the length of every maximal sub-segment of line
// that lies inside ring.
func IntersectionLength(line []orb.Point, ring []orb.Point) float64 {
	if len(ring) < 3 || len(line) < 2 {
		return 0
	}
	total := 0.0
	const samples = 8 // sub-sample each segment to approximate the inside/outside crossing points
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segLen := Distance(a, b)
		if segLen == 0 {
			continue
		}
		insideSamples := 0
		for s := 0; s <= samples; s++ {
			t := float64(s) / float64(samples)
			mid := orb.Point{a.Lon() + (b.Lon()-a.Lon())*t, a.Lat() + (b.Lat()-a.Lat())*t}
			if PointInRing(ring, mid) {
				insideSamples++
			}
		}
		total += segLen * float64(insideSamples) / float64(samples+1)
	}
	return total
}
