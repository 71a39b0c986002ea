package geo

import "github.com/paulmach/orb"

// Polygon is an exterior ring plus zero or more interior holes, all
// closed point sequences. It is the shape multipolygon assembly
// produces, kept here so internal/geo stays a leaf dependency.
type Polygon struct {
	Outer []orb.Point
	Holes [][]orb.Point
}

// PointIn reports whether p lies inside the polygon's outer ring and
// outside every hole.
func (poly Polygon) PointIn(p orb.Point) bool {
	if !PointInRing(poly.Outer, p) {
		return false
	}
	for _, h := range poly.Holes {
		if PointInRing(h, p) {
			return false
		}
	}
	return true
}

// PointStrictlyIn reports whether p lies strictly inside the polygon:
// inside the outer ring, on no ring boundary, and in no hole.
func (poly Polygon) PointStrictlyIn(p orb.Point) bool {
	if !PointInRingStrict(poly.Outer, p) {
		return false
	}
	for _, h := range poly.Holes {
		if PointInRing(h, p) {
			return false
		}
	}
	return true
}

// IntersectsLine reports whether polyline line crosses the polygon's
// boundary (outer or any hole) or has a vertex that PointIn reports as
// inside it (points on the outer boundary included).
func (poly Polygon) IntersectsLine(line []orb.Point) bool {
	if LineStringsIntersect(line, poly.Outer) {
		return true
	}
	for _, h := range poly.Holes {
		if LineStringsIntersect(line, h) {
			return true
		}
	}
	for _, p := range line {
		if poly.PointIn(p) {
			return true
		}
	}
	return false
}

// IntersectsPolygon reports whether two polygons overlap: either
// boundary crosses the other, or one polygon contains a vertex of the
// other that isn't excluded by a hole.
func (poly Polygon) IntersectsPolygon(other Polygon) bool {
	if RingsIntersect(poly.Outer, other.Outer) {
		return true
	}
	for _, h := range poly.Holes {
		if RingsIntersect(h, other.Outer) {
			return true
		}
	}
	for _, h := range other.Holes {
		if RingsIntersect(poly.Outer, h) {
			return true
		}
	}
	if len(other.Outer) > 0 && poly.PointIn(other.Outer[0]) {
		return true
	}
	if len(poly.Outer) > 0 && other.PointIn(poly.Outer[0]) {
		return true
	}
	return false
}

// IntersectionLengthWithLine approximates the cumulative geodesic
// length of line that lies inside the polygon (outer minus holes),
// for orphan-attachment scoring during piste assembly.
func (poly Polygon) IntersectionLengthWithLine(line []orb.Point) float64 {
	if len(line) < 2 {
		return 0
	}
	total := 0.0
	const samples = 8
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
			if poly.PointIn(mid) {
				insideSamples++
			}
		}
		total += segLen * float64(insideSamples) / float64(samples+1)
	}
	return total
}

// Bound returns the minimal enclosing rectangle of the polygon's
// outer ring.
func (poly Polygon) Bound() (Bound, bool) {
	return BoundOf(poly.Outer)
}
