// Package multipolygon turns a relation's outer/inner member ways,
// each possibly an open fragment of a ring, into a set of closed
// geo.Polygon values with holes assigned to their immediate enclosing
// outer ring. Ring nesting is resolved by ascending planar area: the
// innermost candidate outer ring always has the smaller area, so
// sorting ascending and assigning each inner ring to the first
// containing outer yields the closest enclosing ring without a full
// topological sort.
package multipolygon

import (
	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// line is an ordered sequence of node ids.
type line []int64

// Assemble builds the polygons described by a multipolygon relation:
// its "outer" members form the exterior rings (after stitching and
// nesting resolution), its "inner" members form holes assigned to
// their immediate enclosing outer ring. Every "outer"/"inner" member
// way must resolve to a ring once stitched together, and every inner
// ring must nest inside some outer ring, or this fails with a
// TopologyError.
func Assemble(doc *osmdoc.GeoDoc, rel osmdoc.Relation) ([]geo.Polygon, error) {
	var outerWays, innerWays []line
	for _, m := range rel.Members {
		if m.Kind != osmdoc.MemberWay {
			continue
		}
		way, err := doc.GetWay(m.Ref)
		if err != nil {
			return nil, err
		}
		switch m.Role {
		case "outer":
			outerWays = append(outerWays, line(way.Nodes))
		case "inner":
			innerWays = append(innerWays, line(way.Nodes))
		default:
			return nil, skierr.New(skierr.TopologyError, "invalid multipolygon role: %q", m.Role)
		}
	}

	outerRings, err := findRings(outerWays)
	if err != nil {
		return nil, err
	}
	innerRings, err := findRings(innerWays)
	if err != nil {
		return nil, err
	}

	outerPolys := make([]geo.Polygon, len(outerRings))
	for i, r := range outerRings {
		pts, err := resolveRing(doc, r)
		if err != nil {
			return nil, err
		}
		outerPolys[i] = geo.Polygon{Outer: pts}
	}
	sortOutersByNesting(outerPolys)

	remaining := len(innerRings)
	for _, r := range innerRings {
		pts, err := resolveRing(doc, r)
		if err != nil {
			return nil, err
		}
		for i := range outerPolys {
			if geo.RingStrictlyContainsRing(outerPolys[i].Outer, pts) {
				outerPolys[i].Holes = append(outerPolys[i].Holes, pts)
				remaining--
				break
			}
		}
	}

	if remaining != 0 {
		return nil, skierr.New(skierr.TopologyError, "multipolygon has %d orphaned inner rings", remaining)
	}

	return outerPolys, nil
}

// findRings stitches a set of way fragments into closed rings by
// matching shared endpoints, repeatedly joining fragments until every
// one is part of a closed ring. Fragments that are already closed
// (first node id == last) are accepted as-is.
func findRings(ways []line) ([]line, error) {
	var result []line
	var open []line

	for _, w := range ways {
		if len(w) < 2 {
			return nil, skierr.New(skierr.TopologyError, "way has fewer than 2 nodes in multipolygon")
		}
		if w[0] == w[len(w)-1] {
			result = append(result, w)
		} else {
			open = append(open, append(line(nil), w...))
		}
	}

	for len(open) > 0 {
		joined, rest, err := joinOneRing(open)
		if err != nil {
			return nil, err
		}
		open = rest
		if joined[0] == joined[len(joined)-1] {
			result = append(result, joined)
		} else {
			// Not yet closed: feed the joined fragment back in for
			// another pass until every line is consumed or closed.
			open = append(open, joined)
		}
	}

	return result, nil
}

// joinOneRing finds two fragments among ways sharing an endpoint,
// joins them into one (reversing as needed so the shared endpoint
// sits at the join), and returns the joined fragment plus the
// remaining unjoined fragments. If no fragment shares an endpoint with
// any other, every remaining fragment is an unmatched endpoint — a
// malformed multipolygon.
func joinOneRing(ways []line) (joined line, rest []line, err error) {
	type endpoint struct {
		idx int
		end bool // true = line's last node, false = first node
	}
	byNode := make(map[int64][]endpoint)
	for i, w := range ways {
		byNode[w[0]] = append(byNode[w[0]], endpoint{i, false})
		byNode[w[len(w)-1]] = append(byNode[w[len(w)-1]], endpoint{i, true})
	}

	for _, eps := range byNode {
		if len(eps) < 2 {
			continue
		}
		a, b := eps[0], eps[1]
		if a.idx == b.idx {
			continue // a single closed-by-itself fragment handled elsewhere
		}

		first := append(line(nil), ways[a.idx]...)
		second := append(line(nil), ways[b.idx]...)
		if a.end {
			// a's tail matches; b must start there to continue forward.
			if b.end {
				second = reversed(second)
			}
		} else {
			// a's head matches the shared node: put b first, a second.
			first, second = second, first
			if !b.end {
				first = reversed(first)
			}
		}

		head := first[:len(first)-1]
		merged := append(append(line(nil), head...), second...)

		rest = make([]line, 0, len(ways)-2)
		for i, w := range ways {
			if i != a.idx && i != b.idx {
				rest = append(rest, w)
			}
		}
		return merged, rest, nil
	}

	return nil, nil, skierr.New(skierr.TopologyError, "unmatched endpoints in multipolygon: %d open fragments", len(ways))
}

func reversed(l line) line {
	out := make(line, len(l))
	for i, v := range l {
		out[len(l)-1-i] = v
	}
	return out
}

// resolveRing maps a ring of node ids to coordinates.
func resolveRing(doc *osmdoc.GeoDoc, r line) ([]orb.Point, error) {
	pts := make([]orb.Point, len(r))
	for i, id := range r {
		n, err := doc.GetNode(id)
		if err != nil {
			return nil, err
		}
		pts[i] = orb.Point{n.Lon, n.Lat}
	}
	return pts, nil
}

// sortOutersByNesting orders outer rings by ascending planar area, so
// that when an inner ring is tested against outers in order, the
// first (and therefore smallest) containing outer is its immediate
// parent rather than a more distant ancestor in a nested multipolygon.
func sortOutersByNesting(polys []geo.Polygon) {
	areas := make([]float64, len(polys))
	for i, p := range polys {
		areas[i] = ringArea(p.Outer)
	}
	for i := 1; i < len(polys); i++ {
		for j := i; j > 0 && areas[j] < areas[j-1]; j-- {
			polys[j], polys[j-1] = polys[j-1], polys[j]
			areas[j], areas[j-1] = areas[j-1], areas[j]
		}
	}
}

// ringArea computes the unsigned planar (shoelace) area of a closed
// ring in (lon, lat) coordinates; used only to rank nesting depth, not
// as a real-world area measurement.
func ringArea(ring []orb.Point) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		sum += a.Lon()*b.Lat() - b.Lon()*a.Lat()
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
