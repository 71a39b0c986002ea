// Package trajectory holds the waypoint stream model: Waypoint,
// Segments, SegmentCoordinate, and the precision filter that turns a
// raw stream of tracks of segments of waypoints into a Segments value
// with bad-precision points dropped and the trajectory broken at every
// drop. Waypoint is deliberately package-local rather than a GPX
// library type; file parsing stays with the collaborator that owns it.
package trajectory

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// HdopLimit is the horizontal-dilution cutoff: a point whose hdop
// exceeds this is dropped by Filter.
const HdopLimit = 10.0

// Waypoint is a single trajectory sample, immutable after construction.
type Waypoint struct {
	Point     orb.Point
	Elevation *float64
	Time      *time.Time
	Hdop      *float64
}

// Segment is an ordered, contiguous run of accepted waypoints.
type Segment []Waypoint

// Segments is an ordered sequence of Segment values.
type Segments []Segment

// SegmentCoordinate identifies a position within Segments: (segment
// index, point index). (len(segments), 0) is the valid "end"
// coordinate one past the last segment.
type SegmentCoordinate struct {
	Segment int
	Point   int
}

// Less reports whether c sorts strictly before other in trajectory
// order.
func (c SegmentCoordinate) Less(other SegmentCoordinate) bool {
	if c.Segment != other.Segment {
		return c.Segment < other.Segment
	}
	return c.Point < other.Point
}

// LessEq reports c <= other in trajectory order.
func (c SegmentCoordinate) LessEq(other SegmentCoordinate) bool {
	return c == other || c.Less(other)
}

// End returns the end-coordinate for Segments of this length:
// (N, 0) where N is the segment count.
func (s Segments) End() SegmentCoordinate {
	return SegmentCoordinate{Segment: len(s), Point: 0}
}

// At returns the waypoint at c. c must be a valid, non-end coordinate.
func (s Segments) At(c SegmentCoordinate) Waypoint {
	return s[c.Segment][c.Point]
}

// Next returns the coordinate immediately following c within the same
// segment, or the first coordinate of the following segment if c is
// the last point of its segment.
func (s Segments) Next(c SegmentCoordinate) SegmentCoordinate {
	if c.Point+1 < len(s[c.Segment]) {
		return SegmentCoordinate{Segment: c.Segment, Point: c.Point + 1}
	}
	return SegmentCoordinate{Segment: c.Segment + 1, Point: 0}
}

// Slice returns the waypoints in [from, to), preserving segment
// boundaries as independent Segment values (used to build an
// Activity's route slice).
func (s Segments) Slice(from, to SegmentCoordinate) Segments {
	if !from.Less(to) {
		return nil
	}
	var out Segments
	for segIdx := from.Segment; segIdx <= to.Segment && segIdx < len(s); segIdx++ {
		start := 0
		if segIdx == from.Segment {
			start = from.Point
		}
		end := len(s[segIdx])
		if segIdx == to.Segment {
			end = to.Point
		}
		if start >= end {
			continue
		}
		out = append(out, append(Segment(nil), s[segIdx][start:end]...))
	}
	return out
}

// rawWaypoint is the shape a collaborator streams waypoints in:
// geographic point, optional elevation/time/hdop.
type rawWaypoint = Waypoint

// Filter applies the precision filter: tracks is an iterable
// of tracks, each an iterable of raw segments, each an iterable of
// waypoints. A point is kept iff its hdop is <= HdopLimit (a missing
// hdop is treated as 0, i.e. always kept). Every drop closes the
// current output segment (if non-empty) and starts a new one. Fails
// with InputError if zero points survive.
func Filter(tracks [][][]rawWaypoint, cancel interface{ Check() error }) (Segments, geo.Bound, error) {
	var out Segments
	var current Segment
	var allPoints []orb.Point

	closeSegment := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}

	for _, track := range tracks {
		if cancel != nil {
			if err := cancel.Check(); err != nil {
				return nil, geo.Bound{}, err
			}
		}
		for _, rawSeg := range track {
			if cancel != nil {
				if err := cancel.Check(); err != nil {
					return nil, geo.Bound{}, err
				}
			}
			for _, wp := range rawSeg {
				if cancel != nil {
					if err := cancel.Check(); err != nil {
						return nil, geo.Bound{}, err
					}
				}
				if wp.Hdop != nil && *wp.Hdop > HdopLimit {
					closeSegment()
					continue
				}
				current = append(current, wp)
				allPoints = append(allPoints, wp.Point)
			}
			closeSegment()
		}
	}
	closeSegment()

	if len(allPoints) == 0 {
		return nil, geo.Bound{}, skierr.New(skierr.InputError, "trajectory has no usable points")
	}

	rect, _ := geo.BoundOf(allPoints)
	return out, rect, nil
}

// Length returns the sum of each segment's geodesic polyline length;
// consecutive waypoints across a segment boundary are not connected.
func (s Segments) Length() float64 {
	total := 0.0
	for _, seg := range s {
		for i := 1; i < len(seg); i++ {
			total += geo.Distance(seg[i-1].Point, seg[i].Point)
		}
	}
	return total
}

// BeginTime returns the first non-nil waypoint timestamp in segs, if any.
func (s Segments) BeginTime() *time.Time {
	for _, seg := range s {
		for _, wp := range seg {
			if wp.Time != nil {
				return wp.Time
			}
		}
	}
	return nil
}

// EndTime returns the last non-nil waypoint timestamp in segs, if any.
func (s Segments) EndTime() *time.Time {
	for i := len(s) - 1; i >= 0; i-- {
		seg := s[i]
		for j := len(seg) - 1; j >= 0; j-- {
			if seg[j].Time != nil {
				return seg[j].Time
			}
		}
	}
	return nil
}
