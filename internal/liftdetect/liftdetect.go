// Package liftdetect scans a trajectory for stretches that ride one of
// a ski area's lifts, tracking one candidate per lift a route might
// currently be on and resolving overlapping candidates into a
// chronological, gap-filled partition once every live candidate for a
// stretch has finished.
package liftdetect

import (
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/candidate"
	"github.com/alpineroute/ski-analyzer/internal/collection"
	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

// MinDistance is the maximum distance (in meters) a point may sit from
// a lift's line or from a station and still count as riding it or
// stopped at it.
const MinDistance = 10.0

// Use describes a finished ride on one lift.
type Use struct {
	Lift         *skiarea.Lift
	BeginTime    *time.Time
	EndTime      *time.Time
	BeginStation *int
	EndStation   *int
	IsReverse    bool
}

// Activity is one contiguous stretch of a route: either a finished
// lift ride (Use non-nil) or an unclassified stretch (Use nil) handed
// off to the caller for further classification.
type Activity struct {
	Use   *Use
	Route trajectory.Segments
}

type liftCandidate struct {
	lift                     *skiarea.Lift
	beginTime, endTime       *time.Time
	beginStation, endStation *int
	isReverse                bool
	result                   candidate.Result
	liftLength               float64
	possibleBegins           []trajectory.SegmentCoordinate
	possibleEnds             []trajectory.SegmentCoordinate
	avgDistance              collection.Avg
	distanceFromBegin        float64
	directionKnown           bool
}

func liftDistance(lift *skiarea.Lift, p orb.Point) (fromBegin, fromLine float64, ok bool) {
	_, distFromP, distAlongLine, lineOK := geo.ClosestPointOnLine(p, lift.Line.Item)
	if !lineOK || distFromP > MinDistance {
		return 0, 0, false
	}
	return distAlongLine, distFromP, true
}

func getStation(lift *skiarea.Lift, p orb.Point) *int {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range lift.Stations {
		d := geo.Distance(s.Point, p)
		if d < MinDistance && d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}

func createCandidate(lift *skiarea.Lift, coord trajectory.SegmentCoordinate, wp trajectory.Waypoint) (*liftCandidate, bool) {
	fromBegin, fromLine, ok := liftDistance(lift, wp.Point)
	if !ok {
		return nil, false
	}
	station := getStation(lift, wp.Point)
	if station == nil && coord.Point != 0 {
		return nil, false
	}
	var avg collection.Avg
	avg.Add(fromLine)
	return &liftCandidate{
		lift:              lift,
		beginTime:         wp.Time,
		beginStation:      station,
		result:            candidate.NotFinished,
		liftLength:        geo.Length(lift.Line.Item),
		possibleBegins:    []trajectory.SegmentCoordinate{coord},
		avgDistance:       avg,
		distanceFromBegin: fromBegin,
	}, true
}

func liftInUse(l *skiarea.Lift, groups ...[]*liftCandidate) bool {
	for _, g := range groups {
		for _, c := range g {
			if c.lift == l {
				return true
			}
		}
	}
	return false
}

func findCandidates(skiArea *skiarea.SkiArea, exclude func(*skiarea.Lift) bool, coord trajectory.SegmentCoordinate, wp trajectory.Waypoint) []*liftCandidate {
	ids := make([]string, 0, len(skiArea.Lifts))
	for id := range skiArea.Lifts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*liftCandidate
	for _, id := range ids {
		l := skiArea.Lifts[id]
		if exclude(l) {
			continue
		}
		if !geo.Contains(l.Line.Rect, wp.Point) {
			continue
		}
		if c, ok := createCandidate(l, coord, wp); ok {
			out = append(out, c)
		}
	}
	return out
}

func (c *liftCandidate) transition(result candidate.Result) candidate.Result {
	c.result = result
	return result
}

func (c *liftCandidate) leave(coord trajectory.SegmentCoordinate) candidate.Result {
	if coord.Point == 0 ||
		(c.lift.CanDisembark && len(c.possibleEnds) > 0) ||
		c.endStation != nil {
		return c.transition(candidate.Finished)
	}
	return c.transition(candidate.Failure)
}

func (c *liftCandidate) addPoint(wp trajectory.Waypoint, coord trajectory.SegmentCoordinate) candidate.Result {
	fromBegin, fromLine, ok := liftDistance(c.lift, wp.Point)
	if !ok {
		return c.leave(coord)
	}
	if math.Abs(fromBegin-c.distanceFromBegin) > MinDistance {
		reverse := fromBegin < c.distanceFromBegin
		if !c.directionKnown {
			if reverse && !c.lift.CanGoReverse {
				return c.transition(candidate.Failure)
			}
			c.directionKnown = true
			c.isReverse = reverse
		} else if reverse != c.isReverse {
			return c.leave(coord)
		}
		c.distanceFromBegin = fromBegin
	}
	c.avgDistance.Add(fromLine)

	station := getStation(c.lift, wp.Point)
	switch {
	case station != nil && c.beginStation != nil && *c.beginStation == *station:
		c.possibleBegins = append(c.possibleBegins, coord)
	case station != nil:
		c.endStation = station
		c.possibleEnds = append(c.possibleEnds, coord)
	default:
		c.endStation = nil
		c.possibleEnds = nil
		if c.lift.CanDisembark {
			c.possibleEnds = append(c.possibleEnds, coord)
		}
	}
	c.endTime = wp.Time
	return candidate.NotFinished
}

func (c *liftCandidate) foundStationCount() int {
	n := 0
	if c.beginStation != nil {
		n++
	}
	if c.endStation != nil {
		n++
	}
	return n
}

func (c *liftCandidate) canGoAfter(other *liftCandidate) bool {
	selfBegin := c.possibleBegins[len(c.possibleBegins)-1]
	otherEnd := other.possibleEnds[0]
	return otherEnd.LessEq(selfBegin)
}

func (c *liftCandidate) toUse() *Use {
	return &Use{
		Lift:         c.lift,
		BeginTime:    c.beginTime,
		EndTime:      c.endTime,
		BeginStation: c.beginStation,
		EndStation:   c.endStation,
		IsReverse:    c.isReverse,
	}
}

// groupLiftCandidates buckets finished candidates that describe the
// same physical ride (same station coverage, same lift length within
// MinDistance) together, each bucket sorted by how close its
// candidates stayed to the lift line on average.
func groupLiftCandidates(candidates []*liftCandidate) [][]*liftCandidate {
	var result [][]*liftCandidate
	for len(candidates) > 0 {
		last := candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]

		var group, rest []*liftCandidate
		for _, c := range candidates {
			if c.foundStationCount() == last.foundStationCount() &&
				math.Abs(c.liftLength-last.liftLength) < MinDistance {
				group = append(group, c)
			} else {
				rest = append(rest, c)
			}
		}
		group = append(group, last)
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].avgDistance.Get() < group[j].avgDistance.Get()
		})
		result = append(result, group)
		candidates = rest
	}
	return result
}

type commitEntry struct {
	Use   *Use
	Coord trajectory.SegmentCoordinate
}

// commitLiftCandidates resolves a finished batch: groups
// ranked by (fewest stations found first, then longest lift first),
// greedily admitted as long as each new candidate can chronologically
// follow or precede every already-admitted one, then stitched into a
// chronological list of lift/unknown stretches. Abutting candidates
// whose possible begin/end windows overlap settle on the latest
// admissible begin coordinate for the later ride (the "abutment
// tie-break").
func commitLiftCandidates(candidates []*liftCandidate) []commitEntry {
	if len(candidates) == 0 {
		return nil
	}
	groups := groupLiftCandidates(candidates)
	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i][0], groups[j][0]
		if gi.foundStationCount() != gj.foundStationCount() {
			return gi.foundStationCount() < gj.foundStationCount()
		}
		return gi.liftLength > gj.liftLength
	})

	var candidates2 []*liftCandidate
	for _, g := range groups {
		for _, c := range g {
			compatible := true
			for _, c2 := range candidates2 {
				if !(c.canGoAfter(c2) || c2.canGoAfter(c)) {
					compatible = false
					break
				}
			}
			if compatible {
				candidates2 = append(candidates2, c)
			}
		}
	}

	sort.SliceStable(candidates2, func(i, j int) bool {
		return candidates2[i].possibleBegins[0].Less(candidates2[j].possibleBegins[0])
	})

	current := candidates2[0]
	coord := current.possibleBegins[0]
	var result []commitEntry
	for i := 1; i < len(candidates2); i++ {
		next := candidates2[i]
		currentEnd := current.possibleEnds[len(current.possibleEnds)-1]
		nextBegin := next.possibleBegins[0]

		result = append(result, commitEntry{Use: current.toUse(), Coord: coord})
		if currentEnd.Less(nextBegin) {
			result = append(result, commitEntry{Use: nil, Coord: currentEnd})
			coord = nextBegin
		} else {
			coord = nextBegin
			for k := len(next.possibleBegins) - 1; k >= 0; k-- {
				if next.possibleBegins[k].LessEq(currentEnd) {
					coord = next.possibleBegins[k]
					break
				}
			}
		}
		current = next
	}
	result = append(result, commitEntry{Use: current.toUse(), Coord: coord})
	return result
}

// splitRoute removes and returns the stretch of route from coord
// onward, leaving route holding only what precedes coord.
func splitRoute(route *trajectory.Segments, coord trajectory.SegmentCoordinate) trajectory.Segments {
	r := *route
	if coord.Point == 0 {
		out := append(trajectory.Segments(nil), r[coord.Segment:]...)
		*route = append(trajectory.Segments(nil), r[:coord.Segment]...)
		return out
	}
	firstSeg := append(trajectory.Segment(nil), r[coord.Segment][coord.Point:]...)
	r[coord.Segment] = append(trajectory.Segment(nil), r[coord.Segment][:coord.Point]...)
	if coord.Segment == len(r)-1 {
		*route = r[:coord.Segment+1]
		return trajectory.Segments{firstSeg}
	}
	out := trajectory.Segments{firstSeg}
	out = append(out, r[coord.Segment+1:]...)
	*route = r[:coord.Segment+1]
	return out
}

// FindLiftUsage scans segments
// for stretches riding one of skiArea's lifts, returning a
// chronological, gap-filled list of Activity values whose Use is nil
// wherever no lift ride could be established.
func FindLiftUsage(skiArea *skiarea.SkiArea, segments trajectory.Segments, tok *cancel.Token) ([]Activity, error) {
	var result []Activity
	var currentRoute trajectory.Segments
	var candidates, finishedCandidates []*liftCandidate

	for _, segment := range segments {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		var routeSegment trajectory.Segment
		for _, point := range segment {
			if err := tok.Check(); err != nil {
				return nil, err
			}
			coordinate := trajectory.SegmentCoordinate{Segment: len(currentRoute), Point: len(routeSegment)}

			var unfinished []*liftCandidate
			for _, c := range candidates {
				switch c.addPoint(point, coordinate) {
				case candidate.Failure:
				case candidate.Finished:
					finishedCandidates = append(finishedCandidates, c)
				default:
					unfinished = append(unfinished, c)
				}
			}
			candidates = unfinished

			if len(candidates) == 0 && len(finishedCandidates) > 0 {
				if len(routeSegment) > 0 {
					currentRoute = append(currentRoute, routeSegment)
					routeSegment = nil
				}
				entries := commitLiftCandidates(finishedCandidates)
				finishedCandidates = nil

				var toAdd []Activity
				for i := len(entries) - 1; i >= 0; i-- {
					e := entries[i]
					route := splitRoute(&currentRoute, e.Coord)
					toAdd = append(toAdd, Activity{Use: e.Use, Route: route})
				}
				if len(currentRoute) > 0 {
					toAdd = append(toAdd, Activity{Use: nil, Route: currentRoute})
					currentRoute = nil
				}
				for i := len(toAdd) - 1; i >= 0; i-- {
					result = append(result, toAdd[i])
				}
				coordinate = trajectory.SegmentCoordinate{Segment: len(currentRoute), Point: len(routeSegment)}
			}

			excludeInUse := func(l *skiarea.Lift) bool {
				return liftInUse(l, candidates, finishedCandidates)
			}
			candidates = append(candidates, findCandidates(skiArea, excludeInUse, coordinate, point)...)

			routeSegment = append(routeSegment, point)
		}
		currentRoute = append(currentRoute, routeSegment)
	}

	if len(currentRoute) > 0 {
		result = append(result, Activity{Use: nil, Route: currentRoute})
	}

	return result, nil
}
