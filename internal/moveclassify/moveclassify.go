// Package moveclassify labels the stretches of a route that lift
// detection left unclassified with a movement kind
// (Ski/Climb/Traverse/Wait), or Unknown where no kind fits. Each kind
// is defined by rolling Speed/Inclination constraints evaluated over a
// distance- or time-limited window, trimmed from the front as the
// window grows past its limit.
package moveclassify

import (
	"time"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/candidate"
	"github.com/alpineroute/ski-analyzer/internal/collection"
	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

// MoveType is the movement kind attributed to a classified stretch.
type MoveType int

const (
	Ski MoveType = iota
	Climb
	Traverse
	Wait
)

func (m MoveType) String() string {
	switch m {
	case Ski:
		return "ski"
	case Climb:
		return "climb"
	case Traverse:
		return "traverse"
	case Wait:
		return "wait"
	default:
		return "unknown"
	}
}

// MinMax is an inclusive acceptable range for a constraint's rolling
// average value.
type MinMax struct {
	Min, Max float64
}

func (r MinMax) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ConstraintKind names which derived quantity a Constraint bounds.
type ConstraintKind int

const (
	// Speed is distance/time, in meters per second.
	Speed ConstraintKind = iota
	// Inclination is elevation gain over distance traveled (rise over
	// run; negative values descend).
	Inclination
)

// ConstraintLimit sizes a constraint's rolling window: exactly one of
// Distance (meters) or Time must be positive.
type ConstraintLimit struct {
	Distance float64
	Time     time.Duration
}

func (l ConstraintLimit) target() float64 {
	if l.Distance > 0 {
		return l.Distance
	}
	return l.Time.Seconds()
}

// Constraint is one rolling-window check a MoveType candidate must
// keep satisfying to stay alive.
type Constraint struct {
	Kind  ConstraintKind
	Range MinMax
	Limit ConstraintLimit
}

// Candidates is the set of constraints each MoveType must satisfy.
// Invented thresholds, tuned for a piste-scale GPS
// trajectory, not validated against real ride data.
var Candidates = map[MoveType][]Constraint{
	Ski: {
		{Kind: Speed, Range: MinMax{1.5, 30.0}, Limit: ConstraintLimit{Distance: 50}},
		{Kind: Inclination, Range: MinMax{-1.0, -0.03}, Limit: ConstraintLimit{Distance: 50}},
	},
	Climb: {
		{Kind: Speed, Range: MinMax{0.1, 3.0}, Limit: ConstraintLimit{Time: 60 * time.Second}},
		{Kind: Inclination, Range: MinMax{0.02, 1.0}, Limit: ConstraintLimit{Distance: 50}},
	},
	Traverse: {
		{Kind: Speed, Range: MinMax{0.3, 10.0}, Limit: ConstraintLimit{Time: 60 * time.Second}},
		{Kind: Inclination, Range: MinMax{-0.03, 0.03}, Limit: ConstraintLimit{Distance: 50}},
	},
	Wait: {
		{Kind: Speed, Range: MinMax{0.0, 0.3}, Limit: ConstraintLimit{Time: 30 * time.Second}},
	},
}

// allMoveTypes fixes an iteration order so results are deterministic.
var allMoveTypes = []MoveType{Ski, Climb, Traverse, Wait}

// lineData is the derived measurement between two consecutive
// waypoints within one segment.
type lineData struct {
	distance      float64
	elevationDiff *float64
	timeDiff      *float64
}

func makeLineData(a, b trajectory.Waypoint) lineData {
	d := lineData{distance: geo.Distance(a.Point, b.Point)}
	if a.Elevation != nil && b.Elevation != nil {
		diff := *b.Elevation - *a.Elevation
		d.elevationDiff = &diff
	}
	if a.Time != nil && b.Time != nil {
		diff := b.Time.Sub(*a.Time).Seconds()
		d.timeDiff = &diff
	}
	return d
}

func (d lineData) value(kind ConstraintKind) (float64, bool) {
	switch kind {
	case Speed:
		if d.timeDiff == nil || *d.timeDiff <= 0 {
			return 0, false
		}
		return d.distance / *d.timeDiff, true
	case Inclination:
		if d.elevationDiff == nil || d.distance <= 0 {
			return 0, false
		}
		return *d.elevationDiff / d.distance, true
	default:
		return 0, false
	}
}

func (d lineData) extent(limit ConstraintLimit) (float64, bool) {
	if limit.Distance > 0 {
		return d.distance, true
	}
	if d.timeDiff == nil {
		return 0, false
	}
	return *d.timeDiff, true
}

// constraintAggregate is a rolling window over lineData samples: a
// weighted running average of the constraint's derived value, and the
// cumulative extent (distance or time) currently spanned, trimmed from
// the front once the window grows past its configured limit.
type constraintAggregate struct {
	constraint  Constraint
	window      []lineData
	avg         collection.Avg
	extentSum   float64
	sampleCount int
}

func newConstraintAggregate(c Constraint) *constraintAggregate {
	return &constraintAggregate{constraint: c}
}

func (a *constraintAggregate) add(d lineData) {
	if v, ok := d.value(a.constraint.Kind); ok {
		a.avg.Add(v)
		a.sampleCount++
	}
	if ext, ok := d.extent(a.constraint.Limit); ok {
		a.extentSum += ext
	}
	a.window = append(a.window, d)
	a.trim()
}

func (a *constraintAggregate) trim() {
	target := a.constraint.Limit.target()
	for len(a.window) > 1 {
		ext, _ := a.window[0].extent(a.constraint.Limit)
		if a.extentSum-ext < target {
			break
		}
		if v, ok := a.window[0].value(a.constraint.Kind); ok {
			a.avg.Remove(v)
			a.sampleCount--
		}
		a.extentSum -= ext
		a.window = a.window[1:]
	}
}

// evaluate reports known=false while the window hasn't yet accumulated
// enough extent to judge the constraint, or while none of its samples
// actually carried a usable value (e.g. a trajectory with no
// timestamps can never judge a Speed constraint), otherwise whether
// the current rolling average satisfies it.
func (a *constraintAggregate) evaluate() (ok bool, known bool) {
	if a.sampleCount == 0 || a.extentSum < a.constraint.Limit.target() {
		return false, false
	}
	return a.constraint.Range.contains(a.avg.Get()), true
}

// moveCandidate tracks one MoveType's rolling evaluation across a
// contiguous stretch of waypoints.
type moveCandidate struct {
	moveType   MoveType
	begin      trajectory.SegmentCoordinate
	last       trajectory.SegmentCoordinate
	lastGood   bool
	judged     bool
	aggregates []*constraintAggregate
}

func newMoveCandidate(mt MoveType, begin trajectory.SegmentCoordinate) *moveCandidate {
	constraints := Candidates[mt]
	aggs := make([]*constraintAggregate, len(constraints))
	for i, c := range constraints {
		aggs[i] = newConstraintAggregate(c)
	}
	return &moveCandidate{moveType: mt, begin: begin, aggregates: aggs}
}

// addLine implements the add_line lifecycle: folds one more line
// sample in, then reports candidate.Failure the moment any constraint
// definitively fails, otherwise candidate.NotFinished.
func (c *moveCandidate) addLine(d lineData, next trajectory.SegmentCoordinate) candidate.Result {
	for _, agg := range c.aggregates {
		agg.add(d)
		ok, known := agg.evaluate()
		if known {
			c.judged = true
			if !ok {
				return candidate.Failure
			}
		}
	}
	c.last = next
	c.lastGood = true
	return candidate.NotFinished
}

// span reports the largest number of lines currently held in any of
// the candidate's rolling windows; bestCandidate uses it to pick among
// the candidates still live when a segment ends.
func (c *moveCandidate) span() int {
	n := 0
	for _, agg := range c.aggregates {
		if len(agg.window) > n {
			n = len(agg.window)
		}
	}
	return n
}

// Move is one classified stretch of a route.
type Move struct {
	Type  MoveType
	Known bool
	Route trajectory.Segments
}

// Classify scans segments,
// keeping one live candidate per MoveType from every restart point,
// and once every candidate for the current stretch has failed, commits
// the one whose last good line reached furthest as that stretch's Move;
// if candidates are still live when the segment ends, the live one
// with the largest span wins. Ties are broken by MoveType order: Ski,
// Climb, Traverse, Wait. Only candidates that survived at least one
// line and judged at least one constraint qualify; where none does,
// one point is reported Unknown and the scan restarts at the next.
func Classify(segments trajectory.Segments, tok *cancel.Token) ([]Move, error) {
	var result []Move

	for segIdx, seg := range segments {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		if len(seg) == 0 {
			continue
		}
		if len(seg) == 1 {
			result = append(result, Move{
				Known: false,
				Route: segments.Slice(
					trajectory.SegmentCoordinate{Segment: segIdx},
					trajectory.SegmentCoordinate{Segment: segIdx, Point: 1},
				),
			})
			continue
		}

		firstMoveOfSegment := len(result)
		pointIdx := 0
		for pointIdx < len(seg)-1 {
			begin := trajectory.SegmentCoordinate{Segment: segIdx, Point: pointIdx}
			live := make([]*moveCandidate, len(allMoveTypes))
			for i, mt := range allMoveTypes {
				live[i] = newMoveCandidate(mt, begin)
			}
			started := live

			cursor := pointIdx
			for cursor < len(seg)-1 {
				if err := tok.Check(); err != nil {
					return nil, err
				}
				d := makeLineData(seg[cursor], seg[cursor+1])
				next := trajectory.SegmentCoordinate{Segment: segIdx, Point: cursor + 1}

				var stillLive []*moveCandidate
				for _, c := range live {
					if c.addLine(d, next) != candidate.Failure {
						stillLive = append(stillLive, c)
					}
				}
				live = stillLive
				cursor++
				if len(live) == 0 {
					break
				}
			}

			winner := bestCandidate(live)
			if winner == nil && len(live) == 0 {
				// Every candidate failed: the qualifying one whose last
				// good line reached furthest wins, ties in MoveType order.
				for _, c := range started {
					if c.lastGood && c.judged && (winner == nil || winner.last.Less(c.last)) {
						winner = c
					}
				}
			}
			if winner == nil || !winner.lastGood {
				result = append(result, Move{
					Known: false,
					Route: segments.Slice(begin, trajectory.SegmentCoordinate{Segment: segIdx, Point: pointIdx + 1}),
				})
				pointIdx++
				continue
			}

			result = append(result, Move{
				Type:  winner.moveType,
				Known: true,
				Route: segments.Slice(begin, winner.last),
			})
			pointIdx = winner.last.Point
			if winner.last.Segment != segIdx {
				break
			}
		}

		// The scan stops at the segment's final point, which no stretch
		// has claimed yet; it belongs to the move that reached it.
		if len(result) > firstMoveOfSegment {
			last := &result[len(result)-1]
			tail := len(last.Route) - 1
			last.Route[tail] = append(last.Route[tail], seg[len(seg)-1])
		}
	}

	return mergeAdjacent(result), nil
}

func bestCandidate(live []*moveCandidate) *moveCandidate {
	var best *moveCandidate
	bestSpan := -1
	for _, c := range live {
		if !c.lastGood || !c.judged {
			continue
		}
		s := c.span()
		if s > bestSpan {
			best = c
			bestSpan = s
		}
	}
	return best
}

// mergeAdjacent folds consecutive Move entries of the same kind
// (including consecutive Unknown stretches) into one, so a restart
// forced purely by the per-stretch scan above doesn't fragment an
// otherwise-uniform ride into many same-typed Move values.
func mergeAdjacent(moves []Move) []Move {
	var out []Move
	for _, m := range moves {
		if n := len(out); n > 0 && out[n-1].Known == m.Known && out[n-1].Type == m.Type {
			out[n-1].Route = append(out[n-1].Route, m.Route...)
			continue
		}
		out = append(out, m)
	}
	return out
}
