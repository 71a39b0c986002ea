// Package orchestrator composes the analytical pipeline behind two
// entry points: building a resort model from a tagged-entity document,
// and annotating a recorded trajectory against that model. The
// pipeline for a trajectory is filter, lift detection over the whole
// route, then move classification over whatever the lift pass left
// unclassified.
package orchestrator

import (
	"log/slog"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/liftdetect"
	"github.com/alpineroute/ski-analyzer/internal/moveclassify"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

// Kind discriminates the three activity shapes.
type Kind int

const (
	KindUnknown Kind = iota
	KindUseLift
	KindMoving
)

func (k Kind) String() string {
	switch k {
	case KindUseLift:
		return "use_lift"
	case KindMoving:
		return "moving"
	default:
		return "unknown"
	}
}

// LiftUse is the payload of a use_lift activity. Stations are indices
// into the lift's station list; nil means the ride began or ended away
// from any identified station.
type LiftUse struct {
	LiftID       string
	BeginTime    *time.Time
	EndTime      *time.Time
	BeginStation *int
	EndStation   *int
	IsReverse    bool
}

// Movement is the payload of a moving activity. PisteID is empty when
// the stretch could not be attributed to any piste.
type Movement struct {
	PisteID  string
	MoveType moveclassify.MoveType
}

// Activity is one contiguous, classified stretch of the trajectory.
// Exactly one of UseLift/Moving is non-nil for the corresponding Kind;
// both are nil for KindUnknown.
type Activity struct {
	Kind      Kind
	UseLift   *LiftUse
	Moving    *Movement
	Route     trajectory.Segments
	BeginTime *time.Time
	EndTime   *time.Time
	Length    float64
}

// AnnotatedRoute is the analysis result: the activity partition of the
// filtered trajectory plus the bounding rectangle of every waypoint in
// it.
type AnnotatedRoute struct {
	Items []Activity
	Rect  geo.Bound
}

// BuildSkiArea builds the resort model from a document, stamping it
// with the document's snapshot date.
func BuildSkiArea(doc *osmdoc.GeoDoc, logger *slog.Logger, tok *cancel.Token) (*skiarea.SkiArea, error) {
	return skiarea.ParseSkiArea(doc, doc.Date, logger, tok)
}

// ClipPisteLines removes the parts of each piste's lines lying
// strictly inside that piste's own areas. Idempotent.
func ClipPisteLines(s *skiarea.SkiArea) {
	s.ClipPisteLines()
}

// ClosestLift returns the id of the lift line closest to point within
// limit meters, and its distance; ok is false when none is that close.
func ClosestLift(s *skiarea.SkiArea, point orb.Point, limit float64) (liftID string, distance float64, ok bool) {
	return s.GetClosestLift(point, limit)
}

func newActivity(kind Kind, use *LiftUse, mv *Movement, route trajectory.Segments) Activity {
	return Activity{
		Kind:      kind,
		UseLift:   use,
		Moving:    mv,
		Route:     route,
		BeginTime: route.BeginTime(),
		EndTime:   route.EndTime(),
		Length:    route.Length(),
	}
}

// Analyze runs the full trajectory pipeline against a resort model:
// precision filtering, lift detection, and move classification of the
// residual stretches. The returned activities partition the filtered
// trajectory exactly, in order.
func Analyze(s *skiarea.SkiArea, tracks [][][]trajectory.Waypoint, tok *cancel.Token) (*AnnotatedRoute, error) {
	segments, rect, err := trajectory.Filter(tracks, tok)
	if err != nil {
		return nil, err
	}

	liftActivities, err := liftdetect.FindLiftUsage(s, segments, tok)
	if err != nil {
		return nil, err
	}

	var items []Activity
	for _, la := range liftActivities {
		if len(la.Route) == 0 {
			continue
		}
		if la.Use != nil {
			use := &LiftUse{
				LiftID:       la.Use.Lift.GetUniqueID(),
				BeginTime:    la.Use.BeginTime,
				EndTime:      la.Use.EndTime,
				BeginStation: la.Use.BeginStation,
				EndStation:   la.Use.EndStation,
				IsReverse:    la.Use.IsReverse,
			}
			items = append(items, newActivity(KindUseLift, use, nil, la.Route))
			continue
		}

		moves, err := moveclassify.Classify(la.Route, tok)
		if err != nil {
			return nil, err
		}
		for _, m := range moves {
			if len(m.Route) == 0 {
				continue
			}
			if !m.Known {
				items = append(items, newActivity(KindUnknown, nil, nil, m.Route))
				continue
			}
			mv := &Movement{
				PisteID:  attributePiste(s, m.Route),
				MoveType: m.Type,
			}
			items = append(items, newActivity(KindMoving, nil, mv, m.Route))
		}
	}

	return &AnnotatedRoute{Items: items, Rect: rect}, nil
}

// attributePiste picks the piste a moving stretch most plausibly took:
// the one containing or passing near the most of the stretch's
// waypoints, provided that is more than half of them. Ties break by
// piste id so the answer is deterministic.
func attributePiste(s *skiarea.SkiArea, route trajectory.Segments) string {
	total := 0
	for _, seg := range route {
		total += len(seg)
	}
	if total == 0 || len(s.Pistes) == 0 {
		return ""
	}

	ids := make([]string, 0, len(s.Pistes))
	for id := range s.Pistes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID := ""
	bestHits := 0
	for _, id := range ids {
		p := s.Pistes[id]
		hits := 0
		for _, seg := range route {
			for _, wp := range seg {
				if !geo.Contains(p.Data.Rect, wp.Point) {
					continue
				}
				if pisteCovers(p, wp.Point) {
					hits++
				}
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestID = id
		}
	}
	if bestHits*2 <= total {
		return ""
	}
	return bestID
}

// pisteCovers reports whether a point lies in one of the piste's areas
// or within the on-lift proximity threshold of one of its lines.
func pisteCovers(p *skiarea.Piste, pt orb.Point) bool {
	for _, a := range p.Data.Areas {
		if a.PointIn(pt) {
			return true
		}
	}
	for _, l := range p.Data.Lines {
		_, d, _, ok := geo.ClosestPointOnLine(pt, l)
		if ok && d <= liftdetect.MinDistance {
			return true
		}
	}
	return false
}
