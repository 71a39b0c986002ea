// Package skiarea implements the resort model — lifts, pistes, and
// the assembled SkiArea — plus the parsers that build it from a
// tagged-entity document and its persisted JSON form.
package skiarea

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/geo"
)

// UniqueID is implemented by Lift and Piste: a stable string id that
// keys SkiArea's Lifts and Pistes maps and their persisted form.
type UniqueID interface {
	GetUniqueID() string
}

// PointWithElevation is a station or stop point plus its elevation in
// meters.
type PointWithElevation struct {
	Point     orb.Point
	Elevation int
}

// Difficulty is a piste's marked difficulty grade.
type Difficulty int

const (
	DifficultyUnknown Difficulty = iota
	DifficultyNovice
	DifficultyEasy
	DifficultyIntermediate
	DifficultyAdvanced
	DifficultyExpert
	DifficultyFreeride
)

// ParseDifficulty maps an OSM piste:difficulty tag value to a
// Difficulty, treating any unrecognized value as Unknown (ok=false)
// rather than failing — an invalid tag value here is a data-quality
// annotation, not an input we should abort on.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch s {
	case "":
		return DifficultyUnknown, true
	case "novice":
		return DifficultyNovice, true
	case "easy":
		return DifficultyEasy, true
	case "intermediate":
		return DifficultyIntermediate, true
	case "advanced":
		return DifficultyAdvanced, true
	case "expert":
		return DifficultyExpert, true
	case "freeride":
		return DifficultyFreeride, true
	default:
		return DifficultyUnknown, false
	}
}

func (d Difficulty) String() string {
	switch d {
	case DifficultyNovice:
		return "novice"
	case DifficultyEasy:
		return "easy"
	case DifficultyIntermediate:
		return "intermediate"
	case DifficultyAdvanced:
		return "advanced"
	case DifficultyExpert:
		return "expert"
	case DifficultyFreeride:
		return "freeride"
	default:
		return ""
	}
}

// Lift is a directed aerialway, immutable after construction. Line
// runs in travel direction; Stations[0] and Stations[len-1] are the
// terminals.
type Lift struct {
	id             string
	Ref            string
	Name           string
	Type           string
	Line           geo.BoundedGeometry[[]orb.Point]
	Stations       []PointWithElevation
	SegmentLengths []float64
	CanGoReverse   bool
	CanDisembark   bool
}

// GetUniqueID implements UniqueID.
func (l *Lift) GetUniqueID() string { return l.id }

// ClosestPoint describes the result of locating the point on a lift's
// line closest to a query point.
type ClosestPoint struct {
	SegmentIndex int
	Point        orb.Point
	Distance     float64
}

// GetClosestPoint scans every segment of the lift's line and returns
// the point on it closest to p.
func (l *Lift) GetClosestPoint(p orb.Point) (ClosestPoint, bool) {
	line := l.Line.Item
	if len(line) < 2 {
		return ClosestPoint{}, false
	}
	best := ClosestPoint{Distance: -1}
	for i := 1; i < len(line); i++ {
		c, d, _ := geo.ClosestPointOnSegment(p, line[i-1], line[i])
		if best.Distance < 0 || d < best.Distance {
			best = ClosestPoint{SegmentIndex: i - 1, Point: c, Distance: d}
		}
	}
	return best, true
}

// PisteMetadata is the (ref, name, difficulty) key a Piste's fragments
// are grouped by.
type PisteMetadata struct {
	Ref        string
	Name       string
	Difficulty Difficulty
}

// IsNamed reports whether either Ref or Name is non-empty, the
// distinction that routes a fragment into the named or unnamed pool.
func (m PisteMetadata) IsNamed() bool {
	return m.Ref != "" || m.Name != ""
}

// PisteData is the geometric payload of a Piste: its areas, lines, and
// their union bounding rectangle.
type PisteData struct {
	Areas []geo.Polygon
	Lines [][]orb.Point
	Rect  geo.Bound
}

// Intersects reports whether two PisteData values share any geometry:
// bounding rect reject first, then the area/line cross-product.
func (d *PisteData) Intersects(other *PisteData) bool {
	if !geo.Intersects(d.Rect, other.Rect) {
		return false
	}
	for _, a := range d.Areas {
		for _, b := range other.Areas {
			if a.IntersectsPolygon(b) {
				return true
			}
		}
		for _, l := range other.Lines {
			if a.IntersectsLine(l) {
				return true
			}
		}
	}
	for _, l := range d.Lines {
		for _, b := range other.Areas {
			if b.IntersectsLine(l) {
				return true
			}
		}
		for _, l2 := range other.Lines {
			if geo.LineStringsIntersect(l, l2) {
				return true
			}
		}
	}
	return false
}

// ClipLines removes the parts of the piste's lines that lie strictly
// inside its own areas, leaving only the stretches that actually add
// geometry. Points on an area boundary survive, so clipping is
// idempotent: a second pass finds nothing left to remove.
func (d *PisteData) ClipLines() {
	if len(d.Areas) == 0 || len(d.Lines) == 0 {
		return
	}
	inside := func(p orb.Point) bool {
		for _, a := range d.Areas {
			if a.PointStrictlyIn(p) {
				return true
			}
		}
		return false
	}
	var out [][]orb.Point
	for _, line := range d.Lines {
		var current []orb.Point
		for _, p := range line {
			if inside(p) {
				if len(current) >= 2 {
					out = append(out, current)
				}
				current = nil
				continue
			}
			current = append(current, p)
		}
		if len(current) >= 2 {
			out = append(out, current)
		}
	}
	d.Lines = out
}

// Piste is one connected run: shared metadata plus the line and area
// fragments that survived merging.
type Piste struct {
	id       string
	Metadata PisteMetadata
	Data     PisteData
}

// GetUniqueID implements UniqueID.
func (p *Piste) GetUniqueID() string { return p.id }

// SkiAreaMetadata is a SkiArea's descriptive header.
type SkiAreaMetadata struct {
	ID      string
	Name    string
	Outline *geo.Polygon
}

// SkiArea is the assembled resort: all lifts and pistes plus the
// rectangle enclosing them and the source document's timestamp.
type SkiArea struct {
	Metadata SkiAreaMetadata
	Lifts    map[string]*Lift
	Pistes   map[string]*Piste
	Rect     geo.Bound
	Date     time.Time
}
