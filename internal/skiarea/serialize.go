package skiarea

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// The persisted form is a plain DTO tree marshalled with
// encoding/json; points serialize as [lon, lat] pairs.

type rectJSON struct {
	Min orb.Point `json:"min"`
	Max orb.Point `json:"max"`
}

func toRectJSON(b geo.Bound) rectJSON { return rectJSON{Min: b.Min, Max: b.Max} }

func (r rectJSON) toBound() geo.Bound { return geo.Bound{Min: r.Min, Max: r.Max} }

type pointWithElevationJSON struct {
	Point     orb.Point `json:"point"`
	Elevation int       `json:"elevation"`
}

type boundedLineJSON struct {
	Points []orb.Point `json:"points"`
	Rect   rectJSON    `json:"bounding_rect"`
}

type liftJSON struct {
	Ref          string                   `json:"ref"`
	Name         string                   `json:"name"`
	Type         string                   `json:"type"`
	Line         boundedLineJSON          `json:"line"`
	Stations     []pointWithElevationJSON `json:"stations"`
	Lengths      []float64                `json:"lengths"`
	CanGoReverse bool                     `json:"can_go_reverse"`
	CanDisembark bool                     `json:"can_disembark"`
}

type polygonJSON struct {
	Outer []orb.Point   `json:"outer"`
	Holes [][]orb.Point `json:"holes,omitempty"`
}

func toPolygonJSON(p geo.Polygon) polygonJSON {
	return polygonJSON{Outer: p.Outer, Holes: p.Holes}
}

func (p polygonJSON) toPolygon() geo.Polygon {
	return geo.Polygon{Outer: p.Outer, Holes: p.Holes}
}

type pisteJSON struct {
	Ref        string        `json:"ref"`
	Name       string        `json:"name"`
	Difficulty string        `json:"difficulty"`
	Areas      []polygonJSON `json:"areas"`
	Lines      [][]orb.Point `json:"lines"`
	Rect       rectJSON      `json:"bounding_rect"`
}

type skiAreaMetadataJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Outline *polygonJSON `json:"outline,omitempty"`
}

type skiAreaJSON struct {
	Metadata skiAreaMetadataJSON  `json:"metadata"`
	Lifts    map[string]liftJSON  `json:"lifts"`
	Pistes   map[string]pisteJSON `json:"pistes"`
	Rect     rectJSON             `json:"bounding_rect"`
	Date     string               `json:"date"`
}

// MarshalJSON implements json.Marshaler for the persisted form.
func (s *SkiArea) MarshalJSON() ([]byte, error) {
	out := skiAreaJSON{
		Metadata: skiAreaMetadataJSON{ID: s.Metadata.ID, Name: s.Metadata.Name},
		Lifts:    make(map[string]liftJSON, len(s.Lifts)),
		Pistes:   make(map[string]pisteJSON, len(s.Pistes)),
		Rect:     toRectJSON(s.Rect),
		Date:     s.Date.UTC().Format(time.RFC3339),
	}
	if s.Metadata.Outline != nil {
		o := toPolygonJSON(*s.Metadata.Outline)
		out.Metadata.Outline = &o
	}
	for id, l := range s.Lifts {
		stations := make([]pointWithElevationJSON, len(l.Stations))
		for i, st := range l.Stations {
			stations[i] = pointWithElevationJSON{Point: st.Point, Elevation: st.Elevation}
		}
		out.Lifts[id] = liftJSON{
			Ref:  l.Ref,
			Name: l.Name,
			Type: l.Type,
			Line: boundedLineJSON{
				Points: l.Line.Item,
				Rect:   toRectJSON(l.Line.Rect),
			},
			Stations:     stations,
			Lengths:      l.SegmentLengths,
			CanGoReverse: l.CanGoReverse,
			CanDisembark: l.CanDisembark,
		}
	}
	for id, p := range s.Pistes {
		areas := make([]polygonJSON, len(p.Data.Areas))
		for i, a := range p.Data.Areas {
			areas[i] = toPolygonJSON(a)
		}
		out.Pistes[id] = pisteJSON{
			Ref:        p.Metadata.Ref,
			Name:       p.Metadata.Name,
			Difficulty: p.Metadata.Difficulty.String(),
			Areas:      areas,
			Lines:      p.Data.Lines,
			Rect:       toRectJSON(p.Data.Rect),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for the persisted form.
func (s *SkiArea) UnmarshalJSON(data []byte) error {
	var in skiAreaJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return skierr.Wrap(skierr.InputError, err, "decode ski area JSON")
	}

	date, err := time.Parse(time.RFC3339, in.Date)
	if err != nil {
		return skierr.Wrap(skierr.InputError, err, "decode ski area date %q", in.Date)
	}

	s.Metadata = SkiAreaMetadata{ID: in.Metadata.ID, Name: in.Metadata.Name}
	if in.Metadata.Outline != nil {
		o := in.Metadata.Outline.toPolygon()
		s.Metadata.Outline = &o
	}

	s.Lifts = make(map[string]*Lift, len(in.Lifts))
	for id, l := range in.Lifts {
		if len(l.Line.Points) < 2 {
			return skierr.New(skierr.InputError, "lift %s has a degenerate line", id)
		}
		stations := make([]PointWithElevation, len(l.Stations))
		for i, st := range l.Stations {
			stations[i] = PointWithElevation{Point: st.Point, Elevation: st.Elevation}
		}
		s.Lifts[id] = &Lift{
			id:   id,
			Ref:  l.Ref,
			Name: l.Name,
			Type: l.Type,
			Line: geo.BoundedGeometry[[]orb.Point]{
				Item: l.Line.Points,
				Rect: l.Line.Rect.toBound(),
			},
			Stations:       stations,
			SegmentLengths: l.Lengths,
			CanGoReverse:   l.CanGoReverse,
			CanDisembark:   l.CanDisembark,
		}
	}

	s.Pistes = make(map[string]*Piste, len(in.Pistes))
	for id, p := range in.Pistes {
		difficulty, ok := ParseDifficulty(p.Difficulty)
		if !ok {
			return skierr.New(skierr.InputError, "piste %s has invalid difficulty %q", id, p.Difficulty)
		}
		areas := make([]geo.Polygon, len(p.Areas))
		for i, a := range p.Areas {
			areas[i] = a.toPolygon()
		}
		s.Pistes[id] = &Piste{
			id:       id,
			Metadata: PisteMetadata{Ref: p.Ref, Name: p.Name, Difficulty: difficulty},
			Data: PisteData{
				Areas: areas,
				Lines: p.Lines,
				Rect:  p.Rect.toBound(),
			},
		}
	}

	s.Rect = in.Rect.toBound()
	s.Date = date
	return nil
}
