// Package geojson exports the resort model and analysis results as
// GeoJSON FeatureCollections for map-facing collaborators.
package geojson

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/orchestrator"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
)

func toRing(pts []orb.Point) orb.Ring {
	return orb.Ring(pts)
}

func toPolygon(p geo.Polygon) orb.Polygon {
	poly := orb.Polygon{toRing(p.Outer)}
	for _, h := range p.Holes {
		poly = append(poly, toRing(h))
	}
	return poly
}

func liftFeature(id string, l *skiarea.Lift) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString(l.Line.Item))
	f.Properties["feature_type"] = "lift"
	f.Properties["id"] = id
	f.Properties["name"] = l.Name
	if l.Ref != "" {
		f.Properties["ref"] = l.Ref
	}
	f.Properties["aerialway"] = l.Type
	f.Properties["can_go_reverse"] = l.CanGoReverse
	f.Properties["can_disembark"] = l.CanDisembark
	f.Properties["stations"] = len(l.Stations)
	return f
}

func pisteProperties(f *geojson.Feature, id string, p *skiarea.Piste) {
	f.Properties["feature_type"] = "piste"
	f.Properties["id"] = id
	if p.Metadata.Name != "" {
		f.Properties["name"] = p.Metadata.Name
	}
	if p.Metadata.Ref != "" {
		f.Properties["ref"] = p.Metadata.Ref
	}
	if d := p.Metadata.Difficulty.String(); d != "" {
		f.Properties["difficulty"] = d
	}
}

// FromSkiArea converts a resort model into a FeatureCollection: one
// LineString feature per lift, plus one LineString feature per piste
// line fragment and one Polygon feature per piste area fragment.
// Features appear in id order so output is stable.
func FromSkiArea(s *skiarea.SkiArea) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	liftIDs := make([]string, 0, len(s.Lifts))
	for id := range s.Lifts {
		liftIDs = append(liftIDs, id)
	}
	sort.Strings(liftIDs)
	for _, id := range liftIDs {
		fc.Append(liftFeature(id, s.Lifts[id]))
	}

	pisteIDs := make([]string, 0, len(s.Pistes))
	for id := range s.Pistes {
		pisteIDs = append(pisteIDs, id)
	}
	sort.Strings(pisteIDs)
	for _, id := range pisteIDs {
		p := s.Pistes[id]
		for _, line := range p.Data.Lines {
			f := geojson.NewFeature(orb.LineString(line))
			pisteProperties(f, id, p)
			fc.Append(f)
		}
		for _, area := range p.Data.Areas {
			f := geojson.NewFeature(toPolygon(area))
			pisteProperties(f, id, p)
			fc.Append(f)
		}
	}

	return fc
}

// FromAnnotatedRoute converts an analysis result into a
// FeatureCollection: one LineString feature per activity route
// segment, tagged with the activity's classification.
func FromAnnotatedRoute(r *orchestrator.AnnotatedRoute) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, a := range r.Items {
		for _, seg := range a.Route {
			pts := make(orb.LineString, len(seg))
			for j, wp := range seg {
				pts[j] = wp.Point
			}
			f := geojson.NewFeature(pts)
			f.Properties["activity"] = i
			f.Properties["kind"] = a.Kind.String()
			switch a.Kind {
			case orchestrator.KindUseLift:
				f.Properties["lift_id"] = a.UseLift.LiftID
				f.Properties["is_reverse"] = a.UseLift.IsReverse
			case orchestrator.KindMoving:
				f.Properties["move_type"] = a.Moving.MoveType.String()
				if a.Moving.PisteID != "" {
					f.Properties["piste_id"] = a.Moving.PisteID
				}
			}
			fc.Append(f)
		}
	}
	return fc
}

// ToGeoJSONBytes marshals a FeatureCollection with indentation.
func ToGeoJSONBytes(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// LayerSummary returns a short per-kind feature count summary.
func LayerSummary(s *skiarea.SkiArea) string {
	lines, areas := 0, 0
	for _, p := range s.Pistes {
		lines += len(p.Data.Lines)
		areas += len(p.Data.Areas)
	}
	return fmt.Sprintf("Lifts: %d, Pistes: %d (%d lines, %d areas)",
		len(s.Lifts), len(s.Pistes), lines, areas)
}
