package skiarea

import (
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// FindSkiAreaMetadata collects every way tagged landuse=winter_sports
// as a candidate resort outline, sorted by name so the choice of
// "first" is deterministic.
func FindSkiAreaMetadata(doc *osmdoc.GeoDoc) []SkiAreaMetadata {
	var result []SkiAreaMetadata
	for id, way := range doc.Ways {
		if way.Tags.Get("landuse") != "winter_sports" {
			continue
		}
		pts, err := resolveLine(doc, way.Nodes)
		if err != nil {
			continue
		}
		result = append(result, SkiAreaMetadata{
			ID:      strconv.FormatInt(id, 10),
			Name:    way.Tags.Get("name"),
			Outline: &geo.Polygon{Outer: pts},
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// findLifts parses every way in the document as a potential lift.
// Per-way parse errors are logged and the way skipped; they never
// abort the build.
func findLifts(doc *osmdoc.GeoDoc, logger *slog.Logger, tok *cancel.Token) (map[string]*Lift, error) {
	lifts := make(map[string]*Lift)
	for id, way := range doc.Ways {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		l, err := ParseLift(doc, id, way, logger)
		if err != nil {
			logger.Warn("error parsing lift way", "way", id, "err", err)
			continue
		}
		if l != nil {
			lifts[l.GetUniqueID()] = l
		}
	}
	return lifts, nil
}

// ParseSkiArea builds the full resort model from a document: resort
// metadata (the first winter_sports entity by name), all lifts, all
// pistes, and the enclosing bounding rectangle.
func ParseSkiArea(doc *osmdoc.GeoDoc, date time.Time, logger *slog.Logger, tok *cancel.Token) (*SkiArea, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metadatas := FindSkiAreaMetadata(doc)
	if len(metadatas) == 0 {
		return nil, skierr.New(skierr.InputError, "ski area entity not found")
	}
	metadata := metadatas[0]

	lifts, err := findLifts(doc, logger, tok)
	if err != nil {
		return nil, err
	}
	logger.Debug("found lifts", "count", len(lifts))

	pistes, err := ParsePistes(doc, logger, tok)
	if err != nil {
		return nil, err
	}
	logger.Debug("found pistes", "count", len(pistes))

	pisteMap := make(map[string]*Piste, len(pistes))
	for _, p := range pistes {
		pisteMap[p.GetUniqueID()] = p
	}

	return NewSkiArea(metadata, lifts, pisteMap, date)
}

// NewSkiArea assembles an already-parsed lift and piste set into a
// SkiArea, computing the global bounding rectangle. An area with no
// lifts and no pistes has no bounding rectangle and is rejected.
func NewSkiArea(metadata SkiAreaMetadata, lifts map[string]*Lift, pistes map[string]*Piste, date time.Time) (*SkiArea, error) {
	var rect geo.Bound
	haveRect := false
	for _, l := range lifts {
		rect, haveRect = geo.UnionBoundIf(rect, haveRect, l.Line.Rect, true)
	}
	for _, p := range pistes {
		rect, haveRect = geo.UnionBoundIf(rect, haveRect, p.Data.Rect, true)
	}
	if !haveRect {
		return nil, skierr.New(skierr.InputError, "empty ski area")
	}

	return &SkiArea{
		Metadata: metadata,
		Lifts:    lifts,
		Pistes:   pistes,
		Rect:     rect,
		Date:     date,
	}, nil
}

// ClipPisteLines removes the parts of each piste's lines that lie
// strictly inside that piste's own areas. Idempotent.
func (s *SkiArea) ClipPisteLines() {
	for _, p := range s.Pistes {
		p.Data.ClipLines()
	}
}

// metersPerDegree is the approximate length of one degree of latitude,
// used only to oversize bounding-rectangle prefilters; exact distances
// are always measured geodesically afterward.
const metersPerDegree = 111320.0

// GetClosestLift returns the id of the lift whose line passes closest
// to p, together with that distance in meters, considering only lifts
// within limit meters. ok is false when no lift line comes that close.
func (s *SkiArea) GetClosestLift(p orb.Point, limit float64) (liftID string, distance float64, ok bool) {
	ids := make([]string, 0, len(s.Lifts))
	for id := range s.Lifts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	margin := limit / metersPerDegree
	best := -1.0
	for _, id := range ids {
		l := s.Lifts[id]
		if !geo.Contains(geo.ExpandBound(l.Line.Rect, margin), p) {
			continue
		}
		c, cok := l.GetClosestPoint(p)
		if !cok || c.Distance > limit {
			continue
		}
		if best < 0 || c.Distance < best {
			best = c.Distance
			liftID = id
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return liftID, best, true
}
