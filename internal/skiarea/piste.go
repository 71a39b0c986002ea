package skiarea

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/multipolygon"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
)

// withID pairs an accumulating geometry with its deterministic,
// concatenation-growing id.
type withID struct {
	id   string
	data PisteData
}

func parsePisteMetadata(tags osmdoc.Tags) PisteMetadata {
	name := tags.Get("piste:name")
	if name == "" {
		name = tags.Get("name")
	}
	ref := tags.Get("piste:ref")
	if ref == "" {
		ref = tags.Get("ref")
	}
	difficulty, _ := ParseDifficulty(tags.Get("piste:difficulty"))
	return PisteMetadata{Ref: ref, Name: name, Difficulty: difficulty}
}

func isAreaWay(way osmdoc.Way) bool {
	area := way.Tags.Get("area")
	if area == "yes" {
		return true
	}
	return area != "no" && len(way.Nodes) > 1 && way.Nodes[0] == way.Nodes[len(way.Nodes)-1]
}

func resolveLine(doc *osmdoc.GeoDoc, nodeIDs []int64) ([]orb.Point, error) {
	pts := make([]orb.Point, len(nodeIDs))
	for i, id := range nodeIDs {
		n, err := doc.GetNode(id)
		if err != nil {
			return nil, err
		}
		pts[i] = orb.Point{n.Lon, n.Lat}
	}
	return pts, nil
}

func lineToPisteData(pts []orb.Point) (PisteData, bool) {
	rect, ok := geo.BoundOf(pts)
	if !ok {
		return PisteData{}, false
	}
	return PisteData{Lines: [][]orb.Point{pts}, Rect: rect}, true
}

func areaToPisteData(poly geo.Polygon) (PisteData, bool) {
	rect, ok := poly.Bound()
	if !ok {
		return PisteData{}, false
	}
	return PisteData{Areas: []geo.Polygon{poly}, Rect: rect}, true
}

// unnamedEntity is one fragment routed to the unnamed pool, keyed only
// by difficulty until orphan attachment finds it a home.
type unnamedEntity struct {
	difficulty Difficulty
	isArea     bool
	id         string
	area       geo.Polygon
	line       []orb.Point
	rect       geo.Bound
}

type partialPiste struct {
	lines []withID // each a single-line PisteData
	areas []withID // each a single-area PisteData
}

// parsePartialPistes scans every way tagged piste:type=downhill plus
// every multipolygon relation tagged piste:type=downhill, classifying
// each resulting fragment into the named pool (keyed by metadata) or
// the unnamed pool. Per-way/relation parse errors are logged and the
// offending element skipped; they never abort the build. Cancellation
// is polled per way and per relation.
func parsePartialPistes(doc *osmdoc.GeoDoc, logger *slog.Logger, tok *cancel.Token) (map[PisteMetadata]*partialPiste, []unnamedEntity, error) {
	result := make(map[PisteMetadata]*partialPiste)
	var unnamed []unnamedEntity

	routeIndex := make(map[int64]PisteMetadata)
	for _, rel := range doc.Relations {
		if err := tok.Check(); err != nil {
			return nil, nil, err
		}
		if rel.Tags.Get("type") != "route" || rel.Tags.Get("route") != "piste" || rel.Tags.Get("piste:type") != "downhill" {
			continue
		}
		md := parsePisteMetadata(rel.Tags)
		if md.Ref == "" && md.Name == "" && md.Difficulty == DifficultyUnknown {
			continue
		}
		for _, m := range rel.Members {
			if m.Kind == osmdoc.MemberWay {
				routeIndex[m.Ref] = md
			}
		}
	}

	addFragment := func(id string, md PisteMetadata, isArea bool, pts []orb.Point, poly geo.Polygon) {
		if !md.IsNamed() {
			if isArea {
				rect, ok := poly.Bound()
				if !ok {
					return
				}
				unnamed = append(unnamed, unnamedEntity{difficulty: md.Difficulty, isArea: true, id: id, area: poly, rect: rect})
			} else {
				rect, ok := geo.BoundOf(pts)
				if !ok {
					return
				}
				unnamed = append(unnamed, unnamedEntity{difficulty: md.Difficulty, isArea: false, id: id, line: pts, rect: rect})
			}
			return
		}
		pp, ok := result[md]
		if !ok {
			pp = &partialPiste{}
			result[md] = pp
		}
		if isArea {
			data, ok := areaToPisteData(poly)
			if ok {
				pp.areas = append(pp.areas, withID{id: id, data: data})
			}
		} else {
			data, ok := lineToPisteData(pts)
			if ok {
				pp.lines = append(pp.lines, withID{id: id, data: data})
			}
		}
	}

	mergeRouteMetadata := func(wayID int64, tags osmdoc.Tags) PisteMetadata {
		md := parsePisteMetadata(tags)
		rmd, ok := routeIndex[wayID]
		if !ok {
			return md
		}
		if rmd.Ref != "" && md.Ref == "" {
			md.Ref = rmd.Ref
		}
		if rmd.Name != "" && md.Name == "" {
			md.Name = rmd.Name
		}
		if rmd.Difficulty != DifficultyUnknown && md.Difficulty == DifficultyUnknown {
			md.Difficulty = rmd.Difficulty
		}
		return md
	}

	for id, way := range doc.Ways {
		if err := tok.Check(); err != nil {
			return nil, nil, err
		}
		if way.Tags.Get("piste:type") != "downhill" {
			continue
		}
		pts, err := resolveLine(doc, way.Nodes)
		if err != nil {
			logger.Debug("error parsing piste", "way", id, "err", err)
			continue
		}
		md := mergeRouteMetadata(id, way.Tags)
		area := isAreaWay(way)
		var poly geo.Polygon
		if area {
			poly = geo.Polygon{Outer: pts}
		}
		addFragment(strconv.FormatInt(id, 10), md, area, pts, poly)
	}

	for id, rel := range doc.Relations {
		if err := tok.Check(); err != nil {
			return nil, nil, err
		}
		if rel.Tags.Get("type") != "multipolygon" || rel.Tags.Get("piste:type") != "downhill" {
			continue
		}
		polys, err := multipolygon.Assemble(doc, rel)
		if err != nil {
			logger.Debug("error parsing piste multipolygon", "relation", id, "err", err)
			continue
		}
		md := parsePisteMetadata(rel.Tags)
		for _, poly := range polys {
			addFragment(strconv.FormatInt(id, 10), md, true, nil, poly)
		}
	}

	return result, unnamed, nil
}

func mergePisteData(target, source *withID) {
	target.data.Lines = append(target.data.Lines, source.data.Lines...)
	target.data.Areas = append(target.data.Areas, source.data.Areas...)
	target.data.Rect = geo.UnionBound(target.data.Rect, source.data.Rect)
	target.id = target.id + "_" + source.id
}

// mergeIntersectingPistes merges any pair of fragments in data whose
// PisteData geometrically intersects, to a fixpoint. The pairwise scan
// is quadratic in the worst case, so cancellation is polled at the top
// of every merge iteration.
func mergeIntersectingPistes(data []withID, tok *cancel.Token) ([]withID, error) {
	i := 0
	for i < len(data)-1 {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		changed := false
		j := i + 1
		for j < len(data) {
			if data[i].data.Intersects(&data[j].data) {
				mergePisteData(&data[i], &data[j])
				data = append(data[:j], data[j+1:]...)
				changed = true
			} else {
				j++
			}
		}
		if !changed {
			i++
		}
	}
	return data, nil
}

func toWithIDSlice(pp *partialPiste) []withID {
	result := make([]withID, 0, len(pp.lines)+len(pp.areas))
	result = append(result, pp.lines...)
	result = append(result, pp.areas...)
	return result
}

// mergePartialPistes turns each metadata key's raw fragment list into
// a set of merged WithId<PisteData> groups. When refless is non-nil,
// after every named-key merge pass it also pulls in any intersecting
// fragment from the unnamed-ref pool keyed by (name, difficulty),
// re-merging until stable.
func mergePartialPistes(partials map[PisteMetadata]*partialPiste, refless map[PisteMetadata][]withID, tok *cancel.Token) (map[PisteMetadata][]withID, error) {
	result := make(map[PisteMetadata][]withID)
	for md, pp := range partials {
		data := toWithIDSlice(pp)
		if len(data) == 0 {
			continue
		}

		var err error
		if refless == nil {
			data, err = mergeIntersectingPistes(data, tok)
			if err != nil {
				return nil, err
			}
		} else {
			changed := true
			for changed {
				if err := tok.Check(); err != nil {
					return nil, err
				}
				changed = false
				data, err = mergeIntersectingPistes(data, tok)
				if err != nil {
					return nil, err
				}
				key := PisteMetadata{Ref: "", Name: md.Name, Difficulty: md.Difficulty}
				if reflessData, ok := refless[key]; ok {
					for di := range data {
						for ri := 0; ri < len(reflessData); ri++ {
							if data[di].data.Intersects(&reflessData[ri].data) {
								mergePisteData(&data[di], &reflessData[ri])
								reflessData = append(reflessData[:ri], reflessData[ri+1:]...)
								ri--
								changed = true
							}
						}
					}
					refless[key] = reflessData
				}
			}
		}
		result[md] = data
	}
	return result, nil
}

func makePiste(md PisteMetadata, data withID, result *[]*Piste) {
	if len(data.data.Areas) == 0 && len(data.data.Lines) == 0 {
		return
	}
	*result = append(*result, &Piste{id: data.id, Metadata: md, Data: data.data})
}

func makePistes(md PisteMetadata, datas []withID, result *[]*Piste, logger *slog.Logger) {
	switch len(datas) {
	case 0:
		return
	case 1:
		makePiste(md, datas[0], result)
	default:
		logger.Debug("piste has disjunct parts", "ref", md.Ref, "name", md.Name, "parts", len(datas))
		for _, d := range datas {
			makePiste(md, d, result)
		}
	}
}

func entityIntersectionLength(area geo.Polygon, areaRect geo.Bound, line []orb.Point, lineRect geo.Bound) float64 {
	if !geo.Intersects(areaRect, lineRect) {
		return 0
	}
	return area.IntersectionLengthWithLine(line)
}

// handleUnnamedEntities runs the orphan attachment passes: for each
// unnamed area, attach to the named group of matching
// difficulty whose lines it overlaps the most (if any overlap exists);
// symmetrically for unnamed lines against named areas. Repeats both
// passes until neither attaches anything, then groups whatever remains
// purely by difficulty. Cancellation is polled per attachment pass.
func handleUnnamedEntities(unnamed []unnamedEntity, named map[PisteMetadata][]withID, logger *slog.Logger, tok *cancel.Token) ([]*Piste, error) {
	var areas, lines []unnamedEntity
	for _, e := range unnamed {
		if e.isArea {
			areas = append(areas, e)
		} else {
			lines = append(lines, e)
		}
	}

	for {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		var changed1, changed2 bool
		areas, changed1 = attachUnnamedAreas(areas, named)
		lines, changed2 = attachUnnamedLines(lines, named)
		if !changed1 && !changed2 {
			break
		}
	}

	logger.Debug("unattached unnamed fragments", "lines", len(lines), "areas", len(areas))

	return mergeUnnamedPistes(lines, areas, tok)
}

// attachUnnamedAreas tries to attach each unnamed area fragment to the
// named group (of matching difficulty) with the greatest cumulative
// intersection length against that group's lines.
func attachUnnamedAreas(input []unnamedEntity, named map[PisteMetadata][]withID) ([]unnamedEntity, bool) {
	var rest []unnamedEntity
	changed := false
	for _, e := range input {
		var bestKey PisteMetadata
		bestLen := 0.0
		found := false
		for md, datas := range named {
			if md.Difficulty != e.difficulty {
				continue
			}
			total := 0.0
			for _, d := range datas {
				for _, l := range d.data.Lines {
					total += entityIntersectionLength(e.area, e.rect, l, d.data.Rect)
				}
			}
			if total > 0 && (!found || total > bestLen) {
				bestKey, bestLen, found = md, total, true
			}
		}
		if found {
			data, ok := areaToPisteData(e.area)
			if ok {
				datas := named[bestKey]
				datas[0].data.Areas = append(datas[0].data.Areas, data.Areas...)
				datas[0].data.Rect = geo.UnionBound(datas[0].data.Rect, data.Rect)
				named[bestKey] = datas
			}
			changed = true
		} else {
			rest = append(rest, e)
		}
	}
	return rest, changed
}

// attachUnnamedLines is the line-fragment symmetric counterpart of
// attachUnnamedAreas.
func attachUnnamedLines(input []unnamedEntity, named map[PisteMetadata][]withID) ([]unnamedEntity, bool) {
	var rest []unnamedEntity
	changed := false
	for _, e := range input {
		var bestKey PisteMetadata
		bestLen := 0.0
		found := false
		for md, datas := range named {
			if md.Difficulty != e.difficulty {
				continue
			}
			total := 0.0
			for _, d := range datas {
				for _, a := range d.data.Areas {
					total += entityIntersectionLength(a, d.data.Rect, e.line, e.rect)
				}
			}
			if total > 0 && (!found || total > bestLen) {
				bestKey, bestLen, found = md, total, true
			}
		}
		if found {
			data, ok := lineToPisteData(e.line)
			if ok {
				datas := named[bestKey]
				datas[0].data.Lines = append(datas[0].data.Lines, data.Lines...)
				datas[0].data.Rect = geo.UnionBound(datas[0].data.Rect, data.Rect)
				named[bestKey] = datas
			}
			changed = true
		} else {
			rest = append(rest, e)
		}
	}
	return rest, changed
}

// mergeUnnamedPistes groups whatever unnamed fragments were never
// attached to a named group purely by difficulty, merges each group by
// geometric intersection, and emits one Piste per connected component.
func mergeUnnamedPistes(lines, areas []unnamedEntity, tok *cancel.Token) ([]*Piste, error) {
	byDifficulty := make(map[Difficulty][]withID)
	for _, l := range lines {
		data, ok := lineToPisteData(l.line)
		if ok {
			byDifficulty[l.difficulty] = append(byDifficulty[l.difficulty], withID{id: l.id, data: data})
		}
	}
	for _, a := range areas {
		data, ok := areaToPisteData(a.area)
		if ok {
			byDifficulty[a.difficulty] = append(byDifficulty[a.difficulty], withID{id: a.id, data: data})
		}
	}

	difficulties := make([]Difficulty, 0, len(byDifficulty))
	for d := range byDifficulty {
		difficulties = append(difficulties, d)
	}
	sort.Slice(difficulties, func(i, j int) bool { return difficulties[i] < difficulties[j] })

	var result []*Piste
	for _, d := range difficulties {
		merged, err := mergeIntersectingPistes(byDifficulty[d], tok)
		if err != nil {
			return nil, err
		}
		for _, data := range merged {
			if len(data.data.Areas) == 0 && len(data.data.Lines) == 0 {
				continue
			}
			result = append(result, &Piste{
				id:       data.id,
				Metadata: PisteMetadata{Difficulty: d},
				Data:     data.data,
			})
		}
	}
	return result, nil
}

// ParsePistes builds every Piste in the document.
func ParsePistes(doc *osmdoc.GeoDoc, logger *slog.Logger, tok *cancel.Token) ([]*Piste, error) {
	if logger == nil {
		logger = slog.Default()
	}

	partials, unnamed, err := parsePartialPistes(doc, logger, tok)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed partial pistes", "named_keys", len(partials), "unnamed", len(unnamed))

	return assemblePistes(partials, unnamed, logger, tok)
}

// assemblePistes runs the named-pool pipeline followed by orphan
// attachment: partial pistes are split into refless (ref empty)
// and reffed groups, refless merges first (producing the pool
// cross-ref attachment draws from), then reffed groups merge while
// pulling in intersecting refless fragments, then unnamed fragments are
// attached or grouped, and every surviving group is pistified.
func assemblePistes(partials map[PisteMetadata]*partialPiste, unnamed []unnamedEntity, logger *slog.Logger, tok *cancel.Token) ([]*Piste, error) {
	reffed := make(map[PisteMetadata]*partialPiste)
	for md, pp := range partials {
		if md.Ref != "" {
			reffed[md] = pp
		}
	}
	refless := make(map[PisteMetadata]*partialPiste)
	for md, pp := range partials {
		if md.Ref == "" {
			refless[md] = pp
		}
	}

	reflessData, err := mergePartialPistes(refless, nil, tok)
	if err != nil {
		return nil, err
	}
	reffedData, err := mergePartialPistes(reffed, reflessData, tok)
	if err != nil {
		return nil, err
	}

	named := make(map[PisteMetadata][]withID)
	for md, d := range reflessData {
		named[md] = d
	}
	for md, d := range reffedData {
		named[md] = d
	}

	unnamedPistes, err := handleUnnamedEntities(unnamed, named, logger, tok)
	if err != nil {
		return nil, err
	}

	var result []*Piste
	for md, datas := range named {
		makePistes(md, datas, &result, logger)
	}
	result = append(result, unnamedPistes...)
	return result, nil
}
