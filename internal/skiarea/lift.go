package skiarea

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/geo"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

var allowedAerialwayTypes = map[string]bool{
	"cable_car": true, "gondola": true, "mixed_lift": true,
	"chair_lift": true, "drag_lift": true, "t-bar": true, "j-bar": true,
	"platter": true, "rope_tow": true, "magic_carpet": true, "zip_line": true,
}

var ignoredAerialwayTypes = map[string]bool{
	"goods": true, "pylon": true, "station": true, "construction": true, "yes": true,
}

var draglifTypes = map[string]bool{
	"drag_lift": true, "t-bar": true, "j-bar": true, "platter": true, "rope_tow": true,
}

type accessType int

const (
	accessUnknown accessType = iota
	accessEntry
	accessExit
	accessBoth
)

func parseAccessType(s string) accessType {
	switch s {
	case "entry":
		return accessEntry
	case "exit":
		return accessExit
	case "both":
		return accessBoth
	default:
		return accessUnknown
	}
}

func isStationNode(n osmdoc.Node) bool {
	return n.Tags.Get("aerialway") == "station"
}

func getAccess(n osmdoc.Node) accessType {
	if !isStationNode(n) {
		return accessUnknown
	}
	return parseAccessType(n.Tags.Get("aerialway:access"))
}

// parseYesNo parses an OSM yes/no tag value, returning (value, ok); ok
// is false when the tag is absent.
func parseYesNo(s string) (val bool, ok bool, err error) {
	switch s {
	case "":
		return false, false, nil
	case "yes", "true", "1":
		return true, true, nil
	case "no", "false", "0":
		return false, true, nil
	default:
		return false, false, skierr.New(skierr.InputError, "invalid yes/no value: %q", s)
	}
}

func parseEle(tags osmdoc.Tags) int {
	s := tags.Get("ele")
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

type stationInfo struct {
	point     orb.Point
	elevation int
	num       int
}

// directionRule is one cell of the begin/end access direction table.
type directionRule struct {
	reverse      bool
	canGoReverse bool
	isUnusual    bool
}

// ParseLift builds a Lift from a tagged way. Returns (nil, nil) for
// ways that are not lifts (ignored aerialway value, area=yes, or no
// aerialway tag at all); returns an error for unrecognized aerialway
// values or structurally invalid ways.
func ParseLift(doc *osmdoc.GeoDoc, wayID int64, way osmdoc.Way, logger *slog.Logger) (*Lift, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if way.Tags.Get("area") == "yes" {
		return nil, nil
	}

	aerialwayType := way.Tags.Get("aerialway")
	if aerialwayType == "" {
		return nil, nil
	}
	if ignoredAerialwayTypes[aerialwayType] {
		return nil, nil
	}
	if !allowedAerialwayTypes[aerialwayType] {
		return nil, skierr.New(skierr.InputError, "invalid lift type: %s", aerialwayType)
	}

	if len(way.Nodes) < 2 {
		return nil, skierr.New(skierr.InputError, "lift way %d doesn't have enough points", wayID)
	}

	beginID := way.Nodes[0]
	endID := way.Nodes[len(way.Nodes)-1]
	midIDs := way.Nodes[1 : len(way.Nodes)-1]

	beginNode, err := doc.GetNode(beginID)
	if err != nil {
		return nil, err
	}
	endNode, err := doc.GetNode(endID)
	if err != nil {
		return nil, err
	}
	beginAccess := getAccess(beginNode)
	endAccess := getAccess(endNode)

	var stations []stationInfo
	stations = append(stations, stationInfo{point: orb.Point{beginNode.Lon, beginNode.Lat}, elevation: parseEle(beginNode.Tags), num: 0})
	for i, id := range midIDs {
		n, err := doc.GetNode(id)
		if err != nil {
			return nil, err
		}
		if isStationNode(n) {
			stations = append(stations, stationInfo{point: orb.Point{n.Lon, n.Lat}, elevation: parseEle(n.Tags), num: i + 1})
		}
	}
	stations = append(stations, stationInfo{point: orb.Point{endNode.Lon, endNode.Lat}, elevation: parseEle(endNode.Tags), num: len(way.Nodes) - 1})

	name := way.Tags.Get("name")
	ref := way.Tags.Get("ref")
	if name == "" {
		logger.Debug("lift has no name", "way", wayID, "ref", ref, "type", aerialwayType)
		if ref == "" {
			name = fmt.Sprintf("<unnamed %s>", aerialwayType)
		} else {
			name = ref
		}
	}
	refName := name
	if ref != "" {
		refName = fmt.Sprintf("%s (%s)", name, ref)
	}

	oneway, onewaySet, err := parseYesNo(way.Tags.Get("oneway"))
	if err != nil {
		return nil, err
	}

	rule, err := resolveDirection(beginAccess, endAccess, aerialwayType, oneway, onewaySet)
	if err != nil {
		return nil, err
	}

	if rule.isUnusual {
		logger.Debug("unusual station access combination", "way", wayID, "lift", refName,
			"begin_access", beginAccess, "end_access", endAccess)
	}

	canGoReverse := rule.canGoReverse
	if onewaySet {
		actualCanGoReverse := !oneway
		if actualCanGoReverse != canGoReverse {
			logger.Debug("lift can_go_reverse mismatch", "way", wayID, "name", name,
				"calculated", canGoReverse, "actual", actualCanGoReverse)
			canGoReverse = actualCanGoReverse
		}
	}

	linePoints := make([]orb.Point, len(way.Nodes))
	for i, id := range way.Nodes {
		n, err := doc.GetNode(id)
		if err != nil {
			return nil, err
		}
		linePoints[i] = orb.Point{n.Lon, n.Lat}
	}

	lengths := make([]float64, len(stations)-1)
	for i := 0; i < len(stations)-1; i++ {
		lengths[i] = geo.Length(linePoints[stations[i].num : stations[i+1].num+1])
	}

	pointsWithElevation := make([]PointWithElevation, len(stations))
	for i, s := range stations {
		pointsWithElevation[i] = PointWithElevation{Point: s.point, Elevation: s.elevation}
	}

	if rule.reverse {
		logger.Debug("lift goes in reverse", "way", wayID, "name", refName)
		reversePoints(linePoints)
		reverseStations(pointsWithElevation)
		reverseFloats(lengths)
	}

	line, ok := geo.NewBoundedLine(linePoints)
	if !ok {
		return nil, skierr.New(skierr.LogicError, "cannot calculate bounding rect for lift %d", wayID)
	}

	return &Lift{
		id:           strconv.FormatInt(wayID, 10),
		Ref:          ref,
		Name:         name,
		Type:         aerialwayType,
		Line:         line,
		Stations:     pointsWithElevation,
		SegmentLengths: lengths,
		CanGoReverse: canGoReverse,
		CanDisembark: draglifTypes[aerialwayType],
	}, nil
}

// resolveDirection resolves the 4x4 begin/end access-type table into
// (reverse, canGoReverse, isUnusual).
func resolveDirection(begin, end accessType, aerialwayType string, oneway bool, onewaySet bool) (directionRule, error) {
	switch begin {
	case accessUnknown:
		switch end {
		case accessUnknown:
			canGoReverse := aerialwayType == "cable_car" || aerialwayType == "gondola"
			if onewaySet {
				canGoReverse = !oneway
			}
			return directionRule{false, canGoReverse, false}, nil
		case accessEntry:
			return directionRule{true, false, true}, nil
		case accessExit:
			return directionRule{false, false, true}, nil
		case accessBoth:
			return directionRule{false, true, true}, nil
		}
	case accessEntry:
		switch end {
		case accessUnknown:
			return directionRule{false, false, true}, nil
		case accessEntry:
			return directionRule{}, skierr.New(skierr.InputError, "invalid access combination: entry-entry")
		case accessExit:
			return directionRule{false, false, false}, nil
		case accessBoth:
			return directionRule{false, false, true}, nil
		}
	case accessExit:
		switch end {
		case accessUnknown:
			return directionRule{true, false, true}, nil
		case accessEntry:
			return directionRule{true, false, false}, nil
		case accessExit:
			return directionRule{}, skierr.New(skierr.InputError, "invalid access combination: exit-exit")
		case accessBoth:
			return directionRule{true, false, true}, nil
		}
	case accessBoth:
		switch end {
		case accessUnknown:
			return directionRule{false, true, true}, nil
		case accessEntry:
			return directionRule{true, false, true}, nil
		case accessExit:
			return directionRule{false, false, true}, nil
		case accessBoth:
			return directionRule{false, true, false}, nil
		}
	}
	panic("unreachable: exhaustive accessType switch")
}

func reversePoints(p []orb.Point) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}

func reverseStations(s []PointWithElevation) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseFloats(f []float64) {
	for i, j := 0, len(f)-1; i < j; i, j = i+1, j-1 {
		f[i], f[j] = f[j], f[i]
	}
}
