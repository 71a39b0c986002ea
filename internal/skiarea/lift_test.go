package skiarea

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
)

func newLiftDoc() *osmdoc.GeoDoc {
	return &osmdoc.GeoDoc{
		Nodes:     make(map[int64]osmdoc.Node),
		Ways:      make(map[int64]osmdoc.Way),
		Relations: make(map[int64]osmdoc.Relation),
	}
}

func chairLiftWay(doc *osmdoc.GeoDoc, beginAccess, endAccess string) osmdoc.Way {
	beginTags := osmdoc.Tags{"aerialway": "station"}
	if beginAccess != "" {
		beginTags["aerialway:access"] = beginAccess
	}
	endTags := osmdoc.Tags{"aerialway": "station"}
	if endAccess != "" {
		endTags["aerialway:access"] = endAccess
	}
	doc.Nodes[1] = osmdoc.Node{ID: 1, Lat: 0, Lon: 0, Tags: beginTags}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lat: 0, Lon: 1, Tags: osmdoc.Tags{}}
	doc.Nodes[3] = osmdoc.Node{ID: 3, Lat: 0, Lon: 2, Tags: endTags}
	return osmdoc.Way{
		ID:    100,
		Nodes: []int64{1, 2, 3},
		Tags:  osmdoc.Tags{"aerialway": "chair_lift", "name": "Test Lift"},
	}
}

func TestParseLiftSkipsNonLiftWays(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1}
	doc.Nodes[2] = osmdoc.Node{ID: 2}
	way := osmdoc.Way{ID: 1, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"highway": "path"}}
	l, err := ParseLift(doc, 1, way, nil)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestParseLiftSkipsAreaWays(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1}
	doc.Nodes[2] = osmdoc.Node{ID: 2}
	way := osmdoc.Way{ID: 1, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"aerialway": "chair_lift", "area": "yes"}}
	l, err := ParseLift(doc, 1, way, nil)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestParseLiftSkipsIgnoredTypes(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1}
	doc.Nodes[2] = osmdoc.Node{ID: 2}
	way := osmdoc.Way{ID: 1, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"aerialway": "pylon"}}
	l, err := ParseLift(doc, 1, way, nil)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestParseLiftRejectsUnknownType(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1}
	doc.Nodes[2] = osmdoc.Node{ID: 2}
	way := osmdoc.Way{ID: 1, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"aerialway": "bogus"}}
	_, err := ParseLift(doc, 1, way, nil)
	assert.Error(t, err)
}

func TestParseLiftBasicChairLift(t *testing.T) {
	doc := newLiftDoc()
	way := chairLiftWay(doc, "", "")
	l, err := ParseLift(doc, 100, way, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "Test Lift", l.Name)
	assert.Equal(t, "chair_lift", l.Type)
	assert.Len(t, l.Stations, 2)
	assert.Len(t, l.SegmentLengths, 1)
	assert.False(t, l.CanDisembark)
	assert.Equal(t, "100", l.GetUniqueID())
}

func TestParseLiftDragLiftCanDisembark(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lon: 1}
	doc.Nodes[3] = osmdoc.Node{ID: 3, Lon: 2, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{ID: 200, Nodes: []int64{1, 2, 3}, Tags: osmdoc.Tags{"aerialway": "t-bar", "name": "Tbar"}}
	l, err := ParseLift(doc, 200, way, nil)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.True(t, l.CanDisembark)
}

func TestParseLiftNameDefaultsToRefThenPlaceholder(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lon: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{ID: 300, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"aerialway": "chair_lift", "ref": "A1"}}
	l, err := ParseLift(doc, 300, way, nil)
	require.NoError(t, err)
	assert.Equal(t, "A1", l.Name)

	way2 := osmdoc.Way{ID: 301, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{"aerialway": "chair_lift"}}
	l2, err := ParseLift(doc, 301, way2, nil)
	require.NoError(t, err)
	assert.Equal(t, "<unnamed chair_lift>", l2.Name)
}

func TestParseLiftMidpointStationOnlyWhenTaggedStation(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lon: 1} // plain pylon node, not a station
	doc.Nodes[3] = osmdoc.Node{ID: 3, Lon: 2, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{ID: 400, Nodes: []int64{1, 2, 3}, Tags: osmdoc.Tags{"aerialway": "gondola", "name": "G"}}
	l, err := ParseLift(doc, 400, way, nil)
	require.NoError(t, err)
	assert.Len(t, l.Stations, 2)
}

func TestParseLiftMidpointStationIncludedWhenTagged(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lon: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[3] = osmdoc.Node{ID: 3, Lon: 2, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{ID: 500, Nodes: []int64{1, 2, 3}, Tags: osmdoc.Tags{"aerialway": "gondola", "name": "G"}}
	l, err := ParseLift(doc, 500, way, nil)
	require.NoError(t, err)
	assert.Len(t, l.Stations, 3)
	assert.Len(t, l.SegmentLengths, 2)
}

func TestParseLiftOnewayOverridesCanGoReverse(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lon: 1, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{ID: 600, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{
		"aerialway": "cable_car", "name": "C", "oneway": "yes",
	}}
	l, err := ParseLift(doc, 600, way, nil)
	require.NoError(t, err)
	assert.False(t, l.CanGoReverse)
}

func TestParseLiftEntryEntryIsInvalid(t *testing.T) {
	doc := newLiftDoc()
	way := chairLiftWay(doc, "entry", "entry")
	_, err := ParseLift(doc, 100, way, nil)
	assert.Error(t, err)
}

func TestParseLiftExitExitIsInvalid(t *testing.T) {
	doc := newLiftDoc()
	way := chairLiftWay(doc, "exit", "exit")
	_, err := ParseLift(doc, 100, way, nil)
	assert.Error(t, err)
}

func TestParseLiftEntryExitDoesNotReverse(t *testing.T) {
	doc := newLiftDoc()
	way := chairLiftWay(doc, "entry", "exit")
	l, err := ParseLift(doc, 100, way, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, l.Line.Item[0].Lon())
}

func TestParseLiftExitEntryReverses(t *testing.T) {
	doc := newLiftDoc()
	way := chairLiftWay(doc, "exit", "entry")
	l, err := ParseLift(doc, 100, way, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, l.Line.Item[0].Lon())
}

func TestResolveDirectionReverseFlipIsConsistent(t *testing.T) {
	forward, err := resolveDirection(accessExit, accessEntry, "chair_lift", false, false)
	require.NoError(t, err)
	assert.True(t, forward.reverse)

	backward, err := resolveDirection(accessEntry, accessExit, "chair_lift", false, false)
	require.NoError(t, err)
	assert.False(t, backward.reverse)
}

func TestParseLiftRejectsTooFewNodes(t *testing.T) {
	doc := newLiftDoc()
	doc.Nodes[1] = osmdoc.Node{ID: 1}
	way := osmdoc.Way{ID: 1, Nodes: []int64{1}, Tags: osmdoc.Tags{"aerialway": "chair_lift"}}
	_, err := ParseLift(doc, 1, way, nil)
	assert.Error(t, err)
}
