package liftdetect_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpineroute/ski-analyzer/internal/liftdetect"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

func newDoc() *osmdoc.GeoDoc {
	return &osmdoc.GeoDoc{
		Nodes:     make(map[int64]osmdoc.Node),
		Ways:      make(map[int64]osmdoc.Way),
		Relations: make(map[int64]osmdoc.Relation),
	}
}

// straightLift builds a two-station lift running directly from
// (lon0,0) to (lon1,0).
func straightLift(t *testing.T, doc *osmdoc.GeoDoc, wayID int64, lon0, lon1 float64, aerialway string, extra osmdoc.Tags) *skiarea.Lift {
	t.Helper()
	n0, n1 := wayID*10+1, wayID*10+2
	doc.Nodes[n0] = osmdoc.Node{ID: n0, Lat: 0, Lon: lon0, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[n1] = osmdoc.Node{ID: n1, Lat: 0, Lon: lon1, Tags: osmdoc.Tags{"aerialway": "station"}}
	tags := osmdoc.Tags{"aerialway": aerialway, "name": fmt.Sprintf("Lift%d", wayID)}
	for k, v := range extra {
		tags[k] = v
	}
	way := osmdoc.Way{ID: wayID, Nodes: []int64{n0, n1}, Tags: tags}
	doc.Ways[wayID] = way
	l, err := skiarea.ParseLift(doc, wayID, way, nil)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

// detourLift builds a three-node lift whose begin/end stations sit at
// the same positions as straightLift(lon0,lon1) would, but whose line
// takes a longer path via an intermediate, untagged node — so its
// total length differs from a same-endpoint straight lift by more
// than liftdetect.MinDistance.
func detourLift(t *testing.T, doc *osmdoc.GeoDoc, wayID int64, lon0, viaLon, lon1 float64, aerialway string) *skiarea.Lift {
	t.Helper()
	n0, n1, n2 := wayID*10+1, wayID*10+2, wayID*10+3
	doc.Nodes[n0] = osmdoc.Node{ID: n0, Lat: 0, Lon: lon0, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[n1] = osmdoc.Node{ID: n1, Lat: 0, Lon: viaLon}
	doc.Nodes[n2] = osmdoc.Node{ID: n2, Lat: 0, Lon: lon1, Tags: osmdoc.Tags{"aerialway": "station"}}
	way := osmdoc.Way{
		ID:    wayID,
		Nodes: []int64{n0, n1, n2},
		Tags:  osmdoc.Tags{"aerialway": aerialway, "name": fmt.Sprintf("Lift%d", wayID)},
	}
	doc.Ways[wayID] = way
	l, err := skiarea.ParseLift(doc, wayID, way, nil)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func wp(lon float64, at time.Time) trajectory.Waypoint {
	t := at
	return trajectory.Waypoint{Point: orb.Point{lon, 0}, Time: &t}
}

func track(lons []float64, base time.Time) trajectory.Segments {
	seg := make(trajectory.Segment, len(lons))
	for i, lon := range lons {
		seg[i] = wp(lon, base.Add(time.Duration(i)*time.Second))
	}
	return trajectory.Segments{seg}
}

func area(lifts ...*skiarea.Lift) *skiarea.SkiArea {
	m := make(map[string]*skiarea.Lift, len(lifts))
	for _, l := range lifts {
		m[l.GetUniqueID()] = l
	}
	return &skiarea.SkiArea{Lifts: m}
}

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestFindLiftUsageSimpleRide(t *testing.T) {
	doc := newDoc()
	lift := straightLift(t, doc, 1, 0.0, 0.001, "chair_lift", nil)
	sa := area(lift)

	// Ride to the top station, then ski away: riding alone never closes
	// out the candidate, only leaving the lift's vicinity does.
	segments := track([]float64{
		0, 0.0001, 0.0002, 0.0003, 0.0004, 0.0005, 0.0006, 0.0007, 0.0008, 0.0009, 0.001,
		0.0015, 0.002,
	}, base)

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.NotNil(t, activities[0].Use)
	assert.Equal(t, lift, activities[0].Use.Lift)
	assert.NotNil(t, activities[0].Use.BeginStation)
	assert.NotNil(t, activities[0].Use.EndStation)
	assert.False(t, activities[0].Use.IsReverse)
	assert.Nil(t, activities[1].Use)
}

func TestFindLiftUsageFallingOutOfDraglift(t *testing.T) {
	doc := newDoc()
	lift := straightLift(t, doc, 1, 0.0, 0.001, "t-bar", nil)
	require.True(t, lift.CanDisembark)
	sa := area(lift)

	segments := track([]float64{0, 0.0001, 0.0002, 0.0003, 0.0004}, base)
	segments[0] = append(segments[0], trajectory.Waypoint{
		Point: orb.Point{0.0004, 0.2}, // ~22km off the line: clearly beyond MinDistance
		Time:  timePtr(base.Add(5 * time.Second)),
	})

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.NotNil(t, activities[0].Use)
	assert.Equal(t, lift, activities[0].Use.Lift)
	assert.Nil(t, activities[0].Use.EndStation)
	assert.Nil(t, activities[1].Use)
}

func TestFindLiftUsageReverseWithoutCanGoReverseStaysUnknown(t *testing.T) {
	doc := newDoc()
	lift := straightLift(t, doc, 1, 0.0, 0.001, "chair_lift", osmdoc.Tags{"oneway": "yes"})
	require.False(t, lift.CanGoReverse)
	sa := area(lift)

	// Ride from the end station back toward the begin station: this is
	// the reverse of the lift's defined direction.
	segments := track([]float64{0.001, 0.0009, 0.0008, 0.0007, 0.0006, 0.0005}, base)

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Nil(t, activities[0].Use)
}

func TestFindLiftUsageReverseWithCanGoReverse(t *testing.T) {
	doc := newDoc()
	lift := straightLift(t, doc, 1, 0.0, 0.001, "cable_car", nil)
	require.True(t, lift.CanGoReverse)
	sa := area(lift)

	segments := track([]float64{
		0.001, 0.0009, 0.0008, 0.0007, 0.0006, 0.0005, 0.0004, 0.0003, 0.0002, 0.0001, 0,
		-0.0005, -0.001,
	}, base)

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.NotNil(t, activities[0].Use)
	assert.True(t, activities[0].Use.IsReverse)
	require.NotNil(t, activities[0].Use.BeginStation)
	require.NotNil(t, activities[0].Use.EndStation)
	assert.Equal(t, 1, *activities[0].Use.BeginStation)
	assert.Equal(t, 0, *activities[0].Use.EndStation)
}

func TestFindLiftUsagePicksLongerParallelLift(t *testing.T) {
	doc := newDoc()
	short := straightLift(t, doc, 1, 0.0, 0.001, "gondola", nil)
	long := detourLift(t, doc, 2, 0.0, 0.002, 0.001, "gondola")
	sa := area(short, long)

	var seg trajectory.Segment
	for i, lon := range []float64{0, 0.0001, 0.0002, 0.0003, 0.0004, 0.0005, 0.0006, 0.0007, 0.0008, 0.0009, 0.001} {
		seg = append(seg, wp(lon, base.Add(time.Duration(i)*time.Second)))
	}
	// Ski far away from both overlapping lift lines, forcing both
	// candidates to leave and compete in the same commit batch.
	seg = append(seg,
		trajectory.Waypoint{Point: orb.Point{0.001, 0.2}, Time: timePtr(base.Add(11 * time.Second))},
		trajectory.Waypoint{Point: orb.Point{0.001, 0.3}, Time: timePtr(base.Add(12 * time.Second))},
	)
	segments := trajectory.Segments{seg}

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.NotNil(t, activities[0].Use)
	assert.Equal(t, long, activities[0].Use.Lift)
	assert.Nil(t, activities[1].Use)
}

func timePtr(t time.Time) *time.Time { return &t }

// Two lifts chained end to end: the handover point belongs to the
// second ride, settled as the later candidate's latest possible begin
// that is not after the earlier candidate's latest possible end.
func TestFindLiftUsageAbuttingRidesShareBoundary(t *testing.T) {
	doc := newDoc()
	lower := straightLift(t, doc, 1, 0.0, 0.001, "chair_lift", nil)
	upper := straightLift(t, doc, 2, 0.001, 0.002, "chair_lift", nil)
	sa := area(lower, upper)

	lons := make([]float64, 0, 23)
	for k := 0; k <= 20; k++ {
		lons = append(lons, 0.0001*float64(k))
	}
	seg := make(trajectory.Segment, 0, len(lons)+2)
	for i, lon := range lons {
		seg = append(seg, wp(lon, base.Add(time.Duration(i)*time.Second)))
	}
	seg = append(seg,
		trajectory.Waypoint{Point: orb.Point{0.002, 0.2}, Time: timePtr(base.Add(21 * time.Second))},
		trajectory.Waypoint{Point: orb.Point{0.002, 0.3}, Time: timePtr(base.Add(22 * time.Second))},
	)
	segments := trajectory.Segments{seg}

	activities, err := liftdetect.FindLiftUsage(sa, segments, nil)
	require.NoError(t, err)
	require.Len(t, activities, 3)

	require.NotNil(t, activities[0].Use)
	assert.Equal(t, lower, activities[0].Use.Lift)
	require.NotNil(t, activities[1].Use)
	assert.Equal(t, upper, activities[1].Use.Lift)
	assert.Nil(t, activities[2].Use)

	// no Unknown gap between the rides: the second starts exactly at
	// the shared station point
	firstOfUpper := activities[1].Route[0][0]
	assert.InDelta(t, 0.001, firstOfUpper.Point.Lon(), 1e-9)

	// the partition reproduces the input exactly
	var flat trajectory.Segment
	for _, a := range activities {
		for _, s := range a.Route {
			flat = append(flat, s...)
		}
	}
	assert.Equal(t, seg, flat)
}
