package orchestrator_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/orchestrator"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
	"github.com/alpineroute/ski-analyzer/internal/skierr"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// resortDoc builds a resort with one chair lift running north along
// lon 6.6532 from lat 45.3729 to 45.3865.
func resortDoc(t *testing.T) *osmdoc.GeoDoc {
	t.Helper()
	doc := &osmdoc.GeoDoc{
		Nodes:     make(map[int64]osmdoc.Node),
		Ways:      make(map[int64]osmdoc.Way),
		Relations: make(map[int64]osmdoc.Relation),
		Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for i, c := range [][2]float64{{6.64, 45.36}, {6.66, 45.36}, {6.66, 45.39}, {6.64, 45.39}} {
		id := int64(1000 + i)
		doc.Nodes[id] = osmdoc.Node{ID: id, Lat: c[1], Lon: c[0]}
	}
	doc.Ways[1] = osmdoc.Way{ID: 1, Nodes: []int64{1000, 1001, 1002, 1003, 1000}, Tags: osmdoc.Tags{
		"landuse": "winter_sports", "name": "Testgebiet",
	}}

	doc.Nodes[1] = osmdoc.Node{ID: 1, Lat: 45.3729, Lon: 6.6532, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Nodes[2] = osmdoc.Node{ID: 2, Lat: 45.3865, Lon: 6.6532, Tags: osmdoc.Tags{"aerialway": "station"}}
	doc.Ways[2] = osmdoc.Way{ID: 2, Nodes: []int64{1, 2}, Tags: osmdoc.Tags{
		"aerialway": "chair_lift", "name": "Sommet",
	}}

	return doc
}

func buildArea(t *testing.T) *skiarea.SkiArea {
	t.Helper()
	sa, err := orchestrator.BuildSkiArea(resortDoc(t), nil, nil)
	require.NoError(t, err)
	return sa
}

func wp(lon, lat float64, i int) trajectory.Waypoint {
	ts := base.Add(time.Duration(i) * 10 * time.Second)
	return trajectory.Waypoint{Point: orb.Point{lon, lat}, Time: &ts}
}

// liftRide builds a single-track trajectory: a couple of points off
// the lift, a steady ride up the line, then skiing away.
func liftRide(t *testing.T) [][][]trajectory.Waypoint {
	t.Helper()
	var pts []trajectory.Waypoint
	i := 0
	// approach, ~1km west of the lift
	for _, lat := range []float64{45.3729, 45.3729} {
		pts = append(pts, wp(6.64, lat, i))
		i++
	}
	// ride the line bottom to top
	for k := 0; k <= 20; k++ {
		lat := 45.3729 + (45.3865-45.3729)*float64(k)/20
		pts = append(pts, wp(6.6532, lat, i))
		i++
	}
	// ski away from the top
	for _, lon := range []float64{6.658, 6.662} {
		pts = append(pts, wp(lon, 45.3865, i))
		i++
	}
	return [][][]trajectory.Waypoint{{pts}}
}

func flatten(segs trajectory.Segments) []orb.Point {
	var out []orb.Point
	for _, s := range segs {
		for _, p := range s {
			out = append(out, p.Point)
		}
	}
	return out
}

func TestAnalyzeSimpleLiftRide(t *testing.T) {
	sa := buildArea(t)

	route, err := orchestrator.Analyze(sa, liftRide(t), nil)
	require.NoError(t, err)
	require.NotEmpty(t, route.Items)

	var liftActivities []orchestrator.Activity
	for _, a := range route.Items {
		if a.Kind == orchestrator.KindUseLift {
			liftActivities = append(liftActivities, a)
		}
	}
	require.Len(t, liftActivities, 1)

	use := liftActivities[0].UseLift
	require.NotNil(t, use)
	assert.Equal(t, "2", use.LiftID)
	assert.False(t, use.IsReverse)
	require.NotNil(t, use.BeginStation)
	require.NotNil(t, use.EndStation)
	assert.Equal(t, 0, *use.BeginStation)
	assert.Equal(t, 1, *use.EndStation)
	assert.Greater(t, liftActivities[0].Length, 1000.0)
}

func TestAnalyzePartitionsFilteredTrajectory(t *testing.T) {
	sa := buildArea(t)
	tracks := liftRide(t)

	route, err := orchestrator.Analyze(sa, tracks, nil)
	require.NoError(t, err)

	filtered, _, err := trajectory.Filter(tracks, nil)
	require.NoError(t, err)

	var got []orb.Point
	for _, a := range route.Items {
		require.NotEmpty(t, a.Route, "no empty activities")
		got = append(got, flatten(a.Route)...)
	}
	assert.Equal(t, flatten(filtered), got)
}

func TestAnalyzeTimesAreMonotonic(t *testing.T) {
	sa := buildArea(t)

	route, err := orchestrator.Analyze(sa, liftRide(t), nil)
	require.NoError(t, err)

	var last *time.Time
	for _, a := range route.Items {
		if a.BeginTime == nil {
			continue
		}
		if last != nil {
			assert.False(t, a.BeginTime.Before(*last))
		}
		last = a.EndTime
	}
}

func TestAnalyzeEmptyTrajectoryFails(t *testing.T) {
	sa := buildArea(t)

	_, err := orchestrator.Analyze(sa, nil, nil)
	require.Error(t, err)
	assert.True(t, skierr.IsKind(err, skierr.InputError))
}

func TestAnalyzeCancellation(t *testing.T) {
	sa := buildArea(t)
	tok := cancel.New()
	tok.Cancel()

	_, err := orchestrator.Analyze(sa, liftRide(t), tok)
	require.Error(t, err)
	assert.True(t, skierr.IsKind(err, skierr.Cancelled))
}

func TestAnnotatedRouteJSON(t *testing.T) {
	sa := buildArea(t)

	route, err := orchestrator.Analyze(sa, liftRide(t), nil)
	require.NoError(t, err)

	data, err := json.Marshal(route)
	require.NoError(t, err)

	var decoded struct {
		Rect struct {
			Min orb.Point `json:"min"`
			Max orb.Point `json:"max"`
		} `json:"bounding_rect"`
		Item []struct {
			Type struct {
				Kind   string `json:"kind"`
				LiftID string `json:"lift_id"`
			} `json:"type"`
			Route  [][]json.RawMessage `json:"route"`
			Length float64             `json:"length"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Item, len(route.Items))

	foundLift := false
	for _, it := range decoded.Item {
		if it.Type.Kind == "use_lift" {
			foundLift = true
			assert.Equal(t, "2", it.Type.LiftID)
		}
		assert.NotEmpty(t, it.Route)
	}
	assert.True(t, foundLift)
}

func TestClosestLift(t *testing.T) {
	sa := buildArea(t)

	id, dist, ok := orchestrator.ClosestLift(sa, orb.Point{6.6532, 45.38}, 50)
	require.True(t, ok)
	assert.Equal(t, "2", id)
	assert.Less(t, dist, 5.0)
}

func TestClipPisteLinesIdempotentOnArea(t *testing.T) {
	sa := buildArea(t)
	orchestrator.ClipPisteLines(sa)
	orchestrator.ClipPisteLines(sa) // no pistes at all is fine too
}
