package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/alpineroute/ski-analyzer/internal/trajectory"
)

type boundJSON struct {
	Min orb.Point `json:"min"`
	Max orb.Point `json:"max"`
}

type waypointJSON struct {
	Point     orb.Point `json:"point"`
	Elevation *float64  `json:"elevation,omitempty"`
	Time      *string   `json:"time,omitempty"`
	Hdop      *float64  `json:"hdop,omitempty"`
}

type activityTypeJSON struct {
	Kind         string `json:"kind"`
	LiftID       string `json:"lift_id,omitempty"`
	BeginStation *int   `json:"begin_station,omitempty"`
	EndStation   *int   `json:"end_station,omitempty"`
	IsReverse    bool   `json:"is_reverse,omitempty"`
	PisteID      string `json:"piste_id,omitempty"`
	MoveType     string `json:"move_type,omitempty"`
}

type activityJSON struct {
	Type      activityTypeJSON `json:"type"`
	Route     [][]waypointJSON `json:"route"`
	BeginTime *string          `json:"begin_time,omitempty"`
	EndTime   *string          `json:"end_time,omitempty"`
	Length    float64          `json:"length"`
}

type annotatedRouteJSON struct {
	Rect boundJSON      `json:"bounding_rect"`
	Item []activityJSON `json:"item"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func routeToJSON(route trajectory.Segments) [][]waypointJSON {
	out := make([][]waypointJSON, len(route))
	for i, seg := range route {
		wps := make([]waypointJSON, len(seg))
		for j, wp := range seg {
			wps[j] = waypointJSON{
				Point:     wp.Point,
				Elevation: wp.Elevation,
				Time:      formatTime(wp.Time),
				Hdop:      wp.Hdop,
			}
		}
		out[i] = wps
	}
	return out
}

// MarshalJSON implements json.Marshaler for the persisted form.
func (r *AnnotatedRoute) MarshalJSON() ([]byte, error) {
	out := annotatedRouteJSON{
		Rect: boundJSON{Min: r.Rect.Min, Max: r.Rect.Max},
		Item: make([]activityJSON, len(r.Items)),
	}
	for i, a := range r.Items {
		t := activityTypeJSON{Kind: a.Kind.String()}
		switch a.Kind {
		case KindUseLift:
			t.LiftID = a.UseLift.LiftID
			t.BeginStation = a.UseLift.BeginStation
			t.EndStation = a.UseLift.EndStation
			t.IsReverse = a.UseLift.IsReverse
		case KindMoving:
			t.PisteID = a.Moving.PisteID
			t.MoveType = a.Moving.MoveType.String()
		}
		out.Item[i] = activityJSON{
			Type:      t,
			Route:     routeToJSON(a.Route),
			BeginTime: formatTime(a.BeginTime),
			EndTime:   formatTime(a.EndTime),
			Length:    a.Length,
		}
	}
	return json.Marshal(out)
}
