// Package osmdoc holds an immutable in-memory snapshot of a
// tagged-entity geographic document (nodes, ways, relations with
// free-form tags), decoded from Overpass-style tagged-union JSON:
// {osm3s:{...}, elements:[{type,id,tags,...}, ...]}.
package osmdoc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// Tags is a case-sensitive string-to-string map.
type Tags map[string]string

// Get returns tags[name], or "" if absent.
func (t Tags) Get(name string) string {
	return t[name]
}

// Node is a tagged point.
type Node struct {
	ID   int64
	Lat  float64
	Lon  float64
	Tags Tags
}

// Way is an ordered list of node ids plus tags.
type Way struct {
	ID    int64
	Nodes []int64
	Tags  Tags
	// Geometry holds the optional inline geometry the wire format may
	// carry alongside Nodes; GeoDoc itself never needs it (every
	// lookup goes through node ids), but it is preserved for
	// collaborators that want to skip a full node resolution pass.
	Geometry []LatLon
}

// LatLon is a bare coordinate pair, used only for Way.Geometry.
type LatLon struct {
	Lat float64
	Lon float64
}

// MemberKind distinguishes the two element kinds a relation can
// reference: nodes and ways.
type MemberKind int

const (
	MemberNode MemberKind = iota
	MemberWay
)

// Member is one entry of a relation's member list.
type Member struct {
	Kind MemberKind
	Ref  int64
	Role string
}

// Relation is a list of members plus tags.
type Relation struct {
	ID      int64
	Members []Member
	Tags    Tags
}

// GeoDoc is the immutable snapshot: typed lookup over nodes, ways and
// relations. Every field is populated at construction and never
// mutated afterward; analyses borrow it read-only.
type GeoDoc struct {
	Nodes     map[int64]Node
	Ways      map[int64]Way
	Relations map[int64]Relation
	// Date is the source document's snapshot timestamp
	// (osm3s.timestamp_osm_base); zero when the wire form omits it.
	Date time.Time
}

// GetNode looks up a node by id, failing with InputError if absent —
// every reference into a GeoDoc is assumed internally consistent, and
// a dangling reference is malformed input, not an internal bug.
func (d *GeoDoc) GetNode(id int64) (Node, error) {
	n, ok := d.Nodes[id]
	if !ok {
		return Node{}, skierr.New(skierr.InputError, "node not found: %d", id)
	}
	return n, nil
}

// GetWay looks up a way by id.
func (d *GeoDoc) GetWay(id int64) (Way, error) {
	w, ok := d.Ways[id]
	if !ok {
		return Way{}, skierr.New(skierr.InputError, "way not found: %d", id)
	}
	return w, nil
}

// GetRelation looks up a relation by id.
func (d *GeoDoc) GetRelation(id int64) (Relation, error) {
	r, ok := d.Relations[id]
	if !ok {
		return Relation{}, skierr.New(skierr.InputError, "relation not found: %d", id)
	}
	return r, nil
}

// IterateNodes calls f for every node referenced by ids, in order,
// stopping at the first error.
func (d *GeoDoc) IterateNodes(ids []int64, f func(Node) error) error {
	for _, id := range ids {
		n, err := d.GetNode(id)
		if err != nil {
			return err
		}
		if err := f(n); err != nil {
			return err
		}
	}
	return nil
}

// --- wire decoding ---

type wireDocument struct {
	Osm3S struct {
		TimestampOsmBase string `json:"timestamp_osm_base"`
		Copyright        string `json:"copyright"`
	} `json:"osm3s"`
	Elements []json.RawMessage `json:"elements"`
}

type wireElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Nodes    []int64           `json:"nodes"`
	Tags     map[string]string `json:"tags"`
	Members  []wireMember      `json:"members"`
	Geometry []LatLon          `json:"geometry"`
}

type wireMember struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// Parse decodes a GeoDoc from its JSON wire form. Per-element decode
// errors are InputErrors; there is no per-element recovery here — the
// document itself must be structurally valid before any lift or piste
// parsing is attempted.
func Parse(data []byte) (*GeoDoc, error) {
	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, skierr.Wrap(skierr.InputError, err, "decode GeoDoc JSON")
	}

	doc := &GeoDoc{
		Nodes:     make(map[int64]Node),
		Ways:      make(map[int64]Way),
		Relations: make(map[int64]Relation),
	}
	if wire.Osm3S.TimestampOsmBase != "" {
		date, err := time.Parse(time.RFC3339, wire.Osm3S.TimestampOsmBase)
		if err != nil {
			return nil, skierr.Wrap(skierr.InputError, err, "decode osm3s timestamp %q", wire.Osm3S.TimestampOsmBase)
		}
		doc.Date = date
	}

	for i, raw := range wire.Elements {
		var el wireElement
		if err := json.Unmarshal(raw, &el); err != nil {
			return nil, skierr.Wrap(skierr.InputError, err, "decode element %d", i)
		}
		switch el.Type {
		case "node":
			doc.Nodes[el.ID] = Node{ID: el.ID, Lat: el.Lat, Lon: el.Lon, Tags: Tags(el.Tags)}
		case "way":
			doc.Ways[el.ID] = Way{ID: el.ID, Nodes: el.Nodes, Tags: Tags(el.Tags), Geometry: el.Geometry}
		case "relation":
			members := make([]Member, 0, len(el.Members))
			for _, m := range el.Members {
				var kind MemberKind
				switch m.Type {
				case "node":
					kind = MemberNode
				case "way":
					kind = MemberWay
				default:
					return nil, skierr.New(skierr.InputError, "relation %d: unsupported member type %q", el.ID, m.Type)
				}
				members = append(members, Member{Kind: kind, Ref: m.Ref, Role: m.Role})
			}
			doc.Relations[el.ID] = Relation{ID: el.ID, Members: members, Tags: Tags(el.Tags)}
		default:
			return nil, skierr.New(skierr.InputError, "unrecognized element type %q", el.Type)
		}
	}

	return doc, nil
}

// MustParse is a test/fixture convenience; it panics on error.
func MustParse(data []byte) *GeoDoc {
	doc, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("osmdoc.MustParse: %v", err))
	}
	return doc
}
