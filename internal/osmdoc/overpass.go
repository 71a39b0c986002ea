package osmdoc

import (
	"github.com/MeKo-Christian/go-overpass"

	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// FromOverpassResult adapts an already-resolved go-overpass Result into
// a GeoDoc. go-overpass resolves each way's member nodes into an
// embedded Geometry []overpass.Point slice and never exposes the
// underlying node ids, so this synthesizes one negative id per
// geometry point (negative to never collide with a real OSM id, which
// are always positive) and builds the matching Node entries, giving
// GeoDoc's node-id-indirection model something to point at. Relation
// members reference ways by the way's own id (overpass.Way.ID, via its
// embedded Meta); go-overpass embeds the member *overpass.Way directly
// on the member rather than requiring a separate lookup, so any way
// that only appears as a relation member is registered here too.
func FromOverpassResult(result *overpass.Result) (*GeoDoc, error) {
	if result == nil {
		return nil, skierr.New(skierr.InputError, "nil overpass result")
	}

	doc := &GeoDoc{
		Nodes:     make(map[int64]Node),
		Ways:      make(map[int64]Way),
		Relations: make(map[int64]Relation),
		Date:      result.Timestamp,
	}

	syntheticID := int64(-1)
	registerWay := func(w *overpass.Way) {
		if w == nil {
			return
		}
		if _, ok := doc.Ways[w.ID]; ok {
			return
		}
		nodeIDs := make([]int64, len(w.Geometry))
		geom := make([]LatLon, len(w.Geometry))
		for i, pt := range w.Geometry {
			nid := syntheticID
			syntheticID--
			doc.Nodes[nid] = Node{ID: nid, Lat: pt.Lat, Lon: pt.Lon}
			nodeIDs[i] = nid
			geom[i] = LatLon{Lat: pt.Lat, Lon: pt.Lon}
		}
		doc.Ways[w.ID] = Way{ID: w.ID, Nodes: nodeIDs, Tags: Tags(w.Tags), Geometry: geom}
	}

	for _, w := range result.Ways {
		registerWay(w)
	}

	for id, r := range result.Relations {
		if r == nil {
			continue
		}
		members := make([]Member, 0, len(r.Members))
		for _, m := range r.Members {
			var kind MemberKind
			switch m.Type {
			case "node":
				kind = MemberNode
			case "way":
				kind = MemberWay
			default:
				continue // nested relation members are not modeled, skipped
			}
			var ref int64
			switch kind {
			case MemberWay:
				registerWay(m.Way)
				if m.Way != nil {
					ref = m.Way.ID
				}
			case MemberNode:
				if m.Node != nil {
					ref = m.Node.ID
					if _, ok := doc.Nodes[ref]; !ok {
						doc.Nodes[ref] = Node{ID: ref, Lat: m.Node.Lat, Lon: m.Node.Lon, Tags: Tags(m.Node.Tags)}
					}
				}
			}
			members = append(members, Member{Kind: kind, Ref: ref, Role: m.Role})
		}
		doc.Relations[id] = Relation{ID: id, Members: members, Tags: Tags(r.Tags)}
	}

	return doc, nil
}
