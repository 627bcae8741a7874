// Package topojson hand-encodes feature.Layer values into a minimal
// TopoJSON Topology document (spec.md 4.D). No TopoJSON library appears
// anywhere in the retrieved corpus, so this is a from-scratch encoder in
// the style of this module's other encoders (github.com/paulmach/orb):
// it reuses geomconv's geometry conversion and geojson's per-zoom
// precision rule (geojson.Precision); the coordinate rounding itself is
// done inline in Encode.
package topojson

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"

	"github.com/tilegen/tilegen/encoding/geojson"
	"github.com/tilegen/tilegen/feature"
	"github.com/tilegen/tilegen/internal/geomconv"
)

// Geometry is one TopoJSON geometry object. Arcs are not shared between
// features (no arc-dedup pass, no arcs at all); Coordinates holds raw
// coordinate data directly, which is a valid (if non-minimal) TopoJSON
// rendering.
type Geometry struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	ID         interface{}            `json:"id,omitempty"`
	Coordinates interface{}           `json:"coordinates,omitempty"`
}

// Object is a named GeometryCollection within a Topology, one per layer.
type Object struct {
	Type       string     `json:"type"`
	Geometries []Geometry `json:"geometries"`
}

// Topology is the top-level TopoJSON document.
type Topology struct {
	Type    string            `json:"type"`
	Objects map[string]Object `json:"objects"`
	Bbox    [4]float64        `json:"bbox"`
}

func coordsOf(g orb.Geometry) interface{} {
	switch t := g.(type) {
	case orb.Point:
		return [2]float64{t[0], t[1]}
	case orb.MultiPoint:
		return ringCoords(orb.Ring(t))
	case orb.LineString:
		return ringCoords(orb.Ring(t))
	case orb.MultiLineString:
		out := make([][][2]float64, len(t))
		for i, ls := range t {
			out[i] = ringCoords(orb.Ring(ls))
		}
		return out
	case orb.Polygon:
		out := make([][][2]float64, len(t))
		for i, r := range t {
			out[i] = ringCoords(r)
		}
		return out
	case orb.MultiPolygon:
		out := make([][][][2]float64, len(t))
		for i, p := range t {
			out[i] = polyCoords(p)
		}
		return out
	default:
		return nil
	}
}

func ringCoords(r orb.Ring) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func polyCoords(p orb.Polygon) [][][2]float64 {
	out := make([][][2]float64, len(p))
	for i, r := range p {
		out[i] = ringCoords(r)
	}
	return out
}

func typeName(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return "Point"
	case orb.MultiPoint:
		return "MultiPoint"
	case orb.LineString:
		return "LineString"
	case orb.MultiLineString:
		return "MultiLineString"
	case orb.Polygon:
		return "Polygon"
	case orb.MultiPolygon:
		return "MultiPolygon"
	default:
		return "GeometryCollection"
	}
}

// Encode renders layers into a single multi-object Topology whose bbox
// is the WGS84 longitude/latitude extent of bounds (spec.md 4.D).
func Encode(layers []feature.Layer, zoom int, wgs84Bounds [4]float64) ([]byte, error) {
	digits := geojson.Precision(zoom)

	objects := make(map[string]Object, len(layers))
	for _, l := range layers {
		geoms := make([]Geometry, 0, len(l.Features))
		for _, f := range l.Features {
			og, err := geomconv.ToOrb(f.Geom)
			if err != nil {
				continue
			}
			og = orb.Transform(og, func(p orb.Point) orb.Point {
				scale := math.Pow(10, float64(digits))
				return orb.Point{math.Round(p[0]*scale) / scale, math.Round(p[1]*scale) / scale}
			})

			geoms = append(geoms, Geometry{
				Type:        typeName(og),
				Properties:  f.Properties,
				ID:          f.ID,
				Coordinates: coordsOf(og),
			})
		}
		objects[l.Name] = Object{Type: "GeometryCollection", Geometries: geoms}
	}

	topo := Topology{Type: "Topology", Objects: objects, Bbox: wgs84Bounds}
	return json.Marshal(topo)
}
