package topojson

import (
	"encoding/json"
	"testing"

	"github.com/go-spatial/geom"

	"github.com/tilegen/tilegen/feature"
)

func TestEncode_ObjectPerLayer(t *testing.T) {
	layers := []feature.Layer{
		{Name: "water", Features: []feature.Feature{{Geom: geom.Point{1.23456789, 4.56789}}}},
		{Name: "roads", Features: nil},
	}

	data, err := Encode(layers, 8, [4]float64{-1, -1, 1, 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var topo Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if topo.Type != "Topology" {
		t.Errorf("Type = %q, want Topology", topo.Type)
	}
	if topo.Bbox != [4]float64{-1, -1, 1, 1} {
		t.Errorf("Bbox = %v, want [-1 -1 1 1]", topo.Bbox)
	}
	if len(topo.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(topo.Objects))
	}
	water, ok := topo.Objects["water"]
	if !ok {
		t.Fatal("expected a \"water\" object")
	}
	if water.Type != "GeometryCollection" || len(water.Geometries) != 1 {
		t.Errorf("water object = %+v", water)
	}
	if water.Geometries[0].Type != "Point" {
		t.Errorf("geometry type = %q, want Point", water.Geometries[0].Type)
	}

	roads := topo.Objects["roads"]
	if len(roads.Geometries) != 0 {
		t.Errorf("expected an empty roads object, got %+v", roads)
	}
}

func TestEncode_PolygonCoordinateShape(t *testing.T) {
	layers := []feature.Layer{{
		Name: "land",
		Features: []feature.Feature{
			{Geom: geom.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}},
		},
	}}

	data, err := Encode(layers, 0, [4]float64{0, 0, 1, 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	objects := raw["objects"].(map[string]interface{})
	land := objects["land"].(map[string]interface{})
	geoms := land["geometries"].([]interface{})
	if len(geoms) != 1 {
		t.Fatalf("expected 1 geometry, got %d", len(geoms))
	}
	g := geoms[0].(map[string]interface{})
	if g["type"] != "Polygon" {
		t.Errorf("type = %v, want Polygon", g["type"])
	}
	rings := g["coordinates"].([]interface{})
	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
	points := rings[0].([]interface{})
	if len(points) != 5 {
		t.Errorf("expected 5 points in the ring, got %d", len(points))
	}
}
