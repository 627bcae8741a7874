package geojson

import (
	"encoding/json"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"

	"github.com/tilegen/tilegen/feature"
)

func TestPrecision_Zoom10IsAtMostFiveFractionalDigits(t *testing.T) {
	if got := Precision(10); got > 5 {
		t.Errorf("Precision(10) = %d, want <= 5", got)
	}
}

func TestPrecision_NeverNegative(t *testing.T) {
	if got := Precision(-20); got < 0 {
		t.Errorf("Precision(-20) = %d, want >= 0", got)
	}
}

func TestPrecision_IncreasesWithZoom(t *testing.T) {
	if Precision(0) > Precision(15) {
		t.Errorf("Precision(0)=%d should not exceed Precision(15)=%d", Precision(0), Precision(15))
	}
}

func TestEncode_TruncatesCoordinatesAndOmitsLayerTag(t *testing.T) {
	layers := []feature.Layer{{
		Name: "poi",
		Features: []feature.Feature{
			{
				Geom:       geom.Point{12.3456789123, 45.6789123456},
				Properties: map[string]interface{}{"name": "cafe"},
				ID:         7,
			},
		},
	}}

	data, err := Encode(layers, 10)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	fc, err := orbgeojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}

	gf := fc.Features[0]
	if _, ok := gf.Properties["__layer__"]; ok {
		t.Errorf("Encode must not tag features with __layer__, got %v", gf.Properties["__layer__"])
	}
	if gf.Properties["name"] != "cafe" {
		t.Errorf("name = %v, want %q", gf.Properties["name"], "cafe")
	}

	lon := gf.Geometry.(orb.Point)[0]
	digits := Precision(10)
	rounded := round(lon, digits)
	if rounded != lon {
		t.Errorf("longitude %v was not truncated to %d digits (expected %v)", lon, digits, rounded)
	}
}

func TestMerge_ProducesLayerKeyedObject(t *testing.T) {
	layers := []feature.Layer{
		{
			Name: "poi",
			Features: []feature.Feature{
				{Geom: geom.Point{1, 2}, Properties: map[string]interface{}{"name": "cafe"}},
			},
		},
		{
			Name: "roads",
			Features: []feature.Feature{
				{Geom: geom.Point{3, 4}, Properties: map[string]interface{}{"name": "main st"}},
			},
		},
	}

	data, err := Merge(layers, 10)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	var out map[string]orbgeojson.FeatureCollection
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 layer keys, got %d: %v", len(out), out)
	}
	poi, ok := out["poi"]
	if !ok {
		t.Fatal("expected a \"poi\" key in the merged object")
	}
	if len(poi.Features) != 1 {
		t.Fatalf("expected 1 feature under poi, got %d", len(poi.Features))
	}
	if _, tagged := poi.Features[0].Properties["__layer__"]; tagged {
		t.Error("Merge must not tag features with __layer__, the map key already identifies the layer")
	}
	roads, ok := out["roads"]
	if !ok {
		t.Fatal("expected a \"roads\" key in the merged object")
	}
	if len(roads.Features) != 1 {
		t.Fatalf("expected 1 feature under roads, got %d", len(roads.Features))
	}
}

func TestMerge_EmptyLayersStillKeyed(t *testing.T) {
	layers := []feature.Layer{{Name: "empty-layer"}}

	data, err := Merge(layers, 10)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	var out map[string]orbgeojson.FeatureCollection
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fc, ok := out["empty-layer"]
	if !ok {
		t.Fatal("expected an \"empty-layer\" key even with zero features")
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected zero features, got %d", len(fc.Features))
	}
}
