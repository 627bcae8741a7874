// Package geojson encodes feature.Layer values as GeoJSON, with
// per-zoom coordinate precision truncation (spec.md 4.D). Encode renders
// a single layer's features as one FeatureCollection (the render_tile
// path); Merge renders several layers into an object mapping layer name
// to its own FeatureCollection, matching
// original_source/src/tile_gen/vectiles/geojson.py's merge for the
// "all layers" response. Grounded on paulmach/orb/geojson, the same
// library this corpus's MVT decoder (valpere-tile_to_json) uses for its
// GeometryType constants.
package geojson

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tilegen/tilegen/feature"
	"github.com/tilegen/tilegen/internal/geomconv"
)

// Precision returns the number of coordinate decimal digits to keep for
// a given zoom level, per spec.md 4.D:
// ceil(log10(2^(zoom+8+2))) - 2.
func Precision(zoom int) int {
	bits := float64(zoom + 8 + 2)
	digits := math.Ceil(bits*math.Log10(2)) - 2
	if digits < 0 {
		digits = 0
	}
	return int(digits)
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func truncate(g orb.Geometry, digits int) orb.Geometry {
	return orb.Transform(g, func(p orb.Point) orb.Point {
		return orb.Point{round(p[0], digits), round(p[1], digits)}
	})
}

func layerToFeatureCollection(l feature.Layer, digits int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		og, err := geomconv.ToOrb(f.Geom)
		if err != nil {
			continue
		}
		og = truncate(og, digits)

		gf := geojson.NewFeature(og)
		gf.Properties = geojson.Properties(f.Properties)
		if f.ID != nil {
			gf.ID = f.ID
		}
		fc.Append(gf)
	}
	return fc
}

// Encode renders layers into a single GeoJSON FeatureCollection,
// truncating coordinates to the precision appropriate for zoom. Used for
// the single-layer render_tile path; layers is expected to hold at most
// one entry.
func Encode(layers []feature.Layer, zoom int) ([]byte, error) {
	digits := Precision(zoom)

	fc := geojson.NewFeatureCollection()
	for _, l := range layers {
		merged := layerToFeatureCollection(l, digits)
		fc.Features = append(fc.Features, merged.Features...)
	}

	return fc.MarshalJSON()
}

// Merge renders layers into a JSON object mapping each layer's name to
// its own GeoJSON FeatureCollection, used for the "all layers" response.
func Merge(layers []feature.Layer, zoom int) ([]byte, error) {
	digits := Precision(zoom)

	out := make(map[string]*geojson.FeatureCollection, len(layers))
	for _, l := range layers {
		out[l.Name] = layerToFeatureCollection(l, digits)
	}

	return json.Marshal(out)
}
