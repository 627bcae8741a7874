// Package mvt encodes feature.Layer values into a Mapbox Vector Tile,
// merging multiple layers into one response (spec.md 4.D). Grounded on
// paulmach/orb's encoding/mvt package, the encoder observed in this
// corpus's own tile pipelines (see joeblew999-plat-geo's go.mod and
// valpere-tile_to_json's pkg/mvt decoder, which decodes the same wire
// format this package produces).
package mvt

import (
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/tilegen/tilegen/feature"
	"github.com/tilegen/tilegen/internal/geomconv"
)

// DefaultExtent is the MVT tile extent Encode uses when called with an
// extent of 0; matches the de-facto wire convention (4096 units/tile).
const DefaultExtent = 4096

// Encode renders layers into a single MVT-encoded tile. Each feature's
// geometry is expected to already be scaled into [0,extent] tile-pixel
// space by the provider's query (BuildQuery's Scale option) -- unlike
// orb's typical ProjectToTile flow, no further projection happens here.
func Encode(layers []feature.Layer, extent uint32) ([]byte, error) {
	if extent == 0 {
		extent = DefaultExtent
	}

	mvtLayers := make(mvt.Layers, 0, len(layers))
	for _, l := range layers {
		features := make([]*geojson.Feature, 0, len(l.Features))
		for _, f := range l.Features {
			og, err := geomconv.ToOrb(f.Geom)
			if err != nil {
				continue
			}
			gf := geojson.NewFeature(og)
			gf.Properties = geojson.Properties(f.Properties)
			if f.ID != nil {
				gf.ID = f.ID
			}
			features = append(features, gf)
		}

		mvtLayers = append(mvtLayers, &mvt.Layer{
			Name:     l.Name,
			Version:  2,
			Extent:   extent,
			Features: features,
		})
	}

	return mvt.Marshal(mvtLayers)
}
