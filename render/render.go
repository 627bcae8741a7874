// Package render orchestrates components B through D for one request:
// given a layer (or list of layers), a tile coordinate and an output
// format, it composes the SQL, reads features, and encodes the result
// (spec.md 4.E). Grounded on the teacher's atlas.Map.Encode, which plays
// the same orchestrating role between its provider and encoding layers.
package render

import (
	"context"
	"fmt"

	"github.com/tilegen/tilegen/encoding/geojson"
	"github.com/tilegen/tilegen/encoding/mvt"
	"github.com/tilegen/tilegen/encoding/topojson"
	"github.com/tilegen/tilegen/feature"
	"github.com/tilegen/tilegen/layer"
	"github.com/tilegen/tilegen/provider/postgis"
	"github.com/tilegen/tilegen/tgerr"
	"github.com/tilegen/tilegen/tile"
	"github.com/tilegen/tilegen/tileformat"
)

// Provider is the subset of *postgis.Provider the renderer needs,
// narrowed to an interface so tests can substitute a fake reader.
type Provider interface {
	ReadFeatures(ctx context.Context, params postgis.QueryParams) ([]feature.Feature, error)
}

// Renderer renders tiles for a set of named providers (spec.md's
// Supplemental Feature of multiple named providers per config).
type Renderer struct {
	Providers map[string]Provider
}

func (r *Renderer) providerFor(name string) (Provider, error) {
	p, ok := r.Providers[name]
	if !ok {
		return nil, fmt.Errorf("render: unknown provider %q", name)
	}
	return p, nil
}

// mvtExtent is the MVT tile pixel extent used for the scale parameter
// passed to BuildQuery's ST_TransScale wrapping.
const mvtExtent = 4096

func (r *Renderer) readLayerFeatures(ctx context.Context, l *layer.Layer, coord tile.Coordinate, format tileformat.Format) (feature.Layer, bool, error) {
	sql, ok, err := l.QueryForZoom(int(coord.Z))
	if err != nil {
		return feature.Layer{Name: l.Name()}, false, err
	}
	if !ok {
		return feature.Layer{Name: l.Name()}, false, nil
	}

	bounds, err := tile.Bounds(coord, l.SRID())
	if err != nil {
		return feature.Layer{Name: l.Name()}, false, err
	}

	isGeo := format != tileformat.MVT
	scale := 0.0
	if format == tileformat.MVT {
		scale = mvtExtent
	}

	prov, err := r.providerFor(l.Provider())
	if err != nil {
		return feature.Layer{Name: l.Name()}, false, err
	}

	feats, err := prov.ReadFeatures(ctx, postgis.QueryParams{
		Subquery:      sql,
		SRID:          l.SRID(),
		Bounds:        bounds,
		Tolerance:     l.Tolerance(int(coord.Z)),
		IsGeo:         isGeo,
		IsClipped:     l.Clip(),
		Scale:         scale,
		GeometryTypes: l.GeometryTypes(),
		Transform:     l.Transform(),
		Sort:          l.Sort(),
	})
	if err != nil {
		return feature.Layer{Name: l.Name()}, false, err
	}

	return feature.Layer{Name: l.Name(), Features: feats}, true, nil
}

// RenderTile renders a single layer at coord in format, per spec.md 4.E.
func (r *Renderer) RenderTile(ctx context.Context, l *layer.Layer, coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	fl, hasQuery, err := r.readLayerFeatures(ctx, l, coord, format)
	if err != nil {
		return nil, err
	}
	if !hasQuery {
		return r.encodeEmpty(coord, format)
	}
	return r.encode([]feature.Layer{fl}, coord, format)
}

// RenderTiles renders the "all layers" multi-layer response, per
// spec.md 4.E: every format merges at the feature/layer level here
// rather than via a JSON parse-and-recompose round trip, since the
// encoders already accept an arbitrary number of feature.Layer values
// in one call.
func (r *Renderer) RenderTiles(ctx context.Context, layers []*layer.Layer, coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	if !tileformat.SupportsMulti(format) {
		return nil, tgerr.UnsupportedFormatForMulti{Format: string(format)}
	}

	out := make([]feature.Layer, 0, len(layers))
	for _, l := range layers {
		fl, hasQuery, err := r.readLayerFeatures(ctx, l, coord, format)
		if err != nil {
			return nil, err
		}
		if !hasQuery {
			fl = feature.Layer{Name: l.Name()}
		}
		out = append(out, fl)
	}

	return r.encodeMulti(out, coord, format)
}

func (r *Renderer) encode(layers []feature.Layer, coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	switch format {
	case tileformat.MVT:
		return mvt.Encode(layers, mvtExtent)
	case tileformat.JSON:
		return geojson.Encode(layers, int(coord.Z))
	case tileformat.TopoJSON:
		bounds, err := tile.Bounds(coord, tile.WGS84)
		if err != nil {
			return nil, err
		}
		return topojson.Encode(layers, int(coord.Z), [4]float64{bounds.MinX(), bounds.MinY(), bounds.MaxX(), bounds.MaxY()})
	default:
		return nil, tgerr.UnsupportedExtension{Ext: string(format)}
	}
}

// encodeMulti is like encode but used for the "all layers" path: JSON
// diverges here, producing a layer-name-keyed merge (spec.md 4.D) rather
// than a single flattened FeatureCollection.
func (r *Renderer) encodeMulti(layers []feature.Layer, coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	if format == tileformat.JSON {
		return geojson.Merge(layers, int(coord.Z))
	}
	return r.encode(layers, coord, format)
}

// encodeEmpty returns a valid encoded tile with zero features, without
// touching the database (spec.md 4.D, "An empty tile ... is a valid
// encoded tile with zero features").
func (r *Renderer) encodeEmpty(coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	return r.encode(nil, coord, format)
}
