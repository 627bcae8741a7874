// Package debug is a render.Provider that returns synthetic features
// useful for visually checking a tile's bounds and identity -- a box
// tracing the tile edges and a point at its center tagged with its
// z/x/y -- without touching a database. Adapted from the teacher's
// debug provider, which played the identical role against tegola's
// provider.Tiler interface; this version answers render.Provider's
// ReadFeatures contract instead.
package debug

import (
	"context"
	"fmt"

	"github.com/go-spatial/geom"

	"github.com/tilegen/tilegen/feature"
	"github.com/tilegen/tilegen/provider/postgis"
)

// Name is the driver name this package would self-register under, were
// it wired into the provider registry for production use; it is left
// unregistered in init() so a misconfigured "driver":"debug" never
// reaches a served tile by accident. Tests construct Provider directly.
const Name = "debug"

const (
	LayerTileOutline = "debug-tile-outline"
	LayerTileCenter  = "debug-tile-center"
)

// Provider answers ReadFeatures with one synthetic feature per call,
// selected by which debug layer the sub-query names (see Subquery).
type Provider struct{}

// ReadFeatures ignores every QueryParams field except Subquery, which
// it treats as a debug layer selector (LayerTileOutline or
// LayerTileCenter) rather than real SQL.
func (p *Provider) ReadFeatures(ctx context.Context, params postgis.QueryParams) ([]feature.Feature, error) {
	b := params.Bounds

	switch params.Subquery {
	case LayerTileOutline:
		outline := geom.Polygon{{
			{b.MinX(), b.MinY()}, {b.MaxX(), b.MinY()},
			{b.MaxX(), b.MaxY()}, {b.MinX(), b.MaxY()},
			{b.MinX(), b.MinY()},
		}}
		return []feature.Feature{{
			Geom:       outline,
			Properties: map[string]interface{}{"type": "debug_tile_outline"},
			ID:         0,
		}}, nil

	case LayerTileCenter:
		cx := b.MinX() + (b.MaxX()-b.MinX())/2
		cy := b.MinY() + (b.MaxY()-b.MinY())/2
		return []feature.Feature{{
			Geom:       geom.Point{cx, cy},
			Properties: map[string]interface{}{"type": "debug_tile_center", "bounds": fmt.Sprintf("%v", b)},
			ID:         1,
		}}, nil

	default:
		return nil, nil
	}
}
