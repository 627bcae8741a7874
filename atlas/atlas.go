// Package atlas is the tile service entry point (spec.md component G):
// get-tile is cache-or-render under an exclusive lock, dispatching
// either a single named layer or the "all layers" merge. Grounded on
// the teacher's atlas.Map, which plays the same named-collection-of-
// layers role (see atlas_test.go's testMap).
package atlas

import (
	"context"

	"github.com/tilegen/tilegen/cache"
	"github.com/tilegen/tilegen/internal/log"
	"github.com/tilegen/tilegen/layer"
	"github.com/tilegen/tilegen/render"
	"github.com/tilegen/tilegen/tgerr"
	"github.com/tilegen/tilegen/tile"
	"github.com/tilegen/tilegen/tileformat"
)

// AllLayers is the sentinel layer name requesting the multi-layer merge
// path (spec.md section 6).
const AllLayers = "all"

// Map is a named collection of layers plus the renderer and cache that
// serve them -- the unit atlas.GetTile operates against.
type Map struct {
	Name     string
	Layers   []*layer.Layer
	Renderer *render.Renderer
	Cache    cache.Cache
}

func (m *Map) layerByName(name string) (*layer.Layer, bool) {
	for _, l := range m.Layers {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// GetTile resolves layerName (a single layer name, or AllLayers) at
// coord in the format named by ext, returning cached bytes on a hit or
// rendering, caching and returning freshly-rendered bytes on a miss.
// The cache lock is held across the read-or-render-and-save sequence so
// concurrent requests for the same tile never render it twice.
//
// Per spec.md's propagation policy, a cache read failure degrades to a
// re-render rather than failing the request, and a cache save failure
// degrades to returning the rendered tile uncached (both are logged).
func (m *Map) GetTile(ctx context.Context, layerName string, coord tile.Coordinate, ext string) ([]byte, string, error) {
	if layerName != AllLayers {
		if _, ok := m.layerByName(layerName); !ok {
			return nil, "", tgerr.UnknownLayer{Layer: layerName}
		}
	}
	if !coord.Valid() {
		return nil, "", tgerr.InvalidCoordinate{Z: coord.Z, X: coord.X, Y: coord.Y}
	}

	info, err := tileformat.ByExtension(ext)
	if err != nil {
		return nil, "", err
	}

	key := cache.Key{Layer: layerName, Z: coord.Z, X: coord.X, Y: coord.Y, Format: ext}

	if err := m.Cache.Lock(ctx, key); err != nil {
		return nil, "", err
	}
	defer func() {
		if err := m.Cache.Unlock(key); err != nil {
			log.Warnf("atlas: unlock %v: %v", key, err)
		}
	}()

	if data, ok, err := m.Cache.Read(ctx, key); err != nil {
		log.Warnf("atlas: cache read %v: %v; re-rendering", key, err)
	} else if ok {
		return data, info.Mimetype, nil
	}

	data, err := m.render(ctx, layerName, coord, info.Format)
	if err != nil {
		return nil, "", err
	}

	if err := m.Cache.Save(ctx, key, data); err != nil {
		log.Warnf("atlas: cache save %v: %v; tile produced but not cached", key, err)
	}

	return data, info.Mimetype, nil
}

func (m *Map) render(ctx context.Context, layerName string, coord tile.Coordinate, format tileformat.Format) ([]byte, error) {
	if layerName == AllLayers {
		return m.Renderer.RenderTiles(ctx, m.Layers, coord, format)
	}

	l, ok := m.layerByName(layerName)
	if !ok {
		return nil, tgerr.UnknownLayer{Layer: layerName}
	}
	return m.Renderer.RenderTile(ctx, l, coord, format)
}

// Purge removes the cached tile for layerName at coord for each
// extension in exts. Used by the cache-management CLI.
func (m *Map) Purge(ctx context.Context, layerName string, coord tile.Coordinate, exts []string) error {
	for _, ext := range exts {
		key := cache.Key{Layer: layerName, Z: coord.Z, X: coord.X, Y: coord.Y, Format: ext}
		if err := m.Cache.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
