// Package transform implements the pluggable per-feature transform chain
// from spec.md's Layer.transform_fn, and the name->constructor registry
// spec.md 4.9 Design Notes calls for in place of Python's dotted-path
// attribute lookup (util.py load_class_path / tile_gen's
// resolve_transform_fns).
package transform

import (
	"sync"

	"github.com/go-spatial/geom"
)

// Func transforms one feature's shape, properties and id, returning a
// replacement for each. It composes in the same shape as tile_gen's
// transform_fn: (shape, properties, id) -> (shape, properties, id).
type Func func(g geom.Geometry, props map[string]interface{}, id interface{}) (geom.Geometry, map[string]interface{}, interface{}, error)

// Compose chains fns left to right into a single Func, mirroring
// tile_gen.layer.make_transform_fn. Compose of zero functions returns nil
// (no transform), matching spec.md's "optional transform_fn".
func Compose(fns ...Func) Func {
	live := make([]Func, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			live = append(live, fn)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return func(g geom.Geometry, props map[string]interface{}, id interface{}) (geom.Geometry, map[string]interface{}, interface{}, error) {
		var err error
		for _, fn := range live {
			g, props, id, err = fn(g, props, id)
			if err != nil {
				return g, props, id, err
			}
		}
		return g, props, id, nil
	}
}

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register adds a named transform function to the registry, so config
// can reference it by name instead of a dotted class path.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup retrieves a registered transform function by name.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}
