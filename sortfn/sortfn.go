// Package sortfn implements the pluggable feature-ordering step applied
// after transforms (spec.md 4.C, Layer.sort_fn) and its name->constructor
// registry (see transform.Register for the same pattern).
package sortfn

import (
	"sync"

	"github.com/tilegen/tilegen/feature"
)

// Func reorders a feature slice, returning the replacement order. It must
// not mutate its input in place if the caller still holds a reference to
// the original slice header.
type Func func([]feature.Feature) []feature.Feature

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register adds a named sort function to the registry.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup retrieves a registered sort function by name.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}
