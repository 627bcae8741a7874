// Package provider is the data-provider driver registry (spec.md's
// Supplemental Feature: multiple named provider instances share one
// underlying driver). Adapted from the teacher's own provider.Register/
// provider.For pattern in this same file, narrowed from tegola's
// std/MVT provider duality down to this system's single concern: a
// driver builds a render.Provider from a DBInfo.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/tilegen/tilegen/provider/postgis"
	"github.com/tilegen/tilegen/render"
)

// ErrUnknownDriver is returned by For when no driver is registered
// under the requested name.
type ErrUnknownDriver struct {
	Name           string
	KnownProviders []string
}

func (e ErrUnknownDriver) Error() string {
	return fmt.Sprintf("provider: unknown driver %q (known: %v)", e.Name, e.KnownProviders)
}

// InitFunc builds a render.Provider from connection parameters.
type InitFunc func(ctx context.Context, dbinfo postgis.DBInfo) (render.Provider, error)

var (
	mu       sync.RWMutex
	registry = map[string]InitFunc{}
)

// Register adds a named driver. Called from each driver package's
// init(), matching the teacher's own registration idiom.
func Register(name string, init InitFunc) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = init
}

// Drivers lists the registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// For builds a configured provider using the named driver.
func For(ctx context.Context, name string, dbinfo postgis.DBInfo) (render.Provider, error) {
	mu.RLock()
	init, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, ErrUnknownDriver{Name: name, KnownProviders: Drivers()}
	}
	return init(ctx, dbinfo)
}

func init() {
	Register(postgis.Name, func(ctx context.Context, dbinfo postgis.DBInfo) (render.Provider, error) {
		return postgis.NewProvider(ctx, dbinfo)
	})
}
