// Package feature defines the Feature and Layer tuples used by the reader
// (spec.md 4.C) and the encoders (4.D).
package feature

import (
	"encoding/binary"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
)

// Feature is the (wkb, properties, id) tuple from spec.md's data model.
// The geometry is kept decoded (Geom) rather than as raw WKB bytes so the
// post-processing pass (filter/transform/sort) never pays for a
// decode/re-encode round trip it doesn't need; WKB bytes are produced on
// demand via WKB().
type Feature struct {
	Geom       geom.Geometry
	Properties map[string]interface{}
	ID         interface{}
}

// WKB encodes the feature's geometry to well-known binary.
func (f Feature) WKB() ([]byte, error) {
	return wkb.EncodeBytes(binary.LittleEndian, f.Geom)
}

// Layer is the {name, features} pair used by the encoders' multi-layer
// merge path.
type Layer struct {
	Name     string
	Features []Feature
}
