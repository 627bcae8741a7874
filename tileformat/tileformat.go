// Package tileformat is the extension -> (mimetype, format) table from
// spec.md section 6.
package tileformat

import (
	"strings"

	"github.com/tilegen/tilegen/tgerr"
)

// Format names one of the three wire formats tilegen can emit.
type Format string

const (
	MVT      Format = "MVT"
	JSON     Format = "JSON"
	TopoJSON Format = "TopoJSON"
)

// Info is the (mimetype, format) pair resolved from a request extension.
type Info struct {
	Mimetype string
	Format   Format
}

var byExt = map[string]Info{
	"json":     {"application/json", JSON},
	"topojson": {"application/json", TopoJSON},
	"mvt":      {"application/x-protobuf", MVT},
}

// ByExtension resolves a file extension (case-insensitive, without the
// leading dot) to its mimetype and format, or tgerr.UnsupportedExtension.
func ByExtension(ext string) (Info, error) {
	info, ok := byExt[strings.ToLower(ext)]
	if !ok {
		return Info{}, tgerr.UnsupportedExtension{Ext: ext}
	}
	return info, nil
}

// SupportsMulti reports whether a format can participate in the "all
// layers" merge path. All three formats do; this exists so a future
// format (e.g. a raster passthrough) can opt out without a call-site
// change, per spec.md's UnsupportedFormatForMulti error kind.
func SupportsMulti(f Format) bool {
	switch f {
	case MVT, JSON, TopoJSON:
		return true
	default:
		return false
	}
}
