// Package geomtype names a decoded geom.Geometry the way WKT/GeoJSON type
// strings do, for the geometry_types filter in spec.md 4.C step 3.
package geomtype

import (
	"fmt"

	"github.com/go-spatial/geom"
)

// Name returns the geometry type name ("Point", "LineString", "Polygon",
// "MultiPoint", "MultiLineString", "MultiPolygon", "GeometryCollection")
// for g, matching the names Shapely's `shape.type` would report.
func Name(g geom.Geometry) string {
	switch g.(type) {
	case geom.Point, *geom.Point:
		return "Point"
	case geom.MultiPoint, *geom.MultiPoint:
		return "MultiPoint"
	case geom.LineString, *geom.LineString:
		return "LineString"
	case geom.MultiLineString, *geom.MultiLineString:
		return "MultiLineString"
	case geom.Polygon, *geom.Polygon:
		return "Polygon"
	case geom.MultiPolygon, *geom.MultiPolygon:
		return "MultiPolygon"
	case geom.Collection, *geom.Collection:
		return "GeometryCollection"
	default:
		return fmt.Sprintf("%T", g)
	}
}
