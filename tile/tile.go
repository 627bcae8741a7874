// Package tile implements component A: tile coordinate math and the
// projection of a (z,x,y) coordinate to a bounding box in a layer's SRID,
// plus the pixel-to-ground simplification tolerance. It is the Go
// replacement for ModestMaps's coordinate/projection math, which spec.md
// treats as a known projection primitive.
package tile

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
)

// WebMercator is the spherical mercator SRID used by the web tile scheme.
const WebMercator = 3857

// WebMercatorAlt is the historical ESRI SRID alias for WebMercator.
const WebMercatorAlt = 900913

// WGS84 is the unprojected lon/lat SRID.
const WGS84 = 4326

// Cearth is the circumference of the earth in meters, per the spherical
// mercator model (2*pi*6378137).
const Cearth = 2 * math.Pi * 6378137

// Coordinate is a (z,x,y) tile coordinate. Invariant: 0 <= x,y < 2^z.
type Coordinate struct {
	Z, X, Y uint
}

// Valid reports whether the coordinate obeys 0 <= x,y < 2^z.
func (c Coordinate) Valid() bool {
	n := uint(1) << c.Z
	return c.X < n && c.Y < n
}

// Bounds projects the tile's lower-left and upper-right corners into the
// given SRID, returning (xmin,ymin,xmax,ymax). Only WebMercator (3857,
// 900913) and WGS84 (4326) are supported.
func Bounds(c Coordinate, srid uint64) (geom.Extent, error) {
	n := math.Exp2(float64(c.Z))

	lonLeft := float64(c.X)/n*360.0 - 180.0
	lonRight := float64(c.X+1)/n*360.0 - 180.0

	latTop := rowToLat(float64(c.Y), n)
	latBottom := rowToLat(float64(c.Y+1), n)

	switch srid {
	case WGS84:
		return geom.Extent{lonLeft, latBottom, lonRight, latTop}, nil

	case WebMercator, WebMercatorAlt:
		xmin, ymin := mercatorMeters(lonLeft, latBottom)
		xmax, ymax := mercatorMeters(lonRight, latTop)
		return geom.Extent{xmin, ymin, xmax, ymax}, nil

	default:
		return geom.Extent{}, fmt.Errorf("tile: unsupported srid %v", srid)
	}
}

func rowToLat(y, n float64) float64 {
	yFrac := 1.0 - 2.0*y/n
	return math.Atan(math.Sinh(math.Pi*yFrac)) * 180.0 / math.Pi
}

// mercatorMeters converts a (lon,lat) pair in degrees to spherical
// mercator meters.
func mercatorMeters(lon, lat float64) (x, y float64) {
	const originShift = math.Pi * 6378137
	x = lon * originShift / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * originShift / 180.0
	return x, y
}

// Simplify is a layer's simplification setting: either a single
// tolerance-in-pixels (Scalar set, ZoomMap nil) or an ordered
// zoom->tolerance mapping taken verbatim in projected units.
type Simplify struct {
	// Scalar, when ZoomMap is nil, is multiplied by the zoom's ground
	// resolution to produce the tolerance.
	Scalar float64
	// ZoomMap, when non-nil, is used as-is: the tolerance for a zoom is
	// the value at the largest key <= zoom, or 0 if none exists.
	ZoomMap map[int]float64
}

// Tolerance returns the simplification tolerance in projected units for
// the given zoom. Per spec.md 4.A: for a scalar simplify value s it is
// s * (Cearth / 2^(zoom+8)); for a zoom map it is the raw mapped value.
// The result is never negative; 0 disables simplification.
func Tolerance(s Simplify, zoom int) float64 {
	if s.ZoomMap != nil {
		best := 0.0
		haveBest := false
		bestKey := math.MinInt64
		for k, v := range s.ZoomMap {
			if k <= zoom && (!haveBest || k > bestKey) {
				bestKey = k
				best = v
				haveBest = true
			}
		}
		if best < 0 {
			return 0
		}
		return best
	}

	if zoom < 0 {
		return 0
	}
	t := s.Scalar * (Cearth / math.Exp2(float64(zoom+8)))
	if t < 0 {
		return 0
	}
	return t
}
