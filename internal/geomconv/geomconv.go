// Package geomconv converts a decoded github.com/go-spatial/geom.Geometry
// (the provider's decode representation) into a github.com/paulmach/orb
// Geometry (the encoders' representation). The two libraries cover
// opposite ends of the pipeline in this corpus -- go-spatial/geom is
// what the teacher's WKB decoder returns, orb is what its MVT/GeoJSON
// encoders consume -- so every feature crosses this boundary exactly
// once, right before encoding (spec.md 4.D).
package geomconv

import (
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/paulmach/orb"
)

// ToOrb converts g to its orb.Geometry equivalent.
func ToOrb(g geom.Geometry) (orb.Geometry, error) {
	switch t := g.(type) {
	case geom.Point:
		return orb.Point{t.X(), t.Y()}, nil
	case *geom.Point:
		return orb.Point{t.X(), t.Y()}, nil

	case geom.MultiPoint:
		return multiPoint(t), nil
	case *geom.MultiPoint:
		return multiPoint(*t), nil

	case geom.LineString:
		return lineString(t), nil
	case *geom.LineString:
		return lineString(*t), nil

	case geom.MultiLineString:
		return multiLineString(t), nil
	case *geom.MultiLineString:
		return multiLineString(*t), nil

	case geom.Polygon:
		return polygon(t), nil
	case *geom.Polygon:
		return polygon(*t), nil

	case geom.MultiPolygon:
		return multiPolygon(t), nil
	case *geom.MultiPolygon:
		return multiPolygon(*t), nil

	case geom.Collection:
		return collection(t)
	case *geom.Collection:
		return collection(*t)

	default:
		return nil, fmt.Errorf("geomconv: unsupported geometry type %T", g)
	}
}

func point(xy [2]float64) orb.Point { return orb.Point{xy[0], xy[1]} }

func ring(pts [][2]float64) orb.Ring {
	r := make(orb.Ring, len(pts))
	for i, p := range pts {
		r[i] = point(p)
	}
	return r
}

func multiPoint(mp geom.MultiPoint) orb.MultiPoint {
	out := make(orb.MultiPoint, len(mp))
	for i, p := range mp {
		out[i] = point(p)
	}
	return out
}

func lineString(ls geom.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = point(p)
	}
	return out
}

func multiLineString(mls geom.MultiLineString) orb.MultiLineString {
	out := make(orb.MultiLineString, len(mls))
	for i, ls := range mls {
		out[i] = lineString(ls)
	}
	return out
}

func polygon(p geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = ring(r)
	}
	return out
}

func multiPolygon(mp geom.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = polygon(p)
	}
	return out
}

func collection(c geom.Collection) (orb.Collection, error) {
	out := make(orb.Collection, 0, len(c))
	for _, g := range c {
		og, err := ToOrb(g)
		if err != nil {
			return nil, err
		}
		out = append(out, og)
	}
	return out, nil
}
