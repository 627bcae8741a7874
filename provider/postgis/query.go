package postgis

import (
	"fmt"
	"strings"

	"github.com/go-spatial/geom"
)

// bboxToken is the literal sub-query placeholder replaced by a PostGIS
// envelope expression (spec.md section 6, "SQL contract").
const bboxToken = "!bbox!"

// QueryOptions parameterizes BuildQuery, one struct field per input named
// in spec.md 4.B.
type QueryOptions struct {
	SRID      uint64
	Bounds    geom.Extent
	Tolerance float64
	IsGeo     bool
	IsClipped bool
	Padding   float64
	// Scale is 0 for "no scale" (GeoJSON/TopoJSON); set to the MVT tile
	// extent (e.g. 4096) for MVT.
	Scale float64
	// HasID reports whether the sub-query already projects an __id__
	// column; if false, BuildQuery adds a synthesized one.
	HasID bool
}

func stMakeEnvelope(b geom.Extent, padding float64, srid uint64) string {
	return fmt.Sprintf(
		"ST_MakeEnvelope(%.12f, %.12f, %.12f, %.12f, %d)",
		b.MinX()-padding, b.MinY()-padding, b.MaxX()+padding, b.MaxY()+padding, srid,
	)
}

// BuildQuery composes the outer PostGIS query that wraps subquery,
// following spec.md 4.B exactly:
//
//  1. bbox := ST_MakeEnvelope(bounds +- padding, srid); !bbox! in
//     subquery is replaced with it.
//  2. geom starts as q.__geometry__. If tolerance>0, it is first
//     intersected with an enlarged "simplification" envelope (padding +
//     10% of the tile height) and simplified -- simplify-before-clip, per
//     spec.md's pinned resolution of the simplify/clip ordering question.
//  3. If isClipped, intersect with the exact tile bbox.
//  4. If isGeo, reproject to 4326.
//  5. If scale>0, TransScale the un-padded tile box to [0,scale]^2.
//
// The outer `WHERE ST_Intersects(...)` clause is added only when the
// sub-query did not itself contain !bbox! -- spec.md's pinned resolution
// of whether that filter is redundant with a hand-authored query.
func BuildQuery(subquery string, o QueryOptions) string {
	bbox := stMakeEnvelope(o.Bounds, o.Padding, o.SRID)
	hadBBoxToken := strings.Contains(subquery, bboxToken)
	subquery = strings.ReplaceAll(subquery, bboxToken, bbox)

	geomExpr := "q.__geometry__"

	if o.Tolerance > 0 {
		simplifyPadding := o.Padding + (o.Bounds.MaxY()-o.Bounds.MinY())*0.1
		simplifyBBox := stMakeEnvelope(o.Bounds, simplifyPadding, o.SRID)

		geomExpr = fmt.Sprintf("ST_Intersection(%s, %s)", geomExpr, simplifyBBox)
		geomExpr = fmt.Sprintf("ST_MakeValid(ST_SimplifyPreserveTopology(%s, %.12f))", geomExpr, o.Tolerance)
	}

	if o.IsClipped {
		geomExpr = fmt.Sprintf("ST_Intersection(%s, %s)", geomExpr, bbox)
	}

	if o.IsGeo {
		geomExpr = fmt.Sprintf("ST_Transform(%s, 4326)", geomExpr)
	}

	if o.Scale > 0 {
		width := o.Bounds.MaxX() - o.Bounds.MinX()
		height := o.Bounds.MaxY() - o.Bounds.MinY()
		geomExpr = fmt.Sprintf(
			"ST_TransScale(%s, %.12f, %.12f, %.12f, %.12f)",
			geomExpr, -o.Bounds.MinX(), -o.Bounds.MinY(), o.Scale/width, o.Scale/height,
		)
	}

	idColumn := ""
	if !o.HasID {
		idColumn = ", Substr(MD5(ST_AsBinary(q.__geometry__)), 1, 10) AS __id__"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT *%s, ST_AsBinary(%s) AS __geometry__\n", idColumn, geomExpr)
	fmt.Fprintf(&b, "FROM (%s) AS q\n", subquery)
	if !hadBBoxToken {
		fmt.Fprintf(&b, "WHERE ST_Intersects(q.__geometry__, %s)", bbox)
	}

	return strings.TrimRight(b.String(), "\n")
}
