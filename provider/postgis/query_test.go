package postgis

import (
	"strings"
	"testing"

	"github.com/go-spatial/geom"
)

func TestBuildQuery_BBoxSubstitution(t *testing.T) {
	sql := BuildQuery(
		"SELECT gid, name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{SRID: 3857, Bounds: geom.Extent{0, 0, 100, 100}, HasID: true},
	)

	if strings.Contains(sql, "!bbox!") {
		t.Fatalf("expected !bbox! token to be replaced, got: %s", sql)
	}
	if !strings.Contains(sql, "ST_MakeEnvelope(0.000000000000, 0.000000000000, 100.000000000000, 100.000000000000, 3857)") {
		t.Fatalf("expected envelope with bounds and srid, got: %s", sql)
	}
	if strings.Contains(sql, "WHERE ST_Intersects") {
		t.Fatalf("expected no outer ST_Intersects filter when sub-query already has !bbox!, got: %s", sql)
	}
}

func TestBuildQuery_OuterIntersectsWhenNoBBoxToken(t *testing.T) {
	sql := BuildQuery(
		"SELECT gid, name, geom AS __geometry__ FROM roads",
		QueryOptions{SRID: 3857, Bounds: geom.Extent{0, 0, 100, 100}, HasID: true},
	)

	if !strings.Contains(sql, "WHERE ST_Intersects(q.__geometry__,") {
		t.Fatalf("expected outer ST_Intersects filter, got: %s", sql)
	}
}

func TestBuildQuery_SynthesizesID(t *testing.T) {
	sql := BuildQuery(
		"SELECT name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{SRID: 3857, Bounds: geom.Extent{0, 0, 100, 100}, HasID: false},
	)

	if !strings.Contains(sql, "Substr(MD5(ST_AsBinary(q.__geometry__)), 1, 10) AS __id__") {
		t.Fatalf("expected synthesized __id__ column, got: %s", sql)
	}
}

func TestBuildQuery_SkipsIDWhenPresent(t *testing.T) {
	sql := BuildQuery(
		"SELECT gid AS __id__, name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{SRID: 3857, Bounds: geom.Extent{0, 0, 100, 100}, HasID: true},
	)

	if strings.Contains(sql, "Substr(MD5(") {
		t.Fatalf("did not expect a synthesized __id__ column when HasID is true, got: %s", sql)
	}
}

func TestBuildQuery_SimplifyBeforeClip(t *testing.T) {
	sql := BuildQuery(
		"SELECT name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{
			SRID:      3857,
			Bounds:    geom.Extent{0, 0, 100, 100},
			Tolerance: 5,
			IsClipped: true,
			HasID:     true,
		},
	)

	simplifyIdx := strings.Index(sql, "ST_SimplifyPreserveTopology")
	clipIdx := strings.LastIndex(sql, "ST_Intersection")
	if simplifyIdx < 0 || clipIdx < 0 || simplifyIdx > clipIdx {
		t.Fatalf("expected simplify to wrap the geometry before the clip intersection, got: %s", sql)
	}
}

func TestBuildQuery_ScaleUsesTransScale(t *testing.T) {
	sql := BuildQuery(
		"SELECT name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{
			SRID:   3857,
			Bounds: geom.Extent{0, 0, 100, 100},
			Scale:  4096,
			HasID:  true,
		},
	)

	if !strings.Contains(sql, "ST_TransScale(") {
		t.Fatalf("expected ST_TransScale wrapping for a scaled (MVT) query, got: %s", sql)
	}
}

func TestBuildQuery_GeoReprojectsTo4326(t *testing.T) {
	sql := BuildQuery(
		"SELECT name, geom AS __geometry__ FROM roads WHERE geom && !bbox!",
		QueryOptions{
			SRID:   3857,
			Bounds: geom.Extent{0, 0, 100, 100},
			IsGeo:  true,
			HasID:  true,
		},
	)

	if !strings.Contains(sql, "ST_Transform(") || !strings.Contains(sql, ", 4326)") {
		t.Fatalf("expected ST_Transform(..., 4326) for a geographic (GeoJSON/TopoJSON) query, got: %s", sql)
	}
}
