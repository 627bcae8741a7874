// Package layer holds the immutable-after-construction Layer type from
// spec.md's data model, grounded on the teacher's provider.Layer /
// provider/postgis.Layer value types and on tile_gen/layer.py's
// constructor defaults (srid 900913, dim 256, clip true, simplify 1.0).
package layer

import (
	"strings"

	"github.com/tilegen/tilegen/sortfn"
	"github.com/tilegen/tilegen/tile"
	"github.com/tilegen/tilegen/transform"
)

// QueryFunc is the optional alternative to a static per-zoom Queries
// slice: a function of zoom that returns the SQL to run. If set, it
// takes precedence over Queries (spec.md 3, "query_fn").
type QueryFunc func(zoom int) (string, error)

// Layer is immutable after New returns it.
type Layer struct {
	name      string
	queries   []string
	queryFn   QueryFunc
	provider  string
	srid      uint64
	dim       int
	clip      bool
	simplify  tile.Simplify
	geomTypes map[string]struct{} // nil means "no filter"
	transform transform.Func
	sort      sortfn.Func
}

// Option configures a Layer in New.
type Option func(*Layer)

// WithQueries sets the per-zoom SQL template list.
func WithQueries(queries []string) Option {
	return func(l *Layer) { l.queries = append([]string(nil), queries...) }
}

// WithQueryFunc sets the dynamic per-zoom query function; it takes
// precedence over WithQueries.
func WithQueryFunc(fn QueryFunc) Option {
	return func(l *Layer) { l.queryFn = fn }
}

// WithProvider names the provider (see config's Supplemental Feature #1,
// multiple named providers) this layer queries. Defaults to "default".
func WithProvider(name string) Option {
	return func(l *Layer) { l.provider = name }
}

// WithSRID overrides the default SRID (3857).
func WithSRID(srid uint64) Option {
	return func(l *Layer) { l.srid = srid }
}

// WithDim overrides the default tile pixel edge (256).
func WithDim(dim int) Option {
	return func(l *Layer) { l.dim = dim }
}

// WithClip overrides the default clip=true.
func WithClip(clip bool) Option {
	return func(l *Layer) { l.clip = clip }
}

// WithSimplify sets the simplification setting (scalar or zoom map).
func WithSimplify(s tile.Simplify) Option {
	return func(l *Layer) { l.simplify = s }
}

// WithGeometryTypes restricts output to the given geometry type names.
func WithGeometryTypes(types []string) Option {
	return func(l *Layer) {
		if types == nil {
			l.geomTypes = nil
			return
		}
		m := make(map[string]struct{}, len(types))
		for _, t := range types {
			m[t] = struct{}{}
		}
		l.geomTypes = m
	}
}

// WithTransform sets the composed per-feature transform function.
func WithTransform(fn transform.Func) Option {
	return func(l *Layer) { l.transform = fn }
}

// WithSort sets the post-transform sort function.
func WithSort(fn sortfn.Func) Option {
	return func(l *Layer) { l.sort = fn }
}

// New builds a Layer with spec.md's defaults (srid 3857, dim 256, clip
// true, simplify 1.0 pixel) then applies opts.
func New(name string, opts ...Option) *Layer {
	l := &Layer{
		name:     name,
		provider: "default",
		srid:     3857,
		dim:      256,
		clip:     true,
		simplify: tile.Simplify{Scalar: 1.0},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Layer) Name() string                      { return l.name }
func (l *Layer) Provider() string                  { return l.provider }
func (l *Layer) SRID() uint64                      { return l.srid }
func (l *Layer) Dim() int                          { return l.dim }
func (l *Layer) Clip() bool                        { return l.clip }
func (l *Layer) Simplify() tile.Simplify           { return l.simplify }
func (l *Layer) GeometryTypes() map[string]struct{} { return l.geomTypes }
func (l *Layer) Transform() transform.Func         { return l.transform }
func (l *Layer) Sort() sortfn.Func                 { return l.sort }

// QueryForZoom resolves the SQL template for a zoom level per spec.md's
// rule: QueryFunc wins if set; otherwise index into Queries, reusing the
// last entry past the end of the slice. An empty/blank entry means "empty
// tile at this zoom" (ok=false).
func (l *Layer) QueryForZoom(zoom int) (sql string, ok bool, err error) {
	if l.queryFn != nil {
		sql, err = l.queryFn(zoom)
		if err != nil {
			return "", false, err
		}
		sql = strings.TrimSpace(sql)
		return sql, sql != "", nil
	}

	if len(l.queries) == 0 {
		return "", false, nil
	}

	idx := zoom
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.queries) {
		idx = len(l.queries) - 1
	}

	sql = strings.TrimSpace(l.queries[idx])
	return sql, sql != "", nil
}

// Tolerance returns the simplification tolerance in projected units for
// the given zoom (spec.md 4.A).
func (l *Layer) Tolerance(zoom int) float64 {
	return tile.Tolerance(l.simplify, zoom)
}
