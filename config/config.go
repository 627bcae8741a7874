// Package config loads the JSON configuration document (spec.md
// section 6) and builds the in-memory providers, cache and atlas.Map it
// describes. $VAR environment-variable substitution runs over the raw
// document text before JSON parsing, grounded on the teacher's own
// config package (see config_internal_test.go's replaceEnvVars cases).
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/tilegen/tilegen/atlas"
	"github.com/tilegen/tilegen/cache"
	_ "github.com/tilegen/tilegen/cache/azblob"
	_ "github.com/tilegen/tilegen/cache/disk"
	_ "github.com/tilegen/tilegen/cache/redis"
	_ "github.com/tilegen/tilegen/cache/s3"
	"github.com/tilegen/tilegen/layer"
	"github.com/tilegen/tilegen/provider"
	"github.com/tilegen/tilegen/provider/postgis"
	"github.com/tilegen/tilegen/render"
	"github.com/tilegen/tilegen/sortfn"
	"github.com/tilegen/tilegen/tile"
	"github.com/tilegen/tilegen/transform"
)

// envVarPattern matches a $VAR token: a dollar sign followed by a
// C-identifier-shaped name. "$32.78" does not match (digits can't start
// an identifier), matching the teacher's replaceEnvVars test cases.
var envVarPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// replaceEnvVars substitutes every $VAR token in r with the value of
// the matching environment variable (blank if unset).
func replaceEnvVars(r io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	replaced := envVarPattern.ReplaceAllFunc(raw, func(tok []byte) []byte {
		name := string(tok[1:])
		return []byte(os.Getenv(name))
	})
	return bytes.NewReader(replaced), nil
}

// DBInfoDoc mirrors postgis.DBInfo's JSON shape (libpq-style params).
type DBInfoDoc struct {
	Host        string `json:"host"`
	Port        uint16 `json:"port"`
	Database    string `json:"dbname"`
	User        string `json:"user"`
	Password    string `json:"password"`
	SSLMode     string `json:"sslmode"`
	SSLKey      string `json:"sslkey"`
	SSLCert     string `json:"sslcert"`
	SSLRootCert string `json:"sslrootcert"`
	MaxConns    int32  `json:"max_connections"`
}

// ProviderDoc is one entry of the top-level "providers" map (spec.md's
// Supplemental Feature: multiple named providers). Driver defaults to
// "postgis", the only driver this module ships.
type ProviderDoc struct {
	Driver string    `json:"driver"`
	DBInfo DBInfoDoc `json:"dbinfo"`
}

// CacheDoc is the top-level "cache" document: either the built-in disk
// shape (name+path+umask+dirs+gzip) or a generic class+kwargs shape for
// any other registered backend.
type CacheDoc struct {
	Name  string                 `json:"name"`
	Class string                 `json:"class"`
	Kwargs map[string]interface{} `json:"kwargs"`

	Path  string   `json:"path"`
	Umask string   `json:"umask"`
	Dirs  string   `json:"dirs"`
	Gzip  []string `json:"gzip"`
}

// toKwargs flattens a CacheDoc into the map[string]interface{} shape
// cache.Constructor expects, whichever of the two JSON shapes was used.
func (d CacheDoc) toKwargs() map[string]interface{} {
	if d.Kwargs != nil {
		return d.Kwargs
	}
	m := map[string]interface{}{"path": d.Path, "dirs": d.Dirs, "umask": d.Umask}
	if d.Gzip != nil {
		raw := make([]interface{}, len(d.Gzip))
		for i, g := range d.Gzip {
			raw[i] = g
		}
		m["gzip"] = raw
	}
	return m
}

func (d CacheDoc) driverName() string {
	if d.Class != "" {
		return d.Class
	}
	return d.Name
}

// SimplifyDoc accepts either a single scalar or a zoom->tolerance map,
// per spec.md's `"simplify":1.0 | {"z":tol, ...}` union.
type SimplifyDoc struct {
	Scalar  *float64
	ZoomMap map[int]float64
}

func (s *SimplifyDoc) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		s.Scalar = &scalar
		return nil
	}
	var zm map[string]float64
	if err := json.Unmarshal(data, &zm); err != nil {
		return fmt.Errorf("config: simplify must be a number or a zoom map: %w", err)
	}
	s.ZoomMap = make(map[int]float64, len(zm))
	for k, v := range zm {
		var z int
		if _, err := fmt.Sscanf(k, "%d", &z); err != nil {
			return fmt.Errorf("config: invalid simplify zoom key %q: %w", k, err)
		}
		s.ZoomMap[z] = v
	}
	return nil
}

func (s SimplifyDoc) toTileSimplify() tile.Simplify {
	if s.ZoomMap != nil {
		return tile.Simplify{ZoomMap: s.ZoomMap}
	}
	scalar := 1.0
	if s.Scalar != nil {
		scalar = *s.Scalar
	}
	return tile.Simplify{Scalar: scalar}
}

// LayerDoc is one entry of the top-level "layers" map.
type LayerDoc struct {
	Provider      string       `json:"provider"`
	Queries       []*string    `json:"queries"`
	QueryFile     string       `json:"query_file"`
	SRID          uint64       `json:"srid"`
	Dim           int          `json:"dim"`
	Clip          *bool        `json:"clip"`
	Simplify      *SimplifyDoc `json:"simplify"`
	GeometryTypes []string     `json:"geometry_types"`
	TransformFns  []string     `json:"transform_fns"`
	SortFn        string       `json:"sort_fn"`
}

// NamedLayerDoc pairs a layer name with its LayerDoc, preserving the
// layer's position within the configuration document's "layers" object.
type NamedLayerDoc struct {
	Name string
	Doc  LayerDoc
}

// LayersDoc is the "layers" document's ordered contents. spec.md's
// Design Notes pin the "all"-format multi-layer merge order to config
// insertion order for byte-determinism; encoding/json's map[string]T
// unmarshal target discards JSON object key order, so Layers is decoded
// with a token walk instead of a plain map.
type LayersDoc []NamedLayerDoc

func (l *LayersDoc) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("config: layers: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("config: layers must be a JSON object")
	}

	var out LayersDoc
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("config: layers: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("config: layers: key %v is not a string", keyTok)
		}

		var d LayerDoc
		if err := dec.Decode(&d); err != nil {
			return fmt.Errorf("config: layer %q: %w", name, err)
		}
		out = append(out, NamedLayerDoc{Name: name, Doc: d})
	}
	*l = out
	return nil
}

// Document is the full JSON configuration document (spec.md section 6).
type Document struct {
	Providers map[string]ProviderDoc `json:"providers"`
	Cache     CacheDoc               `json:"cache"`
	Layers    LayersDoc              `json:"layers"`
}

// Load reads path, substitutes $VAR environment variables, and parses
// the result into a Document.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	substituted, err := replaceEnvVars(f)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	raw, err := io.ReadAll(substituted)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &doc, nil
}

// buildLayer resolves a LayerDoc's query list, reading query_file from
// disk when set (spec.md's Supplemental Feature: read_query-as-file),
// and wires its named transform/sort functions from their registries.
func buildLayer(name string, d LayerDoc) (*layer.Layer, error) {
	var queries []string
	if d.QueryFile != "" {
		raw, err := os.ReadFile(d.QueryFile)
		if err != nil {
			return nil, fmt.Errorf("config: layer %q query_file: %w", name, err)
		}
		queries = []string{string(raw)}
	} else {
		queries = make([]string, len(d.Queries))
		for i, q := range d.Queries {
			if q != nil {
				queries[i] = *q
			}
		}
	}

	opts := []layer.Option{layer.WithQueries(queries)}

	if d.Provider != "" {
		opts = append(opts, layer.WithProvider(d.Provider))
	}
	if d.SRID != 0 {
		opts = append(opts, layer.WithSRID(d.SRID))
	}
	if d.Dim != 0 {
		opts = append(opts, layer.WithDim(d.Dim))
	}
	if d.Clip != nil {
		opts = append(opts, layer.WithClip(*d.Clip))
	}
	if d.Simplify != nil {
		opts = append(opts, layer.WithSimplify(d.Simplify.toTileSimplify()))
	}
	if d.GeometryTypes != nil {
		opts = append(opts, layer.WithGeometryTypes(d.GeometryTypes))
	}

	if len(d.TransformFns) > 0 {
		fns := make([]transform.Func, 0, len(d.TransformFns))
		for _, fnName := range d.TransformFns {
			fn, ok := transform.Lookup(fnName)
			if !ok {
				return nil, fmt.Errorf("config: layer %q: unknown transform_fn %q", name, fnName)
			}
			fns = append(fns, fn)
		}
		opts = append(opts, layer.WithTransform(transform.Compose(fns...)))
	}

	if d.SortFn != "" {
		fn, ok := sortfn.Lookup(d.SortFn)
		if !ok {
			return nil, fmt.Errorf("config: layer %q: unknown sort_fn %q", name, d.SortFn)
		}
		opts = append(opts, layer.WithSort(fn))
	}

	return layer.New(name, opts...), nil
}

// Build constructs every provider, the cache, and the layer list
// described by doc, and assembles them into an atlas.Map ready to serve
// requests.
func Build(ctx context.Context, name string, doc *Document) (*atlas.Map, error) {
	providers := make(map[string]render.Provider, len(doc.Providers))
	for pname, pdoc := range doc.Providers {
		info := pdoc.DBInfo
		driver := pdoc.Driver
		if driver == "" {
			driver = postgis.Name
		}
		prov, err := provider.For(ctx, driver, postgis.DBInfo{
			Host: info.Host, Port: info.Port, Database: info.Database,
			User: info.User, Password: info.Password,
			SSLMode: info.SSLMode, SSLKey: info.SSLKey, SSLCert: info.SSLCert,
			SSLRootCert: info.SSLRootCert, MaxConns: info.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("config: provider %q: %w", pname, err)
		}
		providers[pname] = prov
	}

	c, err := cache.For(doc.Cache.driverName(), doc.Cache.toKwargs())
	if err != nil {
		return nil, fmt.Errorf("config: cache: %w", err)
	}

	layers := make([]*layer.Layer, 0, len(doc.Layers))
	for _, nl := range doc.Layers {
		l, err := buildLayer(nl.Name, nl.Doc)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}

	return &atlas.Map{
		Name:     name,
		Layers:   layers,
		Renderer: &render.Renderer{Providers: providers},
		Cache:    c,
	}, nil
}
