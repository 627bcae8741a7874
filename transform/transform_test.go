package transform

import (
	"errors"
	"testing"

	"github.com/go-spatial/geom"
)

func addTag(key, val string) Func {
	return func(g geom.Geometry, props map[string]interface{}, id interface{}) (geom.Geometry, map[string]interface{}, interface{}, error) {
		props[key] = val
		return g, props, id, nil
	}
}

func TestCompose_ChainsLeftToRight(t *testing.T) {
	fn := Compose(addTag("a", "1"), addTag("b", "2"))

	_, props, _, err := fn(geom.Point{0, 0}, map[string]interface{}{}, nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if props["a"] != "1" || props["b"] != "2" {
		t.Errorf("expected both transforms applied, got %+v", props)
	}
}

func TestCompose_Empty_ReturnsNil(t *testing.T) {
	if fn := Compose(); fn != nil {
		t.Error("Compose() with no functions should return nil")
	}
}

func TestCompose_NilFuncsAreSkipped(t *testing.T) {
	fn := Compose(nil, addTag("a", "1"), nil)
	if fn == nil {
		t.Fatal("expected a non-nil composed function")
	}
	_, props, _, err := fn(geom.Point{0, 0}, map[string]interface{}{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if props["a"] != "1" {
		t.Errorf("expected the live transform to run, got %+v", props)
	}
}

func TestCompose_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(g geom.Geometry, props map[string]interface{}, id interface{}) (geom.Geometry, map[string]interface{}, interface{}, error) {
		return g, props, id, boom
	}
	fn := Compose(failing, addTag("never", "run"))

	_, props, _, err := fn(geom.Point{0, 0}, map[string]interface{}{}, nil)
	if err != boom {
		t.Fatalf("expected the failing transform's error, got %v", err)
	}
	if _, ok := props["never"]; ok {
		t.Error("a transform after a failing one should not have run")
	}
}

func TestRegisterLookup(t *testing.T) {
	Register("test-transform-noop", addTag("k", "v"))

	fn, ok := Lookup("test-transform-noop")
	if !ok {
		t.Fatal("expected the registered transform to be found")
	}
	_, props, _, err := fn(geom.Point{0, 0}, map[string]interface{}{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if props["k"] != "v" {
		t.Errorf("registered transform did not run, got %+v", props)
	}

	if _, ok := Lookup("test-transform-does-not-exist"); ok {
		t.Error("expected Lookup to report not-found for an unregistered name")
	}
}
