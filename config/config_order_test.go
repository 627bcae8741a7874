package config

import (
	"context"
	"encoding/json"
	"testing"
)

func tempDiskCacheDoc(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func TestLayersDoc_UnmarshalJSON_PreservesDeclarationOrder(t *testing.T) {
	raw := []byte(`{"water":{"provider":"p"},"roads":{"provider":"p"},"buildings":{"provider":"p"}}`)

	var layers LayersDoc
	if err := json.Unmarshal(raw, &layers); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := []string{"water", "roads", "buildings"}
	if len(layers) != len(want) {
		t.Fatalf("got %d layers, want %d", len(layers), len(want))
	}
	for i, name := range want {
		if layers[i].Name != name {
			t.Errorf("layer %d = %q, want %q", i, layers[i].Name, name)
		}
	}
}

func TestBuild_LayersInConfigDeclarationOrder(t *testing.T) {
	dir := tempDiskCacheDoc(t)
	raw := []byte(`{
		"cache": {"name": "disk", "path": "` + dir + `"},
		"layers": {
			"zebra": {"queries": ["SELECT 1"]},
			"apple": {"queries": ["SELECT 1"]},
			"mango": {"queries": ["SELECT 1"]}
		}
	}`)

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	m, err := Build(context.Background(), "test", &doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"zebra", "apple", "mango"}
	if len(m.Layers) != len(want) {
		t.Fatalf("got %d layers, want %d", len(m.Layers), len(want))
	}
	for i, name := range want {
		if m.Layers[i].Name() != name {
			t.Errorf("layer %d = %q, want %q (config declaration order, not alphabetical)", i, m.Layers[i].Name(), name)
		}
	}
}
