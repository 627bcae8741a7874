package disk

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tilegen/tilegen/cache"
)

func TestQuadkey(t *testing.T) {
	cases := []struct {
		z, x, y uint
		want    string
	}{
		{1, 1, 0, "1"},
		{0, 0, 0, ""},
	}
	for _, c := range cases {
		if got := quadkey(c.z, c.x, c.y); got != c.want {
			t.Errorf("quadkey(%d,%d,%d) = %q, want %q", c.z, c.x, c.y, got, c.want)
		}
	}
}

func TestRelPath_Quadtile(t *testing.T) {
	c := New(t.TempDir(), Quadtile, 0022, nil)
	key := cache.Key{Layer: "L", Z: 2, X: 3, Y: 1, Format: "mvt"}
	got := c.relPath(key)
	want := filepath.Join("L", quadkey(2, 3, 1)+".mvt")
	if got != want {
		t.Errorf("relPath = %q, want %q", got, want)
	}
}

func TestRelPath_Safe(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, nil)
	key := cache.Key{Layer: "L", Z: 12, X: 656, Y: 1582, Format: "png"}
	got := c.relPath(key)
	want := filepath.Join("L", "12", "000", "656", "001", "582.png")
	if got != want {
		t.Errorf("relPath = %q, want %q", got, want)
	}
}

func TestRelPath_Portable(t *testing.T) {
	c := New(t.TempDir(), Portable, 0022, nil)
	key := cache.Key{Layer: "L", Z: 4, X: 2, Y: 9, Format: "json"}
	got := c.relPath(key)
	want := filepath.Join("L", "4", "2", "9.json")
	if got != want {
		t.Errorf("relPath = %q, want %q", got, want)
	}
}

func TestSaveThenRead_RoundTrip(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, nil)
	key := cache.Key{Layer: "L", Z: 1, X: 0, Y: 0, Format: "mvt"}
	ctx := context.Background()

	if err := c.Save(ctx, key, []byte("tile-bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, ok, err := c.Read(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if string(data) != "tile-bytes" {
		t.Fatalf("Read = %q, want %q", data, "tile-bytes")
	}

	path, _ := c.fullPath(key)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file after Save: %s", e.Name())
		}
	}
}

func TestSave_GzipsConfiguredExtensions(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, map[string]bool{"json": true})
	key := cache.Key{Layer: "L", Z: 1, X: 0, Y: 0, Format: "json"}
	ctx := context.Background()

	if err := c.Save(ctx, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, gzipped := c.fullPath(key)
	if !gzipped {
		t.Fatal("expected json to be marked for gzip")
	}
	if filepath.Ext(path) != ".gz" {
		t.Fatalf("expected .gz path, got %s", path)
	}
	data, ok, err := c.Read(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("Read = %q, want decompressed original", data)
	}
}

func TestRead_MissingKeyReturnsNotOK(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, nil)
	_, ok, err := c.Read(context.Background(), cache.Key{Layer: "L", Z: 1, X: 0, Y: 0, Format: "mvt"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing key")
	}
}

func TestLock_MutualExclusion(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, nil)
	c.StaleLockTimeout = time.Hour
	key := cache.Key{Layer: "L", Z: 1, X: 0, Y: 0, Format: "mvt"}
	ctx := context.Background()

	if err := c.Lock(ctx, key); err != nil {
		t.Fatalf("first Lock: %v", err)
	}

	var entered int32
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Lock(ctx, key); err != nil {
			t.Errorf("second Lock: %v", err)
			return
		}
		atomic.AddInt32(&entered, 1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock acquired while first lock still held")
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.Unlock(key); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	wg.Wait()
	if atomic.LoadInt32(&entered) != 1 {
		t.Fatal("second Lock never acquired after Unlock")
	}
}

func TestLock_BreaksStaleLock(t *testing.T) {
	c := New(t.TempDir(), Safe, 0022, nil)
	c.StaleLockTimeout = 10 * time.Millisecond
	key := cache.Key{Layer: "L", Z: 1, X: 0, Y: 0, Format: "mvt"}
	ctx := context.Background()

	path, _ := c.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		t.Fatal(err)
	}
	lockPath := path + ".lock"
	if err := os.WriteFile(lockPath, nil, 0666); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Lock(ctx, key) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Lock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lock did not break the stale lock in time")
	}
}
