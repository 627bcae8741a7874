// Package tgerr defines the typed errors from spec.md section 7, in the
// teacher's own idiom: an exported struct per error kind carrying the
// context a caller needs, rather than a tree of wrapped sentinel values
// (compare provider.ErrLayerNotFound / ErrUnknownProvider in the teacher's
// provider/provider.go).
package tgerr

import "fmt"

// UnknownLayer is returned when a request names a layer not present in
// the running config (plus the "all" sentinel).
type UnknownLayer struct {
	Layer string
}

func (e UnknownLayer) Error() string {
	return fmt.Sprintf("tilegen: unknown layer %q", e.Layer)
}

// InvalidCoordinate is returned when a requested tile coordinate fails
// 0 <= x,y < 2^z.
type InvalidCoordinate struct {
	Z, X, Y uint
}

func (e InvalidCoordinate) Error() string {
	return fmt.Sprintf("tilegen: invalid coordinate z=%d x=%d y=%d", e.Z, e.X, e.Y)
}

// UnsupportedExtension is returned when the requested file extension has
// no entry in the extension->format table.
type UnsupportedExtension struct {
	Ext string
}

func (e UnsupportedExtension) Error() string {
	return fmt.Sprintf("tilegen: unsupported extension %q", e.Ext)
}

// UnsupportedFormatForMulti is returned when a format cannot participate
// in the "all layers" multi-layer merge path.
type UnsupportedFormatForMulti struct {
	Format string
}

func (e UnsupportedFormatForMulti) Error() string {
	return fmt.Sprintf("tilegen: format %q is not supported for multi-layer responses", e.Format)
}

// MissingColumn is returned when a query result lacks a required column
// (spec.md requires __geometry__ on every row).
type MissingColumn struct {
	Column string
}

func (e MissingColumn) Error() string {
	return fmt.Sprintf("tilegen: missing %v column in feature result", e.Column)
}

// DatabaseError wraps a driver error encountered while composing or
// executing a query.
type DatabaseError struct {
	Query string
	Err   error
}

func (e DatabaseError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("tilegen: database error: %v", e.Err)
	}
	return fmt.Sprintf("tilegen: database error running %q: %v", e.Query, e.Err)
}

func (e DatabaseError) Unwrap() error { return e.Err }

// CacheIOError wraps a filesystem (or remote-store) failure during a
// cache read/save/lock/unlock operation.
type CacheIOError struct {
	Op  string
	Key string
	Err error
}

func (e CacheIOError) Error() string {
	return fmt.Sprintf("tilegen: cache %v error for %v: %v", e.Op, e.Key, e.Err)
}

func (e CacheIOError) Unwrap() error { return e.Err }

// StaleLock records that a lock was forcibly broken after exceeding the
// configured stale-lock timeout. No package returns or constructs it:
// cache/disk breaks a stale lock silently and logs a plain warning.
type StaleLock struct {
	Key string
}

func (e StaleLock) Error() string {
	return fmt.Sprintf("tilegen: broke stale lock for %v", e.Key)
}
