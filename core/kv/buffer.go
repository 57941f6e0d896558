// Package kv implements the generic binary-safe KV-buffer store
// abstraction (§4.5): a uniform get/set/has/del/close interface over four
// backends (filesystem, embedded log-structured, in-process LRU, and
// networked), plus a JSON-typed wrapper with write-once semantics for
// attribute stores.
package kv

import (
	"context"
	"time"
)

// Buffer is the binary-safe KV interface every backend implements.
// Values are opaque byte slices; TTL support and durability vary per
// backend (see the table in §4.5).
type Buffer interface {
	// Get returns the value for key, or ok=false if absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)
	// Set stores value under key. If allowOverwrite is false and key
	// already has a value, Set returns ErrWriteOnce and leaves the
	// existing value untouched — this is what makes write-once
	// attribute stores possible on top of a last-write-wins backend.
	Set(ctx context.Context, key, value []byte, allowOverwrite bool, ttl time.Duration) error
	// Has reports whether key currently has a value.
	Has(ctx context.Context, key []byte) (bool, error)
	// Del removes key, if present. Deleting an absent key is not an
	// error.
	Del(ctx context.Context, key []byte) error
	// Close releases the backend's resources. Idempotent.
	Close() error
}

// ErrWriteOnce is returned by Set when allowOverwrite is false and key
// already holds a value.
type writeOnceError struct{ key string }

func (e *writeOnceError) Error() string { return "kv: key already set (write-once): " + e.key }

// ErrWriteOnce constructs the sentinel error for a rejected overwrite of
// key.
func ErrWriteOnce(key []byte) error { return &writeOnceError{key: string(key)} }

// IsWriteOnce reports whether err is the write-once rejection.
func IsWriteOnce(err error) bool {
	_, ok := err.(*writeOnceError)
	return ok
}
