package kv

import (
	"context"
	"encoding/json"
	"time"

	"gitlab.com/NebulousLabs/errors"
)

// JSONStore serializes values of type T as UTF-8 JSON on top of a Buffer,
// namespacing every key with a fixed prefix so several logical stores
// (e.g. "arns|", "CM|", "H|", "#|") can share one backend without
// colliding.
type JSONStore[T any] struct {
	buffer         Buffer
	prefix         string
	allowOverwrite bool
	ttl            time.Duration
}

// NewJSONStore builds a namespaced, typed store over buffer. allowOverwrite
// selects write-once semantics (attribute stores, where a second Set for
// the same key is rejected) versus last-write-wins (metadata caches).
func NewJSONStore[T any](buffer Buffer, prefix string, allowOverwrite bool, ttl time.Duration) *JSONStore[T] {
	return &JSONStore[T]{buffer: buffer, prefix: prefix, allowOverwrite: allowOverwrite, ttl: ttl}
}

func (s *JSONStore[T]) key(k string) []byte { return []byte(s.prefix + k) }

// Get decodes the stored JSON value for k, if present.
func (s *JSONStore[T]) Get(ctx context.Context, k string) (T, bool, error) {
	var zero T
	raw, ok, err := s.buffer.Get(ctx, s.key(k))
	if err != nil || !ok {
		return zero, ok, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, errors.AddContext(err, "unable to decode kv json record")
	}
	return v, true, nil
}

// Set encodes v as JSON and stores it under k, honoring this store's
// configured write-once/last-write-wins policy. On an attribute store
// (allowOverwrite=false), a second Set for the same key returns
// ErrWriteOnce and leaves the first value in place — the write-once
// testable property.
func (s *JSONStore[T]) Set(ctx context.Context, k string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.AddContext(err, "unable to encode kv json record")
	}
	return s.buffer.Set(ctx, s.key(k), raw, s.allowOverwrite, s.ttl)
}

func (s *JSONStore[T]) Has(ctx context.Context, k string) (bool, error) {
	return s.buffer.Has(ctx, s.key(k))
}

func (s *JSONStore[T]) Del(ctx context.Context, k string) error {
	return s.buffer.Del(ctx, s.key(k))
}
