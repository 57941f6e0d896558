package source

import (
	"context"
	"io"
	"testing"

	"github.com/ar-io/contiguous-core/core"
)

func TestReadThroughCachingDataSourceHitAfterMiss(t *testing.T) {
	dir := t.TempDir()
	var calls int
	inner := &fakeSource{name: "inner", called: &calls, payload: "helloworld"}

	cache, err := NewReadThroughCachingDataSource(inner, dir, testLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := core.Request{ID: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", CancelCtx: context.Background()}

	first, err := cache.GetData(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error on miss: %v", err)
	}
	raw, _ := io.ReadAll(first.Stream)
	first.Stream.Close()
	if string(raw) != "helloworld" {
		t.Fatalf("got %q on miss, want helloworld", raw)
	}
	if first.Cached {
		t.Fatalf("expected Cached=false on miss")
	}

	second, err := cache.GetData(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error on hit: %v", err)
	}
	defer second.Stream.Close()
	raw2, _ := io.ReadAll(second.Stream)
	if string(raw2) != "helloworld" {
		t.Fatalf("got %q on hit, want helloworld", raw2)
	}
	if !second.Cached {
		t.Fatalf("expected Cached=true on hit")
	}
	if calls != 1 {
		t.Fatalf("expected inner source to be invoked only once, got %d calls", calls)
	}
}

func TestReadThroughCachingDataSourceSkipsRegionRequests(t *testing.T) {
	dir := t.TempDir()
	var calls int
	inner := &fakeSource{name: "inner", called: &calls, payload: "helloworld"}
	cache, err := NewReadThroughCachingDataSource(inner, dir, testLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := core.Request{
		ID:        "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Region:    &core.Region{Offset: 0, Size: 5},
		CancelCtx: context.Background(),
	}
	data, err := cache.GetData(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data.Stream.Close()
	if calls != 1 {
		t.Fatalf("expected region request to always reach inner source, got %d calls", calls)
	}
}

func TestByteRangeCachingDataSourceServesFromCachedFile(t *testing.T) {
	dir := t.TempDir()
	var calls int
	inner := &fakeSource{name: "inner", called: &calls, payload: "helloworld"}

	readThrough, err := NewReadThroughCachingDataSource(inner, dir, testLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rangeCache := NewByteRangeCachingDataSource(readThrough, dir)

	id := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	whole, err := readThrough.GetData(context.Background(), core.Request{ID: id, CancelCtx: context.Background()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	io.Copy(io.Discard, whole.Stream)
	whole.Stream.Close()

	ranged, err := rangeCache.GetData(context.Background(), core.Request{
		ID:        id,
		Region:    &core.Region{Offset: 5, Size: 5},
		CancelCtx: context.Background(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ranged.Stream.Close()
	raw, _ := io.ReadAll(ranged.Stream)
	if string(raw) != "world" {
		t.Fatalf("got %q, want %q", raw, "world")
	}
	if !ranged.Cached {
		t.Fatalf("expected Cached=true when served from the disk cache")
	}
}

func TestByteRangeCachingDataSourceFallsThroughOnMiss(t *testing.T) {
	dir := t.TempDir()
	var calls int
	inner := &fakeSource{name: "inner", called: &calls, payload: "helloworld"}
	rangeCache := NewByteRangeCachingDataSource(inner, dir)

	req := core.Request{
		ID:        "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Region:    &core.Region{Offset: 0, Size: 5},
		CancelCtx: context.Background(),
	}
	data, err := rangeCache.GetData(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data.Stream.Close()
	if calls != 1 {
		t.Fatalf("expected fallback to inner source on cache miss, got %d calls", calls)
	}
}

