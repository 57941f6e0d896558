package external

import (
	"context"
	"io"
	"testing"

	"github.com/ar-io/contiguous-core/core/kv"
	"gitlab.com/NebulousLabs/log"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	l, err := log.NewLogger(io.Discard)
	if err != nil {
		t.Fatalf("unable to build test logger: %v", err)
	}
	return l
}

// TestSaveDataContentAttributesWriteOnce is the "KV write-once"
// testable property (§8) applied to the attribute store specifically.
func TestSaveDataContentAttributesWriteOnce(t *testing.T) {
	idx := NewContiguousDataIndex(kv.NewLRUStore(100, 0), testLogger(t))
	ctx := context.Background()

	rec1 := DataAttributes{ID: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", ContentType: "text/plain"}
	rec2 := DataAttributes{ID: rec1.ID, ContentType: "application/octet-stream"}

	if err := idx.SaveDataContentAttributes(ctx, rec1); err != nil {
		t.Fatalf("unexpected error on first save: %v", err)
	}
	if err := idx.SaveDataContentAttributes(ctx, rec2); err != nil {
		t.Fatalf("expected second save to be swallowed as write-once, got error: %v", err)
	}

	got, ok, err := idx.GetDataAttributes(ctx, rec1.ID)
	if err != nil || !ok {
		t.Fatalf("expected attributes to be present, ok=%v err=%v", ok, err)
	}
	if got.ContentType != "text/plain" {
		t.Fatalf("expected first-write-wins, got content type %q", got.ContentType)
	}
}

func TestVerificationRetryCount(t *testing.T) {
	idx := NewContiguousDataIndex(kv.NewLRUStore(100, 0), testLogger(t))
	ctx := context.Background()
	id := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	if got := idx.VerificationRetryCount(ctx, id); got != 0 {
		t.Fatalf("expected 0 retries initially, got %d", got)
	}
	if err := idx.IncrementVerificationRetryCount(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idx.IncrementVerificationRetryCount(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := idx.VerificationRetryCount(ctx, id); got != 2 {
		t.Fatalf("expected 2 retries, got %d", got)
	}
}

func TestContentTypeBackfill(t *testing.T) {
	idx := NewContiguousDataIndex(kv.NewLRUStore(100, 0), testLogger(t))
	ctx := context.Background()
	id := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	if _, ok := idx.ContentType(ctx, id); ok {
		t.Fatalf("expected no content type before any record is saved")
	}
	_ = idx.SaveDataContentAttributes(ctx, DataAttributes{ID: id, ContentType: "image/png"})
	ct, ok := idx.ContentType(ctx, id)
	if !ok || ct != "image/png" {
		t.Fatalf("expected backfilled content type image/png, got %q ok=%v", ct, ok)
	}
}
