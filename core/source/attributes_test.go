package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ar-io/contiguous-core/core"
)

type fakeAttributesIndex struct {
	contentType string
	ok          bool
}

func (f *fakeAttributesIndex) ContentType(ctx context.Context, id string) (string, bool) {
	return f.contentType, f.ok
}

func TestAttributesBackfillFillsMissingContentType(t *testing.T) {
	inner := &fakeSource{name: "inner", payload: "body"}
	index := &fakeAttributesIndex{contentType: "application/json", ok: true}

	src := NewAttributesBackfillDataSource(inner, index)
	data, err := src.GetData(context.Background(), core.Request{ID: "x", CancelCtx: context.Background()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data.Stream.Close()
	if data.SourceContentType != "application/json" {
		t.Fatalf("got content type %q, want application/json", data.SourceContentType)
	}
}

type contentTypeSource struct{ contentType string }

func (c *contentTypeSource) Name() string { return "content-type-source" }
func (c *contentTypeSource) GetData(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	return core.ContiguousData{Stream: io.NopCloser(strings.NewReader("body")), Size: 4, SourceContentType: c.contentType}, nil
}

func TestAttributesBackfillLeavesExistingContentTypeAlone(t *testing.T) {
	inner := &contentTypeSource{contentType: "text/html"}
	index := &fakeAttributesIndex{contentType: "application/json", ok: true}

	src := NewAttributesBackfillDataSource(inner, index)
	data, err := src.GetData(context.Background(), core.Request{ID: "x", CancelCtx: context.Background()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data.Stream.Close()
	if data.SourceContentType != "text/html" {
		t.Fatalf("got content type %q, want original text/html to be preserved", data.SourceContentType)
	}
}
