package source

import (
	"context"

	"github.com/ar-io/contiguous-core/core"
)

// AttributesIndex is the narrow slice of §6's ContiguousDataIndex role
// that AttributesBackfillDataSource needs: just enough to recover a
// content type an upstream source could not supply. It is defined here,
// not in terms of external.ContiguousDataIndex directly, so core/source
// does not need to depend on the external adapters package for a single
// field lookup.
type AttributesIndex interface {
	ContentType(ctx context.Context, id string) (string, bool)
}

// AttributesBackfillDataSource wraps an inner source and, when its
// result has no SourceContentType (e.g. an on-chain reassembly with no
// recorded attributes), fills it in from the attributes index rather
// than leaving it empty. This is the "content-type sniffing fallback"
// supplemented feature: the index composition happens here rather than
// inside ChunkReassemblyDataSource itself, so the reassembly pipeline
// stays ignorant of indexing concerns entirely.
type AttributesBackfillDataSource struct {
	inner DataSource
	index AttributesIndex
}

// NewAttributesBackfillDataSource builds a content-type backfill wrapper
// over inner.
func NewAttributesBackfillDataSource(inner DataSource, index AttributesIndex) *AttributesBackfillDataSource {
	return &AttributesBackfillDataSource{inner: inner, index: index}
}

func (a *AttributesBackfillDataSource) Name() string { return "attributes-backfill(" + a.inner.Name() + ")" }

func (a *AttributesBackfillDataSource) GetData(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	data, err := a.inner.GetData(ctx, req)
	if err != nil {
		return core.ContiguousData{}, err
	}
	if data.SourceContentType != "" {
		return data, nil
	}
	if ct, ok := a.index.ContentType(ctx, req.ID); ok {
		data.SourceContentType = ct
	}
	return data, nil
}
