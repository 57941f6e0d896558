package chunk

import "context"

// CachedSource composes an upstream Source with a DataStore so every
// chunk fetch is read-through cached by (data_root, relative_offset),
// per §4.4. It implements Source itself so it can be handed to
// NewProducer exactly like any uncached chunk source.
type CachedSource struct {
	upstream Source
	store    *DataStore
}

// NewCachedSource builds a read-through cache in front of upstream.
func NewCachedSource(upstream Source, store *DataStore) *CachedSource {
	return &CachedSource{upstream: upstream, store: store}
}

func (c *CachedSource) Name() string { return "cached(" + c.upstream.Name() + ")" }

func (c *CachedSource) GetChunk(ctx context.Context, req Request) (Data, error) {
	return c.store.Get(ctx, req, c.upstream.GetChunk)
}

// CachedMetadataSource is CachedSource's counterpart for merkle-proof
// records, composing an upstream MetadataSource with a MetadataStore.
type CachedMetadataSource struct {
	upstream MetadataSource
	store    *MetadataStore
}

// NewCachedMetadataSource builds a read-through cache in front of
// upstream.
func NewCachedMetadataSource(upstream MetadataSource, store *MetadataStore) *CachedMetadataSource {
	return &CachedMetadataSource{upstream: upstream, store: store}
}

func (c *CachedMetadataSource) Name() string { return "cached(" + c.upstream.Name() + ")" }

func (c *CachedMetadataSource) GetMetadata(ctx context.Context, req Request) (Metadata, error) {
	return c.store.Get(ctx, req, c.upstream.GetMetadata)
}
