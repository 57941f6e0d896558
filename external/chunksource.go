package external

import (
	"context"
	"crypto/sha256"
	"encoding/base64"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/chunk"
	"gitlab.com/NebulousLabs/errors"
)

// ObjectStoreChunkSource implements chunk.Source over an ObjectStore,
// the concrete §6 ObjectStore adapter this module wires in. It resolves
// each chunk request to the "[prefix/]<data_root>/<relative_offset>" key
// §6 defines and reports every GetObject failure, a missing object
// included, as KindNotFound.
type ObjectStoreChunkSource struct {
	store  *ObjectStore
	bucket string
}

// NewObjectStoreChunkSource builds a chunk.Source reading from bucket via
// store.
func NewObjectStoreChunkSource(store *ObjectStore, bucket string) *ObjectStoreChunkSource {
	return &ObjectStoreChunkSource{store: store, bucket: bucket}
}

func (s *ObjectStoreChunkSource) Name() string { return "object-store-chunks" }

func (s *ObjectStoreChunkSource) GetChunk(ctx context.Context, req chunk.Request) (chunk.Data, error) {
	if err := core.CheckCancelled(s.Name(), ctx); err != nil {
		return chunk.Data{}, err
	}
	root := base64.RawURLEncoding.EncodeToString(req.DataRoot[:])
	key := s.store.ChunkKey(root, req.RelativeOffset)

	raw, err := s.store.GetObject(ctx, s.bucket, key)
	if err != nil {
		return chunk.Data{}, core.NewError(s.Name(), core.KindNotFound, errors.AddContext(err, "chunk object not found"))
	}
	return chunk.Data{Hash: sha256.Sum256(raw), Chunk: raw, Source: "object-store"}, nil
}
