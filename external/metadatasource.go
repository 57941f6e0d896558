package external

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/ar-io/contiguous-core/core"
	"github.com/ar-io/contiguous-core/core/chunk"
	"gitlab.com/NebulousLabs/errors"
)

// metadataRecordWire is the JSON shape a chunk's merkle-proof metadata is
// persisted as alongside its raw bytes in the object store, under the
// same "<data_root>/<relative_offset>" key with a ".meta" suffix so the
// two objects sort next to each other.
type metadataRecordWire struct {
	DataSize       uint64 `json:"data_size"`
	DataPath       string `json:"data_path"`
	ChunkSize      uint64 `json:"chunk_size"`
	RelativeOffset uint64 `json:"relative_offset"`
	Hash           string `json:"hash"`
}

// ObjectStoreMetadataSource implements chunk.MetadataSource over an
// ObjectStore, the companion of ObjectStoreChunkSource: chunk bytes and
// the merkle-proof record authenticating them are fetched as two
// distinct objects sharing one key prefix.
type ObjectStoreMetadataSource struct {
	store  *ObjectStore
	bucket string
}

// NewObjectStoreMetadataSource builds a chunk.MetadataSource reading
// from bucket via store.
func NewObjectStoreMetadataSource(store *ObjectStore, bucket string) *ObjectStoreMetadataSource {
	return &ObjectStoreMetadataSource{store: store, bucket: bucket}
}

func (s *ObjectStoreMetadataSource) Name() string { return "object-store-metadata" }

func (s *ObjectStoreMetadataSource) GetMetadata(ctx context.Context, req chunk.Request) (chunk.Metadata, error) {
	if err := core.CheckCancelled(s.Name(), ctx); err != nil {
		return chunk.Metadata{}, err
	}
	root := base64.RawURLEncoding.EncodeToString(req.DataRoot[:])
	key := s.store.ChunkKey(root, req.RelativeOffset) + ".meta"

	raw, err := s.store.GetObject(ctx, s.bucket, key)
	if err != nil {
		return chunk.Metadata{}, core.NewError(s.Name(), core.KindNotFound, errors.AddContext(err, "metadata object not found"))
	}

	var wire metadataRecordWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return chunk.Metadata{}, core.NewError(s.Name(), core.KindDataCorrupt, errors.AddContext(err, "unable to decode metadata object"))
	}
	path, err := base64.RawURLEncoding.DecodeString(wire.DataPath)
	if err != nil {
		return chunk.Metadata{}, core.NewError(s.Name(), core.KindDataCorrupt, errors.AddContext(err, "unable to decode data_path"))
	}
	hashBytes, err := base64.RawURLEncoding.DecodeString(wire.Hash)
	if err != nil {
		return chunk.Metadata{}, core.NewError(s.Name(), core.KindDataCorrupt, errors.AddContext(err, "unable to decode hash"))
	}

	var meta chunk.Metadata
	meta.DataRoot = req.DataRoot
	meta.DataSize = wire.DataSize
	meta.DataPath = path
	meta.ChunkSize = wire.ChunkSize
	meta.RelativeOffset = wire.RelativeOffset
	copy(meta.Hash[:], hashBytes)
	return meta, nil
}
