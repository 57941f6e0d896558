// Package chunk implements the chunk-level data model consumed by the
// reassembly pipeline: the chunk data/metadata types, the two
// content-addressed read-through caches that back them, the byte-range
// stream transform, and the pull-driven reassembly producer itself.
//
// Grounded on the teacher's skylinkDataSource/chunkFetcher pattern
// (modules/renter/skyfiledatasource.go): a data source that owns no
// bytes itself, only a recipe for fetching fixed-size pieces on demand
// and stitching the results back into one linear stream.
package chunk

import (
	"context"
)

// Data is one verified chunk: its bytes and the hash they must match.
// Source is an optional provenance tag (which upstream produced it) used
// for logging only.
type Data struct {
	Hash   [32]byte
	Chunk  []byte
	Source string
}

// Metadata is the merkle-proof record for one chunk of a transaction:
// enough to authenticate Chunk against DataRoot via merkle.ValidatePath,
// and to locate it: (DataRoot, RelativeOffset) is the cache key.
type Metadata struct {
	DataRoot       [32]byte
	DataSize       uint64
	DataPath       []byte
	ChunkSize      uint64
	RelativeOffset uint64
	Hash           [32]byte
}

// Request identifies one chunk to fetch: the owning transaction's total
// size and data root, the chunk's offset relative to the start of the
// transaction, and the absolute weave offset (only meaningful to sources
// that address chunks by weave position rather than by data root).
type Request struct {
	TxSize         uint64
	AbsoluteOffset uint64
	DataRoot       [32]byte
	RelativeOffset uint64
}

// Source fetches raw chunk bytes for a Request. Implementations return
// core.Kind-tagged errors exactly like DataSource (§4.1): KindNotFound,
// KindTransient, KindFatal, KindCancelled all apply here too.
type Source interface {
	Name() string
	GetChunk(ctx context.Context, req Request) (Data, error)
}

// MetadataSource resolves the merkle-proof record for a Request. Same
// error contract as Source.
type MetadataSource interface {
	Name() string
	GetMetadata(ctx context.Context, req Request) (Metadata, error)
}
