package chunk

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/ar-io/contiguous-core/core/kv"
	"gitlab.com/NebulousLabs/encoding"
	"gitlab.com/NebulousLabs/log"
)

// metadataRecord is the on-the-wire shape of Metadata, round-tripped
// through gitlab.com/NebulousLabs/encoding rather than JSON: a compact
// binary layout for a record that is read far more often than written.
type metadataRecord struct {
	DataRoot       [32]byte
	DataSize       uint64
	DataPath       []byte
	ChunkSize      uint64
	RelativeOffset uint64
	Hash           [32]byte
}

func toRecord(m Metadata) metadataRecord {
	return metadataRecord{
		DataRoot:       m.DataRoot,
		DataSize:       m.DataSize,
		DataPath:       m.DataPath,
		ChunkSize:      m.ChunkSize,
		RelativeOffset: m.RelativeOffset,
		Hash:           m.Hash,
	}
}

func fromRecord(r metadataRecord) Metadata {
	return Metadata{
		DataRoot:       r.DataRoot,
		DataSize:       r.DataSize,
		DataPath:       r.DataPath,
		ChunkSize:      r.ChunkSize,
		RelativeOffset: r.RelativeOffset,
		Hash:           r.Hash,
	}
}

// MetadataStore is the read-through cache for chunk merkle-proof records,
// keyed by (data_root, relative_offset) per §4.4. It is a thin
// last-write-wins wrapper over a kv.Buffer — metadata never changes once
// a chunk is known, but re-fetching it is harmless, so unlike the
// attribute stores this does not use write-once semantics.
type MetadataStore struct {
	backend kv.Buffer
	log     *log.Logger
}

// NewMetadataStore builds a MetadataStore over backend, namespacing keys
// with the "CM|" prefix (chunk metadata) as §4.5 names for this logical
// store.
func NewMetadataStore(backend kv.Buffer, logger *log.Logger) *MetadataStore {
	return &MetadataStore{backend: backend, log: logger}
}

func metadataKey(dataRoot [32]byte, relativeOffset uint64) []byte {
	return []byte("CM|" + base64.RawURLEncoding.EncodeToString(dataRoot[:]) + "|" + strconv.FormatUint(relativeOffset, 10))
}

// Get performs a read-through lookup for the metadata of one chunk. On
// miss, fetch is invoked and its result cached (cache-write failures are
// logged, never surfaced, §7 rule 5).
func (s *MetadataStore) Get(ctx context.Context, req Request, fetch func(context.Context, Request) (Metadata, error)) (Metadata, error) {
	key := metadataKey(req.DataRoot, req.RelativeOffset)
	if raw, ok, err := s.backend.Get(ctx, key); err == nil && ok {
		var rec metadataRecord
		if err := encoding.Unmarshal(raw, &rec); err == nil {
			return fromRecord(rec), nil
		}
	}

	m, err := fetch(ctx, req)
	if err != nil {
		return Metadata{}, err
	}
	raw := encoding.Marshal(toRecord(m))
	if err := s.backend.Set(ctx, key, raw, true, 0); err != nil {
		s.log.Debugln("chunk metadata store: failed to persist record:", err)
	}
	return m, nil
}
