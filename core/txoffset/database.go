package txoffset

import "context"

// Index is the local persistent index DatabaseTxOffsetSource delegates
// to: a single-lookup store the core treats as an opaque collaborator
// (§6's ContiguousDataIndex-adjacent role).
type Index interface {
	GetTxOffset(ctx context.Context, id string) (Result, error)
}

// DatabaseTxOffsetSource resolves a Result via a single index lookup,
// inheriting the index's own error semantics verbatim (§4.6): it neither
// retries nor reclassifies index errors.
type DatabaseTxOffsetSource struct {
	index Index
}

// NewDatabaseTxOffsetSource wraps index as a Source.
func NewDatabaseTxOffsetSource(index Index) *DatabaseTxOffsetSource {
	return &DatabaseTxOffsetSource{index: index}
}

func (s *DatabaseTxOffsetSource) Name() string { return "database-tx-offset" }

func (s *DatabaseTxOffsetSource) GetTxOffset(ctx context.Context, id string) (Result, error) {
	return s.index.GetTxOffset(ctx, id)
}
