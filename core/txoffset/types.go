// Package txoffset implements the three composable transaction-offset
// sources of §4.6: a database-backed index lookup, a chain-derived
// binary search, and a composite that tries one then falls back to the
// other.
package txoffset

import "context"

// Result is the four-tuple a TxOffsetSource resolves for a transaction
// id: its data root, declared size, own id (echoed back for convenience),
// and weave-absolute end offset. A zero Result (IsValid reports false)
// means none of the four fields could be resolved.
type Result struct {
	ID       string
	DataRoot [32]byte
	DataSize uint64
	Offset   uint64 // weave-absolute offset of the transaction's last byte
}

// IsValid reports whether ID is non-empty and DataSize and Offset are
// non-zero. DataRoot is not checked: a zero DataRoot still counts as
// valid. A zero DataSize is indistinguishable from "unresolved" under
// this scheme.
func (r Result) IsValid() bool {
	return r.ID != "" && r.DataSize != 0 && r.Offset != 0
}

// StartOffset returns the weave-absolute offset of the transaction's
// first byte: offset - size + 1, per the TxOffsetResult data-model note.
func (r Result) StartOffset() uint64 {
	return r.Offset - r.DataSize + 1
}

// Source resolves a Result for a transaction id.
type Source interface {
	Name() string
	GetTxOffset(ctx context.Context, id string) (Result, error)
}
