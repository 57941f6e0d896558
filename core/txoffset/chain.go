package txoffset

import (
	"context"

	"github.com/ar-io/contiguous-core/core/offsetmap"
)

// Block is the slice of a chain block's shape findTxByOffset needs: the
// inclusive weave-byte range [WeaveBlockStart, WeaveBlockEnd] it owns and
// the ordered list of transaction ids it contains. Each transaction's own
// sub-range is resolved separately through TxBoundaryLookup.
type Block struct {
	WeaveBlockStart uint64
	WeaveBlockEnd   uint64
	TxIDs           []string
}

// TxBoundaryLookup resolves the weave byte range owned by a single
// transaction, used to enumerate a block's transactions while searching
// for the one owning a target offset.
type TxBoundaryLookup interface {
	// GetTxBoundary returns the [start, end] weave-absolute range a
	// transaction owns.
	GetTxBoundary(ctx context.Context, id string) (start, end uint64, err error)
}

// ChainClient is the minimal slice of §6's ChainClient role that
// findTxByOffset and ChainTxOffsetSource need: resolving a transaction's
// full record, fetching a block by height, and reporting the chain tip.
type ChainClient interface {
	TxBoundaryLookup
	GetTx(ctx context.Context, id string) (Result, error)
	GetBlockByHeight(ctx context.Context, height uint64) (Block, error)
	GetHeight(ctx context.Context) uint64
}

// ChainTxOffsetSource resolves a Result by binary-searching the chain
// itself: findTxByOffset narrows via the offset-block mapping, then
// binary-searches blocks, then enumerates the winning block's
// transactions (§4.6).
type ChainTxOffsetSource struct {
	client  ChainClient
	mapping *offsetmap.Mapping // nil means fall back to full-range search
}

// NewChainTxOffsetSource builds a ChainTxOffsetSource. mapping may be nil
// (an absent/invalid mapping per §4.7), in which case every search uses
// the full block range.
func NewChainTxOffsetSource(client ChainClient, mapping *offsetmap.Mapping) *ChainTxOffsetSource {
	return &ChainTxOffsetSource{client: client, mapping: mapping}
}

func (s *ChainTxOffsetSource) Name() string { return "chain-tx-offset" }

// GetTxOffset implements Source. It looks the id up directly through
// GetTxBoundary and GetTx, without a block search. Errors from either are
// swallowed and converted to an all-unset Result so composite callers can
// fall through to another source, per §4.6's "swallows errors" rule;
// this method itself never returns a non-nil error.
func (s *ChainTxOffsetSource) GetTxOffset(ctx context.Context, id string) (Result, error) {
	txID, offset, found := s.findTxIDByID(ctx, id)
	if !found {
		return Result{}, nil
	}
	result, err := s.client.GetTx(ctx, txID)
	if err != nil {
		return Result{}, nil
	}
	result.Offset = offset
	if !result.IsValid() {
		return Result{}, nil
	}
	return result, nil
}

// findTxIDByID resolves the transaction's own weave offset directly; it
// exists so GetTxOffset does not need a separate offset input the way
// FindTxByOffset does.
func (s *ChainTxOffsetSource) findTxIDByID(ctx context.Context, id string) (string, uint64, bool) {
	_, end, err := s.client.GetTxBoundary(ctx, id)
	if err != nil {
		return "", 0, false
	}
	return id, end, true
}

// FindTxByOffset resolves the transaction owning weave-absolute
// targetOffset: first narrows the block-height search bracket via the
// offset-block mapping (or the full range if none is loaded), then
// binary-searches blocks for the one whose [WeaveBlockStart,
// WeaveBlockEnd] contains targetOffset, then scans that block's
// transactions for the one whose own sub-range contains it.
func (s *ChainTxOffsetSource) FindTxByOffset(ctx context.Context, targetOffset uint64) (Result, error) {
	height := s.client.GetHeight(ctx)
	var bounds offsetmap.Bounds
	if s.mapping != nil {
		bounds = s.mapping.GetSearchBounds(targetOffset, height)
	} else {
		bounds = offsetmap.FullRangeBounds(height)
	}

	block, err := s.binarySearchBlock(ctx, targetOffset, bounds)
	if err != nil {
		return Result{}, nil
	}

	for _, txID := range block.TxIDs {
		start, end, err := s.client.GetTxBoundary(ctx, txID)
		if err != nil {
			continue
		}
		if targetOffset >= start && targetOffset <= end {
			result, err := s.client.GetTx(ctx, txID)
			if err != nil || !result.IsValid() {
				return Result{}, nil
			}
			return result, nil
		}
	}
	return Result{}, nil
}

func (s *ChainTxOffsetSource) binarySearchBlock(ctx context.Context, targetOffset uint64, bounds offsetmap.Bounds) (Block, error) {
	lo, hi := bounds.Low, bounds.High
	for lo < hi {
		mid := lo + (hi-lo)/2
		block, err := s.client.GetBlockByHeight(ctx, mid)
		if err != nil {
			return Block{}, err
		}
		switch {
		case targetOffset < block.WeaveBlockStart:
			hi = mid
		case targetOffset > block.WeaveBlockEnd:
			lo = mid + 1
		default:
			return block, nil
		}
	}
	return s.client.GetBlockByHeight(ctx, lo)
}
