package txoffset

import "context"

// CompositeTxOffsetSource tries primary first; if its result is valid
// (all four fields defined) it is returned as-is. Otherwise, if fallback
// is configured, fallback is tried and its result returned regardless of
// its own validity — callers downstream of a composite must tolerate an
// all-unset Result even after falling back (§4.6, and the matching open
// question in §9: "downstream callers must be resilient to all-unset
// results"). With no fallback configured, the (possibly invalid) primary
// result is returned. Errors from either source propagate verbatim; only
// invalidity (not an error) triggers the fallback.
type CompositeTxOffsetSource struct {
	primary  Source
	fallback Source // nil if none configured
}

// NewCompositeTxOffsetSource builds a CompositeTxOffsetSource. Pass a nil
// fallback to disable fallback behavior entirely.
func NewCompositeTxOffsetSource(primary, fallback Source) *CompositeTxOffsetSource {
	return &CompositeTxOffsetSource{primary: primary, fallback: fallback}
}

func (s *CompositeTxOffsetSource) Name() string { return "composite-tx-offset" }

func (s *CompositeTxOffsetSource) GetTxOffset(ctx context.Context, id string) (Result, error) {
	result, err := s.primary.GetTxOffset(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if result.IsValid() || s.fallback == nil {
		return result, nil
	}
	return s.fallback.GetTxOffset(ctx, id)
}
