// Package source implements the composable DataSource chain: an ordered
// list of decorators that is tried strictly in sequence for each request,
// stopping at the first success, at client cancellation, or after every
// link has failed.
package source

import (
	"context"

	"github.com/ar-io/contiguous-core/core"
	"gitlab.com/NebulousLabs/log"
)

// DataSource is the single operation every link in the chain implements.
// A source returns a ContiguousData result on success, or one of the
// Kind-tagged errors from core.Kind on failure so the chain engine knows
// whether to try the next source.
type DataSource interface {
	// Name identifies the source for logging and metrics.
	Name() string
	// GetData attempts to satisfy req. See core.Kind for the error
	// contract.
	GetData(ctx context.Context, req core.Request) (core.ContiguousData, error)
}

// SequentialDataSource tries its inner sources strictly in order, never
// fanning out, so that source precedence is preserved and redundant
// upstream load is avoided. This mirrors the teacher's
// threadedDownloadLoop / workerPool pattern of serialized, ordered work
// rather than a fan-out wait-for-all.
type SequentialDataSource struct {
	name    string
	sources []DataSource
	log     *log.Logger
}

// NewSequentialDataSource builds a chain over sources, tried in the given
// order on every call.
func NewSequentialDataSource(name string, logger *log.Logger, sources ...DataSource) *SequentialDataSource {
	return &SequentialDataSource{name: name, sources: sources, log: logger}
}

func (s *SequentialDataSource) Name() string { return s.name }

// GetData implements DataSource. On a KindCancelled error from any inner
// source, or from the chain's own cancellation check, it is re-raised
// immediately without trying further sources. Any other error is recorded
// and the chain moves to the next source. If every source fails, the
// chain fails with core.KindNoSourceAvailable.
func (s *SequentialDataSource) GetData(ctx context.Context, req core.Request) (core.ContiguousData, error) {
	if err := core.CheckCancelled(s.name, ctx); err != nil {
		return core.ContiguousData{}, err
	}

	var lastErrs []error
	for _, src := range s.sources {
		if err := core.CheckCancelled(s.name, ctx); err != nil {
			return core.ContiguousData{}, err
		}

		data, err := src.GetData(ctx, req)
		if err == nil {
			return data, nil
		}
		if core.IsKind(err, core.KindCancelled) {
			return core.ContiguousData{}, err
		}
		if core.IsKind(err, core.KindFatal) {
			s.log.Printf("source %q failed fatally for %s: %v", src.Name(), req.ID, err)
		} else {
			s.log.Debugln("source", src.Name(), "declined", req.ID, ":", err)
		}
		lastErrs = append(lastErrs, err)
	}

	return core.ContiguousData{}, core.NewError(s.name, core.KindNoSourceAvailable, composeAll(lastErrs))
}

func composeAll(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out = &multiErr{prev: out, next: e}
	}
	return out
}

// multiErr chains a sequence of per-source failures for diagnostics
// without obscuring any individual one.
type multiErr struct {
	prev error
	next error
}

func (m *multiErr) Error() string {
	return m.prev.Error() + "; " + m.next.Error()
}

func (m *multiErr) Unwrap() error { return m.prev }
