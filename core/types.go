// Package core defines the shared data model and error taxonomy for the
// contiguous-data retrieval core: the identifier, region, and streamed
// result types that every DataSource, chunk source, and cache in this
// module exchange.
package core

import (
	"context"
	"io"
	"regexp"
)

// idPattern matches the canonical 43-character base64url identifier used
// for both transactions and data items.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

// ValidID reports whether id is a syntactically valid 43-char base64url
// identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Region is a byte window requested relative to the logical object,
// 0-based.
type Region struct {
	Offset uint64
	Size   uint64
}

// RequestAttributes carries opaque, client-supplied metadata. Only the
// filtering and sampling decorators inspect these fields; every other
// source passes them through unexamined.
type RequestAttributes struct {
	Origin   string
	ClientIP string
	HopCount int
}

// Request is the argument bundle passed to DataSource.GetData.
type Request struct {
	ID         string
	Region     *Region
	Attributes *RequestAttributes
	CancelCtx  context.Context
}

// ContiguousData is the result of a successful retrieval: a lazy,
// single-consume sequence of bytes plus provenance flags. The sum of bytes
// read from Stream must equal Size; Verified implies the bytes' merkle
// root has been checked against an authoritative data root.
type ContiguousData struct {
	Stream            io.ReadCloser
	Size              uint64
	SourceContentType string
	Verified          bool
	Trusted           bool
	Cached            bool
}

// Merge copies other's SourceContentType onto cd when cd's is empty. It is
// the only field Merge backfills: Stream, Size and the Verified, Trusted
// and Cached flags are always kept from cd.
func (cd ContiguousData) Merge(other ContiguousData) ContiguousData {
	if cd.SourceContentType == "" {
		cd.SourceContentType = other.SourceContentType
	}
	return cd
}

// Kind enumerates the error taxonomy every DataSource, ChunkSource, and
// TxOffsetSource in this module surfaces (§7 of the design).
type Kind int

const (
	// KindNotFound means this source has nothing for the request; quiet,
	// logged at debug, try the next source.
	KindNotFound Kind = iota
	// KindFiltered means this source declined to even attempt the
	// request (policy, sampling); try the next source.
	KindFiltered
	// KindTransient means a retryable upstream condition (timeout, 5xx,
	// 429) was hit; try the next source. GatewayDataSource retries this
	// kind itself and reports KindFatal once its retry budget is exhausted.
	KindTransient
	// KindFatal means an unexpected error occurred in this source; it is
	// logged as an error but the chain still tries the next source.
	KindFatal
	// KindDataCorrupt means bytes were retrieved but failed merkle/hash
	// verification; fatal for this source, but the chain tries the next
	// source since another may return uncorrupted bytes.
	KindDataCorrupt
	// KindCancelled means the request's CancelCtx fired; it is never
	// translated into any other kind and always bubbles to the request
	// boundary without trying further sources.
	KindCancelled
	// KindNoSourceAvailable is raised by the chain engine itself when
	// every configured source has failed.
	KindNoSourceAvailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindFiltered:
		return "Filtered"
	case KindTransient:
		return "Transient"
	case KindFatal:
		return "Fatal"
	case KindDataCorrupt:
		return "DataCorrupt"
	case KindCancelled:
		return "Cancelled"
	case KindNoSourceAvailable:
		return "NoSourceAvailable"
	default:
		return "Unknown"
	}
}

// SourceError is the concrete error type every source in this module
// returns. Wrap one with errors.AddContext the same way the teacher
// annotates NebulousLabs/errors chains.
type SourceError struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return e.Source + ": " + e.Kind.String()
	}
	return e.Source + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewError builds a *SourceError, recording which source produced it.
func NewError(source string, kind Kind, err error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Err: err}
}

// IsKind reports whether err is a *SourceError of the given kind, looking
// through any errors.AddContext wrapping (NebulousLabs/errors preserves
// the Unwrap chain, same as the standard library).
func IsKind(err error, kind Kind) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*SourceError); ok {
			return e.Kind == kind
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Cancelled reports whether ctx has already been cancelled.
func Cancelled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// CheckCancelled returns a KindCancelled *SourceError if ctx is done,
// otherwise nil. Every source calls this at the top of GetData and at
// every suspension point, matching the "explicit CancelToken argument"
// design note.
func CheckCancelled(source string, ctx context.Context) error {
	if Cancelled(ctx) {
		return NewError(source, KindCancelled, ctx.Err())
	}
	return nil
}
