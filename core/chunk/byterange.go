package chunk

import "io"

// ByteRangeReader wraps an upstream io.Reader and emits only the slice
// of bytes falling within [skipOffset, skipOffset+keepSize), per §4.3.
// It is order-preserving, retains at most one inbound buffer at a time,
// and ends the stream (io.EOF) once keepSize bytes have been emitted or
// the upstream is exhausted, whichever comes first. If skipOffset is at
// or beyond the upstream's total length it emits zero bytes.
type ByteRangeReader struct {
	upstream   io.Reader
	skipOffset uint64
	keepSize   uint64

	position uint64 // bytes consumed from upstream so far
	emitted  uint64 // bytes emitted to the caller so far
	buf      []byte // at most one pending upstream read
}

// NewByteRangeReader builds a transform over upstream that keeps only
// keepSize bytes starting at skipOffset of the upstream's logical byte
// sequence.
func NewByteRangeReader(upstream io.Reader, skipOffset, keepSize uint64) *ByteRangeReader {
	return &ByteRangeReader{upstream: upstream, skipOffset: skipOffset, keepSize: keepSize}
}

// Read implements io.Reader.
func (r *ByteRangeReader) Read(p []byte) (int, error) {
	if r.emitted >= r.keepSize {
		return 0, io.EOF
	}

	for len(r.buf) == 0 {
		chunk := make([]byte, 32*1024)
		n, err := r.upstream.Read(chunk)
		if n > 0 {
			r.buf = r.consumeIntoWindow(chunk[:n])
		}
		if len(r.buf) > 0 {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.emitted += uint64(n)
	if r.emitted >= r.keepSize {
		// Drop whatever is left of the final partial buffer; the stream
		// is logically complete.
		r.buf = nil
	}
	return n, nil
}

// consumeIntoWindow advances position past chunk and returns the slice
// of chunk (if any) that falls within [skipOffset, skipOffset+keepSize).
func (r *ByteRangeReader) consumeIntoWindow(chunk []byte) []byte {
	start := r.position
	end := start + uint64(len(chunk))
	r.position = end

	winStart := r.skipOffset
	winEnd := r.skipOffset + r.keepSize

	lo := start
	if winStart > lo {
		lo = winStart
	}
	hi := end
	if winEnd < hi {
		hi = winEnd
	}
	if lo >= hi {
		return nil
	}
	return chunk[lo-start : hi-start]
}
