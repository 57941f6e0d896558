package merkle

import "encoding/base64"

// StreamingRoot computes a merkle data root incrementally from a sequence
// of Write calls, without ever materializing the whole object: only the
// rolling leftover buffer (under MaxChunkSize+MinChunkSize bytes between
// writes) and the list of
// already-hashed leaves are retained, matching §4.9's rolling-leftover
// design. Root-trip equality with the buffered computation (BuildRoot
// over leaves cut from the full byte sequence at once) is the testable
// property this type exists to satisfy.
type StreamingRoot struct {
	leftover []byte
	position uint64
	leaves   []Leaf
}

// NewStreamingRoot returns a fresh, empty accumulator.
func NewStreamingRoot() *StreamingRoot {
	return &StreamingRoot{}
}

// Write feeds the next slice of bytes from the object being hashed. It
// never returns an error; it always "writes" everything, matching
// io.Writer's full-write contract.
func (s *StreamingRoot) Write(p []byte) (int, error) {
	s.leftover = append(s.leftover, p...)
	// Hold back enough bytes that a full cut never leaves a remainder
	// below MinChunkSize; the tail decision is made in Finish.
	for len(s.leftover) >= MaxChunkSize+MinChunkSize {
		s.cut(MaxChunkSize)
	}
	return len(p), nil
}

// cut removes the first n bytes of leftover, hashes them as the next
// leaf, and advances position. Before doing so it applies the
// tail-balancing rule: if what would remain after this cut is smaller
// than MinChunkSize (and more data has not yet arrived to fill it), the
// cut size is reduced to ceil(len(leftover)/2) so that no chunk smaller
// than MinChunkSize other than a genuine final remainder is ever
// produced.
func (s *StreamingRoot) cut(n int) {
	remainder := len(s.leftover) - n
	if remainder > 0 && remainder < MinChunkSize {
		n = (len(s.leftover) + 1) / 2
	}
	chunk := s.leftover[:n]
	leaf := NewLeaf(chunk, s.position)
	s.leaves = append(s.leaves, leaf)
	s.position += uint64(n)
	s.leftover = append([]byte(nil), s.leftover[n:]...)
}

// Finish flushes any remaining bytes (applying the tail-balancing rule
// if more than one chunk's worth is left) and returns the computed root.
func (s *StreamingRoot) Finish() [32]byte {
	for len(s.leftover) > MaxChunkSize {
		s.cut(MaxChunkSize)
	}
	if len(s.leftover) > 0 {
		leaf := NewLeaf(s.leftover, s.position)
		s.leaves = append(s.leaves, leaf)
		s.position += uint64(len(s.leftover))
		s.leftover = nil
	}
	return BuildRoot(s.leaves)
}

// Leaves returns the accumulated leaves so far; Finish must be called
// first to flush the trailing partial chunk if one is needed.
func (s *StreamingRoot) Leaves() []Leaf { return s.leaves }

// RootBase64URL computes the root over a complete in-memory byte
// sequence (fed to a StreamingRoot in a single Write) and returns it
// base64url-encoded, the format
// used when emitting a data root (§4.9).
func RootBase64URL(b []byte) string {
	s := NewStreamingRoot()
	_, _ = s.Write(b)
	root := s.Finish()
	return base64.RawURLEncoding.EncodeToString(root[:])
}
