package merkle

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidPath is returned by ValidatePath when the proof does not hash
// back to the claimed root, or is malformed.
var ErrInvalidPath = errors.New("merkle: data path does not validate against data root")

const (
	hashSize = 32
	noteSize = 32
	// leafSegmentSize is a final proof segment: data hash || max offset.
	leafSegmentSize = hashSize + noteSize
	// nodeSegmentSize is an internal proof segment: left || right || left-max-offset.
	nodeSegmentSize = hashSize + hashSize + noteSize
)

// ValidatedChunk is the outcome of a successful ValidatePath call: the
// leaf's data hash and the [min,max) byte range it covers within the
// object bounded by [0, dataSize).
type ValidatedChunk struct {
	DataHash     [32]byte
	MinByteRange uint64
	MaxByteRange uint64
}

// ValidatePath authenticates that the chunk covering byte offset
// targetOffset, within an object spanning [leftBound, rightBound), is
// exactly the one described by path, against root. This mirrors the
// per-chunk validation step of the reassembly pipeline (§4.2b): the
// chunk bytes themselves are checked separately by the caller
// (chunk.Producer compares SHA-256(chunk) against the metadata's Hash).
func ValidatePath(root [32]byte, targetOffset, leftBound, rightBound uint64, path []byte) (ValidatedChunk, error) {
	for {
		if len(path) == leafSegmentSize {
			var dataHash [32]byte
			copy(dataHash[:], path[:hashSize])
			maxOffset := decodeOffset(path[hashSize:leafSegmentSize])

			wantRoot := hashTagged(leafTag, dataHash[:], offsetBytes(maxOffset))
			if wantRoot != root {
				return ValidatedChunk{}, ErrInvalidPath
			}
			return ValidatedChunk{DataHash: dataHash, MinByteRange: leftBound, MaxByteRange: rightBound}, nil
		}

		if len(path) < nodeSegmentSize {
			return ValidatedChunk{}, ErrInvalidPath
		}
		var left, right [32]byte
		copy(left[:], path[:hashSize])
		copy(right[:], path[hashSize:2*hashSize])
		offset := decodeOffset(path[2*hashSize : nodeSegmentSize])
		rest := path[nodeSegmentSize:]

		wantRoot := hashChildren(left, right, offset)
		if wantRoot != root {
			return ValidatedChunk{}, ErrInvalidPath
		}

		if targetOffset < offset {
			root = left
			if offset < rightBound {
				rightBound = offset
			}
		} else {
			root = right
			if offset > leftBound {
				leftBound = offset
			}
		}
		path = rest
	}
}

func decodeOffset(b []byte) uint64 {
	// Only the trailing 8 bytes are meaningful for the offsets this
	// module produces; the leading bytes of the 32-byte note are zero.
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b[len(b)-8:])
}
