package merkle

import (
	"bytes"
	"crypto/sha256"
	"math/rand"
	"testing"
)

func buildLeaves(data []byte) []Leaf {
	var leaves []Leaf
	pos := uint64(0)
	for len(data) > 0 {
		n := MaxChunkSize
		if n > len(data) {
			n = len(data)
		}
		remainder := len(data) - n
		if remainder > 0 && remainder < MinChunkSize {
			n = (len(data) + 1) / 2
		}
		leaves = append(leaves, NewLeaf(data[:n], pos))
		pos += uint64(n)
		data = data[n:]
	}
	return leaves
}

func TestStreamingRootMatchesBuffered(t *testing.T) {
	sizes := []int{0, 1, MinChunkSize - 1, MinChunkSize, MaxChunkSize, MaxChunkSize + 1, MaxChunkSize*3 + 100, MaxChunkSize*2 + MinChunkSize - 1}
	for _, size := range sizes {
		data := make([]byte, size)
		rand.New(rand.NewSource(int64(size))).Read(data)

		bufferedRoot := BuildRoot(buildLeaves(data))

		sr := NewStreamingRoot()
		// Feed in small, irregular writes to exercise the rolling
		// leftover buffer rather than one big write.
		for i := 0; i < len(data); {
			step := 4096
			if step > len(data)-i {
				step = len(data) - i
			}
			sr.Write(data[i : i+step])
			i += step
		}
		streamingRoot := sr.Finish()

		if bufferedRoot != streamingRoot {
			t.Fatalf("size %d: streaming root %x != buffered root %x", size, streamingRoot, bufferedRoot)
		}
	}
}

func TestValidatePathAcceptsGenuineChunk(t *testing.T) {
	data := make([]byte, MaxChunkSize*3+12345)
	rand.New(rand.NewSource(1)).Read(data)
	leaves := buildLeaves(data)
	tree := BuildTree(leaves)
	root := tree.Root()

	for i, leaf := range leaves {
		chunk := data[leaf.MinByteRange:leaf.MaxByteRange]
		hash := sha256.Sum256(chunk)
		path := tree.Proof(i, hash)

		got, err := ValidatePath(root, leaf.MinByteRange, 0, uint64(len(data)), path)
		if err != nil {
			t.Fatalf("leaf %d: unexpected error: %v", i, err)
		}
		if got.DataHash != hash {
			t.Fatalf("leaf %d: data hash mismatch", i)
		}
		if got.MinByteRange != leaf.MinByteRange || got.MaxByteRange != leaf.MaxByteRange {
			t.Fatalf("leaf %d: range mismatch: got [%d,%d) want [%d,%d)", i, got.MinByteRange, got.MaxByteRange, leaf.MinByteRange, leaf.MaxByteRange)
		}
	}
}

func TestValidatePathRejectsCorruptChunk(t *testing.T) {
	data := make([]byte, MaxChunkSize*2+500)
	rand.New(rand.NewSource(2)).Read(data)
	leaves := buildLeaves(data)
	tree := BuildTree(leaves)
	root := tree.Root()

	leaf := leaves[0]
	chunk := append([]byte(nil), data[leaf.MinByteRange:leaf.MaxByteRange]...)
	hash := sha256.Sum256(chunk)
	path := tree.Proof(0, hash)

	// Corrupt the path's recorded hash so it no longer matches the root.
	path[0] ^= 0xFF

	if _, err := ValidatePath(root, leaf.MinByteRange, 0, uint64(len(data)), path); err == nil {
		t.Fatalf("expected corrupted path to fail validation")
	}
}

func TestRootBase64URLDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("hello world"), 1000)
	a := RootBase64URL(data)
	b := RootBase64URL(data)
	if a != b {
		t.Fatalf("expected deterministic root encoding, got %q vs %q", a, b)
	}
}
