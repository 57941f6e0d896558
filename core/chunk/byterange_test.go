package chunk

import (
	"bytes"
	"io"
	"testing"
)

func TestByteRangeReaderWindow(t *testing.T) {
	data := []byte("0123456789abcdefghij")

	r := NewByteRangeReader(bytes.NewReader(data), 5, 6)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "56789a" {
		t.Fatalf("got %q, want %q", got, "56789a")
	}
}

func TestByteRangeReaderSkipBeyondLength(t *testing.T) {
	data := []byte("short")
	r := NewByteRangeReader(bytes.NewReader(data), 100, 10)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero bytes, got %d", len(got))
	}
}

func TestByteRangeReaderIrregularUpstreamWrites(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 5000)
	skip, keep := uint64(1234), uint64(9000)

	r := NewByteRangeReader(bytes.NewReader(data), skip, keep)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := data[skip : skip+keep]
	if !bytes.Equal(got, want) {
		t.Fatalf("window mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestByteRangeReaderEntireUpstream(t *testing.T) {
	data := []byte("exact")
	r := NewByteRangeReader(bytes.NewReader(data), 0, uint64(len(data)))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "exact" {
		t.Fatalf("got %q, want %q", got, "exact")
	}
}
