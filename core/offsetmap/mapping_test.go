package offsetmap

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/NebulousLabs/log"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	l, err := log.NewLogger(io.Discard)
	if err != nil {
		t.Fatalf("unable to build test logger: %v", err)
	}
	return l
}

func writeMapping(t *testing.T, f file) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const tib = uint64(1) << 40

func TestOffsetBracketBoundaryScenario(t *testing.T) {
	path := writeMapping(t, file{
		Version:       1,
		CurrentHeight: 300000,
		Intervals: []Interval{
			{Offset: 0, BlockHeight: 0},
			{Offset: 5 * tib, BlockHeight: 100000},
			{Offset: 10 * tib, BlockHeight: 210000},
		},
	})

	m, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("expected a valid mapping")
	}

	cases := []struct {
		target   uint64
		wantLow  uint64
		wantHigh uint64
	}{
		{3 * tib, 0, 100000},
		{5 * tib, 100000, 210000},
		{12 * tib, 210000, 300000},
	}
	for _, c := range cases {
		got := m.GetSearchBounds(c.target, 300000)
		if got.Low != c.wantLow || got.High != c.wantHigh {
			t.Fatalf("target %d: got [%d,%d], want [%d,%d]", c.target, got.Low, got.High, c.wantLow, c.wantHigh)
		}
	}
}

func TestOffsetMappingRejectsTooFewIntervals(t *testing.T) {
	path := writeMapping(t, file{Intervals: []Interval{{Offset: 0, BlockHeight: 0}}})
	m, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatal("expected mapping to be rejected as absent")
	}
}

func TestOffsetMappingRejectsNonIncreasingOffsets(t *testing.T) {
	path := writeMapping(t, file{Intervals: []Interval{
		{Offset: 10, BlockHeight: 1},
		{Offset: 10, BlockHeight: 2},
	}})
	m, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatal("expected mapping to be rejected for non-increasing offsets")
	}
}

func TestOffsetMappingRejectsNonIncreasingHeights(t *testing.T) {
	path := writeMapping(t, file{Intervals: []Interval{
		{Offset: 10, BlockHeight: 5},
		{Offset: 20, BlockHeight: 5},
	}})
	m, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatal("expected mapping to be rejected for non-increasing heights")
	}
}

func TestFullRangeBoundsFallback(t *testing.T) {
	b := FullRangeBounds(12345)
	if b.Low != 0 || b.High != 12345 {
		t.Fatalf("unexpected fallback bounds: %+v", b)
	}
}
