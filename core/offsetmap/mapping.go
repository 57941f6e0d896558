// Package offsetmap implements the offset-to-block mapping (§4.7): an
// immutable, periodically-regenerated JSON file narrowing the search
// space for findTxByOffset (§4.6) from the full block range down to a
// bracket of roughly 5 TiB of weave offset.
package offsetmap

import (
	"encoding/json"
	"os"
	"sort"

	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/log"
)

// Interval is one (weave offset, block height) anchor point.
type Interval struct {
	Offset      uint64 `json:"offset"`
	BlockHeight uint64 `json:"blockHeight"`
}

// file is the on-disk shape of the mapping.
type file struct {
	Version          int        `json:"version"`
	GeneratedAt      string     `json:"generatedAt"`
	CurrentHeight    uint64     `json:"currentHeight"`
	CurrentWeaveSize uint64     `json:"currentWeaveSize"`
	IntervalBytes    uint64     `json:"intervalBytes"`
	Intervals        []Interval `json:"intervals"`
}

// Mapping is a validated, loaded offset-to-block mapping. A nil *Mapping
// (returned by Load on a validation failure) means the mapping is
// "absent" per §4.7, and callers must fall back to full-range search.
type Mapping struct {
	currentHeight uint64
	intervals     []Interval
}

// Load reads and validates the mapping JSON at path. Validation failures
// (fewer than 2 intervals, offsets not strictly increasing, block
// heights not strictly increasing) cause Load to log a warning and
// return (nil, nil) rather than an error: an absent mapping is a normal,
// handled condition, not a fatal one, per §4.7.
func Load(path string, logger *log.Logger) (*Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(err, "unable to read offset-block mapping file")
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.AddContext(err, "unable to parse offset-block mapping file")
	}

	if err := validate(f.Intervals); err != nil {
		logger.Printf("offset-block mapping is invalid, falling back to full-range search: %v", err)
		return nil, nil
	}

	return &Mapping{currentHeight: f.CurrentHeight, intervals: f.Intervals}, nil
}

func validate(intervals []Interval) error {
	if len(intervals) < 2 {
		return errors.New("offsetmap: at least 2 intervals are required")
	}
	for i := 1; i < len(intervals); i++ {
		if intervals[i].Offset <= intervals[i-1].Offset {
			return errors.New("offsetmap: offsets must be strictly increasing")
		}
		if intervals[i].BlockHeight <= intervals[i-1].BlockHeight {
			return errors.New("offsetmap: block heights must be strictly increasing")
		}
	}
	return nil
}

// Bounds is a [Low, High] block-height bracket guaranteed to contain the
// true block owning a given weave offset.
type Bounds struct {
	Low  uint64
	High uint64
}

// GetSearchBounds narrows the block-height search space for targetOffset,
// per §4.7's three-way rule. currentHeight overrides the mapping's own
// stored height, since the caller's view of the chain tip may be fresher
// than the mapping's generation time.
func (m *Mapping) GetSearchBounds(targetOffset uint64, currentHeight uint64) Bounds {
	if targetOffset < m.intervals[0].Offset {
		return Bounds{Low: 0, High: m.intervals[0].BlockHeight}
	}
	last := m.intervals[len(m.intervals)-1]
	if targetOffset >= last.Offset {
		return Bounds{Low: last.BlockHeight, High: currentHeight}
	}

	// Binary search for the adjacent pair (i, i+1) with
	// intervals[i].Offset <= targetOffset < intervals[i+1].Offset.
	i := sort.Search(len(m.intervals), func(i int) bool {
		return m.intervals[i].Offset > targetOffset
	}) - 1
	return Bounds{Low: m.intervals[i].BlockHeight, High: m.intervals[i+1].BlockHeight}
}

// FullRangeBounds is the fallback bracket used when no mapping is
// available (Load returned nil) or when the caller has none loaded.
func FullRangeBounds(currentHeight uint64) Bounds {
	return Bounds{Low: 0, High: currentHeight}
}
