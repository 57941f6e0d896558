package metrics

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// Latencies is a bounded rolling window of observed durations with
// on-demand percentile computation. GatewayDataSource records the latency
// of each successful fetch here; no source in this module reads the
// percentiles back to choose between sources.
type Latencies struct {
	mu      sync.Mutex
	window  []float64
	maxSize int
}

// NewLatencies builds a tracker retaining at most maxSize most-recent
// samples.
func NewLatencies(maxSize int) *Latencies {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &Latencies{maxSize: maxSize}
}

// Observe records d as a new sample, evicting the oldest sample once the
// window is full.
func (l *Latencies) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = append(l.window, float64(d.Microseconds()))
	if over := len(l.window) - l.maxSize; over > 0 {
		l.window = l.window[over:]
	}
}

// Percentile returns the p-th percentile (0-100) of the current window as
// a duration. Returns 0 if no samples have been observed yet.
func (l *Latencies) Percentile(p float64) time.Duration {
	l.mu.Lock()
	sample := append([]float64(nil), l.window...)
	l.mu.Unlock()
	if len(sample) == 0 {
		return 0
	}
	v, err := stats.Percentile(sample, p)
	if err != nil {
		return 0
	}
	return time.Duration(v) * time.Microsecond
}
