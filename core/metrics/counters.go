// Package metrics provides the lightweight, in-process instrumentation
// used across the data-source chain, caches, and worker queues: simple
// named counters (cache hit/miss, filtered/sampled counts, queue drops)
// and latency percentile tracking. No exposition server is included here
// — wiring counters onto an HTTP /metrics endpoint is the telemetry
// transport concern §1 of the design explicitly leaves external.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters is a small namespaced registry of prometheus counters, created
// lazily by name so call sites don't need to predeclare every metric.
type Counters struct {
	namespace string
	reg       prometheus.Registerer
	mu        sync.Mutex
	byName    map[string]prometheus.Counter
}

// NewCounters builds a Counters registry under the given namespace. Pass
// a *prometheus.Registry if the caller wants these exposed later; nil
// registers against prometheus.DefaultRegisterer.
func NewCounters(namespace string, reg prometheus.Registerer) *Counters {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Counters{namespace: namespace, byName: make(map[string]prometheus.Counter), reg: reg}
}

// Inc increments the named counter, creating and registering it on first
// use. Registration failures (e.g. duplicate collector) are swallowed —
// metrics are diagnostic, never load-bearing, matching the "cache-write
// errors are never surfaced" rule this module applies uniformly to
// observability side effects.
func (c *Counters) Inc(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.byName[name]
	if !ok {
		ctr = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      name + " total",
		})
		if c.reg != nil {
			_ = c.reg.Register(ctr)
		}
		c.byName[name] = ctr
	}
	ctr.Inc()
}
