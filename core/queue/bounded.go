// Package queue implements the bounded FIFO worker queue pattern shared
// by every async importer/indexer in this module (transaction-offset
// import, chunk verification, data-content-attribute indexing): a single
// queue with a configurable depth limit, a fixed worker count, and an
// optional at-most-once-in-flight-per-key guarantee. Modeled on the
// teacher's downloadHeap + workerPool + threadgroup combination
// (modules/renter/downloadheap.go, workerpool.go): a fixed set of worker
// goroutines pop items straight off the shared queue, and
// threadgroup.ThreadGroup tracks every goroutine so Stop can block until
// they drain.
package queue

import (
	"sync"

	"gitlab.com/NebulousLabs/log"
	"gitlab.com/NebulousLabs/threadgroup"
)

// Item is anything that can be queued. Key identifies it for the
// in-progress de-duplication set; two items with the same Key are never
// processed concurrently when InFlightDedup is enabled.
type Item interface {
	Key() string
}

// Handler processes a single item. It returns no error, so item-level
// failures are the handler's own to log; a panicking handler is
// recovered and logged by the queue, so a single poison item never stops
// the queue (§4.8, §7 rule 6).
type Handler func(item Item)

// Config configures a Bounded queue.
type Config struct {
	MaxQueueSize int
	WorkerCount  int
	// InFlightDedup enables the at-most-once-in-flight-per-key guarantee
	// noted for the transaction-offset importer and data-verification
	// queues in §4.8.
	InFlightDedup bool
}

// Bounded is a single FIFO queue with a fixed worker pool draining it.
type Bounded struct {
	cfg     Config
	handler Handler
	log     *log.Logger
	tg      threadgroup.ThreadGroup

	mu        sync.Mutex
	items     []Item
	inFlight  map[string]struct{}
	notify    chan struct{}
	stopped   bool
	onDropped func(item Item)
}

// New builds and starts a Bounded queue with cfg.WorkerCount workers
// pulling from a FIFO queue capped at cfg.MaxQueueSize, dispatching each
// item to handler.
func New(cfg Config, handler Handler, logger *log.Logger) *Bounded {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	q := &Bounded{
		cfg:      cfg,
		handler:  handler,
		log:      logger,
		inFlight: make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		if err := q.tg.Add(); err != nil {
			break
		}
		go func() {
			defer q.tg.Done()
			q.workLoop()
		}()
	}
	return q
}

// OnDropped registers a callback invoked whenever Enqueue silently drops
// an item because the queue was full. Intended for metrics/debug logging
// wiring, not control flow.
func (q *Bounded) OnDropped(fn func(item Item)) { q.onDropped = fn }

// Enqueue adds item to the back of the queue. If the queue is at
// MaxQueueSize and prioritized is false, the item is dropped silently
// (debug log + OnDropped callback), matching §4.8's "enqueue drops
// silently if queue is full" rule. prioritized=true bypasses the
// fullness check but the in-progress set is still enforced either way.
func (q *Bounded) Enqueue(item Item, prioritized bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	if q.cfg.InFlightDedup {
		if _, inFlight := q.inFlight[item.Key()]; inFlight {
			return
		}
	}
	if !prioritized && q.cfg.MaxQueueSize > 0 && len(q.items) >= q.cfg.MaxQueueSize {
		q.log.Debugln("queue full, dropping item", item.Key())
		if q.onDropped != nil {
			q.onDropped(item)
		}
		return
	}

	q.items = append(q.items, item)
	if q.cfg.InFlightDedup {
		q.inFlight[item.Key()] = struct{}{}
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// QueueDepth returns the current queue length, for backpressure probes.
func (q *Bounded) QueueDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Bounded) pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *Bounded) workLoop() {
	for {
		item, ok := q.pop()
		if !ok {
			select {
			case <-q.notify:
				continue
			case <-q.tg.StopChan():
				return
			}
		}

		func() {
			defer func() {
				if q.cfg.InFlightDedup {
					q.mu.Lock()
					delete(q.inFlight, item.Key())
					q.mu.Unlock()
				}
				if r := recover(); r != nil {
					q.log.Printf("worker queue item %q panicked: %v", item.Key(), r)
				}
			}()
			q.handler(item)
		}()
	}
}

// Stop drains in-flight work and refuses new work. It blocks until every
// worker goroutine has exited.
func (q *Bounded) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	_ = q.tg.Stop()
}
