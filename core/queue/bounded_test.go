package queue

import (
	"io"
	"sync"
	"testing"
	"time"

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

type strItem string

func (s strItem) Key() string { return string(s) }

// TestWorkerFIFOStart is the "Worker FIFO" testable property (§8): items
// enqueued in order i1,i2,i3 are started in that order. A single worker
// guarantees start order equals completion order; with multiple workers
// only start order is guaranteed, so this uses a single worker.
func TestWorkerFIFOStart(t *testing.T) {
	var mu sync.Mutex
	var started []string

	q := New(Config{MaxQueueSize: 10, WorkerCount: 1}, func(item Item) {
		mu.Lock()
		started = append(started, item.Key())
		mu.Unlock()
	}, testLogger(t))
	defer q.Stop()

	q.Enqueue(strItem("i1"), false)
	q.Enqueue(strItem("i2"), false)
	q.Enqueue(strItem("i3"), false)

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(started)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for all items to process, got %v", started)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"i1", "i2", "i3"}
	for i, w := range want {
		if started[i] != w {
			t.Fatalf("expected FIFO start order %v, got %v", want, started)
		}
	}
}

// TestQueueFullDropsSilently exercises scenario 6 of §8 with
// maxQueueSize=2: x is taken by the busy worker, y and z fill the queue,
// and the next enqueue, w, is dropped.
func TestQueueFullDropsSilently(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var processed []string
	var dropped []string

	q := New(Config{MaxQueueSize: 2, WorkerCount: 1}, func(item Item) {
		<-block // hold the single worker busy so the queue backs up
		mu.Lock()
		processed = append(processed, item.Key())
		mu.Unlock()
	}, testLogger(t))
	q.OnDropped(func(item Item) {
		mu.Lock()
		dropped = append(dropped, item.Key())
		mu.Unlock()
	})
	defer func() {
		close(block)
		q.Stop()
	}()

	q.Enqueue(strItem("x"), false) // picked up by the worker immediately, blocks
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(strItem("y"), false) // queues
	q.Enqueue(strItem("z"), false) // queues, queue now at MaxQueueSize
	q.Enqueue(strItem("w"), false) // dropped: queue is full

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "w" {
		t.Fatalf("expected only w to be dropped, got %v", dropped)
	}
}

// TestQueuePrioritizedBypassesFullness exercises the other half of
// scenario 6: a prioritized enqueue bypasses the fullness check.
func TestQueuePrioritizedBypassesFullness(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var processed []string

	q := New(Config{MaxQueueSize: 1, WorkerCount: 1}, func(item Item) {
		<-block
		mu.Lock()
		processed = append(processed, item.Key())
		mu.Unlock()
	}, testLogger(t))
	defer func() {
		close(block)
		q.Stop()
	}()

	q.Enqueue(strItem("x"), false) // taken by the worker, blocks
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(strItem("y"), false) // fills the queue
	q.Enqueue(strItem("z"), true)  // prioritized: bypasses fullness
	if depth := q.QueueDepth(); depth != 2 {
		t.Fatalf("expected queue depth 2 after prioritized bypass, got %d", depth)
	}
}

func TestQueueInFlightDedup(t *testing.T) {
	var calls int
	var mu sync.Mutex
	release := make(chan struct{})

	q := New(Config{MaxQueueSize: 10, WorkerCount: 2, InFlightDedup: true}, func(item Item) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
	}, testLogger(t))
	defer func() {
		close(release)
		q.Stop()
	}()

	q.Enqueue(strItem("dup"), false)
	time.Sleep(5 * time.Millisecond)
	q.Enqueue(strItem("dup"), false) // same key already in flight: ignored

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected in-flight dedup to prevent a second concurrent call, got %d calls", calls)
	}
}
