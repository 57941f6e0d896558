// Package gate provides the counting semaphore used to bound concurrent
// access to shared, expensive resources (outbound connections, decode
// buffers) across the retrieval core.
package gate

import (
	"container/list"
	"context"
	"sync"
)

// Semaphore is a counting semaphore with a FIFO waiter queue: Acquire
// suspends until a permit is free, and Release always wakes the oldest
// waiter first.
type Semaphore struct {
	mu        sync.Mutex
	permits   int
	available int
	waiters   *list.List // of chan struct{}
}

// New builds a Semaphore with the given number of permits. It panics if
// permits < 1, matching the constructor's rejection rule in §4.10.
func New(permits int) *Semaphore {
	if permits < 1 {
		panic("gate: semaphore requires at least 1 permit")
	}
	return &Semaphore{permits: permits, available: permits, waiters: list.New()}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.available > 0 {
		s.available--
		s.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	el := s.waiters.PushBack(wait)
	s.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		// If we were already woken between the ctx firing and taking
		// the lock, honor the permit we were granted rather than
		// dropping it on the floor.
		select {
		case <-wait:
			s.mu.Unlock()
			return nil
		default:
		}
		s.waiters.Remove(el)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Release returns a permit, waking the oldest waiter if one is queued.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if front := s.waiters.Front(); front != nil {
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	if s.available < s.permits {
		s.available++
	}
}

// AvailablePermits returns the number of permits currently free.
func (s *Semaphore) AvailablePermits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// QueueLength returns the number of goroutines currently waiting for a
// permit.
func (s *Semaphore) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
