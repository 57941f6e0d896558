package gate

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestSemaphoreMutualExclusion is the "Semaphore mutual exclusion"
// testable property (§8): at all times, the number of permit-holders
// never exceeds the configured permit count.
func TestSemaphoreMutualExclusion(t *testing.T) {
	const permits = 3
	const goroutines = 20
	s := New(permits)

	var mu sync.Mutex
	held := 0
	maxHeld := 0
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			if err := s.Acquire(ctx); err != nil {
				t.Errorf("unexpected acquire error: %v", err)
				return
			}
			mu.Lock()
			held++
			if held > maxHeld {
				maxHeld = held
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			held--
			mu.Unlock()
			s.Release()
		}()
	}
	wg.Wait()

	if maxHeld > permits {
		t.Fatalf("observed %d concurrent permit holders, configured for %d", maxHeld, permits)
	}
}

func TestSemaphoreFIFOOrder(t *testing.T) {
	s := New(1)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	started := make(chan struct{}, 3)

	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			time.Sleep(5 * time.Millisecond) // let all three queue up in order
			if err := s.Acquire(ctx); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			s.Release()
		}()
		<-started
		time.Sleep(time.Millisecond) // stagger so waiters enqueue in index order
	}

	s.Release() // release the initial permit, waking waiter 0
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO wake order, got %v", order)
		}
	}
}

func TestSemaphoreRejectsZeroPermits(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic constructing a semaphore with 0 permits")
		}
	}()
	New(0)
}

func TestSemaphoreAvailablePermits(t *testing.T) {
	s := New(2)
	if s.AvailablePermits() != 2 {
		t.Fatalf("expected 2 available permits, got %d", s.AvailablePermits())
	}
	_ = s.Acquire(context.Background())
	if s.AvailablePermits() != 1 {
		t.Fatalf("expected 1 available permit after acquire, got %d", s.AvailablePermits())
	}
	s.Release()
	if s.AvailablePermits() != 2 {
		t.Fatalf("expected 2 available permits after release, got %d", s.AvailablePermits())
	}
}
