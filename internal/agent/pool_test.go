package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hurttlocker/vigil/internal/logging"
)

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(2, 5, 16, logging.Nop())
	defer p.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := p.Submit(func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if !ok {
			wg.Done()
			t.Fatalf("submit %d rejected with empty queue", i)
		}
	}
	wg.Wait()
	if got := ran.Load(); got != 10 {
		t.Errorf("ran %d jobs, want 10", got)
	}
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := NewPool(1, 1, 2, logging.Nop())
	defer p.Close()

	block := make(chan struct{})

	// Occupy the single worker, then fill the queue.
	p.Submit(func(ctx context.Context) { <-block })
	time.Sleep(50 * time.Millisecond)
	accepted := 0
	for i := 0; i < 4; i++ {
		if p.Submit(func(ctx context.Context) { <-block }) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted %d jobs into a queue of 2, want 2", accepted)
	}
	if p.Submit(func(ctx context.Context) {}) {
		t.Error("expected rejection once backlog is full")
	}

	close(block)
}

func TestPoolCloseDrains(t *testing.T) {
	p := NewPool(2, 5, 16, logging.Nop())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		p.Submit(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		})
	}
	p.Close()
	if got := ran.Load(); got != 5 {
		t.Errorf("ran %d jobs before close returned, want 5", got)
	}
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(1, 1, 2, logging.Nop())
	p.Close()

	if p.Submit(func(ctx context.Context) {}) {
		t.Error("expected rejection after close")
	}
	// Repeated close is a no-op.
	p.Close()
}

func TestPoolDefaults(t *testing.T) {
	p := NewPool(0, 0, 0, logging.Nop())
	defer p.Close()

	if cap(p.jobs) != DefaultQueueSize {
		t.Errorf("queue cap = %d, want %d", cap(p.jobs), DefaultQueueSize)
	}
	if p.maxPeak != DefaultPeakWorkers-DefaultCoreWorkers {
		t.Errorf("maxPeak = %d", p.maxPeak)
	}
}
