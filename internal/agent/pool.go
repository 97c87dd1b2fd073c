package agent

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool defaults. Two workers run always; under backlog pressure extra
// workers spin up to the peak, each exiting once the queue drains.
const (
	DefaultCoreWorkers = 2
	DefaultPeakWorkers = 5
	DefaultQueueSize   = 64
)

// Pool is a bounded worker pool for workflow runs. Submit never blocks:
// when the backlog is full the job is rejected and logged so scheduler
// and trigger paths stay responsive.
type Pool struct {
	jobs    chan func(context.Context)
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	extra   atomic.Int32
	maxPeak int32

	// mu orders Submit sends against Close closing the jobs channel.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool with the given core and peak worker counts and
// queue size. Zero or negative arguments fall back to defaults.
func NewPool(core, peak, queueSize int, log *zap.SugaredLogger) *Pool {
	if core <= 0 {
		core = DefaultCoreWorkers
	}
	if peak <= 0 {
		peak = DefaultPeakWorkers
	}
	if peak < core {
		peak = core
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan func(context.Context), queueSize),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		maxPeak: int32(peak - core),
	}
	for i := 0; i < core; i++ {
		p.wg.Add(1)
		go p.worker(false)
	}
	return p
}

func (p *Pool) worker(transient bool) {
	defer p.wg.Done()
	if transient {
		defer p.extra.Add(-1)
	}
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job(p.ctx)
			if transient && len(p.jobs) == 0 {
				return
			}
		}
	}
}

// Submit enqueues a job. Returns false when the pool is closed or the
// backlog is full; the job is dropped, not retried. A backlog more than
// half full also spawns a transient worker if the pool is below its peak.
func (p *Pool) Submit(job func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warnw("worker pool closed, rejecting job")
		return false
	}

	select {
	case p.jobs <- job:
	default:
		p.log.Warnw("worker pool backlog full, rejecting job", "queue_size", cap(p.jobs))
		return false
	}

	if len(p.jobs) > cap(p.jobs)/2 {
		if n := p.extra.Add(1); n <= p.maxPeak {
			p.wg.Add(1)
			go p.worker(true)
		} else {
			p.extra.Add(-1)
		}
	}
	return true
}

// Close stops accepting work, drains the backlog, then cancels running
// jobs' contexts and waits for workers to exit. Safe to call more than
// once and concurrently with Submit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
