package orchestrator

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Pool runs physical actions on a fixed set of workers fed by a bounded
// queue.
type Pool struct {
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines reading from a queue of size depth.
func NewPool(workers, depth int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan job, depth),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("action panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.fn(p.ctx)
}

// Submit queues fn without blocking. It returns false when the queue is
// full or the pool is closed.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{name: name, fn: fn}:
		return true
	default:
		p.logger.Warn("action pool full, dropping job", "job", name)
		return false
	}
}

// Pending returns the number of queued jobs.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Close stops accepting jobs, lets queued ones finish and joins the workers.
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
