// Package workpool is the fixed-size worker pool of spec.md §4.E: T
// workers, sized at filter configuration, running classification Tasks to
// completion with no cancellation. Submission is synchronous with respect
// to queue admission (it blocks once the soft high-water mark is reached,
// which is how backpressure reaches the Session's read loop) but execution
// is asynchronous.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultHighWaterMark is the default soft queue capacity (spec §4.E).
const DefaultHighWaterMark = 1024

// Pool is a fixed-size worker pool. The submitter owns a job's memory
// until a worker dequeues it (spec §4.E submission discipline).
type Pool struct {
	jobs chan func(context.Context)
	grp  *errgroup.Group
	ctx  context.Context

	mu     sync.RWMutex
	closed bool
}

// New builds a Pool with `workers` goroutines draining a queue of
// `highWaterMark` capacity (0 or negative uses DefaultHighWaterMark).
func New(ctx context.Context, workers, highWaterMark int) *Pool {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	grp, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		jobs: make(chan func(context.Context), highWaterMark),
		grp:  grp,
		ctx:  gctx,
	}
	for i := 0; i < workers; i++ {
		grp.Go(func() error {
			p.drain()
			return nil
		})
	}
	return p
}

func (p *Pool) drain() {
	for job := range p.jobs {
		job(p.ctx)
	}
}

// Submit blocks until the job is admitted to the queue (backpressure),
// then returns; execution happens on a worker goroutine independently.
// Submit returns ErrShutdown once Shutdown has been called.
func (p *Pool) Submit(job func(context.Context)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrShutdown
	}
	// jobs cannot be closed while we hold RLock, so this send is safe
	// even if Shutdown is concurrently waiting for the write lock.
	defer p.mu.RUnlock()
	p.jobs <- job
	return nil
}

// ErrShutdown is returned by Submit once Shutdown has been called.
var ErrShutdown = &shutdownErr{}

type shutdownErr struct{}

func (*shutdownErr) Error() string { return "workpool: shut down" }

// Shutdown stops accepting new jobs, lets every already-queued and
// in-flight job run to completion (no per-task cancellation, spec §5),
// and waits for all workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.grp.Wait()
}
