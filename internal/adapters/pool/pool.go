// Package pool implements the loader's worker pool on a weighted semaphore.
package pool

import (
	"context"
	"sync"

	"go.trai.ch/depot/internal/core/ports"
	"golang.org/x/sync/semaphore"
)

// Pool runs jobs on background goroutines, at most size at a time. Go never
// blocks: a job submitted while the pool is saturated parks on the semaphore
// inside its own goroutine.
type Pool struct {
	size int
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// New creates a Pool running at most size jobs concurrently.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int { return p.size }

// Go schedules fn and returns immediately.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire with a background context cannot fail.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait blocks until every scheduled job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

var _ ports.WorkerPool = (*Pool)(nil)
