package inscribe

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// PipelineLock serializes commit-reveal pairs: the platform wallet has a
// single UTXO set and signs with a single key, so two inscriptions built
// concurrently would race over the same funding outputs. A weighted
// semaphore of size one holds "one operation in flight at a time" with a
// context-aware Acquire/Release pair.
type PipelineLock struct {
	sem *semaphore.Weighted
}

// NewPipelineLock returns a lock permitting exactly one holder at a time.
func NewPipelineLock() *PipelineLock {
	return &PipelineLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is free or ctx is done.
func (l *PipelineLock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release frees the lock for the next waiter.
func (l *PipelineLock) Release() {
	l.sem.Release(1)
}
