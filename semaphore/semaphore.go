// Package semaphore limits the number of jobs executed concurrently.
package semaphore

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore limits the number of jobs that can be executed concurrently.
//
// The zero value imposes no limit.
type Semaphore struct {
	n   int
	sem *semaphore.Weighted
}

// New returns a semaphore that allows n jobs to be executed concurrently.
//
// If n is zero or negative the semaphore imposes no limit.
func New(n int) Semaphore {
	if n <= 0 {
		return Semaphore{}
	}

	return Semaphore{
		n,
		semaphore.NewWeighted(int64(n)),
	}
}

// Limit returns the number of jobs that can be executed concurrently.
//
// It returns 0 if there is no limit.
func (s *Semaphore) Limit() int {
	if s.sem == nil {
		return 0
	}

	return s.n
}

// Acquire blocks until a worker slot is available, or until ctx is canceled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if s.sem == nil {
		return ctx.Err()
	}

	return s.sem.Acquire(ctx, 1)
}

// Release returns a worker slot obtained by Acquire().
func (s *Semaphore) Release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}
