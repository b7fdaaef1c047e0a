package research

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/mikeboe/deep-research/pkg/metrics"
)

// Limiter bounds the number of branches in flight across a whole research
// tree. Every recursive call of one engine shares the same Limiter, and
// engines can share one with ResearchEngine.ShareLimiter.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	active   atomic.Int64
	peak     atomic.Int64
}

func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := l.active.Add(1)
	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	metrics.BranchesActive.Inc()
	return nil
}

func (l *Limiter) Release() {
	l.active.Add(-1)
	metrics.BranchesActive.Dec()
	l.sem.Release(1)
}

func (l *Limiter) Capacity() int { return int(l.capacity) }

// Active is the number of slots currently held.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Peak is the highest Active value observed.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
