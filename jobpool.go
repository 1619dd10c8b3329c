package hancho

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// JobPool is a bounded counting resource: N job slots, acquired and released
// in batches by Tasks as they enter and leave RUNNING_COMMANDS (spec §4.4).
//
// The spec calls for "fair wake-up" via condition-variable broadcast because
// differently-sized Acquire(count) calls make single-signal wakeup racy: the
// woken waiter might not be the one whose count now fits. This pool uses
// golang.org/x/sync's Weighted semaphore instead (grounded on
// pk/composition.go's errgroup-based bounded concurrency pattern,
// generalized from unweighted to weighted): Release wakes blocked Acquire
// calls in arrival order for as long as the next waiter's count fits, so a
// waiter whose count does not fit yet holds back the ones queued behind it.
type JobPool struct {
	capacity int64
	sem      *semaphore.Weighted
}

// NewJobPool returns a JobPool with the given maximum parallelism.
func NewJobPool(capacity int) *JobPool {
	if capacity < 1 {
		capacity = 1
	}
	return &JobPool{capacity: int64(capacity), sem: semaphore.NewWeighted(int64(capacity))}
}

// Capacity returns the pool's total job slots.
func (p *JobPool) Capacity() int {
	return int(p.capacity)
}

// Acquire blocks until count slots are free, then claims them. Returns
// ErrValue immediately (without blocking) if count exceeds the pool's total
// capacity — spec §4.4: "If count > capacity, raises value error."
func (p *JobPool) Acquire(ctx context.Context, count int) error {
	if count < 1 {
		count = 1
	}
	if int64(count) > p.capacity {
		return fmt.Errorf("%w: requested %d jobs but pool capacity is %d", ErrValue, count, p.capacity)
	}
	return p.sem.Acquire(ctx, int64(count))
}

// Release frees count previously-acquired slots.
func (p *JobPool) Release(count int) {
	if count < 1 {
		count = 1
	}
	p.sem.Release(int64(count))
}
