package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Trigger runs a job at most once at a time. Fire while a run is in flight is
// dropped, never queued.
type Trigger struct {
	job      func(ctx context.Context)
	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// NewTrigger wraps job.
func NewTrigger(job func(ctx context.Context)) *Trigger {
	return &Trigger{job: job}
}

// Fire starts the job in a new goroutine unless one is already running and
// reports whether it started.
func (t *Trigger) Fire(ctx context.Context) bool {
	if !t.inFlight.CompareAndSwap(false, true) {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inFlight.Store(false)
		t.job(ctx)
	}()
	return true
}

// Running reports whether a job is in flight.
func (t *Trigger) Running() bool { return t.inFlight.Load() }

// Wait blocks until the in-flight job, if any, returns.
func (t *Trigger) Wait() { t.wg.Wait() }

// Every fires t immediately and then every interval until ctx is done.
// onSkip is called for ticks dropped because a run was still in flight.
// Every returns after the last in-flight run completes.
func Every(ctx context.Context, clock Clock, interval time.Duration, t *Trigger, onSkip func()) {
	defer t.Wait()

	for {
		if !t.Fire(ctx) && onSkip != nil {
			onSkip()
		}
		if err := Sleep(ctx, clock, interval); err != nil {
			return
		}
	}
}
