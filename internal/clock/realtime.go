package clock

import (
	"context"
	"sync"
	"time"
)

const realtimeQueueDepth = 256

// Realtime is a wall-clock scheduler. Every callback runs on the single loop
// goroutine started with Run, in (deadline, scheduling order), the same
// order the virtual clock uses.
type Realtime struct {
	queue    timerQueue
	wake     chan struct{}
	work     chan func()
	done     chan struct{}
	doneOnce sync.Once
}

// NewRealtime returns a Realtime clock. Callbacks do not run until Run is called.
func NewRealtime() *Realtime {
	return &Realtime{
		wake: make(chan struct{}, 1),
		work: make(chan func(), realtimeQueueDepth),
		done: make(chan struct{}),
	}
}

// Now returns the wall-clock time.
func (r *Realtime) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn on the loop after d. Negative delays are treated
// as zero.
func (r *Realtime) AfterFunc(d time.Duration, fn func()) Timer {
	t := r.queue.add(time.Now().Add(max(0, d)), fn)
	// The loop may be sleeping until a later deadline.
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return t
}

// Do runs fn on the loop as soon as possible. It is the entry point for work
// originating outside the loop, such as terminal input.
func (r *Realtime) Do(fn func()) {
	select {
	case r.work <- fn:
	case <-r.done:
	}
}

// Run executes due callbacks and posted work until ctx is cancelled.
func (r *Realtime) Run(ctx context.Context) error {
	defer r.doneOnce.Do(func() { close(r.done) })

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t := r.queue.popDue(time.Now()); t != nil {
			t.fn()
			continue
		}

		var alarm <-chan time.Time
		if next, ok := r.queue.next(); ok {
			timer.Reset(time.Until(next))
			alarm = timer.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-r.work:
			fn()
		case <-r.wake:
		case <-alarm:
		}
		timer.Stop()
	}
}
