package clock

import (
	"sync"
	"time"
)

// Virtual is a manually advanced clock for deterministic tests and headless
// runs. Callbacks due at the same instant fire in scheduling order.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	queue timerQueue
}

// NewVirtual returns a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc schedules fn at Now()+d. Negative delays are treated as zero.
func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	return v.queue.add(v.Now().Add(max(0, d)), fn)
}

// Advance moves time forward by d, running every callback that falls due,
// including callbacks scheduled by other callbacks inside the window.
// It returns the number of callbacks run.
func (v *Virtual) Advance(d time.Duration) int {
	return v.AdvanceTo(v.Now().Add(d))
}

// AdvanceTo moves time forward to target. A target in the past is a no-op.
func (v *Virtual) AdvanceTo(target time.Time) int {
	fired := 0
	for {
		t := v.queue.popDue(target)
		v.mu.Lock()
		if t == nil {
			if target.After(v.now) {
				v.now = target
			}
			v.mu.Unlock()
			return fired
		}
		if t.deadline.After(v.now) {
			v.now = t.deadline
		}
		v.mu.Unlock()

		t.fn()
		fired++
	}
}

// Pending returns the number of scheduled callbacks not yet run or stopped.
func (v *Virtual) Pending() int {
	return v.queue.len()
}

// NextDeadline returns the earliest pending deadline.
func (v *Virtual) NextDeadline() (time.Time, bool) {
	return v.queue.next()
}
