// Package clock is the single delayed-callback scheduler every timed
// behaviour in a session goes through. Callbacks never run concurrently with
// each other: the virtual clock runs them on the goroutine calling Advance,
// the realtime clock runs them on its loop goroutine.
package clock

import "time"

// Timer is a pending callback handle.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// ran, was already stopped, or is past the point of cancellation.
	Stop() bool
}

// Clock schedules callbacks after a delay and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
