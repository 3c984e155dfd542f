package clock

import (
	"container/heap"
	"sync"
	"time"
)

// timerQueue holds pending callbacks ordered by (deadline, seq). Both clocks
// drain it from a single goroutine, so equal deadlines fire in scheduling
// order.
type timerQueue struct {
	mu    sync.Mutex
	seq   uint64
	items timerHeap
}

// add schedules fn at deadline.
func (q *timerQueue) add(deadline time.Time, fn func()) *queuedTimer {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	t := &queuedTimer{
		queue:    q,
		deadline: deadline,
		seq:      q.seq,
		fn:       fn,
	}
	heap.Push(&q.items, t)
	return t
}

// popDue removes and returns the head if it is due at now, or nil.
// A popped timer can no longer be stopped.
func (q *timerQueue) popDue(now time.Time) *queuedTimer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].deadline.After(now) {
		return nil
	}
	t := heap.Pop(&q.items).(*queuedTimer)
	t.done = true
	return t
}

// next returns the earliest pending deadline.
func (q *timerQueue) next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].deadline, true
}

func (q *timerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type queuedTimer struct {
	queue    *timerQueue
	deadline time.Time
	seq      uint64
	fn       func()
	index    int
	done     bool
}

// Stop removes the timer from its queue. It fails once the timer has been
// popped for running or was already stopped.
func (t *queuedTimer) Stop() bool {
	q := t.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	heap.Remove(&q.items, t.index)
	return true
}

// timerHeap is a min-heap ordered by (deadline, seq).
type timerHeap []*queuedTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*queuedTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
