// Package memory provides a bounded, insertion-ordered buffer used for
// short-term recall: the bus keeps its most recent events in one, and every
// agent keeps the last few events it observed.
package memory

import (
	"container/list"
	"sync"
)

// Ring is a bounded FIFO buffer. Appending past capacity evicts the oldest
// entry. It is safe for concurrent use.
type Ring[T any] struct {
	mu       sync.Mutex
	capacity int
	// items holds T values, front = oldest.
	items *list.List
}

// NewRing returns a Ring holding at most capacity entries.
// A non-positive capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		capacity: capacity,
		items:    list.New(),
	}
}

// Push appends v and evicts from the head while over capacity.
// It returns the number of evicted entries.
func (r *Ring[T]) Push(v T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items.PushBack(v)
	evicted := 0
	for r.items.Len() > r.capacity {
		r.items.Remove(r.items.Front())
		evicted++
	}
	return evicted
}

// All returns every entry, oldest first.
func (r *Ring[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, r.items.Len())
	for elem := r.items.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(T))
	}
	return out
}

// Last returns up to n most recent entries matching keep, oldest first.
// A nil keep matches everything; n <= 0 means no limit.
func (r *Ring[T]) Last(n int, keep func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rev []T
	for elem := r.items.Back(); elem != nil; elem = elem.Prev() {
		v := elem.Value.(T)
		if keep != nil && !keep(v) {
			continue
		}
		rev = append(rev, v)
		if n > 0 && len(rev) == n {
			break
		}
	}

	out := make([]T, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// Count returns how many entries match keep.
func (r *Ring[T]) Count(keep func(T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for elem := r.items.Front(); elem != nil; elem = elem.Next() {
		if keep == nil || keep(elem.Value.(T)) {
			total++
		}
	}
	return total
}

// Len returns the number of entries held.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.Len()
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Clear drops every entry.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items.Init()
}
