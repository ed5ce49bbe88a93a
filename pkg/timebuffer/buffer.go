// Package timebuffer provides a thread-safe FIFO whose elements expire after a fixed duration.
package timebuffer

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value T
	added time.Time
}

// TimeConstrained keeps the elements appended within the last Duration.
// Expired elements are evicted lazily on Append.
type TimeConstrained[T any] struct {
	duration time.Duration
	now      func() time.Time

	mu         sync.Mutex
	entries    []entry[T]
	hasRemoved bool
}

// Option configures a TimeConstrained buffer
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a buffer that keeps elements for the given duration
func New[T any](duration time.Duration, opts ...Option) *TimeConstrained[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TimeConstrained[T]{
		duration: duration,
		now:      o.now,
	}
}

// Duration returns the retention window
func (b *TimeConstrained[T]) Duration() time.Duration {
	return b.duration
}

// Append evicts expired elements and adds v at the tail
func (b *TimeConstrained[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cut := 0
	for cut < len(b.entries) && now.Sub(b.entries[cut].added) >= b.duration {
		cut++
	}
	if cut > 0 {
		clear(b.entries[:cut])
		b.entries = b.entries[cut:]
		b.hasRemoved = true
	}
	b.entries = append(b.entries, entry[T]{value: v, added: now})
}

// Clear empties the buffer and resets HasRemovedElements
func (b *TimeConstrained[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.hasRemoved = false
}

// RemoveFirst pops the oldest element
func (b *TimeConstrained[T]) RemoveFirst() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if len(b.entries) == 0 {
		return zero, false
	}
	v := b.entries[0].value
	b.entries[0] = entry[T]{}
	b.entries = b.entries[1:]
	return v, true
}

// HasRemovedElements reports whether Append has evicted anything since the last Clear
func (b *TimeConstrained[T]) HasRemovedElements() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasRemoved
}

// Len returns the number of buffered elements
func (b *TimeConstrained[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// IsEmpty reports whether the buffer holds no elements
func (b *TimeConstrained[T]) IsEmpty() bool {
	return b.Len() == 0
}

// First returns the oldest element
func (b *TimeConstrained[T]) First() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if len(b.entries) == 0 {
		return zero, false
	}
	return b.entries[0].value, true
}

// Last returns the newest element
func (b *TimeConstrained[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if len(b.entries) == 0 {
		return zero, false
	}
	return b.entries[len(b.entries)-1].value, true
}

// UpdateLast applies fn to the newest element in place.
// Returns false if the buffer is empty.
func (b *TimeConstrained[T]) UpdateLast(fn func(*T)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return false
	}
	fn(&b.entries[len(b.entries)-1].value)
	return true
}

// OldestTimestamp returns when the oldest element was appended
func (b *TimeConstrained[T]) OldestTimestamp() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return time.Time{}, false
	}
	return b.entries[0].added, true
}

// AllSatisfy reports whether pred holds for every element.
// An empty buffer satisfies any predicate.
func (b *TimeConstrained[T]) AllSatisfy(pred func(T) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.entries {
		if !pred(e.value) {
			return false
		}
	}
	return true
}

// Filter returns the elements matching pred, oldest first
func (b *TimeConstrained[T]) Filter(pred func(T) bool) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []T
	for _, e := range b.entries {
		if pred(e.value) {
			out = append(out, e.value)
		}
	}
	return out
}

// Suffix returns up to n of the newest elements, oldest first
func (b *TimeConstrained[T]) Suffix(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := len(b.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]T, 0, len(b.entries)-start)
	for _, e := range b.entries[start:] {
		out = append(out, e.value)
	}
	return out
}

// Elements returns a copy of every element, oldest first
func (b *TimeConstrained[T]) Elements() []T {
	return b.Filter(func(T) bool { return true })
}
