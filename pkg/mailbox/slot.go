// Package mailbox provides a single-slot, latest-wins handoff between one
// producer and one consumer.
//
// Put never blocks: a value that has not been taken yet is overwritten and
// counted as a drop. Take blocks until a value is available, the slot is
// closed, or the context ends. A value put before Close is still delivered.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Take once the slot is closed and drained
var ErrClosed = errors.New("mailbox: closed")

// Slot is a single-value mailbox
type Slot[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   T
	pending bool
	closed  bool

	puts  uint64
	takes uint64
	drops uint64
}

// Stats is a snapshot of a slot's counters
type Stats struct {
	Puts  uint64 `json:"puts"`
	Takes uint64 `json:"takes"`
	Drops uint64 `json:"drops"`
}

// New creates an empty slot
func New[T any]() *Slot[T] {
	s := &Slot[T]{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores v, replacing any value the consumer hasn't taken yet.
// It reports whether a previous value was dropped. Puts after Close are ignored
// and return false.
func (s *Slot[T]) Put(v T) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.pending {
		s.drops++
		dropped = true
	}
	s.value = v
	s.pending = true
	s.puts++
	s.cond.Signal()
	return dropped
}

// Take waits for the next value.
// Returns ErrClosed when the slot is closed and empty, or ctx.Err() when ctx ends first.
func (s *Slot[T]) Take(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	for !s.pending && !s.closed {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		s.cond.Wait()
	}
	if !s.pending {
		return zero, ErrClosed
	}

	v := s.value
	s.value = zero
	s.pending = false
	s.takes++
	return v, nil
}

// Close wakes the consumer. Idempotent.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// Closed reports whether Close has been called
func (s *Slot[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns the slot counters
func (s *Slot[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Puts: s.puts, Takes: s.takes, Drops: s.drops}
}
