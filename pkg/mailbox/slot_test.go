package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut_OverwritesUnconsumed(t *testing.T) {
	s := New[int]()

	assert.False(t, s.Put(1))
	assert.True(t, s.Put(2))
	assert.True(t, s.Put(3))

	v, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, Stats{Puts: 3, Takes: 1, Drops: 2}, s.Stats())
}

func TestTake_BlocksUntilPut(t *testing.T) {
	s := New[string]()
	got := make(chan string, 1)

	go func() {
		v, err := s.Take(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Take returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	s.Put("frame")

	select {
	case v := <-got:
		assert.Equal(t, "frame", v)
	case <-time.After(time.Second):
		t.Fatal("Take did not wake up")
	}
}

func TestClose_DrainsPendingValue(t *testing.T) {
	s := New[int]()
	s.Put(7)
	s.Close()

	v, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = s.Take(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// puts after close are ignored
	assert.False(t, s.Put(8))
	_, err = s.Take(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_WakesBlockedTake(t *testing.T) {
	s := New[int]()
	errCh := make(chan error, 1)

	go func() {
		_, err := s.Take(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()
	s.Close() // idempotent

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Take")
	}
	assert.True(t, s.Closed())
}

func TestTake_ContextCancel(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		_, err := s.Take(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not wake Take")
	}
}
