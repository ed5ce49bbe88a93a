package timebuffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAppend_EvictsExpired(t *testing.T) {
	clock := newFakeClock()
	b := New[int](500*time.Millisecond, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		b.Append(i)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 5, b.Len())
	assert.False(t, b.HasRemovedElements())

	// clock is now at +500ms: element 0 is exactly duration old
	b.Append(5)
	assert.True(t, b.HasRemovedElements())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.Elements())

	first, ok := b.First()
	require.True(t, ok)
	assert.Equal(t, 1, first)
}

func TestAppend_EvictsEverythingAfterGap(t *testing.T) {
	clock := newFakeClock()
	b := New[string](time.Second, WithClock(clock.Now))

	b.Append("a")
	b.Append("b")
	clock.Advance(5 * time.Second)
	b.Append("c")

	assert.Equal(t, []string{"c"}, b.Elements())
	assert.True(t, b.HasRemovedElements())
}

func TestClear_ResetsRemovedFlag(t *testing.T) {
	clock := newFakeClock()
	b := New[int](time.Second, WithClock(clock.Now))

	b.Append(1)
	clock.Advance(2 * time.Second)
	b.Append(2)
	require.True(t, b.HasRemovedElements())

	b.Clear()

	assert.True(t, b.IsEmpty())
	assert.False(t, b.HasRemovedElements())
}

func TestRemoveFirst(t *testing.T) {
	b := New[int](time.Minute)

	_, ok := b.RemoveFirst()
	assert.False(t, ok)

	b.Append(1)
	b.Append(2)

	v, ok := b.RemoveFirst()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, b.Len())

	// manual removal is not an eviction
	assert.False(t, b.HasRemovedElements())
}

func TestSuffix(t *testing.T) {
	b := New[int](time.Minute)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}

	assert.Equal(t, []int{3, 4, 5}, b.Suffix(3))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.Suffix(10))
	assert.Empty(t, b.Suffix(0))
}

func TestAllSatisfy(t *testing.T) {
	b := New[int](time.Minute)
	even := func(v int) bool { return v%2 == 0 }

	assert.True(t, b.AllSatisfy(even), "empty buffer satisfies anything")

	b.Append(2)
	b.Append(4)
	assert.True(t, b.AllSatisfy(even))

	b.Append(5)
	assert.False(t, b.AllSatisfy(even))
	assert.Equal(t, []int{2, 4}, b.Filter(even))
}

func TestUpdateLast(t *testing.T) {
	type sample struct {
		id    int
		fixed bool
	}
	b := New[sample](time.Minute)

	assert.False(t, b.UpdateLast(func(s *sample) { s.fixed = true }))

	b.Append(sample{id: 1})
	b.Append(sample{id: 2})
	assert.True(t, b.UpdateLast(func(s *sample) { s.fixed = true }))

	last, _ := b.Last()
	first, _ := b.First()
	assert.True(t, last.fixed)
	assert.False(t, first.fixed)
}

func TestOldestTimestamp(t *testing.T) {
	clock := newFakeClock()
	b := New[int](time.Second, WithClock(clock.Now))

	_, ok := b.OldestTimestamp()
	assert.False(t, ok)

	start := clock.Now()
	b.Append(1)
	clock.Advance(300 * time.Millisecond)
	b.Append(2)

	ts, ok := b.OldestTimestamp()
	require.True(t, ok)
	assert.Equal(t, start, ts)
}

func TestConcurrentAccess(t *testing.T) {
	b := New[int](10 * time.Millisecond)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b.Append(i)
				_ = b.Suffix(3)
				_ = b.AllSatisfy(func(int) bool { return true })
				if i%7 == 0 {
					b.RemoveFirst()
				}
			}
		}()
	}
	wg.Wait()
}
