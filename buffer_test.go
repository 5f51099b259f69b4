package crouton

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferUnreadAndExhausted(t *testing.T) {
	b := newBuffer(16)
	copy(b.data, []byte("hello world"))
	b.size = 11

	require.False(t, b.Exhausted())
	require.Equal(t, []byte("hello world"), b.Unread())

	b.used = 5
	require.Equal(t, []byte(" world"), b.Unread())
	require.False(t, b.Exhausted())

	b.used = 11
	require.True(t, b.Exhausted())

	b.reset()
	require.Equal(t, 0, b.size)
	require.Equal(t, 0, b.used)
	require.True(t, b.Exhausted())
}

func TestBufferPoolReleaseIsReused(t *testing.T) {
	p := newBufferPool(8, nil)

	b1 := p.acquire()
	b1.size = 4
	b1.used = 4
	p.release(b1)

	b2 := p.acquire()
	require.Same(t, b1, b2, "a released buffer must be handed back out before allocating a new one")
	require.Equal(t, 0, b2.size, "a reused buffer must come back reset")
	require.Equal(t, 0, b2.used)
}

func TestBufferPoolAllocatesFreshWhenSpareEmpty(t *testing.T) {
	p := newBufferPool(8, nil)

	b1 := p.acquire()
	b2 := p.acquire()
	require.NotSame(t, b1, b2)
	require.Len(t, b1.data, 8)
	require.Len(t, b2.data, 8)
}

func TestBufferPoolDefaultsCapacityWhenNonPositive(t *testing.T) {
	p := newBufferPool(0, nil)
	require.Equal(t, DefaultBufferCapacity, p.capacity)

	p2 := newBufferPool(-1, nil)
	require.Equal(t, DefaultBufferCapacity, p2.capacity)
}

func TestBufferPoolGrowthBeyondSoftBudgetStillSucceeds(t *testing.T) {
	p := newBufferPool(8, nil)

	// Acquire far more than the configured soft rate budget without ever
	// releasing: every call must still return a valid, usable buffer.
	// Correctness always wins over the soft limit.
	var bufs []*Buffer
	for i := 0; i < 200; i++ {
		b := p.acquire()
		require.NotNil(t, b)
		require.Len(t, b.data, 8)
		bufs = append(bufs, b)
	}
	require.Len(t, bufs, 200)
}
