package crouton

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuspensionArenaAllocConsume(t *testing.T) {
	a := newSuspensionArena()
	h := &taskHandle{}

	susp := a.alloc(nil, h)
	require.Equal(t, 1, a.len())
	require.True(t, a.pending(susp.index, susp.generation))

	got, ok := a.consume(susp.index, susp.generation)
	require.True(t, ok)
	require.Same(t, h, got)
	require.Equal(t, 0, a.len())
	require.False(t, a.pending(susp.index, susp.generation))
}

func TestSuspensionArenaDoubleConsumeIsNoop(t *testing.T) {
	a := newSuspensionArena()
	susp := a.alloc(nil, &taskHandle{})

	_, ok := a.consume(susp.index, susp.generation)
	require.True(t, ok)

	_, ok = a.consume(susp.index, susp.generation)
	require.False(t, ok, "second consume on the same generation must be a no-op")
}

func TestSuspensionArenaSlotReuseBumpsGeneration(t *testing.T) {
	a := newSuspensionArena()

	first := a.alloc(nil, &taskHandle{})
	_, ok := a.consume(first.index, first.generation)
	require.True(t, ok)

	second := a.alloc(nil, &taskHandle{})
	require.Equal(t, first.index, second.index, "freed slot should be reused")
	require.NotEqual(t, first.generation, second.generation)

	// A wake-up carrying the stale (first) generation must not resolve
	// against the slot now holding the second task's handle.
	_, ok = a.consume(first.index, first.generation)
	require.False(t, ok, "stale generation must not consume the reused slot")
	require.True(t, a.pending(second.index, second.generation))
}

func TestSuspensionArenaUnknownIndex(t *testing.T) {
	a := newSuspensionArena()
	_, ok := a.consume(42, 1)
	require.False(t, ok)
	require.False(t, a.pending(42, 1))
}
