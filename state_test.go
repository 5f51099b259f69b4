package crouton

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicStateTransitions(t *testing.T) {
	s := newAtomicState()
	require.Equal(t, stateAwake, s.load())
	require.True(t, s.canAcceptWork())

	require.False(t, s.tryTransition(stateRunning, stateSleeping), "transition from wrong state must fail")
	require.True(t, s.tryTransition(stateAwake, stateRunning))
	require.Equal(t, stateRunning, s.load())
	require.True(t, s.canAcceptWork())

	require.True(t, s.tryTransition(stateRunning, stateTerminating))
	require.False(t, s.canAcceptWork())

	require.True(t, s.tryTransition(stateTerminating, stateTerminated))
	require.False(t, s.canAcceptWork())
	require.False(t, s.tryTransition(stateTerminated, stateAwake))
}

func TestSchedulerStateString(t *testing.T) {
	require.Equal(t, "awake", stateAwake.String())
	require.Equal(t, "terminated", stateTerminated.String())
	require.Equal(t, "unknown", schedulerState(99).String())
}
