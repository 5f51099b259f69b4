package crouton

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresOnceAfterDelay(t *testing.T) {
	s := newTestScheduler(t)

	count := 0
	NewTimer(s, 5*time.Millisecond, func() { count++ })

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return count == 1 }))

	// Give the loop one more spin; a one-shot timer must not re-arm.
	done := false
	NewTimer(s, 5*time.Millisecond, func() { done = true })
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Equal(t, 1, count)
}

func TestPeriodicTimerRearmsUntilCancelled(t *testing.T) {
	s := newTestScheduler(t)

	count := 0
	var timer *Timer
	timer = NewPeriodicTimer(s, 5*time.Millisecond, func() {
		count++
		if count == 3 {
			timer.Cancel()
		}
	})

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return count >= 3 }))
	require.Equal(t, 3, count)

	// After cancellation the timer must not fire again; settle the loop
	// for a few more periods and confirm the count is unchanged.
	settled := false
	NewTimer(s, 20*time.Millisecond, func() { settled = true })
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return settled }))
	require.Equal(t, 3, count)
}

func TestTimerCancelBeforeFireSuppressesCallback(t *testing.T) {
	s := newTestScheduler(t)

	fired := false
	timer := NewTimer(s, 20*time.Millisecond, func() { fired = true })
	timer.Cancel()

	settled := false
	NewTimer(s, 30*time.Millisecond, func() { settled = true })
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return settled }))
	require.False(t, fired)
}

func TestSleepResolvesAfterDelay(t *testing.T) {
	s := newTestScheduler(t)

	done := false
	NewTask(s, func(tc *TaskContext) error {
		_, err := Sleep(s, 5*time.Millisecond).Await(tc)
		require.NoError(t, err)
		done = true
		return nil
	})

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
}

func TestAfterRunsFireAndForgetCallback(t *testing.T) {
	s := newTestScheduler(t)

	ran := false
	After(s, 5*time.Millisecond, func() { ran = true })

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return ran }))
}
