package crouton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoConditionNotifyOneWakesHead(t *testing.T) {
	s := newTestScheduler(t)
	cond := NewCoCondition()

	var order []int
	started := 0
	finished := 0
	for i := 0; i < 3; i++ {
		i := i
		NewTask(s, func(tc *TaskContext) error {
			started++
			cond.Wait(tc)
			order = append(order, i)
			finished++
			return nil
		})
	}

	// Drain the ready queue until all three tasks have reached Wait and
	// parked; none can finish without a notify.
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return started == 3 }))

	cond.NotifyOne()
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return finished == 1 }))
	require.Equal(t, []int{0}, order)

	cond.NotifyOne()
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return finished == 2 }))
	require.Equal(t, []int{0, 1}, order)

	cond.NotifyOne()
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return finished == 3 }))
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestCoConditionNotifyAllWakesInOrder(t *testing.T) {
	s := newTestScheduler(t)
	cond := NewCoCondition()

	var order []int
	started := 0
	finished := 0
	for i := 0; i < 4; i++ {
		i := i
		NewTask(s, func(tc *TaskContext) error {
			started++
			cond.Wait(tc)
			order = append(order, i)
			finished++
			return nil
		})
	}

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return started == 4 }))

	cond.NotifyAll()
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return finished == 4 }))
	require.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestCoConditionNotifyOnEmptyIsNoop(t *testing.T) {
	cond := NewCoCondition()
	require.NotPanics(t, func() {
		cond.NotifyOne()
		cond.NotifyAll()
	})
}
