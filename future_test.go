package crouton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFutureResolvedAwaitsImmediately(t *testing.T) {
	s := newTestScheduler(t)

	f := Resolved(s, 42)
	require.True(t, f.HasResult())

	var got int
	done := false
	NewTask(s, func(tc *TaskContext) error {
		v, err := f.Await(tc)
		require.NoError(t, err)
		got = v
		done = true
		return nil
	})

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Equal(t, 42, got)
}

func TestFutureSuspendsUntilResolved(t *testing.T) {
	s := newTestScheduler(t)

	f, p := NewFuture[string](s)
	var got string
	done := false
	NewTask(s, func(tc *TaskContext) error {
		v, err := f.Await(tc)
		require.NoError(t, err)
		got = v
		done = true
		return nil
	})

	NewTask(s, func(tc *TaskContext) error {
		p.Resolve("hello")
		return nil
	})

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Equal(t, "hello", got)
}

func TestFutureRejectDeliversError(t *testing.T) {
	s := newTestScheduler(t)

	f, p := NewFuture[int](s)
	var gotErr error
	done := false
	NewTask(s, func(tc *TaskContext) error {
		_, err := f.Await(tc)
		gotErr = err
		done = true
		return nil
	})
	p.Reject(Disconnected("peer went away"))

	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Error(t, gotErr)
}

func TestFutureDoubleAwaitPanics(t *testing.T) {
	s := newTestScheduler(t)
	f, _ := NewFuture[int](s)

	panicked := false
	NewTask(s, func(tc *TaskContext) error {
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		// Simulate an existing waiter, then attempt a second Await: the
		// single-waiter contract (§9) must panic rather than silently
		// discard the new registration.
		f.state.mu.Lock()
		f.state.hasWaiter = true
		f.state.mu.Unlock()
		f.Await(tc)
		return nil
	})

	_ = s.RunUntil(context.Background(), func() bool { return panicked })
	require.True(t, panicked)
}

func TestFutureDoubleResolvePanics(t *testing.T) {
	s := newTestScheduler(t)
	_, p := NewFuture[int](s)

	// Marshal both resolutions onto the scheduler's own goroutine, where
	// they settle synchronously: the double-resolve precondition
	// violation (§4.3) then panics directly out of the run loop, which
	// is how a programming error is meant to surface (§7: "abort or
	// raise", not silently logged).
	go func() {
		_ = s.OnEventLoop(func() {
			p.Resolve(1)
			p.Resolve(2)
		})
	}()

	require.Panics(t, func() {
		_ = s.RunUntil(context.Background(), func() bool { return false })
	})
}

func TestThenChainsContinuation(t *testing.T) {
	s := newTestScheduler(t)

	f, p := NewFuture[int](s)
	chained := Then(f, func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return "value-is-many", nil
	})

	var got string
	done := false
	NewTask(s, func(tc *TaskContext) error {
		v, err := chained.Await(tc)
		require.NoError(t, err)
		got = v
		done = true
		return nil
	})

	p.Resolve(7)
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Equal(t, "value-is-many", got)
}

func TestThenPropagatesContinuationError(t *testing.T) {
	s := newTestScheduler(t)

	f, p := NewFuture[int](s)
	chained := Then(f, func(v int, err error) (int, error) {
		return 0, Cancelled("downstream cancelled")
	})

	var gotErr error
	done := false
	NewTask(s, func(tc *TaskContext) error {
		_, err := chained.Await(tc)
		gotErr = err
		done = true
		return nil
	})

	p.Resolve(1)
	require.NoError(t, s.RunUntil(context.Background(), func() bool { return done }))
	require.Error(t, gotErr)
}
