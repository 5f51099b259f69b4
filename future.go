package crouton

import "sync"

// futureState is the one-shot result slot shared by reference between a
// [Future] and its resolving [Promise] (§3, §4.3). It starts Empty and
// becomes immutable once it holds Ok(T) or Err(error).
type futureState[T any] struct {
	mu        sync.Mutex
	scheduler *Scheduler
	done      bool
	value     T
	err       error
	waiter    *Suspension
	hasWaiter bool
	then      func() // runs once, after done is set, on the scheduler goroutine
}

// Future is a handle to a one-shot result slot (§4.3). It can be awaited —
// immediately, if already resolved, or by suspending the calling task
// until the Promise side resolves it — and chained with [Then].
type Future[T any] struct {
	state *futureState[T]
}

// Promise is the resolving side of a Future, usable from any goroutine.
type Promise[T any] struct {
	state *futureState[T]
}

// NewFuture creates a linked Future/Promise pair bound to s. Resolution
// performed from any goroutine is marshalled onto s via
// [Scheduler.OnEventLoop] before waiters are woken, so waiters and Then
// continuations always observe resolution on the scheduler's own
// goroutine.
func NewFuture[T any](s *Scheduler) (*Future[T], *Promise[T]) {
	st := &futureState[T]{scheduler: s}
	return &Future[T]{state: st}, &Promise[T]{state: st}
}

// Resolved returns a Future already holding value, awaitable without
// suspension.
func Resolved[T any](s *Scheduler, value T) *Future[T] {
	return &Future[T]{state: &futureState[T]{scheduler: s, done: true, value: value}}
}

// Failed returns a Future already holding err.
func Failed[T any](s *Scheduler, err error) *Future[T] {
	return &Future[T]{state: &futureState[T]{scheduler: s, done: true, err: err}}
}

// HasResult reports whether the Future's state is no longer Empty.
func (f *Future[T]) HasResult() bool {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.done
}

// Peek returns the Future's value without suspending, and whether it has
// settled yet. Unlike Await, Peek may be called from any goroutine and
// never registers a waiter; it is meant for inspecting a Future's outcome
// after the scheduler has already stopped running it.
func (f *Future[T]) Peek() (T, error, bool) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.value, f.state.err, f.state.done
}

// Await returns the Future's value, suspending the calling task via tc if
// the result is not yet available. At most one task may await a given
// Future (§4.3's single-waiter contract, per the Open Question in §9); a
// second concurrent waiter is a programming error, not a silently
// discarded registration.
func (f *Future[T]) Await(tc *TaskContext) (T, error) {
	f.state.mu.Lock()
	if f.state.done {
		v, err := f.state.value, f.state.err
		f.state.mu.Unlock()
		return v, err
	}
	if f.state.hasWaiter {
		f.state.mu.Unlock()
		panic(newProgrammingError("Future already has an awaiter"))
	}
	f.state.hasWaiter = true
	f.state.mu.Unlock()

	tc.suspend(func(susp *Suspension) {
		f.state.mu.Lock()
		f.state.waiter = susp
		f.state.mu.Unlock()
	})

	f.state.mu.Lock()
	v, err := f.state.value, f.state.err
	f.state.mu.Unlock()
	return v, err
}

// resolve is shared by Resolve/Reject: set the terminal value, then wake
// any waiter and run any Then continuation, always from the scheduler's
// own goroutine.
func (st *futureState[T]) resolve(value T, err error) {
	settle := func() {
		st.mu.Lock()
		if st.done {
			st.mu.Unlock()
			panic(newProgrammingError("Future already resolved"))
		}
		st.value, st.err, st.done = value, err, true
		waiter := st.waiter
		then := st.then
		st.mu.Unlock()

		if waiter != nil {
			waiter.WakeUp()
		}
		if then != nil {
			then()
		}
	}
	if st.scheduler.isOwnGoroutine() {
		settle()
	} else {
		_ = st.scheduler.OnEventLoop(settle)
	}
}

// Resolve settles the Promise with a value. A second call is a
// programming error (diagnostic failure, not silent), per §4.3.
func (p *Promise[T]) Resolve(value T) { p.state.resolve(value, nil) }

// Reject settles the Promise with an error.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.state.resolve(zero, err)
}

// Then returns a new Future whose value is produced by running cont once
// f resolves, on the scheduler's own goroutine (§4.3).
func Then[T, R any](f *Future[T], cont func(T, error) (R, error)) *Future[R] {
	rf, rp := NewFuture[R](f.state.scheduler)

	run := func() {
		f.state.mu.Lock()
		v, err := f.state.value, f.state.err
		f.state.mu.Unlock()
		rv, rerr := cont(v, err)
		if rerr != nil {
			rp.Reject(rerr)
		} else {
			rp.Resolve(rv)
		}
	}

	f.state.mu.Lock()
	if f.state.done {
		f.state.mu.Unlock()
		if f.state.scheduler.isOwnGoroutine() {
			run()
		} else {
			_ = f.state.scheduler.OnEventLoop(run)
		}
		return rf
	}
	f.state.then = run
	f.state.mu.Unlock()
	return rf
}
