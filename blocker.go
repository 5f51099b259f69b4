package crouton

import "sync"

// Blocker is a single-waiter, thread-safe rendezvous used to adapt
// callback-based platform APIs into awaitable form (§4.6), grounded on the
// teacher's goroutine-plus-hand-off pattern in promisify.go. The consumer
// awaits it on the scheduler's goroutine; the producer calls [Blocker.Notify]
// from any goroutine. A notification delivered before the next Await is
// buffered and returned immediately.
type Blocker[T any] struct {
	scheduler *Scheduler

	mu          sync.Mutex
	hasBuffered bool
	buffered    T
	waiter      *Suspension
	result      T
}

// NewBlocker constructs a Blocker bound to s.
func NewBlocker[T any](s *Scheduler) *Blocker[T] {
	return &Blocker[T]{scheduler: s}
}

// Await suspends the calling task (via tc) until the next [Blocker.Notify],
// or returns immediately if a notification is already buffered. At most
// one task may await a Blocker at a time.
func (b *Blocker[T]) Await(tc *TaskContext) T {
	b.mu.Lock()
	if b.hasBuffered {
		v := b.buffered
		var zero T
		b.buffered = zero
		b.hasBuffered = false
		b.mu.Unlock()
		return v
	}
	if b.waiter != nil {
		b.mu.Unlock()
		panic(newProgrammingError("Blocker already has a waiter"))
	}
	b.mu.Unlock()

	tc.suspend(func(susp *Suspension) {
		b.mu.Lock()
		b.waiter = susp
		b.mu.Unlock()
	})

	b.mu.Lock()
	v := b.result
	var zero T
	b.result = zero
	b.mu.Unlock()
	return v
}

// Notify delivers value, from any goroutine. If a task is currently
// awaiting, it is woken with value; otherwise value is buffered for the
// next Await. Settling state is marshalled onto the scheduler's own
// goroutine via [Scheduler.OnEventLoop] when called off it, the same
// single thread-safe entry point the rest of this package uses.
func (b *Blocker[T]) Notify(value T) {
	settle := func() {
		b.mu.Lock()
		if b.waiter != nil {
			w := b.waiter
			b.waiter = nil
			b.result = value
			b.mu.Unlock()
			w.WakeUp()
			return
		}
		if b.hasBuffered {
			b.mu.Unlock()
			panic(newProgrammingError("Blocker already has a buffered notification"))
		}
		b.buffered = value
		b.hasBuffered = true
		b.mu.Unlock()
	}
	if b.scheduler.isOwnGoroutine() {
		settle()
	} else {
		_ = b.scheduler.OnEventLoop(settle)
	}
}

// Reset prepares the Blocker for reuse, discarding any buffered
// notification or parked waiter reference.
func (b *Blocker[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	b.hasBuffered = false
	b.buffered = zero
	b.waiter = nil
}
