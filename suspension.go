package crouton

// taskHandle is the scheduler's internal representation of a runnable unit:
// a resume function bound to whatever suspended it.
type taskHandle struct {
	resume func()
}

// Suspension is the scheduler's promise to resume exactly one parked task
// once (§3, §4.2). It is obtained from [Scheduler.Suspend] and consumed by
// calling [Suspension.WakeUp], from any goroutine, exactly once.
//
// After the parked task has been resumed, the Suspension is invalidated:
// further calls to WakeUp are no-ops, matching "double-wake is a no-op, not
// an error".
type Suspension struct {
	scheduler  *Scheduler
	index      int32
	generation uint32
}

// WakeUp resumes the parked task exactly once, regardless of how many times
// it is called or from which goroutine. If called from the scheduler's own
// goroutine the handle is appended directly to the ready queue; otherwise
// it is marshalled across via [Scheduler.OnEventLoop], the only thread-safe
// entry point into the scheduler.
func (s *Suspension) WakeUp() {
	h, ok := s.scheduler.arena.consume(s.index, s.generation)
	if !ok {
		return // already woken/consumed, or stale: no-op per contract
	}
	s.scheduler.enqueueHandle(h)
}

// pending reports whether this Suspension's slot is still parked.
func (s *Suspension) pending() bool {
	return s.scheduler.arena.pending(s.index, s.generation)
}
