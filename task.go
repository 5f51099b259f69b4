package crouton

// TaskContext is passed explicitly to every suspendable function, the way
// context.Context is threaded through blocking calls elsewhere in Go: it
// carries the goroutine's private handshake channels with the scheduler,
// used by [Future.Await], [Generator.Next], [CoCondition.Wait], and
// [Blocker.Await] to suspend and resume in lock-step with the scheduler's
// ready queue.
//
// A suspendable function's goroutine never runs concurrently with the
// scheduler's own dispatch loop: [Scheduler.tick] grants it the right to
// run by sending on resumeSignal and then blocks on stepDone until the
// function either suspends again or completes, which is what gives tasks
// the "between suspensions, execution is serial" guarantee (§5) despite
// being implemented as ordinary goroutines rather than a CPS transform.
type TaskContext struct {
	scheduler    *Scheduler
	resumeSignal chan struct{}
	stepDone     chan struct{}

	// fatal carries a *programmingError recovered inside the task's own
	// goroutine out to the scheduler goroutine parked in resume(), so it
	// can be re-raised there -- the same goroutine every other marshalled
	// precondition-violation panic (Future/Blocker settle via
	// Scheduler.OnEventLoop) already surfaces through. Only ever set
	// immediately before a stepDone send, and only ever read immediately
	// after the matching stepDone receive, so it needs no lock of its own.
	fatal any
}

// Scheduler returns the scheduler driving this task.
func (tc *TaskContext) Scheduler() *Scheduler { return tc.scheduler }

// newResumeHandle builds the taskHandle used to grant tc's goroutine the
// baton: resume hands off to the goroutine and blocks until it reports the
// step done, then re-raises any *programmingError the goroutine recovered
// from during that step, so a contract violation still aborts the
// scheduler's own dispatch rather than being silently absorbed by the task
// goroutine that happened to detect it.
func (tc *TaskContext) newResumeHandle() *taskHandle {
	return &taskHandle{resume: func() {
		tc.resumeSignal <- struct{}{}
		<-tc.stepDone
		if tc.fatal != nil {
			f := tc.fatal
			tc.fatal = nil
			panic(f)
		}
	}}
}

// suspend parks the calling goroutine: it registers a resume handle for tc
// with the scheduler, passes the resulting Suspension to register, reports
// this step as done, then blocks until re-granted the baton by a future
// WakeUp. Callers (Future.Await, CoCondition.Wait, Blocker.Await,
// Generator.Next) use register to store the Suspension where their wake-up
// path will find it.
func (tc *TaskContext) suspend(register func(*Suspension)) {
	susp := tc.scheduler.Suspend(tc.newResumeHandle())
	if register != nil {
		register(susp)
	}
	tc.stepDone <- struct{}{}
	<-tc.resumeSignal
}

// spawnSuspendable starts a goroutine parked at its first resumeSignal and
// schedules it onto s's ready queue, returning its TaskContext. body runs
// once the goroutine is first granted the baton; it must itself send on
// stepDone exactly once per suspend/resume cycle (normally by calling
// tc.suspend) and exactly once more on return, which callers arrange via
// their own wrapping of body.
func spawnSuspendable(s *Scheduler, body func(tc *TaskContext)) *TaskContext {
	tc := &TaskContext{
		scheduler:    s,
		resumeSignal: make(chan struct{}),
		stepDone:     make(chan struct{}),
	}

	go func() {
		<-tc.resumeSignal
		body(tc)
	}()

	s.enqueueHandle(tc.newResumeHandle())

	return tc
}

// Task is a detached, fire-and-forget suspendable computation (§4.4).
// Creating a Task schedules it eagerly; an error escaping the function is
// logged, since no propagation path to a caller exists.
type Task struct {
	tc *TaskContext
}

// NewTask spawns and eagerly schedules a detached Task running fn on s.
func NewTask(s *Scheduler, fn func(tc *TaskContext) error) *Task {
	tc := spawnSuspendable(s, func(tc *TaskContext) {
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					// A *programmingError is a detected contract
					// violation (double-await, double-notify, a
					// re-entrant stream call), not an ordinary task
					// bug: it must abort the same way its
					// OnEventLoop-marshalled counterparts do, rather
					// than being logged past like this is. Defer the
					// re-panic to resume(), which runs on the
					// scheduler's own goroutine, so it reaches
					// safeCall's re-raise path instead of crashing
					// this goroutine outright.
					if _, ok := r.(*programmingError); ok {
						tc.fatal = r
						return
					}
					s.log.Err().Log("task panicked")
				}
			}()
			err = fn(tc)
		}()
		if err != nil {
			s.log.Err().Log(err.Error())
		}
		tc.stepDone <- struct{}{}
	})
	return &Task{tc: tc}
}
