package crouton

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Sentinel lifecycle errors, mirroring the teacher's split between
// sentinel errors for programming/lifecycle conditions and [Error] values
// for I/O conditions.
var (
	ErrSchedulerAlreadyRunning = errors.New("crouton: scheduler is already running")
	ErrSchedulerTerminated     = errors.New("crouton: scheduler has been terminated")
	ErrSchedulerNotRunning     = errors.New("crouton: scheduler is not running")
	ErrReentrantRun            = errors.New("crouton: cannot call Run from within the scheduler's own goroutine")
)

// defaultLogger is shared by Schedulers that don't supply one via
// [WithLogger]. It writes newline-delimited JSON to stderr via stumpy, the
// JSON backend for logiface.
var defaultLogger = stumpy.L.New(stumpy.WithStumpy())

// Scheduler owns a ready queue and drives a platform event loop (§4.1).
// Exactly one Scheduler is meant to run per goroutine; [Current] vends a
// goroutine-local instance, matching "a global registry maps thread
// identity -> scheduler; a task's scheduler is fixed at creation."
type Scheduler struct {
	arena *suspensionArena

	// ready is the internal ready queue: touched only from the scheduler's
	// own goroutine (Schedule, RunUntil).
	ready readyQueue

	// external holds cross-thread submissions (OnEventLoop) until the next
	// drain. Guarded by externalMu since any goroutine may append to it.
	externalMu sync.Mutex
	external   []func()

	timers timerHeap

	poller        ioPoller
	wakeFD        int
	wakeWriteFD   int
	wakePending   atomic.Bool
	loopGoroutine atomic.Uint64

	state *atomicState
	done  chan struct{}

	log *logiface.Logger[*stumpy.Event]
}

// Option configures a [Scheduler] at construction, the same functional
// options shape the teacher uses for its event loop.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	logger *logiface.Logger[*stumpy.Event]
}

// WithLogger overrides the Scheduler's structured logger.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return func(o *schedulerOptions) { o.logger = l }
}

func resolveOptions(opts []Option) schedulerOptions {
	o := schedulerOptions{logger: defaultLogger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New constructs a Scheduler. The returned Scheduler is not yet running;
// call [Scheduler.Run] (typically from a dedicated goroutine) to drive it.
func New(opts ...Option) (*Scheduler, error) {
	o := resolveOptions(opts)

	s := &Scheduler{
		arena: newSuspensionArena(),
		state: newAtomicState(),
		done:  make(chan struct{}),
		log:   o.logger,
	}

	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	s.poller = p

	wakeFD, wakeWriteFD, err := createWakeFD()
	if err != nil {
		_ = s.poller.Close()
		return nil, err
	}
	s.wakeFD, s.wakeWriteFD = wakeFD, wakeWriteFD

	if wakeFD >= 0 {
		if err := s.poller.RegisterFD(wakeFD, EventRead, func(IOEvents) {
			drainWakeFD(wakeFD)
			s.wakePending.Store(false)
		}); err != nil {
			_ = s.poller.Close()
			closeWakeFD(wakeFD, wakeWriteFD)
			return nil, err
		}
	}

	return s, nil
}

var (
	schedulerRegistryMu sync.Mutex
	schedulerRegistry   = map[uint64]*Scheduler{}
)

// Current returns the calling goroutine's Scheduler, creating one on first
// use (§4.1 "current()"). The Scheduler is keyed by goroutine identity, not
// started automatically: callers still need [Scheduler.Run].
func Current() *Scheduler {
	id := goroutineID()

	schedulerRegistryMu.Lock()
	defer schedulerRegistryMu.Unlock()

	if s, ok := schedulerRegistry[id]; ok {
		return s
	}
	s, err := New()
	if err != nil {
		// Construction only fails on OS resource exhaustion (poller/wake fd
		// creation); there is no recoverable contract for current() to
		// report that, so this mirrors the teacher's stance that a fresh
		// per-thread scheduler is always obtainable.
		panic(err)
	}
	schedulerRegistry[id] = s
	return s
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

func (s *Scheduler) isOwnGoroutine() bool {
	id := s.loopGoroutine.Load()
	return id != 0 && id == goroutineID()
}

// Schedule appends h to the tail of the ready queue. Safe only from the
// scheduler's own goroutine.
func (s *Scheduler) Schedule(h *taskHandle) error {
	if !s.isOwnGoroutine() {
		return newProgrammingError("Schedule called off the scheduler's own goroutine")
	}
	s.ready.push(h)
	return nil
}

// Suspend records h as parked and returns a one-shot [Suspension] used to
// resume it.
func (s *Scheduler) Suspend(h *taskHandle) *Suspension {
	return s.arena.alloc(s, h)
}

// enqueueHandle is WakeUp's entry point: direct push from the scheduler's
// own goroutine, or a cross-thread hand-off via OnEventLoop otherwise.
func (s *Scheduler) enqueueHandle(h *taskHandle) {
	if s.isOwnGoroutine() {
		s.ready.push(h)
		return
	}
	_ = s.OnEventLoop(func() { s.ready.push(h) })
}

// OnEventLoop posts fn for execution on the scheduler's own goroutine from
// any goroutine (§4.1, §5). This is the only thread-safe entry point into
// the scheduler besides [Blocker.Notify].
func (s *Scheduler) OnEventLoop(fn func()) error {
	if !s.state.canAcceptWork() {
		return ErrSchedulerTerminated
	}
	s.externalMu.Lock()
	s.external = append(s.external, fn)
	s.externalMu.Unlock()
	s.wake()
	return nil
}

func (s *Scheduler) wake() {
	if s.wakePending.CompareAndSwap(false, true) {
		signalWakeFD(s.wakeWriteFD)
	}
}

func (s *Scheduler) drainExternal() {
	s.externalMu.Lock()
	batch := s.external
	s.external = nil
	s.externalMu.Unlock()
	for _, fn := range batch {
		s.safeCall(fn)
	}
}

// safeCall runs fn with panic containment: an ordinary application panic
// is logged and swallowed (one task's bug must not bring down the whole
// loop), but a [programmingError] -- a violated precondition such as a
// double resolution or re-entrant read -- is re-raised, since §7 treats
// those as diagnostic failures to abort on, not conditions to log past.
func (s *Scheduler) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*programmingError); ok {
				panic(r)
			}
			s.log.Err().Log("scheduler task panicked")
		}
	}()
	fn()
}

// Run drives the scheduler until ctx is cancelled or [Scheduler.Shutdown]
// is called. It blocks; run it from a dedicated goroutine to use
// [Scheduler.OnEventLoop] from elsewhere.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.isOwnGoroutine() {
		return ErrReentrantRun
	}
	if !s.state.tryTransition(stateAwake, stateRunning) {
		if s.state.load() == stateTerminated {
			return ErrSchedulerTerminated
		}
		return ErrSchedulerAlreadyRunning
	}
	s.loopGoroutine.Store(goroutineID())
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.state.store(stateTerminated)
			return ctx.Err()
		default:
		}
		if s.state.load() == stateTerminating {
			s.state.store(stateTerminated)
			return nil
		}
		s.tick()
	}
}

// RunUntil drives the scheduler: drain the ready queue in FIFO order, poll
// the event loop for one round of I/O callbacks, and repeat until
// predicate() is true or ctx is done (§4.1). An empty ready queue and timer
// heap do not end the loop on their own: it keeps polling, since the wake
// FD stays registered and a parked task can still be woken from another
// goroutine via OnEventLoop.
func (s *Scheduler) RunUntil(ctx context.Context, predicate func() bool) error {
	if s.isOwnGoroutine() {
		return ErrReentrantRun
	}
	if !s.state.tryTransition(stateAwake, stateRunning) {
		if s.state.load() == stateTerminated {
			return ErrSchedulerTerminated
		}
		return ErrSchedulerAlreadyRunning
	}
	s.loopGoroutine.Store(goroutineID())
	defer func() {
		s.loopGoroutine.Store(0)
		s.state.tryTransition(stateRunning, stateAwake)
	}()

	for !predicate() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.tick()
		if s.ready.len() == 0 && len(s.timers) == 0 && !s.hasExternalWork() && predicate() {
			return nil
		}
	}
	return nil
}

func (s *Scheduler) hasExternalWork() bool {
	s.externalMu.Lock()
	defer s.externalMu.Unlock()
	return len(s.external) > 0
}

// tick runs one iteration: drain ready queue, queue due timer callbacks onto
// the ready queue, poll I/O.
func (s *Scheduler) tick() {
	s.drainExternal()

	// Drain the ready queue in FIFO order. A wake issued by a task running
	// in this loop is observed no earlier than the next iteration, since
	// only the n handles present at loop entry are popped; anything
	// appended while they run waits for the next tick -- matching "a wake
	// issued during task N's execution is observed no earlier than after N
	// suspends or completes" for same-iteration wakes.
	n := s.ready.len()
	for i := 0; i < n; i++ {
		h := s.ready.pop()
		if h == nil {
			break
		}
		s.safeCall(h.resume)
	}

	s.runDueTimers()
	s.poll()
}

func (s *Scheduler) poll() {
	timeout := s.pollTimeout()
	if _, err := s.poller.Poll(timeout); err != nil {
		s.log.Err().Log("poll error")
	}
}

// pollTimeout computes how long poll may block: zero if there is ready
// work, otherwise the delay until the next timer (capped), or a modest
// idle timeout so external submissions are still noticed promptly via the
// wake FD.
func (s *Scheduler) pollTimeout() int {
	if s.ready.len() > 0 {
		return 0
	}
	if len(s.timers) > 0 {
		d := time.Until(s.timers[0].when)
		if d <= 0 {
			return 0
		}
		ms := int(d / time.Millisecond)
		if ms > 1000 {
			ms = 1000
		}
		return ms
	}
	return 1000
}

func (s *Scheduler) runDueTimers() {
	now := time.Now()
	for len(s.timers) > 0 && !s.timers[0].when.After(now) {
		t := heap.Pop(&s.timers).(*timerEntry)
		s.ready.push(&taskHandle{resume: t.fn})
	}
}

// scheduleTimerEntry arms fn to run at `when`; only called while the
// scheduler is not dispatching concurrently (from a running task, which
// holds the baton, from a timer callback, or before the loop starts). The
// returned *timerEntry remains this exact timer's handle for the rest of
// its life, regardless of how many later heap.Push/heap.Pop calls reorder
// s.timers underneath it.
func (s *Scheduler) scheduleTimerEntry(when time.Time, fn func()) *timerEntry {
	e := &timerEntry{when: when, fn: fn}
	heap.Push(&s.timers, e)
	return e
}

// cancelTimerEntry removes e from the heap, using its self-maintained
// index rather than a linear scan by pointer identity -- e.index is kept
// current by timerHeap.Swap/Push/Pop across any intervening heap
// operation, and is -1 once e has already fired or been cancelled.
func (s *Scheduler) cancelTimerEntry(e *timerEntry) {
	if e.index < 0 || e.index >= len(s.timers) || s.timers[e.index] != e {
		return
	}
	heap.Remove(&s.timers, e.index)
	e.index = -1
}

// Shutdown requests graceful termination and waits for the run loop to
// exit or ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	for {
		cur := s.state.load()
		if cur == stateTerminated {
			return nil
		}
		if s.state.tryTransition(cur, stateTerminating) {
			break
		}
	}
	s.wake()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AssertEmpty is a diagnostic verifying no tasks remain parked or queued.
func (s *Scheduler) AssertEmpty() error {
	if n := s.ready.len(); n > 0 {
		return newProgrammingError("scheduler has pending ready tasks")
	}
	if n := s.arena.len(); n > 0 {
		return newProgrammingError("scheduler has parked suspensions")
	}
	return nil
}

// RegisterFD registers fd for I/O readiness callbacks (§4.9's adapter
// surface, backing Stream implementations built atop this scheduler).
func (s *Scheduler) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	return s.poller.RegisterFD(fd, events, cb)
}

// UnregisterFD removes fd from I/O readiness monitoring.
func (s *Scheduler) UnregisterFD(fd int) error {
	return s.poller.UnregisterFD(fd)
}

// ModifyFD updates the monitored event set for fd.
func (s *Scheduler) ModifyFD(fd int, events IOEvents) error {
	return s.poller.ModifyFD(fd, events)
}

// Close tears down the scheduler's OS resources immediately.
func (s *Scheduler) Close() error {
	closeWakeFD(s.wakeFD, s.wakeWriteFD)
	return s.poller.Close()
}
