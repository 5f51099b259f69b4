package crouton

import "sync/atomic"

// schedulerState is the Scheduler's lifecycle state, a lock-free CAS state
// machine modeled on the teacher's FastState.
type schedulerState uint32

const (
	stateAwake schedulerState = iota
	stateRunning
	stateSleeping
	stateTerminating
	stateTerminated
)

func (s schedulerState) String() string {
	switch s {
	case stateAwake:
		return "awake"
	case stateRunning:
		return "running"
	case stateSleeping:
		return "sleeping"
	case stateTerminating:
		return "terminating"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type atomicState struct {
	v atomic.Uint32
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(stateAwake))
	return s
}

func (s *atomicState) load() schedulerState { return schedulerState(s.v.Load()) }

func (s *atomicState) store(state schedulerState) { s.v.Store(uint32(state)) }

func (s *atomicState) tryTransition(from, to schedulerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *atomicState) canAcceptWork() bool {
	switch s.load() {
	case stateAwake, stateRunning, stateSleeping:
		return true
	default:
		return false
	}
}
