package crouton

import "sync"

// genResult is one demand-driven step of a Generator's internal protocol:
// either a produced value, end-of-sequence, or a terminal error.
type genResult[T any] struct {
	value T
	ok    bool
	err   error
}

// Generator is a handle to a suspendable function that alternately yields
// values of T and suspends (§4.5). It is strictly demand-driven: the body
// makes no progress except in response to [Generator.Next], and is not
// restartable — each instance is consumed once.
type Generator[T any] struct {
	scheduler *Scheduler

	mu             sync.Mutex
	demand         *Suspension       // producer waiting for the next Next() call
	resultPromise  *Promise[genResult[T]] // armed by Next(), fulfilled by the producer
	finished       bool
	started        bool
}

// NewGenerator spawns a Generator whose body is fn. fn receives a
// TaskContext for its own internal suspensions (e.g. a Timer between
// yields, per §4.5) and a yield function that publishes one value and
// blocks until the next unit of consumer demand. fn's return value becomes
// the terminal error observed by the final Next() call.
func NewGenerator[T any](s *Scheduler, fn func(tc *TaskContext, yield func(tc *TaskContext, value T)) error) *Generator[T] {
	g := &Generator[T]{scheduler: s}

	yield := func(tc *TaskContext, value T) {
		g.mu.Lock()
		rp := g.resultPromise
		g.resultPromise = nil
		g.mu.Unlock()
		if rp != nil {
			rp.Resolve(genResult[T]{value: value, ok: true})
		}
		// Demand-driven: wait here until the next Next() call wakes us.
		tc.suspend(func(susp *Suspension) {
			g.mu.Lock()
			g.demand = susp
			g.mu.Unlock()
		})
	}

	spawnSuspendable(s, func(tc *TaskContext) {
		// Nothing runs until the first Next(); park immediately. If a Next()
		// already armed resultPromise before this goroutine first ran, it
		// found no demand to wake, so wake this suspension right away.
		tc.suspend(func(susp *Suspension) {
			g.mu.Lock()
			armed := g.resultPromise != nil
			if !armed {
				g.demand = susp
			}
			g.mu.Unlock()
			if armed {
				susp.WakeUp()
			}
		})

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = newProgrammingError("generator panicked")
				}
			}()
			err = fn(tc, yield)
		}()

		g.mu.Lock()
		g.finished = true
		rp := g.resultPromise
		g.resultPromise = nil
		g.mu.Unlock()
		if rp != nil {
			rp.Resolve(genResult[T]{err: err})
		}

		tc.stepDone <- struct{}{}
	})

	return g
}

// Next advances the generator and awaits its next value, suspending the
// calling task (via consumerTC) if the producer has not yet produced it.
// Returns (value, true, nil) for a yielded value, (zero, false, nil) at
// normal completion, or (zero, false, err) if the generator's body
// returned an error.
func (g *Generator[T]) Next(consumerTC *TaskContext) (T, bool, error) {
	var zero T

	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return zero, false, nil
	}
	rf, rp := NewFuture[genResult[T]](g.scheduler)
	g.resultPromise = rp
	demand := g.demand
	g.demand = nil
	g.mu.Unlock()

	if demand != nil {
		demand.WakeUp()
	}

	res, err := rf.Await(consumerTC)
	if err != nil {
		return zero, false, err
	}
	if res.err != nil {
		return zero, false, res.err
	}
	if !res.ok {
		return zero, false, nil
	}
	return res.value, true, nil
}
