package crouton

import "time"

// timerEntry is one armed callback in a Scheduler's timer heap. index is
// maintained by timerHeap.Swap/Push/Pop exactly as the standard
// container/heap priority-queue example does, so a *timerEntry handed out
// by scheduleTimerEntry stays valid (and cheaply locatable) across any
// number of subsequent heap.Push/heap.Pop calls that reshuffle the slice:
// the heap stores pointers, so those reshuffles move pointer values
// around, never the entry each pointer refers to.
type timerEntry struct {
	when  time.Time
	fn    func()
	index int
}

// timerHeap is a min-heap of *timerEntry ordered by expiry, the same
// container/heap-based design as the teacher's timerHeap.
type timerHeap []*timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Timer arms a one-shot or periodic callback on a [Scheduler] (§4.7).
// Expiry callbacks are posted to the scheduler's ready queue rather than
// invoked inside the platform timer context, so they observe the same
// serial-execution guarantee as any other task.
type Timer struct {
	scheduler *Scheduler
	entry     *timerEntry
	period    time.Duration
	cancelled bool
}

// NewTimer arms fn to run once after delay, on s.
func NewTimer(s *Scheduler, delay time.Duration, fn func()) *Timer {
	t := &Timer{scheduler: s}
	t.entry = s.scheduleTimerEntry(time.Now().Add(delay), t.fire(fn))
	return t
}

// NewPeriodicTimer arms fn to run every period, starting after the first
// period elapses, until [Timer.Cancel] is called.
func NewPeriodicTimer(s *Scheduler, period time.Duration, fn func()) *Timer {
	t := &Timer{scheduler: s, period: period}
	var arm func()
	arm = func() {
		if t.cancelled {
			return
		}
		fn()
		t.entry = s.scheduleTimerEntry(time.Now().Add(period), arm)
	}
	t.entry = s.scheduleTimerEntry(time.Now().Add(period), arm)
	return t
}

func (t *Timer) fire(fn func()) func() {
	return func() {
		if t.cancelled {
			return
		}
		fn()
	}
}

// Cancel invalidates pending callbacks. A timer created via
// [After] (self-deleting) cannot be cancelled, matching "a
// self-deleting timer may not be cancelled".
func (t *Timer) Cancel() {
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.entry != nil {
		t.scheduler.cancelTimerEntry(t.entry)
	}
}

// Sleep returns a Future<struct{}> resolved after delay elapses on s.
func Sleep(s *Scheduler, delay time.Duration) *Future[struct{}] {
	f, p := NewFuture[struct{}](s)
	NewTimer(s, delay, func() {
		p.Resolve(struct{}{})
	})
	return f
}

// After arms a self-deleting fire-and-forget timer: fn runs once after
// delay and the Timer is not returned for cancellation.
func After(s *Scheduler, delay time.Duration, fn func()) {
	NewTimer(s, delay, fn)
}
