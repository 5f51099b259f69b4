package crouton

import "sync"

// suspensionArena is a generational-handle arena for parked task state,
// grounding the Design Notes recommendation ("model as a relation with
// lookup by stable handle... rather than a raw pointer, so a stale
// Suspension after consumption can be detected") on the teacher's
// registry.go, substituting a generation counter for the weak-pointer
// ring buffer since here the arena owns the entries outright rather than
// tracking externally-owned promises.
type suspensionArena struct {
	mu       sync.Mutex
	slots    []suspensionSlot
	freeList []int32
}

type suspensionSlot struct {
	generation uint32
	handle     *taskHandle // nil when free or already consumed
}

func newSuspensionArena() *suspensionArena {
	return &suspensionArena{}
}

// alloc parks h and returns a Suspension referencing it.
func (a *suspensionArena) alloc(s *Scheduler, h *taskHandle) *Suspension {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx int32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx].handle = h
	} else {
		idx = int32(len(a.slots))
		a.slots = append(a.slots, suspensionSlot{generation: 1, handle: h})
	}

	return &Suspension{
		scheduler:  s,
		index:      idx,
		generation: a.slots[idx].generation,
	}
}

// consume marks the slot at (index, generation) consumed-once, returning
// the parked handle and true if this call is the one that wins the race
// (first wakeUp), or nil, false if the slot was already consumed or the
// generation is stale.
func (a *suspensionArena) consume(index int32, generation uint32) (*taskHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(index) >= len(a.slots) {
		return nil, false
	}
	slot := &a.slots[index]
	if slot.generation != generation || slot.handle == nil {
		return nil, false
	}
	h := slot.handle
	slot.handle = nil
	slot.generation++
	a.freeList = append(a.freeList, index)
	return h, true
}

// pending reports whether the given slot is still parked (diagnostic use).
func (a *suspensionArena) pending(index int32, generation uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(index) >= len(a.slots) {
		return false
	}
	slot := &a.slots[index]
	return slot.generation == generation && slot.handle != nil
}

// len returns the number of currently parked suspensions (diagnostic use).
func (a *suspensionArena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := range a.slots {
		if a.slots[i].handle != nil {
			n++
		}
	}
	return n
}
