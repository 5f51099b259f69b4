package crouton

import "sync"

// waiterNode is one entry in a CoCondition's FIFO waiter list: an owned
// node rather than an intrusive list header, the allowance SPEC_FULL's
// design notes grant explicitly ("a functionally equivalent owned-node
// list is acceptable if allocation cost is not a concern") in place of the
// original's intrusive [[include/util/LinkedList.hh]]-based queue.
type waiterNode struct {
	susp *Suspension
	next *waiterNode
}

// CoCondition is a cooperative, same-thread FIFO condition variable
// (§4.6). Waiters are woken in the order they subscribed; NotifyOne wakes
// the head, NotifyAll wakes every waiter in subscription order.
type CoCondition struct {
	mu   sync.Mutex
	head *waiterNode
	tail *waiterNode
}

// NewCoCondition constructs an empty CoCondition.
func NewCoCondition() *CoCondition {
	return &CoCondition{}
}

// Wait suspends the calling task via tc until NotifyOne or NotifyAll wakes
// it, queued behind any earlier waiters.
func (c *CoCondition) Wait(tc *TaskContext) {
	tc.suspend(func(susp *Suspension) {
		n := &waiterNode{susp: susp}
		c.mu.Lock()
		if c.tail == nil {
			c.head, c.tail = n, n
		} else {
			c.tail.next = n
			c.tail = n
		}
		c.mu.Unlock()
	})
}

// NotifyOne wakes the longest-waiting subscriber, if any. A no-op on an
// empty waiter list.
func (c *CoCondition) NotifyOne() {
	c.mu.Lock()
	n := c.head
	if n != nil {
		c.head = n.next
		if c.head == nil {
			c.tail = nil
		}
	}
	c.mu.Unlock()
	if n != nil {
		n.susp.WakeUp()
	}
}

// NotifyAll wakes every subscriber, in the order they subscribed.
func (c *CoCondition) NotifyAll() {
	c.mu.Lock()
	n := c.head
	c.head, c.tail = nil, nil
	c.mu.Unlock()
	for n != nil {
		n.susp.WakeUp()
		n = n.next
	}
}
