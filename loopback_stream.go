package crouton

import "sync"

// LoopbackStream is an in-process, buffer-pool-backed Stream connecting a
// writer on one end to a reader on the other, used to exercise the Stream
// contract (round-trip and half-close scenarios, §8 seed scenarios 1 and
// 6) without a platform transport. Two LoopbackStreams sharing a pipe form
// a connected pair: NewLoopbackPair returns both ends.
type LoopbackStream struct {
	baseStream

	mu     sync.Mutex
	peer   *LoopbackStream
	pend   [][]byte // bytes written by the peer, not yet delivered
	waiter *CoCondition
}

// NewLoopbackPair returns two connected LoopbackStreams: writes on one are
// visible to reads on the other.
func NewLoopbackPair(sched *Scheduler, pool *bufferPool) (a, b *LoopbackStream) {
	if pool == nil {
		pool = newBufferPool(0, nil)
	}
	a = &LoopbackStream{baseStream: newBaseStream(pool), waiter: NewCoCondition()}
	b = &LoopbackStream{baseStream: newBaseStream(pool), waiter: NewCoCondition()}
	a.peer, b.peer = b, a
	return a, b
}

func (s *LoopbackStream) Open(tc *TaskContext) error {
	return nil
}

func (s *LoopbackStream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *LoopbackStream) Close(tc *TaskContext) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.releaseCurrent()
	s.waiter.NotifyAll()
	if peer := s.peer; peer != nil {
		peer.mu.Lock()
		peer.writeClosed = true
		peer.mu.Unlock()
		peer.waiter.NotifyAll()
	}
	return nil
}

func (s *LoopbackStream) CloseWrite(tc *TaskContext) error {
	if peer := s.peer; peer != nil {
		peer.mu.Lock()
		peer.writeClosed = true
		peer.mu.Unlock()
		peer.waiter.NotifyAll()
	}
	return nil
}

func (s *LoopbackStream) Write(tc *TaskContext, p []byte) error {
	s.writeGuard.acquire("write")
	defer s.writeGuard.release()

	peer := s.peer
	if peer == nil {
		return Disconnected("loopback stream has no peer")
	}

	cp := make([]byte, len(p))
	copy(cp, p)

	peer.mu.Lock()
	if peer.closed {
		peer.mu.Unlock()
		return Disconnected("loopback peer is closed")
	}
	peer.pend = append(peer.pend, cp)
	peer.mu.Unlock()
	peer.waiter.NotifyAll()
	return nil
}

// fill drains the next pending chunk into b, suspending (via the
// stream's CoCondition) until data, writeClosed, or closed is observed.
func (s *LoopbackStream) fill(tc *TaskContext, b *Buffer) (eof bool, err error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false, Disconnected("stream is closed")
		}
		if len(s.pend) > 0 {
			chunk := s.pend[0]
			n := copy(b.data, chunk)
			if n < len(chunk) {
				// chunk outgrew this buffer: keep the unconsumed
				// remainder at the front of pend instead of
				// dropping it, so the next fill picks up where
				// this one left off.
				s.pend[0] = chunk[n:]
			} else {
				s.pend = s.pend[1:]
			}
			s.mu.Unlock()
			b.size = n
			b.used = 0
			return false, nil
		}
		if s.writeClosed {
			s.mu.Unlock()
			return true, nil
		}
		s.mu.Unlock()
		s.waiter.Wait(tc)
	}
}

func (s *LoopbackStream) ReadNoCopy(tc *TaskContext, maxLen int) ([]byte, error) {
	return s.readNoCopy(tc, maxLen, s.fill)
}

func (s *LoopbackStream) PeekNoCopy(tc *TaskContext) ([]byte, error) {
	return s.peekNoCopy(tc, s.fill)
}
