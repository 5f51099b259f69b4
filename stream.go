package crouton

import (
	"bytes"
	"sync/atomic"
)

// Stream is the uniform read/peek/write/close contract every byte-stream
// transport implements (§4.8): TCP, TLS, file, HTTP all reduce to this
// surface. Concrete transports (libuv sockets, Network.framework, LwIP,
// mbedTLS) are external collaborators per §4.9 and are not implemented
// here; this file provides the contract, its derived operations, and the
// buffer-pool plumbing every concrete implementation shares.
type Stream interface {
	Open(tc *TaskContext) error
	IsOpen() bool
	Close(tc *TaskContext) error
	CloseWrite(tc *TaskContext) error

	// ReadNoCopy returns a non-owning slice into the stream's internal
	// buffer of at least one byte, or empty at EOF. Valid only until the
	// next read or close.
	ReadNoCopy(tc *TaskContext, maxLen int) ([]byte, error)
	// PeekNoCopy behaves like ReadNoCopy but does not advance the read
	// cursor.
	PeekNoCopy(tc *TaskContext) ([]byte, error)
	// Write writes all of p; p must remain valid until completion.
	Write(tc *TaskContext, p []byte) error
}

// notReentrant is a scoped guard asserting at most one outstanding read
// and at most one outstanding write on a stream at a time (§4.8's
// re-entrancy rule, §5's "scoped acquisition"), grounded on the original's
// ISocket.hh RAII guard armed on entry and disarmed on return.
type notReentrant struct {
	busy atomic.Bool
}

// acquire arms the guard, panicking with a programming error if already
// armed -- a second readNoCopy (or write) issued while the first is still
// pending is a contract violation, detected rather than left as undefined
// behavior.
func (g *notReentrant) acquire(what string) {
	if !g.busy.CompareAndSwap(false, true) {
		panic(newProgrammingError(what + " called while a previous call is still outstanding"))
	}
}

func (g *notReentrant) release() {
	g.busy.Store(false)
}

// baseStream holds the buffer-pool state shared by every concrete Stream
// implementation: the current input buffer, the spare pool it is drawn
// from, and the independent read/write re-entrancy guards (§4.8, §5).
// Concrete transports embed baseStream and supply the platform-specific
// fill/drain (how bytes actually arrive from or depart to the wire); the
// package-level derived operations (ReadExactly, ReadUntil, ReadAll,
// Generate) work against any such transport through the Stream interface.
type baseStream struct {
	pool *bufferPool
	cur  *Buffer

	readGuard  notReentrant
	writeGuard notReentrant

	closed      bool
	writeClosed bool
}

func newBaseStream(pool *bufferPool) baseStream {
	return baseStream{pool: pool}
}

// fillFunc fetches the next chunk of incoming data into a freshly acquired
// buffer and reports whether EOF was reached; a concrete transport's
// ReadNoCopy supplies one bound to its own platform read.
type fillFunc func(tc *TaskContext, b *Buffer) (eof bool, err error)

// readNoCopy is the shared implementation backing a concrete Stream's
// ReadNoCopy: it hands out a sub-slice of the current buffer, refilling
// from fill when the current buffer is exhausted or absent.
func (s *baseStream) readNoCopy(tc *TaskContext, maxLen int, fill fillFunc) ([]byte, error) {
	s.readGuard.acquire("readNoCopy")
	defer s.readGuard.release()

	if s.closed {
		return nil, NewError(DomainRuntime, CodeDisconnected, "stream is closed")
	}

	if s.cur == nil || s.cur.Exhausted() {
		if s.cur != nil {
			s.pool.release(s.cur)
			s.cur = nil
		}
		b := s.pool.acquire()
		eof, err := fill(tc, b)
		if err != nil {
			s.pool.release(b)
			return nil, err
		}
		if eof {
			s.pool.release(b)
			return nil, nil
		}
		s.cur = b
	}

	unread := s.cur.Unread()
	if maxLen > 0 && maxLen < len(unread) {
		unread = unread[:maxLen]
	}
	s.cur.used += len(unread)
	return unread, nil
}

// peekNoCopy returns the unread portion of the current buffer without
// advancing the cursor, refilling via fill if nothing is buffered.
func (s *baseStream) peekNoCopy(tc *TaskContext, fill fillFunc) ([]byte, error) {
	s.readGuard.acquire("peekNoCopy")
	defer s.readGuard.release()

	if s.closed {
		return nil, NewError(DomainRuntime, CodeDisconnected, "stream is closed")
	}

	if s.cur == nil || s.cur.Exhausted() {
		if s.cur != nil {
			s.pool.release(s.cur)
			s.cur = nil
		}
		b := s.pool.acquire()
		eof, err := fill(tc, b)
		if err != nil {
			s.pool.release(b)
			return nil, err
		}
		if eof {
			s.pool.release(b)
			return nil, nil
		}
		s.cur = b
	}

	return s.cur.Unread(), nil
}

func (s *baseStream) releaseCurrent() {
	if s.cur != nil {
		s.pool.release(s.cur)
		s.cur = nil
	}
}

// Read copies up to len(into) bytes from the stream, returning the number
// of bytes copied. 0 bytes with a nil error signals EOF.
func Read(tc *TaskContext, s Stream, into []byte) (int, error) {
	p, err := s.ReadNoCopy(tc, len(into))
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return copy(into, p), nil
}

// ReadString reads exactly n bytes and returns them as a string,
// identical in contract to ReadExactly.
func ReadString(tc *TaskContext, s Stream, n int) (string, error) {
	buf := make([]byte, n)
	if err := ReadExactly(tc, s, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadExactly fills into completely, looping ReadNoCopy until satisfied.
// EOF before into is full is a contract error (EndOfData), grounded on the
// original's readExactly semantics (§4.8 Supplemented Features).
func ReadExactly(tc *TaskContext, s Stream, into []byte) error {
	got := 0
	for got < len(into) {
		p, err := s.ReadNoCopy(tc, len(into)-got)
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return EndOfData("stream ended before readExactly was satisfied")
		}
		got += copy(into[got:], p)
	}
	return nil
}

// ReadUntil accumulates data until delim appears, returning everything up
// to and including delim. If maxLen bytes accumulate without finding
// delim, it fails with CodeBufferFull, grounded on the original's
// readUntil's RangeError-equivalent bound (§4.8 Supplemented Features).
func ReadUntil(tc *TaskContext, s Stream, delim []byte, maxLen int) ([]byte, error) {
	var acc []byte
	for {
		if i := bytes.Index(acc, delim); i >= 0 {
			end := i + len(delim)
			return acc[:end], nil
		}
		if len(acc) >= maxLen {
			return nil, NewError(DomainRuntime, CodeBufferFull, "readUntil exceeded maxLen before delim appeared")
		}
		p, err := s.ReadNoCopy(tc, maxLen-len(acc))
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			return nil, EndOfData("stream ended before readUntil's delimiter appeared")
		}
		acc = append(acc, p...)
	}
}

// ReadAll reads to EOF and returns the concatenation of everything read.
func ReadAll(tc *TaskContext, s Stream) ([]byte, error) {
	var acc []byte
	for {
		p, err := s.ReadNoCopy(tc, 0)
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			return acc, nil
		}
		acc = append(acc, p...)
	}
}

// Generate returns a Generator that calls ReadNoCopy until EOF, making any
// Stream consumable by pipeline-style abstractions (§4.8's "generate()").
// Each value is a defensive copy, since the underlying slice is only valid
// until the next read.
func Generate(sched *Scheduler, s Stream) *Generator[[]byte] {
	return NewGenerator[[]byte](sched, func(tc *TaskContext, yield func(*TaskContext, []byte)) error {
		for {
			p, err := s.ReadNoCopy(tc, 0)
			if err != nil {
				return err
			}
			if len(p) == 0 {
				return nil
			}
			cp := make([]byte, len(p))
			copy(cp, p)
			yield(tc, cp)
		}
	})
}
