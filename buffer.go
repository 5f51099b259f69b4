package crouton

import (
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// DefaultBufferCapacity is the typical slab size named in §3 ("≈32 KiB
// typical").
const DefaultBufferCapacity = 32 * 1024

// Buffer is a fixed-capacity byte slab with size bytes of valid data and
// used bytes already consumed (§3). Invariant: 0 <= used <= size <=
// cap(data).
type Buffer struct {
	data []byte
	size int
	used int
}

func newBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Unread returns the slice of still-unconsumed valid data.
func (b *Buffer) Unread() []byte {
	return b.data[b.used:b.size]
}

// Exhausted reports whether every valid byte has been consumed.
func (b *Buffer) Exhausted() bool {
	return b.used >= b.size
}

func (b *Buffer) reset() {
	b.size, b.used = 0, 0
}

// bufferPool is a per-stream pool of fixed-capacity buffers (§4.10). A
// buffer is at all times exactly one of: the current input buffer, queued
// pending delivery, or in the spare list; buffers are never released
// before stream close, only recycled.
//
// Growth is metered by a github.com/joeycumines/go-catrate limiter (a soft
// budget of 64 new buffers per second): an allocation over that budget is
// still made (correctness always wins over the soft limit) and is logged
// at debug level, which signals that the stream is allocating faster than
// its configured budget. The limiter does not cap or delay growth.
type bufferPool struct {
	mu       sync.Mutex
	spare    []*Buffer
	capacity int
	limiter  *catrate.Limiter
	log      *logiface.Logger[*stumpy.Event]
	peak     int
}

func newBufferPool(capacity int, log *logiface.Logger[*stumpy.Event]) *bufferPool {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &bufferPool{
		capacity: capacity,
		limiter:  catrate.NewLimiter(map[time.Duration]int{time.Second: 64}),
		log:      log,
	}
}

// acquire returns a spare buffer, allocating a new one if none are spare.
func (p *bufferPool) acquire() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.spare); n > 0 {
		b := p.spare[n-1]
		p.spare = p.spare[:n-1]
		b.reset()
		return b
	}

	if _, ok := p.limiter.Allow("grow"); !ok && p.log != nil {
		p.log.Debug().Log("buffer pool growing faster than its soft budget")
	}

	b := newBuffer(p.capacity)
	p.peak++
	return b
}

// release returns b to the spare list for reuse.
func (p *bufferPool) release(b *Buffer) {
	b.reset()
	p.mu.Lock()
	p.spare = append(p.spare, b)
	p.mu.Unlock()
}
