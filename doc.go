// Package crouton is a single-threaded, cooperative asynchronous I/O
// runtime. Application code is written as suspendable functions ("tasks")
// that yield control at I/O boundaries; a per-goroutine [Scheduler]
// multiplexes them over a platform event loop (epoll on Linux, kqueue on
// Darwin).
//
// The core abstractions are: [Suspension], the one-shot handle used to
// resume a parked task; [Future] and [Promise], a one-shot result slot with
// chaining; [Task], a detached fire-and-forget computation; [Generator], a
// lazy demand-driven sequence; [CoCondition] and [Blocker], synchronization
// primitives for same-thread and cross-thread coordination respectively;
// [Timer]; and the [Stream] contract implemented by every byte-stream
// transport.
//
// Concrete transport backends (TCP, TLS, filesystem, HTTP parsing) are
// deliberately out of scope: they are external collaborators that consume
// the [Stream] contract.
//
// All application state touched by tasks is confined to the scheduler's own
// goroutine; the thread-safe entry points from other goroutines are
// [Scheduler.OnEventLoop] and the calls that marshal through it:
// [Blocker.Notify], [Promise.Resolve], [Promise.Reject] and
// [Suspension.WakeUp].
package crouton
