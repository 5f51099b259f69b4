//go:build darwin

package crouton

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type fdInfoDarwin struct {
	callback func(IOEvents)
	events   IOEvents
	active   bool
}

// kqueuePoller implements ioPoller atop kqueue.
type kqueuePoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	fds      []fdInfoDarwin
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPlatformPoller() ioPoller { return &kqueuePoller{} }

func (p *kqueuePoller) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.fds = make([]fdInfoDarwin, 1024)
	return nil
}

func (p *kqueuePoller) Close() error {
	p.closed.Store(true)
	return unix.Close(p.kq)
}

func (p *kqueuePoller) grow(fd int) {
	if fd < len(p.fds) {
		return
	}
	newFds := make([]fdInfoDarwin, fd*2+1)
	copy(newFds, p.fds)
	p.fds = newFds
}

func (p *kqueuePoller) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 {
		return newProgrammingError("fd out of range")
	}

	p.fdMu.Lock()
	p.grow(fd)
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdInfoDarwin{callback: cb, events: events, active: true}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			p.fdMu.Lock()
			p.fds[fd] = fdInfoDarwin{}
			p.fdMu.Unlock()
			return err
		}
	}
	return nil
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	if fd < 0 {
		return newProgrammingError("fd out of range")
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	events := p.fds[fd].events
	p.fds[fd] = fdInfoDarwin{}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_DELETE)
	if len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return newProgrammingError("fd out of range")
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	old := p.fds[fd].events
	p.fds[fd].events = events
	p.fdMu.Unlock()

	if old&^events != 0 {
		if del := eventsToKevents(fd, old&^events, unix.EV_DELETE); len(del) > 0 {
			_, _ = unix.Kevent(p.kq, del, nil, nil)
		}
	}
	if events&^old != 0 {
		add := eventsToKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE)
		if len(add) > 0 {
			if _, err := unix.Kevent(p.kq, add, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *kqueuePoller) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1000000)}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.dispatch(n)
	return n, nil
}

func (p *kqueuePoller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}
		p.fdMu.RLock()
		var info fdInfoDarwin
		if fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if info.active && info.callback != nil {
			info.callback(keventToEvents(&p.eventBuf[i]))
		}
	}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
