//go:build darwin

package crouton

import "golang.org/x/sys/unix"

// createWakeFD creates a self-pipe for cross-goroutine wake-up
// notifications: Darwin's kqueue has no eventfd equivalent, so a
// non-blocking pipe is registered for EVFILT_READ instead, matching the
// teacher's wakeup_darwin.go approach.
func createWakeFD() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func signalWakeFD(writeFD int) {
	if writeFD < 0 {
		return
	}
	var one [1]byte
	_, _ = unix.Write(writeFD, one[:])
}

func drainWakeFD(readFD int) {
	if readFD < 0 {
		return
	}
	var buf [64]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	if readFD >= 0 {
		_ = unix.Close(readFD)
	}
	if writeFD >= 0 && writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}
