//go:build linux

package crouton

import "golang.org/x/sys/unix"

// createWakeFD creates an eventfd for cross-goroutine wake-up notifications.
// The same fd serves as both read and write end.
func createWakeFD() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func signalWakeFD(writeFD int) {
	if writeFD < 0 {
		return
	}
	var one [8]byte
	one[7] = 1
	_, _ = unix.Write(writeFD, one[:])
}

func drainWakeFD(readFD int) {
	if readFD < 0 {
		return
	}
	var buf [8]byte
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
}
