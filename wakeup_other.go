//go:build !linux && !darwin

package crouton

// createWakeFD reports no FD-based wake mechanism on unsupported
// platforms; the Scheduler falls back to a bounded poll timeout (see
// [Scheduler.pollTimeout]) so cross-goroutine submissions are still
// observed within about a second.
func createWakeFD() (int, int, error) { return -1, -1, nil }

func signalWakeFD(writeFD int) {}

func drainWakeFD(readFD int) {}

func closeWakeFD(readFD, writeFD int) {}
