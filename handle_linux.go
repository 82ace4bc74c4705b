//go:build linux

package waitnotify

import (
	"time"

	"golang.org/x/sys/unix"
)

// newEventFDPair creates the backing object for an event handle (Linux).
// A single eventfd serves as both the waitable and the signal end.
func newEventFDPair() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

// NewTimerHandle creates a waitable timer that becomes signaled once, after
// the given delay. The signaled state persists until ResetEvent is called
// (manual-reset semantics, via timerfd).
func NewTimerHandle(delay time.Duration) (Handle, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return InvalidHandle, err
	}
	if delay <= 0 {
		// A zero it_value disarms the timer; fire immediately instead.
		delay = time.Nanosecond
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(delay.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return InvalidHandle, err
	}
	return fd, nil
}

// OpenProcessHandle returns a handle that becomes signaled when the process
// with the given PID exits (pidfd). The caller must hold sufficient
// privileges to open the target process.
func OpenProcessHandle(pid int) (Handle, error) {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return InvalidHandle, err
	}
	return fd, nil
}
