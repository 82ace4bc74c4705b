package waitnotify

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Handle is a reference to an OS waitable object: a file descriptor whose
// readability represents the signaled state. Events, timers, processes,
// pipes, and sockets all fit, provided the platform exposes them as file
// descriptors. Notifiers hold handles by reference only; the creator of a
// handle remains responsible for closing it.
type Handle = int

// InvalidHandle is the zero-value-adjacent sentinel for "no handle bound".
const InvalidHandle Handle = -1

// NewEventHandle creates a manual-reset style event object.
//
// The returned h becomes signaled (readable) after SignalEvent(signal) and
// remains signaled until ResetEvent(h) is called. On Linux both values refer
// to a single eventfd; on Darwin they are the read and write ends of a
// non-blocking pipe. Close with CloseHandle (both values, where distinct).
func NewEventHandle() (h, signal Handle, err error) {
	return newEventFDPair()
}

// SignalEvent transitions the event object to the signaled state. Safe to
// call repeatedly; a pending signal is not accumulated into extra
// notifications.
func SignalEvent(signal Handle) error {
	// Native endianness, matching the eventfd counter format.
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(signal, buf)
	if err == unix.EAGAIN {
		// Already signaled beyond the object's capacity.
		return nil
	}
	return err
}

// ResetEvent returns the event object to the non-signaled state by draining
// it. Required for manual-reset semantics: delivery never resets the object.
func ResetEvent(h Handle) error {
	var buf [8]byte
	for {
		_, err := unix.Read(h, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			if err == unix.EINTR {
				continue
			}
			return err
		}
	}
}

// CloseHandle closes a handle created by this package's helpers.
func CloseHandle(h Handle) error {
	if h < 0 {
		return ErrInvalidHandle
	}
	return unix.Close(h)
}
