//go:build darwin

package waitnotify

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// waitEntry stores per-handle registration information.
// A nil notifier marks an internal (persistent, level-triggered) entry such
// as the loop's wake fd; notifier entries are armed one-shot.
type waitEntry struct {
	notifier *Notifier
	oneshot  bool
}

// waitSet multiplexes signaled-state waits across registered handles using
// kqueue (Darwin).
//
// Locking discipline follows the usual poller pattern: entries are mutated
// under mu, the wait syscall itself runs without the lock, and fired entries
// are copied under RLock then dispatched outside of it.
type waitSet struct { // betteralign:ignore
	_        [64]byte             //nolint:unused
	kq       int32                // kqueue file descriptor
	_        [60]byte             //nolint:unused
	eventBuf [64]unix.Kevent_t    // preallocated event buffer
	entries  map[Handle]waitEntry // registered handles
	mu       sync.RWMutex         // protects entries
	closed   atomic.Bool
}

// Init initializes the kqueue instance.
func (w *waitSet) Init() error {
	if w.closed.Load() {
		return ErrWaitSetClosed
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	w.kq = int32(kq)
	w.entries = make(map[Handle]waitEntry)

	return nil
}

// Close closes the kqueue instance. Idempotent.
func (w *waitSet) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if w.kq > 0 {
		return unix.Close(int(w.kq))
	}
	return nil
}

// Add arms a one-shot wait on h for the given notifier. The entry stays in
// the set after firing but will not fire again until Rearm.
func (w *waitSet) Add(h Handle, n *Notifier) error {
	return w.add(h, waitEntry{notifier: n, oneshot: true})
}

// addPersistent arms a level-triggered internal wait on h (wake fd).
func (w *waitSet) addPersistent(h Handle) error {
	return w.add(h, waitEntry{})
}

func (w *waitSet) add(h Handle, e waitEntry) error {
	if w.closed.Load() {
		return ErrWaitSetClosed
	}
	if h < 0 {
		return ErrInvalidHandle
	}

	w.mu.Lock()
	if _, ok := w.entries[h]; ok {
		w.mu.Unlock()
		return ErrHandleAlreadyWatched
	}
	w.entries[h] = e

	// Hold the lock across Kevent to prevent a race with concurrent Remove.
	kev := []unix.Kevent_t{readKevent(h, keventFlags(e.oneshot))}
	if _, err := unix.Kevent(int(w.kq), kev, nil, nil); err != nil {
		delete(w.entries, h) // rollback
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	return nil
}

// Remove disarms and forgets the wait on h.
func (w *waitSet) Remove(h Handle) error {
	if h < 0 {
		return ErrInvalidHandle
	}

	w.mu.Lock()
	if _, ok := w.entries[h]; !ok {
		w.mu.Unlock()
		return ErrHandleNotWatched
	}
	delete(w.entries, h)

	// A one-shot kevent may already have been consumed; deletion errors are
	// expected and ignored.
	kev := []unix.Kevent_t{readKevent(h, unix.EV_DELETE)}
	unix.Kevent(int(w.kq), kev, nil, nil)
	w.mu.Unlock()
	return nil
}

// Rearm re-enables a one-shot wait on h after a delivery has been consumed.
// On kqueue a fired one-shot kevent is gone, so re-arming re-adds it.
func (w *waitSet) Rearm(h Handle) error {
	if h < 0 {
		return ErrInvalidHandle
	}

	w.mu.RLock()
	e, ok := w.entries[h]
	w.mu.RUnlock()
	if !ok || !e.oneshot {
		return ErrHandleNotWatched
	}

	kev := []unix.Kevent_t{readKevent(h, keventFlags(true))}
	_, err := unix.Kevent(int(w.kq), kev, nil, nil)
	return err
}

// Wait blocks for up to timeoutMs (negative blocks indefinitely) and invokes
// fire once per signaled handle. fire runs on the calling goroutine, outside
// the entries lock; for internal entries the notifier argument is nil.
// Returns the number of fired entries.
func (w *waitSet) Wait(timeoutMs int, fire func(Handle, *Notifier)) (int, error) {
	if w.closed.Load() {
		return 0, ErrWaitSetClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(int(w.kq), nil, w.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	fired := 0
	for i := 0; i < n; i++ {
		h := Handle(w.eventBuf[i].Ident)
		if h < 0 {
			continue
		}

		w.mu.RLock()
		e, ok := w.entries[h]
		w.mu.RUnlock()
		if !ok {
			continue
		}

		// Any readiness (including EV_EOF) counts as an observed signal; the
		// handle's own state is left untouched.
		fire(h, e.notifier)
		fired++
	}

	return fired, nil
}

// Len returns the number of registered handles, internal entries included.
func (w *waitSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// keventFlags returns the kevent flags for an entry.
func keventFlags(oneshot bool) uint16 {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if oneshot {
		flags |= unix.EV_ONESHOT
	}
	return flags
}

// readKevent builds an EVFILT_READ kevent for h.
func readKevent(h Handle, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(h),
		Filter: unix.EVFILT_READ,
		Flags:  flags,
	}
}
