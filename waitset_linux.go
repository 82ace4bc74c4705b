//go:build linux

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
// epoll (Linux).
//
// Locking discipline follows the usual poller pattern: entries are mutated
// under mu, the wait syscall itself runs without the lock, and fired entries
// are copied under RLock then dispatched outside of it.
type waitSet struct { // betteralign:ignore
	_        [64]byte             //nolint:unused
	epfd     int32                // epoll file descriptor
	_        [60]byte             //nolint:unused
	eventBuf [64]unix.EpollEvent  // preallocated event buffer
	entries  map[Handle]waitEntry // registered handles
	mu       sync.RWMutex         // protects entries
	closed   atomic.Bool
}

// Init initializes the epoll instance.
func (w *waitSet) Init() error {
	if w.closed.Load() {
		return ErrWaitSetClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	w.epfd = int32(epfd)
	w.entries = make(map[Handle]waitEntry)

	return nil
}

// Close closes the epoll instance. Idempotent.
func (w *waitSet) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if w.epfd > 0 {
		return unix.Close(int(w.epfd))
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
	w.mu.Unlock()

	ev := &unix.EpollEvent{
		Events: epollFlags(e.oneshot),
		Fd:     int32(h),
	}
	if err := unix.EpollCtl(int(w.epfd), unix.EPOLL_CTL_ADD, h, ev); err != nil {
		w.mu.Lock()
		delete(w.entries, h) // rollback
		w.mu.Unlock()
		return err
	}
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
	w.mu.Unlock()

	return unix.EpollCtl(int(w.epfd), unix.EPOLL_CTL_DEL, h, nil)
}

// Rearm re-enables a one-shot wait on h after a delivery has been consumed.
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

	ev := &unix.EpollEvent{
		Events: epollFlags(true),
		Fd:     int32(h),
	}
	return unix.EpollCtl(int(w.epfd), unix.EPOLL_CTL_MOD, h, ev)
}

// Wait blocks for up to timeoutMs (negative blocks indefinitely) and invokes
// fire once per signaled handle. fire runs on the calling goroutine, outside
// the entries lock; for internal entries the notifier argument is nil.
// Returns the number of fired entries.
func (w *waitSet) Wait(timeoutMs int, fire func(Handle, *Notifier)) (int, error) {
	if w.closed.Load() {
		return 0, ErrWaitSetClosed
	}

	n, err := unix.EpollWait(int(w.epfd), w.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	fired := 0
	for i := 0; i < n; i++ {
		h := Handle(w.eventBuf[i].Fd)
		if h < 0 {
			continue
		}

		w.mu.RLock()
		e, ok := w.entries[h]
		w.mu.RUnlock()
		if !ok {
			continue
		}

		// Any readiness (including EPOLLERR/EPOLLHUP, which epoll reports
		// unconditionally) counts as an observed signal; the handle's own
		// state is left untouched.
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

// epollFlags returns the epoll event mask for an entry.
func epollFlags(oneshot bool) uint32 {
	flags := uint32(unix.EPOLLIN)
	if oneshot {
		flags |= unix.EPOLLONESHOT
	}
	return flags
}
