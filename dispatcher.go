package waitnotify

import (
	"runtime"
	"sync"
)

// Dispatcher is the contract a Notifier registers against. A dispatcher
// multiplexes waits across registered handles on a single owning goroutine,
// detects signaled transitions, and posts each one as a queued task back to
// that goroutine.
//
// Loop is the concrete implementation; notifiers only ever hold the
// interface.
type Dispatcher interface {
	// RegisterNotifier binds the notifier's current handle into the wait
	// set. Registering an already-registered notifier is a no-op. The
	// returned error exists for diagnostics; notifiers absorb it.
	RegisterNotifier(n *Notifier) error

	// UnregisterNotifier removes the binding. Safe to call when not
	// currently registered.
	UnregisterNotifier(n *Notifier) error

	// Submit queues fn for execution on the dispatcher's goroutine.
	Submit(fn func()) error
}

// dispatchers maps goroutine IDs to the dispatcher running on them.
// Loop.Run publishes itself here for the duration of the run.
var dispatchers = struct {
	sync.RWMutex
	m map[uint64]Dispatcher
}{m: make(map[uint64]Dispatcher)}

// Current returns the dispatcher running on the calling goroutine, or nil.
//
// It is only non-nil from code executing inside a dispatcher's run loop,
// i.e. from tasks and activated callbacks.
func Current() Dispatcher {
	gid := getGoroutineID()
	dispatchers.RLock()
	d := dispatchers.m[gid]
	dispatchers.RUnlock()
	return d
}

// setCurrentDispatcher publishes d as the dispatcher for goroutine gid.
func setCurrentDispatcher(gid uint64, d Dispatcher) {
	dispatchers.Lock()
	dispatchers.m[gid] = d
	dispatchers.Unlock()
}

// clearCurrentDispatcher removes the mapping for goroutine gid.
func clearCurrentDispatcher(gid uint64) {
	dispatchers.Lock()
	delete(dispatchers.m, gid)
	dispatchers.Unlock()
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
