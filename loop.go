package waitnotify

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Loop is the concrete Dispatcher: a single-goroutine event loop that
// multiplexes signaled-state waits across registered notifier handles and
// converts each observed signal into exactly one queued callback delivery.
//
// The goroutine that calls Run owns the loop; tasks and activated callbacks
// only ever execute there. Registration and submission are thread-safe,
// non-blocking metadata updates. Blocking happens solely inside the wait
// set, bounded by the configured maximum wait and interruptible via an
// internal wake fd.
type Loop struct {
	// Prevent copying.
	_ [0]func()

	// State machine (cache-line padded internally).
	state *loopState

	// Wait multiplexing (epoll / kqueue).
	waits waitSet

	// Registration table: one entry per registered notifier, keyed by the
	// notifier's identity, valued with the handle it was registered under.
	regMu sync.Mutex
	reg   map[*Notifier]Handle

	// Task queue, drained on the loop goroutine each tick.
	taskMu sync.Mutex
	tasks  taskQueue

	// Wake-up mechanism: an internal event handle armed level-triggered.
	wakeRead    int
	wakeWrite   int
	wakePending atomic.Uint32 // wake-up deduplication

	log     *logiface.Logger[logiface.Event]
	maxWait time.Duration

	// Goroutine tracking.
	loopGoroutineID atomic.Uint64

	// Loop termination signaling.
	stopOnce sync.Once
	loopDone chan struct{}

	id uint64
}

var loopIDCounter atomic.Uint64

// Loop implements Dispatcher.
var _ Dispatcher = (*Loop)(nil)

// New creates a loop. The loop does nothing until Run is called.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeRead, wakeWrite, err := newEventFDPair()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		id:        loopIDCounter.Add(1),
		state:     newLoopState(),
		reg:       make(map[*Notifier]Handle),
		wakeRead:  wakeRead,
		wakeWrite: wakeWrite,
		log:       cfg.logger,
		maxWait:   cfg.maxWait,

		// Initialized here to avoid a data race with shutdownImpl.
		loopDone: make(chan struct{}),
	}

	if err := l.waits.Init(); err != nil {
		l.closeWakeFDs()
		return nil, err
	}

	if err := l.waits.addPersistent(wakeRead); err != nil {
		_ = l.waits.Close()
		l.closeWakeFDs()
		return nil, err
	}

	return l, nil
}

// Run runs the loop on the calling goroutine and blocks until it terminates
// (via Shutdown, Close, or ctx cancellation). For the duration of the run
// the loop is published as the goroutine's current dispatcher, so Current
// resolves to it from tasks and callbacks.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// Closed when run exits, to release Shutdown waiters.
	defer close(l.loopDone)

	return l.run(ctx)
}

// run is the main loop body.
func (l *Loop) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := getGoroutineID()
	l.loopGoroutineID.Store(gid)
	defer l.loopGoroutineID.Store(0)

	setCurrentDispatcher(gid, l)
	defer clearCurrentDispatcher(gid)

	// Watcher goroutine to wake the loop on ctx cancellation.
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	l.log.Debug().Uint64("loop", l.id).Log("loop running")

	for {
		select {
		case <-ctx.Done():
			for {
				current := l.state.Load()
				if current == StateTerminating || current == StateTerminated {
					break
				}
				if l.state.TryTransition(current, StateTerminating) {
					break
				}
			}
			l.shutdown()
			return ctx.Err()
		default:
		}

		if state := l.state.Load(); state == StateTerminating || state == StateTerminated {
			l.shutdown()
			return nil
		}

		l.tick()
	}
}

// tick is a single iteration of the loop: drain queued tasks, then block in
// the wait set for signaled handles.
func (l *Loop) tick() {
	l.runTasks()
	l.wait()
}

// runTasks drains the task queue, executing each task with panic recovery.
func (l *Loop) runTasks() {
	for {
		l.taskMu.Lock()
		task, ok := l.tasks.Pop()
		l.taskMu.Unlock()
		if !ok {
			return
		}
		l.safeExecute(task)
	}
}

// wait performs the blocking multiplexed wait.
func (l *Loop) wait() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// Quick check so queued work shortens the wait to a poll.
	l.taskMu.Lock()
	pending := l.tasks.Length()
	l.taskMu.Unlock()

	// Check for termination before blocking.
	if l.state.Load() == StateTerminating {
		return
	}

	timeout := int(l.maxWait.Milliseconds())
	if pending > 0 {
		timeout = 0
	}

	if _, err := l.waits.Wait(timeout, l.fired); err != nil {
		l.log.Err().Uint64("loop", l.id).Err(err).Log("wait failed, terminating loop")
		l.state.TryTransition(StateSleeping, StateTerminating)
		return
	}

	l.state.TryTransition(StateSleeping, StateRunning)
}

// fired handles one signaled entry, on the loop goroutine, inside Wait.
//
// Internal entries (nil notifier: the wake fd) are drained in place.
// Notifier entries become a queued delivery task rather than an inline
// callback: delivery must go through the owner goroutine's queue, and the
// one-shot arming guarantees no further observation of this handle until
// the delivery has been consumed and re-armed.
func (l *Loop) fired(h Handle, n *Notifier) {
	if n == nil {
		_ = ResetEvent(l.wakeRead)
		l.wakePending.Store(0)
		return
	}

	l.taskMu.Lock()
	l.tasks.Push(func() { l.deliver(n, h) })
	l.taskMu.Unlock()
}

// deliver consumes one queued signaled-event for n. Runs on the loop
// goroutine.
func (l *Loop) deliver(n *Notifier, h Handle) {
	// Drop stale deliveries: the notifier may have been unregistered or
	// re-registered under a different handle since the signal was observed.
	l.regMu.Lock()
	cur, ok := l.reg[n]
	l.regMu.Unlock()
	if !ok || cur != h {
		l.log.Debug().Uint64("loop", l.id).Int("handle", h).Log("dropping stale delivery")
		return
	}

	delivered := n.deliver(l, h)
	if !delivered {
		// The notifier itself refused (disabled or moved between the
		// registration check and now). Nothing to re-arm.
		return
	}

	// Re-arm while the registration survived the callback: the dispatcher,
	// not the notifier, is responsible for continuing to watch the handle.
	l.regMu.Lock()
	cur, ok = l.reg[n]
	l.regMu.Unlock()
	if ok && cur == h && n.IsEnabled() {
		if err := l.waits.Rearm(h); err != nil {
			l.log.Warning().Uint64("loop", l.id).Int("handle", h).Err(err).Log("rearm failed")
		}
	}
}

// RegisterNotifier binds the notifier's current handle into the wait set.
// Registering an already-registered notifier is a no-op. Thread-safe and
// non-blocking; errors are diagnostic only, the registration protocol
// absorbs them.
func (l *Loop) RegisterNotifier(n *Notifier) error {
	if n == nil {
		return nil
	}
	if l.state.IsTerminal() {
		return ErrLoopTerminated
	}

	h := n.Handle()
	if h < 0 {
		return ErrInvalidHandle
	}

	l.regMu.Lock()
	if cur, ok := l.reg[n]; ok {
		l.regMu.Unlock()
		if cur == h {
			return nil
		}
		// Unreachable through the Notifier API: SetHandle forces a disable
		// (and therefore an unregister) before re-keying.
		return ErrHandleAlreadyWatched
	}
	l.reg[n] = h
	l.regMu.Unlock()

	if err := l.waits.Add(h, n); err != nil {
		l.regMu.Lock()
		delete(l.reg, n)
		l.regMu.Unlock()
		l.log.Warning().Uint64("loop", l.id).Int("handle", h).Err(err).Log("register failed")
		return err
	}

	l.log.Debug().Uint64("loop", l.id).Int("handle", h).Log("notifier registered")
	return nil
}

// UnregisterNotifier removes the notifier's binding from the wait set.
// Safe to call when not currently registered. Thread-safe and non-blocking.
func (l *Loop) UnregisterNotifier(n *Notifier) error {
	if n == nil {
		return nil
	}

	l.regMu.Lock()
	h, ok := l.reg[n]
	if ok {
		delete(l.reg, n)
	}
	l.regMu.Unlock()
	if !ok {
		return nil
	}

	if err := l.waits.Remove(h); err != nil && err != ErrHandleNotWatched && err != ErrWaitSetClosed {
		l.log.Warning().Uint64("loop", l.id).Int("handle", h).Err(err).Log("unregister failed")
		return err
	}

	l.log.Debug().Uint64("loop", l.id).Int("handle", h).Log("notifier unregistered")
	return nil
}

// Submit queues fn for execution on the loop goroutine. Thread-safe.
//
// Submission is allowed during StateTerminating so in-flight work can drain;
// only a fully terminated loop rejects tasks.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.taskMu.Lock()
	l.tasks.Push(fn)
	l.taskMu.Unlock()

	// Wake if sleeping, with deduplication.
	if l.state.Load() == StateSleeping {
		if l.wakePending.CompareAndSwap(0, 1) {
			if err := l.wake(); err != nil {
				// Expected during shutdown (EBADF/EPIPE once the wake fd
				// closes); the task is already queued either way.
				l.wakePending.Store(0)
			}
		}
	}

	return nil
}

// wake interrupts a blocking wait by signaling the internal wake fd.
func (l *Loop) wake() error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	return SignalEvent(l.wakeWrite)
}

// Shutdown gracefully terminates the loop, draining queued tasks. It blocks
// until termination completes or ctx expires.
func (l *Loop) Shutdown(ctx context.Context) error {
	var result error
	l.stopOnce.Do(func() {
		result = l.shutdownImpl(ctx)
	})
	if result == nil && l.state.Load() != StateTerminated {
		return ErrLoopTerminated
	}
	return result
}

func (l *Loop) shutdownImpl(ctx context.Context) error {
	for {
		current := l.state.Load()
		if current == StateTerminated || current == StateTerminating {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(current, StateTerminating) {
			if current == StateAwake {
				// Never ran; finish synchronously.
				l.state.Store(StateTerminated)
				l.closeFDs()
				return nil
			}
			if current == StateSleeping {
				_ = l.wake()
			}
			break
		}
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately initiates termination without waiting for completion.
func (l *Loop) Close() error {
	for {
		current := l.state.Load()
		if current == StateTerminated {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(current, StateTerminating) {
			if current == StateAwake {
				l.state.Store(StateTerminated)
				l.closeFDs()
				return nil
			}
			if current == StateSleeping {
				_ = l.wake()
			}
			return nil
		}
	}
}

// shutdown performs the termination sequence on the loop goroutine.
func (l *Loop) shutdown() {
	// Terminated first: any Submit observing the old state has already
	// pushed, and the drain below catches it; later Submits are rejected.
	l.state.Store(StateTerminated)

	l.runTasks()

	// Residual registrations die with the wait set; the table is cleared so
	// late unregisters are plain no-ops.
	l.regMu.Lock()
	residual := len(l.reg)
	clear(l.reg)
	l.regMu.Unlock()
	if residual > 0 {
		l.log.Debug().Uint64("loop", l.id).Int("registrations", residual).Log("dropping residual registrations at shutdown")
	}

	l.closeFDs()
	l.log.Debug().Uint64("loop", l.id).Log("loop terminated")
}

// Watching returns the number of notifier registrations currently held.
func (l *Loop) Watching() int {
	l.regMu.Lock()
	defer l.regMu.Unlock()
	return len(l.reg)
}

// registered reports the handle a notifier is registered under, if any.
func (l *Loop) registered(n *Notifier) (Handle, bool) {
	l.regMu.Lock()
	defer l.regMu.Unlock()
	h, ok := l.reg[n]
	return h, ok
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Err().Uint64("loop", l.id).Interface("panic", r).Log("task panicked")
		}
	}()

	fn()
}

// closeFDs tears down the wait set and the wake fds.
func (l *Loop) closeFDs() {
	_ = l.waits.Close()
	l.closeWakeFDs()
}

func (l *Loop) closeWakeFDs() {
	_ = CloseHandle(l.wakeRead)
	if l.wakeWrite != l.wakeRead {
		_ = CloseHandle(l.wakeWrite)
	}
}

// isLoopThread checks whether the caller is on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}
