package waitnotify

import (
	"sync"
)

// Notifier registers interest in a single waitable handle and delivers a
// callback on its owner dispatcher's goroutine each time the dispatcher
// observes the handle signaled.
//
// The state of the underlying object is not modified by delivery, so a
// manual-reset style object must be reset by the application after the
// notification. While the notifier remains enabled the dispatcher keeps
// watching the handle; disabling it guarantees no future delivery for the
// registration (a delivery already queued at disable time is suppressed).
//
// A notifier is never registered with more than one dispatcher at a time,
// and enabled == true implies at most one live registration, held by the
// owner dispatcher.
type Notifier struct {
	mu        sync.Mutex
	handle    Handle
	enabled   bool
	disp      Dispatcher // owner; nil when unattached
	activated func(Handle)
}

// NewNotifier constructs a disabled notifier with no bound handle and no
// dispatcher interaction. If the calling goroutine runs a dispatcher it
// becomes the owner; otherwise ownership is adopted lazily on the first
// SetEnabled(true) (see SetEnabled).
func NewNotifier() *Notifier {
	return &Notifier{
		handle: InvalidHandle,
		disp:   Current(),
	}
}

// NewNotifierWithHandle constructs a notifier watching h, enabled by
// default, owned by the dispatcher running on the calling goroutine.
//
// It panics if the calling goroutine runs no dispatcher: an enabled-at-birth
// notifier cannot function without one, and constructing it anywhere else is
// a programming error. Use NewNotifier plus SetHandle/SetEnabled for the
// recoverable form.
func NewNotifierWithHandle(h Handle) *Notifier {
	d := Current()
	if d == nil {
		panic("waitnotify: NewNotifierWithHandle requires a dispatcher running on the calling goroutine")
	}
	n := &Notifier{
		handle: h,
		disp:   d,
	}
	n.enabled = true
	_ = d.RegisterNotifier(n)
	return n
}

// OnActivated sets the delivered-notification callback, invoked once per
// observed signal with the handle value, on the owner dispatcher's
// goroutine. A nil callback silently discards deliveries.
func (n *Notifier) OnActivated(fn func(Handle)) {
	n.mu.Lock()
	n.activated = fn
	n.mu.Unlock()
}

// Handle returns the currently bound handle, or InvalidHandle.
func (n *Notifier) Handle() Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handle
}

// IsEnabled reports whether the notifier is enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// SetHandle binds a new handle, unregistering the old one first. The
// notifier is disabled as a side effect and must be explicitly re-enabled:
// a handle swap never occurs while a wait on the old handle may be in
// flight. No validation of the new handle is performed.
func (n *Notifier) SetHandle(h Handle) {
	n.SetEnabled(false)
	n.mu.Lock()
	n.handle = h
	n.mu.Unlock()
}

// SetEnabled enables or disables the notifier. Calling it with the current
// value is a no-op.
//
// Enabling registers the handle with the owner dispatcher. If the notifier
// is unattached, the calling goroutine's dispatcher (if any) is adopted as
// owner. If no dispatcher is available (for example the application is
// shutting down) the notifier still reports enabled but no registration
// exists and no callback will fire until it is re-enabled under a live
// dispatcher; this is an accepted condition, not an error.
//
// Disabling unregisters from the owner dispatcher (when one exists) and
// always flips the state. Registration-path failures are absorbed.
func (n *Notifier) SetEnabled(enable bool) {
	n.mu.Lock()
	if n.enabled == enable {
		n.mu.Unlock()
		return
	}
	n.enabled = enable
	d := n.disp
	if enable && d == nil {
		d = Current()
		n.disp = d
	}
	n.mu.Unlock()

	if d == nil {
		return
	}
	if enable {
		_ = d.RegisterNotifier(n)
	} else {
		_ = d.UnregisterNotifier(n)
	}
}

// Close disables the notifier, guaranteeing the handle is unregistered from
// any dispatcher so the wait set never references a dead notifier. It does
// not close the handle, which the notifier never owned. Idempotent.
func (n *Notifier) Close() error {
	n.SetEnabled(false)
	return nil
}

// MoveTo transfers the notifier to a new owner dispatcher.
//
// The transfer is a transactional two-step relocation. If the notifier is
// enabled, it is first disabled against the old dispatcher synchronously,
// before the move completes, so no dangling registration remains; then
// re-enabling is queued on the destination dispatcher rather than executed
// inline, respecting that dispatcher's exclusive ownership of its own wait
// set. In between, a signal observed by the old dispatcher is suppressed by
// the delivery-path re-checks.
//
// Moving to nil detaches the notifier and leaves it disabled.
func (n *Notifier) MoveTo(d Dispatcher) {
	n.mu.Lock()
	if n.disp == d {
		n.mu.Unlock()
		return
	}
	wasEnabled := n.enabled
	n.mu.Unlock()

	if wasEnabled {
		n.SetEnabled(false)
	}

	n.mu.Lock()
	n.disp = d
	n.mu.Unlock()

	if wasEnabled && d != nil {
		_ = d.Submit(func() {
			n.SetEnabled(true)
		})
	}
}

// dispatcher returns the current owner dispatcher, or nil.
func (n *Notifier) dispatcher() Dispatcher {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disp
}

// deliver invokes the activated callback for a signal observed on h by the
// dispatcher from. It runs on the owner goroutine, queued by the dispatcher.
//
// The enabled flag, owner identity, and handle are re-checked immediately
// before invocation: a notification already queued when the notifier was
// disabled, moved, or re-keyed arrives here and is dropped. Returns whether
// the callback was (or would have been, if nil) invoked, which the
// dispatcher uses to decide re-arming.
func (n *Notifier) deliver(from Dispatcher, h Handle) bool {
	n.mu.Lock()
	if !n.enabled || n.disp != from || n.handle != h {
		n.mu.Unlock()
		return false
	}
	fn := n.activated
	n.mu.Unlock()

	// Outside the lock: the callback may re-enter SetEnabled or SetHandle.
	if fn != nil {
		fn(h)
	}
	return true
}
