package waitnotify

import (
	"sync/atomic"
)

// LoopState represents the current state of a dispatcher loop.
//
// State machine:
//
//	StateAwake → StateRunning            [Run]
//	StateRunning ⇄ StateSleeping         [wait via CAS]
//	StateRunning → StateTerminating      [Shutdown / Close / ctx]
//	StateSleeping → StateTerminating     [Shutdown / Close / ctx]
//	StateTerminating → StateTerminated   [shutdown complete]
//	StateTerminated → (terminal)
//
// Transition rules:
//   - Use TryTransition (CAS) for the reversible states (Running, Sleeping).
//   - Use Store only for the irreversible Terminated state.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateTerminated indicates the loop has fully shut down.
	StateTerminated
	// StateSleeping indicates the loop is blocked in the wait set.
	StateSleeping
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// loopState is a lock-free state machine with cache-line padding to avoid
// false sharing with neighbouring hot fields.
type loopState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      //nolint:unused
}

// newLoopState creates a state machine in the Awake state.
func newLoopState() *loopState {
	s := &loopState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *loopState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state. No transition validation.
func (s *loopState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was performed.
func (s *loopState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true once the state is Terminated.
func (s *loopState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// IsRunning returns true if the loop is currently running or sleeping.
func (s *loopState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
