package waitnotify

import "testing"

func TestLoopState_String(t *testing.T) {
	for _, tc := range []struct {
		state LoopState
		want  string
	}{
		{StateAwake, "Awake"},
		{StateTerminated, "Terminated"},
		{StateSleeping, "Sleeping"},
		{StateRunning, "Running"},
		{StateTerminating, "Terminating"},
		{LoopState(99), "Unknown"},
	} {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("LoopState(%d).String() = %q, want %q", uint64(tc.state), got, tc.want)
		}
	}
}

func TestLoopState_Transitions(t *testing.T) {
	s := newLoopState()
	if got := s.Load(); got != StateAwake {
		t.Fatalf("initial state = %v, want Awake", got)
	}

	if !s.TryTransition(StateAwake, StateRunning) {
		t.Fatal("Awake -> Running should succeed")
	}
	if s.TryTransition(StateAwake, StateSleeping) {
		t.Fatal("stale transition from Awake should fail")
	}
	if !s.IsRunning() {
		t.Error("IsRunning should hold in Running")
	}

	if !s.TryTransition(StateRunning, StateSleeping) {
		t.Fatal("Running -> Sleeping should succeed")
	}
	if !s.IsRunning() {
		t.Error("IsRunning should hold in Sleeping")
	}

	if !s.TryTransition(StateSleeping, StateTerminating) {
		t.Fatal("Sleeping -> Terminating should succeed")
	}
	if s.IsTerminal() {
		t.Error("IsTerminal should not hold until Terminated")
	}
	if s.IsRunning() {
		t.Error("IsRunning should not hold in Terminating")
	}

	s.Store(StateTerminated)
	if !s.IsTerminal() {
		t.Error("IsTerminal should hold in Terminated")
	}
}
