package waitnotify

import "testing"

func TestEventHandle_SignalReset(t *testing.T) {
	h, sig := newTestEventHandle(t)

	// Reset of an unsignaled object is a no-op.
	if err := ResetEvent(h); err != nil {
		t.Fatalf("ResetEvent on fresh object: %v", err)
	}

	// Repeated signaling does not accumulate: a single reset drains it all.
	for i := 0; i < 3; i++ {
		if err := SignalEvent(sig); err != nil {
			t.Fatalf("SignalEvent %d: %v", i, err)
		}
	}
	if err := ResetEvent(h); err != nil {
		t.Fatalf("ResetEvent after signals: %v", err)
	}

	w := newTestWaitSet(t)
	if err := w.addPersistent(h); err != nil {
		t.Fatal(err)
	}
	fired, err := w.Wait(0, func(Handle, *Notifier) { t.Error("fired after reset") })
	if err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("object readable after reset (%d fired)", fired)
	}
}

func TestCloseHandle_Invalid(t *testing.T) {
	if err := CloseHandle(InvalidHandle); err != ErrInvalidHandle {
		t.Errorf("CloseHandle(InvalidHandle) = %v, want ErrInvalidHandle", err)
	}
}
