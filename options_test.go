package waitnotify

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
)

// testEvent is a minimal logiface.Event implementation for exercising the
// structured logging paths.
type testEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
}

func (e *testEvent) Level() logiface.Level        { return e.level }
func (e *testEvent) AddField(key string, val any) {}

type testEventFactory struct{}

func (f *testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

type testEventWriter struct {
	onWrite func(*testEvent) error
}

func (w *testEventWriter) Write(event *testEvent) error {
	if w.onWrite != nil {
		return w.onWrite(event)
	}
	return nil
}

func newTestLogger(onWrite func(*testEvent) error) *logiface.Logger[logiface.Event] {
	typedLogger := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](&testEventFactory{}),
		logiface.WithWriter[*testEvent](&testEventWriter{onWrite: onWrite}),
		logiface.WithLevel[*testEvent](logiface.LevelDebug),
	)
	return typedLogger.Logger()
}

func TestDefaultOptions(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer l.Close()

	if l.maxWait != 10*time.Second {
		t.Errorf("default maxWait = %v, want 10s", l.maxWait)
	}
	if l.log != nil {
		t.Error("default logger should be nil")
	}
}

func TestWithMaxWait(t *testing.T) {
	l, err := New(WithMaxWait(250 * time.Millisecond))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer l.Close()

	if l.maxWait != 250*time.Millisecond {
		t.Errorf("maxWait = %v, want 250ms", l.maxWait)
	}
}

func TestWithMaxWait_Invalid(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := New(WithMaxWait(d)); err == nil {
			t.Errorf("New(WithMaxWait(%v)) should fail", d)
		}
	}
}

func TestWithLogger(t *testing.T) {
	var logged int
	logger := newTestLogger(func(*testEvent) error {
		logged++
		return nil
	})

	l, err := New(WithLogger(logger))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	ran := make(chan struct{})
	if err := l.Submit(func() { close(ran) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	<-done

	if logged == 0 {
		t.Error("expected the logger to receive loop lifecycle events")
	}
}

func TestNilOptionsSkipped(t *testing.T) {
	l, err := New(nil, WithMaxWait(time.Second), nil)
	if err != nil {
		t.Fatalf("New() with nil options failed: %v", err)
	}
	defer l.Close()

	if l.maxWait != time.Second {
		t.Errorf("maxWait = %v, want 1s", l.maxWait)
	}
}
