package waitnotify

import "errors"

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrLoopAlreadyRunning = errors.New("waitnotify: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a
	// terminated loop.
	ErrLoopTerminated = errors.New("waitnotify: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from within the loop itself.
	ErrReentrantRun = errors.New("waitnotify: cannot call Run from within the loop")

	// ErrInvalidHandle indicates a negative or otherwise unusable handle value.
	ErrInvalidHandle = errors.New("waitnotify: invalid handle")

	// ErrHandleAlreadyWatched indicates the handle is already present in the
	// wait set, necessarily under a different notifier.
	ErrHandleAlreadyWatched = errors.New("waitnotify: handle already watched")

	// ErrHandleNotWatched indicates the handle is not present in the wait set.
	ErrHandleNotWatched = errors.New("waitnotify: handle not watched")

	// ErrWaitSetClosed is returned by wait set operations after Close.
	ErrWaitSetClosed = errors.New("waitnotify: wait set closed")
)
