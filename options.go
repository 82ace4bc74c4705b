package waitnotify

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger  *logiface.Logger[logiface.Event]
	maxWait time.Duration
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger to the loop. Registration,
// delivery, wake, and shutdown events are logged at debug and warning
// levels. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxWait caps how long a single pass of the loop blocks in the wait
// set before re-checking for work. The default is 10 seconds; the wake fd
// makes the cap a liveness backstop rather than a latency bound.
func WithMaxWait(d time.Duration) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return errors.New("waitnotify: WithMaxWait requires a positive duration")
		}
		opts.maxWait = d
		return nil
	}}
}

// resolveLoopOptions applies Option instances to loopOptions.
func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		maxWait: 10 * time.Second, // default
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
