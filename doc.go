// Package waitnotify delivers asynchronous callbacks when an OS-level
// waitable handle becomes signaled, without the caller ever blocking in a
// wait call.
//
// # Architecture
//
// A [Notifier] represents interest in a single waitable handle. It registers
// itself with the [Dispatcher] owned by its goroutine, and the dispatcher's
// multiplexed wait loop converts each observed signal into exactly one
// queued invocation of the notifier's activated callback, delivered on the
// dispatcher's goroutine.
//
// A waitable handle is any file descriptor whose readability represents the
// signaled condition: eventfds, timerfds, pidfds, pipes, sockets. The state
// of the underlying object is never modified by delivery, so manual-reset
// style objects (e.g. an event handle from [NewEventHandle]) must be reset
// by the application via [ResetEvent] once handled.
//
// [Loop] is the concrete dispatcher. Each loop owns one goroutine (the one
// that called [Loop.Run]) and one wait set; handles are armed one-shot and
// re-armed after each delivery while the notifier remains enabled, so a
// persistently-signaled object produces one callback per loop pass rather
// than a busy spin.
//
// # Platform Support
//
// Wait multiplexing uses platform-native mechanisms:
//   - Linux: epoll (EPOLLONESHOT)
//   - macOS: kqueue (EV_ONESHOT)
//
// # Thread Safety
//
//   - [Loop.Submit], [Loop.RegisterNotifier], and [Loop.UnregisterNotifier]
//     are safe to call from any goroutine; none of them block.
//   - A notifier's callback only ever runs on its owner dispatcher's
//     goroutine, never concurrently with itself.
//   - [Notifier.SetEnabled] with false guarantees no future delivery for
//     that registration; an already-queued delivery is suppressed by an
//     enabled re-check in the delivery path.
//
// # Usage
//
//	loop, err := waitnotify.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	go loop.Run(context.Background())
//	defer loop.Shutdown(context.Background())
//
//	h, signal, err := waitnotify.NewEventHandle()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer waitnotify.CloseHandle(h)
//
//	loop.Submit(func() {
//		n := waitnotify.NewNotifierWithHandle(h)
//		n.OnActivated(func(h waitnotify.Handle) {
//			fmt.Println("signaled:", h)
//			waitnotify.ResetEvent(h) // manual-reset object
//		})
//	})
//
//	waitnotify.SignalEvent(signal)
package waitnotify
