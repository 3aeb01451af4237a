// Package event provides a pub-sub event bus for the dashboard core.
//
// # Main Types
//
//   - [Event]: interface providing EventType() and Timestamp()
//   - [Bus]: synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: func(Event)
//
// # Event Categories
//
// Router: [MessageDroppedEvent] (router.evicted, router.rejected, router.stale),
// [DispatchFailedEvent], [BatchProcessedEvent].
//
// Timers: [TimerEvent] (timer.fired, timer.cancelled, timer.race).
//
// Widgets: [ScrollFlushedEvent], [RenderCompletedEvent], [NoticeSuppressedEvent].
//
// Config: [ConfigReloadedEvent].
//
// # Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypeMessageEvicted, func(e event.Event) {
//	    evicted.Inc()
//	})
//
// Handlers run synchronously on the publisher's goroutine. Publishers include
// the loop goroutine and timer goroutines, so handlers must not block and must
// be safe for concurrent use. A panicking handler is recovered and logged.
package event
