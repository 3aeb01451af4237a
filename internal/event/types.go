// Package event defines the events the dashboard core publishes and the bus
// that carries them. Events let the router, timers and widgets report what
// happened without depending on metrics or presentation code.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "router.evicted", "timer.fired")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeMessageEvicted   = "router.evicted"
	TypeMessageRejected  = "router.rejected"
	TypeMessageStale     = "router.stale"
	TypeDispatchFailed   = "router.dispatch_failed"
	TypeBatchProcessed   = "router.batch"
	TypeTimerFired       = "timer.fired"
	TypeTimerCancelled   = "timer.cancelled"
	TypeTimerRace        = "timer.race"
	TypeScrollFlushed    = "scroll.flushed"
	TypeRenderCompleted  = "render.completed"
	TypeNoticeSuppressed = "notice.suppressed"
	TypeConfigReloaded   = "config.reloaded"
)

// -----------------------------------------------------------------------------
// Router Events
// -----------------------------------------------------------------------------

// MessageDroppedEvent is emitted when the router discards a message: evicted to
// make room, rejected because the queue held only final messages, or stale
// because a newer message for the same target was already dispatched.
type MessageDroppedEvent struct {
	baseEvent
	Target   string
	Sequence uint64
	IsFinal  bool
}

// NewMessageEvictedEvent creates a MessageDroppedEvent of type router.evicted.
func NewMessageEvictedEvent(target string, sequence uint64, isFinal bool) MessageDroppedEvent {
	return MessageDroppedEvent{
		baseEvent: newBaseEvent(TypeMessageEvicted),
		Target:    target,
		Sequence:  sequence,
		IsFinal:   isFinal,
	}
}

// NewMessageRejectedEvent creates a MessageDroppedEvent of type router.rejected.
func NewMessageRejectedEvent(target string, sequence uint64) MessageDroppedEvent {
	return MessageDroppedEvent{
		baseEvent: newBaseEvent(TypeMessageRejected),
		Target:    target,
		Sequence:  sequence,
	}
}

// NewMessageStaleEvent creates a MessageDroppedEvent of type router.stale.
func NewMessageStaleEvent(target string, sequence uint64, isFinal bool) MessageDroppedEvent {
	return MessageDroppedEvent{
		baseEvent: newBaseEvent(TypeMessageStale),
		Target:    target,
		Sequence:  sequence,
		IsFinal:   isFinal,
	}
}

// DispatchFailedEvent is emitted when applying a message to its widget fails.
type DispatchFailedEvent struct {
	baseEvent
	Target   string
	Sequence uint64
	Err      error
}

// NewDispatchFailedEvent creates a DispatchFailedEvent.
func NewDispatchFailedEvent(target string, sequence uint64, err error) DispatchFailedEvent {
	return DispatchFailedEvent{
		baseEvent: newBaseEvent(TypeDispatchFailed),
		Target:    target,
		Sequence:  sequence,
		Err:       err,
	}
}

// BatchProcessedEvent is emitted after each router batch, before the yield.
type BatchProcessedEvent struct {
	baseEvent
	Size      int           // messages dispatched in this batch
	Remaining int           // messages still queued
	Duration  time.Duration // time spent dispatching
}

// NewBatchProcessedEvent creates a BatchProcessedEvent.
func NewBatchProcessedEvent(size, remaining int, duration time.Duration) BatchProcessedEvent {
	return BatchProcessedEvent{
		baseEvent: newBaseEvent(TypeBatchProcessed),
		Size:      size,
		Remaining: remaining,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Timer Events
// -----------------------------------------------------------------------------

// TimerEvent reports a timer registry transition for a key.
type TimerEvent struct {
	baseEvent
	Registry string // registry name, e.g. "scroll" or "thinking"
	Key      string
	Err      error // set for timer.race
}

// NewTimerFiredEvent creates a TimerEvent of type timer.fired.
func NewTimerFiredEvent(registry, key string) TimerEvent {
	return TimerEvent{baseEvent: newBaseEvent(TypeTimerFired), Registry: registry, Key: key}
}

// NewTimerCancelledEvent creates a TimerEvent of type timer.cancelled.
func NewTimerCancelledEvent(registry, key string) TimerEvent {
	return TimerEvent{baseEvent: newBaseEvent(TypeTimerCancelled), Registry: registry, Key: key}
}

// NewTimerRaceEvent creates a TimerEvent of type timer.race.
func NewTimerRaceEvent(registry, key string, err error) TimerEvent {
	return TimerEvent{baseEvent: newBaseEvent(TypeTimerRace), Registry: registry, Key: key, Err: err}
}

// -----------------------------------------------------------------------------
// Widget Events
// -----------------------------------------------------------------------------

// ScrollFlushedEvent is emitted when a debounced scroll-to-end runs.
type ScrollFlushedEvent struct {
	baseEvent
	WidgetID string
	Found    bool // false when the widget was gone at fire time
}

// NewScrollFlushedEvent creates a ScrollFlushedEvent.
func NewScrollFlushedEvent(widgetID string, found bool) ScrollFlushedEvent {
	return ScrollFlushedEvent{
		baseEvent: newBaseEvent(TypeScrollFlushed),
		WidgetID:  widgetID,
		Found:     found,
	}
}

// RenderCompletedEvent is emitted when a coalesced render finishes.
type RenderCompletedEvent struct {
	baseEvent
	WidgetID string
	Rows     int  // rows carried by the render
	FollowUp bool // a follow-up render was scheduled
}

// NewRenderCompletedEvent creates a RenderCompletedEvent.
func NewRenderCompletedEvent(widgetID string, rows int, followUp bool) RenderCompletedEvent {
	return RenderCompletedEvent{
		baseEvent: newBaseEvent(TypeRenderCompleted),
		WidgetID:  widgetID,
		Rows:      rows,
		FollowUp:  followUp,
	}
}

// NoticeSuppressedEvent is emitted when the dedup filter hides a notice.
type NoticeSuppressedEvent struct {
	baseEvent
	WidgetID string
	Identity uint64
}

// NewNoticeSuppressedEvent creates a NoticeSuppressedEvent.
func NewNoticeSuppressedEvent(widgetID string, identity uint64) NoticeSuppressedEvent {
	return NoticeSuppressedEvent{
		baseEvent: newBaseEvent(TypeNoticeSuppressed),
		WidgetID:  widgetID,
		Identity:  identity,
	}
}

// -----------------------------------------------------------------------------
// Config Events
// -----------------------------------------------------------------------------

// ConfigReloadedEvent is emitted after the config file changed on disk and was
// re-read successfully.
type ConfigReloadedEvent struct {
	baseEvent
	Path string
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path string) ConfigReloadedEvent {
	return ConfigReloadedEvent{baseEvent: newBaseEvent(TypeConfigReloaded), Path: path}
}
