// Package scroll collapses bursts of "content changed" signals into a single
// trailing scroll-to-end per widget.
package scroll

import (
	"sync/atomic"
	"time"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/timer"
)

// DefaultWindow is the trailing debounce window.
const DefaultWindow = 50 * time.Millisecond

// Scroller is the part of a widget the debouncer drives.
type Scroller interface {
	ScrollToEnd(animate bool) error
}

// ResolveFunc looks up a widget by ID at fire time. It returns an error
// matching errors.ErrWidgetNotFound when the widget is gone.
type ResolveFunc func(widgetID string) (Scroller, error)

// Debouncer schedules at most one pending scroll per widget. Every Notify
// within the window pushes the scroll back; only the last one fires.
type Debouncer struct {
	timers  *timer.Registry
	resolve ResolveFunc
	window  time.Duration
	animate bool
	bus     *event.Bus
	logger  *logging.Logger

	flushes atomic.Int64
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithWindow overrides DefaultWindow. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.window = d
		}
	}
}

// WithBus publishes scroll.flushed events and timer events for the
// debouncer's registry.
func WithBus(b *event.Bus) Option {
	return func(db *Debouncer) { db.bus = b }
}

// WithLogger sets the debouncer logger.
func WithLogger(l *logging.Logger) Option {
	return func(db *Debouncer) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates a Debouncer whose scrolls run on exec.
func New(exec loop.Executor, resolve ResolveFunc, opts ...Option) *Debouncer {
	db := &Debouncer{
		resolve: resolve,
		window:  DefaultWindow,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.WithComponent("scroll")
	db.timers = timer.NewRegistry("scroll", exec,
		timer.WithBus(db.bus),
		timer.WithLogger(db.logger))
	return db
}

// Notify records that widgetID's content changed. The scroll fires one window
// after the last Notify for that widget.
func (db *Debouncer) Notify(widgetID string) {
	db.timers.Arm(widgetID, db.window, func() { db.flush(widgetID) })
}

// flush runs on the loop.
func (db *Debouncer) flush(widgetID string) {
	db.flushes.Add(1)

	s, err := db.resolve(widgetID)
	if err == nil {
		err = s.ScrollToEnd(db.animate)
	}

	switch {
	case err == nil:
		db.bus.Publish(event.NewScrollFlushedEvent(widgetID, true))
	case errors.IsNotFound(err):
		db.bus.Publish(event.NewScrollFlushedEvent(widgetID, false))
	default:
		db.logger.Warn("scroll to end failed", "widget_id", widgetID, "error", err)
	}
}

// Pending reports whether a scroll is scheduled for widgetID.
func (db *Debouncer) Pending(widgetID string) bool {
	return db.timers.Live(widgetID)
}

// Cancel drops a scheduled scroll for widgetID.
func (db *Debouncer) Cancel(widgetID string) bool {
	return db.timers.Cancel(widgetID)
}

// Flushes returns how many scrolls have fired.
func (db *Debouncer) Flushes() int64 {
	return db.flushes.Load()
}

// Window returns the debounce window.
func (db *Debouncer) Window() time.Duration {
	return db.window
}

// Close cancels every pending scroll and waits for the timers to exit.
func (db *Debouncer) Close() int {
	return db.timers.ClearAll()
}
