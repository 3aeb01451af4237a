// Package timer provides a cancel-safe registry of per-key delayed callbacks.
//
// At most one timer is live per key. Arming a key first cancels and awaits the
// previous timer, cancellation waits for the timer goroutine to exit, and the
// cancel state is re-checked on the loop right before a callback runs, so a
// fire that was already queued when Cancel returned becomes a no-op.
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
)

// Timer states.
const (
	stateArmed int32 = iota
	stateFiring
	stateCancelled
	stateDone
)

// Handle identifies one arming of a key.
type Handle struct {
	Key     string
	FiresAt time.Time
	token   uint64
}

type entry struct {
	Handle
	callback func()
	state    atomic.Int32
	stop     chan struct{}
	exited   chan struct{}
	// gone is closed when the entry leaves the map.
	gone chan struct{}
}

// Registry maps keys to live timers. Callbacks run on the registry's executor.
// Arm, Cancel and ClearAll may be called from the loop or from other goroutines;
// they must not be called while holding a lock a callback also takes.
type Registry struct {
	name   string
	exec   loop.Executor
	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	timers    map[string]*entry
	nextToken uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithBus publishes timer.fired, timer.cancelled and timer.race events.
func WithBus(b *event.Bus) Option {
	return func(r *Registry) { r.bus = b }
}

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a Registry whose callbacks are posted to exec.
// name labels events and logs ("scroll", "thinking", ...).
func NewRegistry(name string, exec loop.Executor, opts ...Option) *Registry {
	r := &Registry{
		name:   name,
		exec:   exec,
		logger: logging.NopLogger(),
		now:    time.Now,
		timers: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("timer").With("registry", name)
	return r
}

// Arm schedules callback to run on the loop after delay, replacing any live
// timer for key. The previous timer is cancelled and awaited before the new one
// is installed.
func (r *Registry) Arm(key string, delay time.Duration, callback func()) *Handle {
	r.Cancel(key)

	r.mu.Lock()
	for {
		prev, ok := r.timers[key]
		if !ok {
			break
		}
		// Another goroutine armed key between our Cancel and here, or prev
		// is firing and has not left the map yet.
		r.mu.Unlock()
		r.reportRace(key)
		if !r.cancelEntry(prev) {
			<-prev.gone
		}
		r.mu.Lock()
	}
	r.nextToken++
	e := &entry{
		Handle: Handle{
			Key:     key,
			FiresAt: r.now().Add(delay),
			token:   r.nextToken,
		},
		callback: callback,
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
		gone:     make(chan struct{}),
	}
	r.timers[key] = e
	r.mu.Unlock()

	go r.wait(e, delay)

	h := e.Handle
	return &h
}

func (r *Registry) wait(e *entry, delay time.Duration) {
	defer close(e.exited)

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		if !r.exec.Post(func() { r.fire(e) }) {
			// Loop is gone; nothing will run the callback.
			if e.state.CompareAndSwap(stateArmed, stateDone) {
				r.remove(e)
			}
		}
	case <-e.stop:
	}
}

// fire runs on the loop.
func (r *Registry) fire(e *entry) {
	if !e.state.CompareAndSwap(stateArmed, stateFiring) {
		return
	}
	if !r.remove(e) {
		r.reportRace(e.Key)
		e.state.Store(stateDone)
		return
	}

	_ = loop.Safe(r.logger, e.callback)
	e.state.Store(stateDone)

	r.logger.Debug("timer fired", "key", e.Key)
	r.bus.Publish(event.NewTimerFiredEvent(r.name, e.Key))
}

// remove deletes e from the map if it is still the live entry for its key.
func (r *Registry) remove(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.timers[e.Key]; ok && cur == e {
		delete(r.timers, e.Key)
		close(e.gone)
		return true
	}
	return false
}

// Cancel stops the live timer for key and waits for its goroutine to exit.
// It returns true if a timer was cancelled before its callback started. A
// callback that is already running (for example one calling Cancel on its own
// key) is not interrupted and Cancel returns false.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	e, ok := r.timers[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.cancelEntry(e)
}

// Stop cancels h only if it is still the live timer for its key. A stale
// handle leaves a newer timer for the same key alone.
func (r *Registry) Stop(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	e, ok := r.timers[h.Key]
	r.mu.Unlock()
	if !ok || e.token != h.token {
		return false
	}
	return r.cancelEntry(e)
}

func (r *Registry) cancelEntry(e *entry) bool {
	if !e.state.CompareAndSwap(stateArmed, stateCancelled) {
		return false
	}
	r.remove(e)
	close(e.stop)
	<-e.exited

	r.logger.Debug("timer cancelled", "key", e.Key)
	r.bus.Publish(event.NewTimerCancelledEvent(r.name, e.Key))
	return true
}

// ClearAll cancels every live timer, awaiting each. It returns the number
// cancelled. Owners call it on teardown.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.timers))
	for _, e := range r.timers {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	n := 0
	for _, e := range entries {
		if r.cancelEntry(e) {
			n++
		}
	}
	return n
}

// Live reports whether key has a timer that has not fired or been cancelled.
func (r *Registry) Live(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[key]
	return ok
}

// Current returns a copy of the live handle for key, or nil.
func (r *Registry) Current(key string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[key]
	if !ok {
		return nil
	}
	h := e.Handle
	return &h
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Registry) reportRace(key string) {
	err := errors.NewTimerError(key, errors.ErrTimerRace)
	r.logger.Error("timer race detected", "key", key, "error", err)
	r.bus.Publish(event.NewTimerRaceEvent(r.name, key, err))
}
