// Package router moves widget updates from producers to the loop.
//
// Producers call RouteMessage from any goroutine; it only takes the queue
// mutex. A single batch processor runs on the loop, dispatching up to
// BatchSize messages per cycle before re-posting itself so input and timers
// interleave with dispatch.
//
// The queue is bounded. When it is full the router evicts the oldest
// non-final message, never evicting a final message while an older
// non-final for the same target is queued:
//
//  1. incoming final for T: evict the oldest queued non-final for T;
//  2. otherwise evict the oldest queued non-final message;
//  3. if every queued message is final and the incoming one is not, drop it;
//  4. if every queued message is final and so is the incoming one, evict the
//     oldest message.
//
// The producer is never told the queue is full.
package router

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/widget"
)

// Defaults used when no option overrides them.
const (
	DefaultCapacity      = 50
	DefaultBatchSize     = 10
	DefaultYieldInterval = 100 * time.Millisecond
)

// UpdateMessage is one routed update. Sequence orders messages per target; a
// zero Sequence is assigned at ingestion.
type UpdateMessage struct {
	TargetWidgetID string
	Payload        widget.Payload
	IsFinal        bool
	Sequence       uint64
}

// Resolver finds the widget for a target ID. widget.Registry implements it.
type Resolver interface {
	Lookup(id string) (widget.Widget, error)
}

// Notifier is told after each successful dispatch. scroll.Debouncer implements it.
type Notifier interface {
	Notify(widgetID string)
}

// Stats is a snapshot of router counters.
type Stats struct {
	Received   int64
	Dispatched int64
	Evicted    int64
	Rejected   int64
	Stale      int64
	Failed     int64
	Batches    int64
	Queued     int
}

// Router is the bounded, batching update pipeline.
type Router struct {
	exec     loop.Executor
	widgets  Resolver
	scroller Notifier
	bus      *event.Bus
	logger   *logging.Logger
	dropWarn *rate.Limiter

	capacity      int
	batchSize     int
	yieldInterval time.Duration

	mu      sync.Mutex
	queue   []UpdateMessage
	nextSeq uint64
	closed  bool

	processing atomic.Bool

	// lastDispatched is only touched on the loop.
	lastDispatched map[string]uint64

	received   atomic.Int64
	dispatched atomic.Int64
	evicted    atomic.Int64
	rejected   atomic.Int64
	stale      atomic.Int64
	failed     atomic.Int64
	batches    atomic.Int64
}

// Option configures a Router.
type Option func(*Router)

// WithCapacity sets the queue bound.
func WithCapacity(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithBatchSize sets how many messages one cycle dispatches at most.
func WithBatchSize(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithYieldInterval bounds how long one cycle may dispatch before yielding.
// Zero disables the time bound.
func WithYieldInterval(d time.Duration) Option {
	return func(r *Router) {
		if d >= 0 {
			r.yieldInterval = d
		}
	}
}

// WithScroller sets the notifier told about every successful dispatch.
func WithScroller(n Notifier) Option {
	return func(r *Router) { r.scroller = n }
}

// WithBus publishes router events on b.
func WithBus(b *event.Bus) Option {
	return func(r *Router) { r.bus = b }
}

// WithLogger sets the router logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router that dispatches on exec to widgets resolved by widgets.
func New(exec loop.Executor, widgets Resolver, opts ...Option) *Router {
	r := &Router{
		exec:           exec,
		widgets:        widgets,
		logger:         logging.NopLogger(),
		dropWarn:       rate.NewLimiter(rate.Every(time.Second), 3),
		capacity:       DefaultCapacity,
		batchSize:      DefaultBatchSize,
		yieldInterval:  DefaultYieldInterval,
		lastDispatched: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("router")
	return r
}

// Route enqueues payload for target with a fresh sequence and returns it.
func (r *Router) Route(target string, payload widget.Payload, isFinal bool) (uint64, error) {
	return r.enqueue(UpdateMessage{TargetWidgetID: target, Payload: payload, IsFinal: isFinal})
}

// RouteMessage enqueues msg. It never blocks on the loop and never reports a
// full queue; it fails only after Close.
func (r *Router) RouteMessage(msg UpdateMessage) error {
	_, err := r.enqueue(msg)
	return err
}

// enqueue assigns a zero Sequence under mu, so a message is queued before any
// message with a higher sequence can be dispatched.
func (r *Router) enqueue(msg UpdateMessage) (uint64, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, errors.Wrapf(errors.ErrRouterClosed, "route to %s", msg.TargetWidgetID)
	}
	if msg.Sequence == 0 {
		r.nextSeq++
		msg.Sequence = r.nextSeq
	} else {
		r.observeSequence(msg.Sequence)
	}
	r.received.Add(1)

	var (
		victim   UpdateMessage
		evicted  bool
		rejected bool
	)
	if len(r.queue) >= r.capacity {
		idx := r.victimIndex(msg)
		if idx < 0 {
			rejected = true
		} else {
			victim = r.queue[idx]
			evicted = true
			r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
		}
	}
	if !rejected {
		r.insert(msg)
	}
	r.mu.Unlock()

	switch {
	case rejected:
		r.rejected.Add(1)
		r.bus.Publish(event.NewMessageRejectedEvent(msg.TargetWidgetID, msg.Sequence))
		r.warnDrop("queue full, dropped incoming message", msg, errors.ErrMessageRejected)
		return msg.Sequence, nil
	case evicted:
		r.evicted.Add(1)
		r.bus.Publish(event.NewMessageEvictedEvent(victim.TargetWidgetID, victim.Sequence, victim.IsFinal))
		r.warnDrop("queue full, evicted message", victim, errors.ErrMessageEvicted)
	}

	r.schedule()
	return msg.Sequence, nil
}

// observeSequence keeps auto-assigned sequences above producer-assigned ones.
// Must be called with mu held.
func (r *Router) observeSequence(seq uint64) {
	if seq > r.nextSeq {
		r.nextSeq = seq
	}
}

// victimIndex picks the message to evict for incoming, or -1 to reject
// incoming. Must be called with mu held.
func (r *Router) victimIndex(incoming UpdateMessage) int {
	if incoming.IsFinal {
		for i, m := range r.queue {
			if !m.IsFinal && m.TargetWidgetID == incoming.TargetWidgetID {
				return i
			}
		}
	}
	for i, m := range r.queue {
		if !m.IsFinal {
			return i
		}
	}
	if !incoming.IsFinal {
		return -1
	}
	return 0
}

// insert keeps the queue sorted by Sequence. Must be called with mu held.
func (r *Router) insert(msg UpdateMessage) {
	n := len(r.queue)
	if n == 0 || r.queue[n-1].Sequence <= msg.Sequence {
		r.queue = append(r.queue, msg)
		return
	}
	i := sort.Search(n, func(i int) bool { return r.queue[i].Sequence > msg.Sequence })
	r.queue = append(r.queue, UpdateMessage{})
	copy(r.queue[i+1:], r.queue[i:])
	r.queue[i] = msg
}

func (r *Router) warnDrop(msg string, m UpdateMessage, cause error) {
	if !r.dropWarn.Allow() {
		return
	}
	r.logger.Warn(msg,
		"target", m.TargetWidgetID,
		"seq", m.Sequence,
		"final", m.IsFinal,
		"error", errors.Join(errors.ErrQueueFull, cause),
		"evicted_total", r.evicted.Load(),
		"rejected_total", r.rejected.Load(),
	)
}

// schedule starts the batch processor unless one is already running.
func (r *Router) schedule() {
	if !r.processing.CompareAndSwap(false, true) {
		return
	}
	if !r.exec.Post(r.processBatch) {
		r.processing.Store(false)
	}
}

func (r *Router) pop() (UpdateMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return UpdateMessage{}, false
	}
	msg := r.queue[0]
	r.queue[0] = UpdateMessage{}
	r.queue = r.queue[1:]
	return msg, true
}

// processBatch runs on the loop.
func (r *Router) processBatch() {
	start := time.Now()
	n := 0
	for n < r.batchSize {
		msg, ok := r.pop()
		if !ok {
			break
		}
		r.dispatch(msg)
		n++
		if r.yieldInterval > 0 && time.Since(start) >= r.yieldInterval {
			break
		}
	}

	remaining := r.Len()
	if n > 0 {
		r.batches.Add(1)
		r.bus.Publish(event.NewBatchProcessedEvent(n, remaining, time.Since(start)))
	}

	if remaining > 0 && r.exec.Post(r.processBatch) {
		return
	}

	r.processing.Store(false)
	// A producer may have enqueued between the last pop and the release.
	if r.Len() > 0 {
		r.schedule()
	}
}

func (r *Router) dispatch(msg UpdateMessage) {
	target := msg.TargetWidgetID
	if last, ok := r.lastDispatched[target]; ok && msg.Sequence <= last {
		r.stale.Add(1)
		r.bus.Publish(event.NewMessageStaleEvent(target, msg.Sequence, msg.IsFinal))
		r.logger.Debug("dropped stale message", "target", target, "seq", msg.Sequence, "last", last)
		return
	}
	r.lastDispatched[target] = msg.Sequence

	var applyErr error
	panicErr := loop.Safe(r.logger, func() {
		w, err := r.widgets.Lookup(target)
		if err != nil {
			applyErr = err
			return
		}
		applyErr = w.Apply(widget.Update{Payload: msg.Payload, IsFinal: msg.IsFinal})
	})
	if err := errors.Join(panicErr, applyErr); err != nil {
		r.fail(msg, err)
		return
	}

	r.dispatched.Add(1)
	if r.scroller != nil {
		r.scroller.Notify(target)
	}
}

func (r *Router) fail(msg UpdateMessage, cause error) {
	err := errors.NewDispatchError(msg.TargetWidgetID, msg.Sequence, cause)
	r.failed.Add(1)
	r.bus.Publish(event.NewDispatchFailedEvent(msg.TargetWidgetID, msg.Sequence, err))

	if errors.IsNotFound(err) {
		r.logger.Debug("dispatch to missing widget", "target", msg.TargetWidgetID, "seq", msg.Sequence)
		return
	}
	r.logger.Warn("dispatch failed",
		"target", msg.TargetWidgetID,
		"seq", msg.Sequence,
		"severity", err.Severity().String(),
		"error", err,
	)
}

// Len returns the number of queued messages.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Idle reports whether the queue is empty and no batch is scheduled.
func (r *Router) Idle() bool {
	return r.Len() == 0 && !r.processing.Load()
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() Stats {
	return Stats{
		Received:   r.received.Load(),
		Dispatched: r.dispatched.Load(),
		Evicted:    r.evicted.Load(),
		Rejected:   r.rejected.Load(),
		Stale:      r.stale.Load(),
		Failed:     r.failed.Load(),
		Batches:    r.batches.Load(),
		Queued:     r.Len(),
	}
}

// Close stops accepting messages. Messages already queued are still
// dispatched while the loop runs. Close is idempotent.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.logger.Debug("router closed", "queued", len(r.queue))
	}
}
