// Package coalesce merges overlapping row updates for a list widget while a
// render is in flight, so no update is lost and at most one follow-up render
// is scheduled per completed render.
package coalesce

import (
	"sync"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
)

// State is the render-guard state of one widget.
type State int

const (
	// Idle means no render is in flight.
	Idle State = iota
	// Rendering means a render started and has not completed.
	Rendering
)

// String returns "idle" or "rendering".
func (s State) String() string {
	if s == Rendering {
		return "rendering"
	}
	return "idle"
}

// Patch is one incoming change to a row. An empty Result leaves the previous
// result in place.
type Patch struct {
	Status int
	Result string
}

// PendingUpdate is the merged, not-yet-rendered state of one row.
type PendingUpdate struct {
	RowKey       string
	LatestStatus int
	LatestResult string
	MergeCount   int
}

func (p *PendingUpdate) merge(patch Patch) {
	p.LatestStatus = patch.Status
	if patch.Result != "" {
		p.LatestResult = patch.Result
	}
	p.MergeCount++
}

// RenderFunc renders a batch of merged updates. It runs on the loop and may
// finish asynchronously; done must be called exactly once, from any goroutine.
type RenderFunc func(batch []PendingUpdate, done func(error))

// Coalescer is the render guard for a single widget. All methods except the
// done callback handed to RenderFunc must be called on the loop.
type Coalescer struct {
	widgetID string
	exec     loop.Executor
	render   RenderFunc
	bus      *event.Bus
	logger   *logging.Logger

	state   State
	pending map[string]*PendingUpdate
	order   []string
	dirty   bool
	renders int
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithBus publishes render.completed and timer.race events.
func WithBus(b *event.Bus) Option {
	return func(c *Coalescer) { c.bus = b }
}

// WithLogger sets the coalescer logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coalescer) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Coalescer for widgetID. Render completions are posted to exec.
func New(widgetID string, exec loop.Executor, render RenderFunc, opts ...Option) *Coalescer {
	c := &Coalescer{
		widgetID: widgetID,
		exec:     exec,
		render:   render,
		logger:   logging.NopLogger(),
		pending:  make(map[string]*PendingUpdate),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("coalesce").WithWidget(widgetID)
	return c
}

// Submit merges patch into rowKey's pending update and starts a render if none
// is in flight. While Rendering the patch only merges; the completion of the
// current render picks it up.
func (c *Coalescer) Submit(rowKey string, patch Patch) {
	p, ok := c.pending[rowKey]
	if !ok {
		p = &PendingUpdate{RowKey: rowKey}
		c.pending[rowKey] = p
		c.order = append(c.order, rowKey)
	}
	p.merge(patch)

	if c.state == Idle {
		_ = c.start()
	}
}

// Invalidate requests a render without a row patch, for changes that affect
// the whole widget. While Rendering it marks the widget dirty so completion
// schedules the follow-up.
func (c *Coalescer) Invalidate() {
	if c.state == Rendering {
		c.dirty = true
		return
	}
	_ = c.start()
}

// Render starts a render of whatever is pending, even if nothing is. It returns
// an error matching errors.ErrRenderReentrant when a render is already in flight.
func (c *Coalescer) Render() error {
	return c.start()
}

func (c *Coalescer) start() error {
	if c.state == Rendering {
		err := errors.NewTimerError("render:"+c.widgetID, errors.ErrRenderReentrant)
		c.logger.Error("render started while rendering", "error", err)
		c.bus.Publish(event.NewTimerRaceEvent("render", c.widgetID, err))
		return err
	}

	batch := make([]PendingUpdate, 0, len(c.order))
	for _, key := range c.order {
		batch = append(batch, *c.pending[key])
	}
	clear(c.pending)
	c.order = c.order[:0]
	c.dirty = false

	c.state = Rendering
	c.renders++

	var once sync.Once
	c.render(batch, func(err error) {
		once.Do(func() {
			c.exec.Post(func() { c.finish(len(batch), err) })
		})
	})
	return nil
}

// finish runs on the loop.
func (c *Coalescer) finish(rows int, err error) {
	c.state = Idle
	if err != nil {
		c.logger.Warn("render failed", "rows", rows, "error", err)
	}

	followUp := len(c.order) > 0 || c.dirty
	c.bus.Publish(event.NewRenderCompletedEvent(c.widgetID, rows, followUp))
	if followUp {
		_ = c.start()
	}
}

// State returns the current render-guard state.
func (c *Coalescer) State() State {
	return c.state
}

// Pending returns the merged update waiting for rowKey, if any.
func (c *Coalescer) Pending(rowKey string) (PendingUpdate, bool) {
	p, ok := c.pending[rowKey]
	if !ok {
		return PendingUpdate{}, false
	}
	return *p, true
}

// PendingLen returns the number of rows waiting for a render.
func (c *Coalescer) PendingLen() int {
	return len(c.order)
}

// Renders returns how many renders have started.
func (c *Coalescer) Renders() int {
	return c.renders
}
