// Package loop provides the single logical event loop the dashboard core runs on.
//
// All widget and component state is mutated only by tasks executing serially on
// the loop. Producers on other goroutines hand work to the loop with Post, which
// never blocks, so timer goroutines can always deliver their callbacks.
package loop

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/logging"
)

// Executor schedules tasks onto a serial event loop.
type Executor interface {
	// Post queues task to run on the loop after every previously posted task.
	// It never blocks and reports false if the loop no longer accepts work.
	Post(task func()) bool
}

// Func adapts a plain function to Executor.
type Func func(task func()) bool

// Post calls f(task).
func (f Func) Post(task func()) bool { return f(task) }

// Loop is a standalone Executor that runs tasks on the goroutine calling Run.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool

	notify chan struct{}
	stop   chan struct{}
	logger *logging.Logger
}

var _ Executor = (*Loop)(nil)

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(l *logging.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// New creates a Loop. Call Run to start executing tasks.
func New(opts ...Option) *Loop {
	lp := &Loop{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Post queues task. It returns false after Stop.
func (lp *Loop) Post(task func()) bool {
	lp.mu.Lock()
	if lp.stopped {
		lp.mu.Unlock()
		return false
	}
	lp.tasks = append(lp.tasks, task)
	lp.mu.Unlock()

	select {
	case lp.notify <- struct{}{}:
	default:
	}
	return true
}

// Run executes tasks until ctx is cancelled or Stop is called. Tasks still
// queued when Run returns are discarded.
func (lp *Loop) Run(ctx context.Context) error {
	for {
		for lp.runOne() {
			select {
			case <-ctx.Done():
				lp.Stop()
				return ctx.Err()
			case <-lp.stop:
				return nil
			default:
			}
		}

		select {
		case <-ctx.Done():
			lp.Stop()
			return ctx.Err()
		case <-lp.stop:
			return nil
		case <-lp.notify:
		}
	}
}

// RunPending runs queued tasks on the calling goroutine until the queue is
// empty, including tasks posted by those tasks. It returns the number run.
// It must not be used concurrently with Run.
func (lp *Loop) RunPending() int {
	n := 0
	for lp.runOne() {
		n++
	}
	return n
}

func (lp *Loop) runOne() bool {
	lp.mu.Lock()
	if len(lp.tasks) == 0 {
		lp.mu.Unlock()
		return false
	}
	task := lp.tasks[0]
	lp.tasks[0] = nil
	lp.tasks = lp.tasks[1:]
	lp.mu.Unlock()

	Safe(lp.logger, task)
	return true
}

// Do posts task and waits until it has run. It must not be called from the
// loop goroutine. Returns false if the loop stopped before the task ran.
func (lp *Loop) Do(task func()) bool {
	done := make(chan struct{})
	if !lp.Post(func() {
		defer close(done)
		task()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-lp.stop:
		return false
	}
}

// Len returns the number of queued tasks.
func (lp *Loop) Len() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.tasks)
}

// Stop makes Run return and rejects further Posts. It is safe to call more than once.
func (lp *Loop) Stop() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.stopped {
		return
	}
	lp.stopped = true
	lp.tasks = nil
	close(lp.stop)
}

// Safe runs task, recovering and logging a panic. It returns the recovered
// panic as an error wrapping errors.ErrDispatchPanic, or nil.
func Safe(logger *logging.Logger, task func()) error {
	var pc panics.Catcher
	pc.Try(task)
	r := pc.Recovered()
	if r == nil {
		return nil
	}
	logger.Error("loop task panicked", "panic", r.Value, "stack", string(r.Stack))
	return errors.Join(errors.ErrDispatchPanic, r.AsError())
}
