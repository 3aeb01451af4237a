package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
)

// Sender is the part of *tea.Program the executor needs.
type Sender interface {
	Send(msg tea.Msg)
}

// pumpMsg tells Update to drain the executor's queue.
type pumpMsg struct{}

// ProgramExecutor makes the Bubble Tea update goroutine the dashboard loop.
// Post queues a task and wakes the program; the model runs queued tasks when
// it receives the wakeup, so tasks execute serially alongside key handling
// and rendering.
type ProgramExecutor struct {
	mu      sync.Mutex
	tasks   []func()
	sender  Sender
	woken   bool
	stopped bool
	logger  *logging.Logger
}

var _ loop.Executor = (*ProgramExecutor)(nil)

// NewProgramExecutor creates an executor. Tasks posted before Attach are held
// until a program is attached.
func NewProgramExecutor(logger *logging.Logger) *ProgramExecutor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ProgramExecutor{logger: logger.WithComponent("tui-executor")}
}

// Attach sets the program that receives wakeups and flushes any held tasks.
func (e *ProgramExecutor) Attach(s Sender) {
	e.mu.Lock()
	e.sender = s
	wake := len(e.tasks) > 0 && !e.woken
	if wake {
		e.woken = true
	}
	e.mu.Unlock()

	if wake {
		go s.Send(pumpMsg{})
	}
}

// Post implements loop.Executor. It never blocks.
func (e *ProgramExecutor) Post(task func()) bool {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.tasks = append(e.tasks, task)
	var s Sender
	if !e.woken && e.sender != nil {
		e.woken = true
		s = e.sender
	}
	e.mu.Unlock()

	if s != nil {
		// Send blocks until the program reads it; never do that on the caller.
		go s.Send(pumpMsg{})
	}
	return true
}

// drain runs the tasks queued so far. Tasks they post are left for the next
// wakeup so key presses and renders interleave with long router backlogs.
// It must be called from the update goroutine.
func (e *ProgramExecutor) drain() int {
	e.mu.Lock()
	batch := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	for _, task := range batch {
		_ = loop.Safe(e.logger, task)
	}

	e.mu.Lock()
	s := e.sender
	more := len(e.tasks) > 0 && s != nil && !e.stopped
	if !more {
		e.woken = false
	}
	e.mu.Unlock()

	if more {
		go s.Send(pumpMsg{})
	}
	return len(batch)
}

// Len returns the number of queued tasks.
func (e *ProgramExecutor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// Stop makes Post reject new tasks and drops queued ones.
func (e *ProgramExecutor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.tasks = nil
}
