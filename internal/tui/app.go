// Package tui is the terminal front end of the dashboard. The Bubble Tea
// update goroutine doubles as the dashboard loop: routed updates, timer
// callbacks and render completions are posted through ProgramExecutor and
// run between key presses.
package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/widget"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	exec    *ProgramExecutor
}

// New creates a new TUI application over the panels in widgets.
func New(exec *ProgramExecutor, widgets *widget.Registry, opts ...Option) *App {
	return &App{
		model: NewModel(exec, widgets, opts...),
		exec:  exec,
	}
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	a.exec.Attach(a.program)

	// Raw mode turns ctrl+c into a key press; other signals still need a clean
	// quit so the terminal is restored.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigChan:
			a.program.Send(tea.Quit())
		case <-done:
		}
	}()

	_, err := a.program.Run()
	a.exec.Stop()

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
