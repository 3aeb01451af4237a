// Package testutil provides testing utilities for Ari tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/widget"
)

// RunLoop starts a loop.Loop on its own goroutine. The loop is stopped and
// joined when the test completes.
func RunLoop(t *testing.T) *loop.Loop {
	t.Helper()

	lp := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return lp
}

// Eventually polls cond until it returns true or timeout elapses. It reports
// whether cond became true.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// FakeWidget is a widget.Widget that records what it receives. It is safe
// for concurrent use so tests can inspect it from outside the loop.
type FakeWidget struct {
	id string

	mu       sync.Mutex
	updates  []widget.Update
	scrolls  int
	removed  bool
	applyErr error
	panicMsg string
}

var _ widget.Widget = (*FakeWidget)(nil)

// NewFakeWidget creates a FakeWidget with the given ID.
func NewFakeWidget(id string) *FakeWidget {
	return &FakeWidget{id: id}
}

// FailWith makes subsequent Apply calls return err.
func (f *FakeWidget) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr = err
}

// PanicWith makes subsequent Apply calls panic with msg.
func (f *FakeWidget) PanicWith(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicMsg = msg
}

// ID implements widget.Widget.
func (f *FakeWidget) ID() string { return f.id }

// Apply implements widget.Widget.
func (f *FakeWidget) Apply(u widget.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed {
		return errors.NewWidgetError(f.id, "apply", errors.NewNotFoundError("widget", f.id))
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.applyErr != nil {
		return f.applyErr
	}
	f.updates = append(f.updates, u)
	return nil
}

// ScrollToEnd implements widget.Widget.
func (f *FakeWidget) ScrollToEnd(animate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed {
		return errors.NewWidgetError(f.id, "scroll", errors.NewNotFoundError("widget", f.id))
	}
	f.scrolls++
	return nil
}

// Remove implements widget.Widget.
func (f *FakeWidget) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed {
		return errors.NewWidgetError(f.id, "remove", errors.NewNotFoundError("widget", f.id))
	}
	f.removed = true
	return nil
}

// Clear implements widget.Widget.
func (f *FakeWidget) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = nil
	return nil
}

// SetSize implements widget.Widget.
func (f *FakeWidget) SetSize(width, height int) {}

// View implements widget.Widget.
func (f *FakeWidget) View() string { return f.id }

// Updates returns a copy of the applied updates.
func (f *FakeWidget) Updates() []widget.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]widget.Update(nil), f.updates...)
}

// Scrolls returns how many times ScrollToEnd succeeded.
func (f *FakeWidget) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// Text is a minimal payload for routing tests.
type Text string

// Kind implements widget.Payload.
func (Text) Kind() string { return "text" }
