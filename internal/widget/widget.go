// Package widget implements the dashboard panels the router dispatches to:
// chat stream, thinking panel, task list and system notices.
//
// Every widget is confined to the loop: Apply, ScrollToEnd, Remove, Clear,
// SetSize and View must be called from the loop goroutine. After Remove every
// operation returns an error matching errors.ErrWidgetNotFound.
package widget

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/tui/styles"
)

// Well-known widget IDs.
const (
	ChatID     = "chat"
	ThinkingID = "thinking"
	TasksID    = "tasks"
	NoticesID  = "notices"
)

// Update is one routed payload with its finality flag.
type Update struct {
	Payload Payload
	IsFinal bool
}

// Widget is the capability set the router and scroll debouncer rely on.
type Widget interface {
	ID() string
	Apply(u Update) error
	ScrollToEnd(animate bool) error
	Remove() error
	Clear() error
	SetSize(width, height int)
	View() string
}

// base carries the parts every panel shares: identity, removal state and a
// scrollable viewport inside a titled frame.
type base struct {
	id      string
	title   string
	removed bool
	width   int
	height  int
	vp      viewport.Model
}

func newBase(id, title string) base {
	return base{
		id:    id,
		title: title,
		vp:    viewport.New(0, 0),
	}
}

// ID returns the widget ID.
func (b *base) ID() string { return b.id }

// live returns a NotFound error once the widget has been removed.
func (b *base) live(op string) error {
	if b.removed {
		return errors.NewWidgetError(b.id, op, errors.NewNotFoundError("widget", b.id))
	}
	return nil
}

// ScrollToEnd moves the viewport to the last line. Terminal viewports have no
// scroll animation, so animate is ignored.
func (b *base) ScrollToEnd(animate bool) error {
	if err := b.live("scroll"); err != nil {
		return err
	}
	b.vp.GotoBottom()
	return nil
}

// Scroll moves the viewport by delta lines (negative scrolls up).
func (b *base) Scroll(delta int) {
	b.vp.SetYOffset(b.vp.YOffset + delta)
}

// AtBottom reports whether the viewport shows the last line.
func (b *base) AtBottom() bool {
	return b.vp.AtBottom()
}

// SetSize sets the outer size of the panel including its frame.
func (b *base) SetSize(width, height int) {
	b.width, b.height = width, height
	// Border (2) + horizontal padding (2); border (2) + title line (1).
	b.vp.Width = max(1, width-4)
	b.vp.Height = max(1, height-3)
}

func (b *base) setContent(s string) {
	b.vp.SetContent(s)
}

// contentWidth is the usable text width, with a floor for unsized panels.
func (b *base) contentWidth() int {
	if b.vp.Width < 20 {
		return 80
	}
	return b.vp.Width
}

func (b *base) frame() string {
	if b.removed {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left, styles.PanelTitle.Render(b.title), b.vp.View())
	style := styles.Panel
	if b.width > 0 {
		style = style.Width(b.width - 2)
	}
	return style.Render(body)
}

// plain strips trailing blank lines so panels don't grow empty tails.
func plain(lines []string) string {
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
