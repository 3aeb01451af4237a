package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/router"
	"github.com/aridash/ari/internal/tui/keymap"
	"github.com/aridash/ari/internal/tui/styles"
	"github.com/aridash/ari/internal/widget"
)

// footerRefresh is how often the stats footer is redrawn when nothing else
// triggers a render.
const footerRefresh = 250 * time.Millisecond

// StatsFunc reports the router counters shown in the footer.
type StatsFunc func() router.Stats

// scrollable is implemented by every dashboard panel.
type scrollable interface {
	Scroll(delta int)
	ScrollToEnd(animate bool) error
}

type tickMsg time.Time

// Model is the Bubble Tea model of the dashboard. It owns no widget state:
// it lays the registered panels out, forwards keys to them and drains the
// executor so routed updates run on the update goroutine.
type Model struct {
	exec    *ProgramExecutor
	widgets *widget.Registry
	keys    keymap.KeyMap
	help    help.Model
	stats   StatsFunc
	logger  *logging.Logger
	onQuit  func()

	width    int
	height   int
	focus    int
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithStats sets the footer stats source.
func WithStats(fn StatsFunc) Option {
	return func(m *Model) { m.stats = fn }
}

// WithLogger sets the model logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithQuitHook sets a function called once when the user quits.
func WithQuitHook(fn func()) Option {
	return func(m *Model) { m.onQuit = fn }
}

// NewModel creates the dashboard model over the panels in widgets.
func NewModel(exec *ProgramExecutor, widgets *widget.Registry, opts ...Option) Model {
	m := Model{
		exec:    exec,
		widgets: widgets,
		keys:    keymap.Default(),
		help:    help.New(),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logger = m.logger.WithComponent("tui")
	return m
}

func tick() tea.Cmd {
	return tea.Tick(footerRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pumpMsg:
		m.exec.drain()
		return m, nil

	case tickMsg:
		return m, tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.keys.Lookup(msg) {
	case keymap.CmdQuit:
		m.quitting = true
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit
	case keymap.CmdFocusNext:
		m.focus = (m.focus + 1) % len(PanelOrder)
	case keymap.CmdFocusPrev:
		m.focus = (m.focus + len(PanelOrder) - 1) % len(PanelOrder)
	case keymap.CmdScrollDown:
		m.scrollFocused(1)
	case keymap.CmdScrollUp:
		m.scrollFocused(-1)
	case keymap.CmdPageDown:
		m.scrollFocused(m.pageSize())
	case keymap.CmdPageUp:
		m.scrollFocused(-m.pageSize())
	case keymap.CmdScrollTop:
		m.scrollFocused(-1 << 30)
	case keymap.CmdScrollBottom:
		if s, ok := m.focused(); ok {
			_ = s.ScrollToEnd(false)
		}
	case keymap.CmdClear:
		m.clearAll()
	case keymap.CmdToggleHelp:
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	}
	return m, nil
}

// FocusedID returns the ID of the panel that receives scroll keys.
func (m Model) FocusedID() string {
	return PanelOrder[m.focus]
}

func (m Model) focused() (scrollable, bool) {
	w, err := m.widgets.Lookup(m.FocusedID())
	if err != nil {
		return nil, false
	}
	s, ok := w.(scrollable)
	return s, ok
}

func (m Model) scrollFocused(delta int) {
	if s, ok := m.focused(); ok {
		s.Scroll(delta)
	}
}

func (m Model) pageSize() int {
	size := PanelSizes(m.width, m.bodyHeight())[m.FocusedID()]
	return max(1, size.Height-3)
}

func (m Model) clearAll() {
	for _, w := range m.widgets.All() {
		if err := w.Clear(); err != nil {
			m.logger.Debug("clear skipped", "widget", w.ID(), "error", err)
		}
	}
}

func (m Model) bodyHeight() int {
	return max(0, m.height-lipgloss.Height(m.footer()))
}

func (m Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	for id, size := range PanelSizes(m.width, m.bodyHeight()) {
		w, err := m.widgets.Lookup(id)
		if err != nil {
			continue
		}
		w.SetSize(size.Width, size.Height)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	if m.width < NarrowWidth {
		body = lipgloss.JoinVertical(lipgloss.Left, m.panels(PanelOrder...)...)
	} else {
		top := lipgloss.JoinHorizontal(lipgloss.Top, m.panels(widget.ChatID, widget.ThinkingID)...)
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, m.panels(widget.TasksID, widget.NoticesID)...)
		body = lipgloss.JoinVertical(lipgloss.Left, top, bottom)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footer())
}

func (m Model) panels(ids ...string) []string {
	views := make([]string, 0, len(ids))
	for _, id := range ids {
		w, err := m.widgets.Lookup(id)
		if err != nil {
			continue
		}
		views = append(views, w.View())
	}
	return views
}

func (m Model) footer() string {
	status := styles.HelpKey.Render("▶ "+m.FocusedID()) + "  " + m.statsLine()
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.StatusBar.Width(max(0, m.width)).Render(status),
		m.help.View(m.keys))
}

func (m Model) statsLine() string {
	if m.stats == nil {
		return ""
	}
	s := m.stats()
	parts := []string{
		fmt.Sprintf("recv %s", humanize.Comma(s.Received)),
		fmt.Sprintf("sent %s", humanize.Comma(s.Dispatched)),
		fmt.Sprintf("queued %d", s.Queued),
		fmt.Sprintf("evicted %s", humanize.Comma(s.Evicted)),
		fmt.Sprintf("stale %s", humanize.Comma(s.Stale)),
		fmt.Sprintf("failed %s", humanize.Comma(s.Failed)),
	}
	return strings.Join(parts, " · ")
}
