// Package keymap holds the dashboard key bindings. Bindings are declared with
// bubbles/key so the help bar renders them and Lookup resolves a key press to
// the command it triggers.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Command represents a named action that can be triggered by a key binding.
type Command string

const (
	CmdNone         Command = ""
	CmdFocusNext    Command = "focus_next"
	CmdFocusPrev    Command = "focus_prev"
	CmdScrollDown   Command = "scroll_down"
	CmdScrollUp     Command = "scroll_up"
	CmdPageDown     Command = "page_down"
	CmdPageUp       Command = "page_up"
	CmdScrollTop    Command = "scroll_top"
	CmdScrollBottom Command = "scroll_bottom"
	CmdClear        Command = "clear"
	CmdToggleHelp   Command = "toggle_help"
	CmdQuit         Command = "quit"
)

// KeyMap is the set of bindings active on the dashboard.
type KeyMap struct {
	FocusNext    key.Binding
	FocusPrev    key.Binding
	ScrollDown   key.Binding
	ScrollUp     key.Binding
	PageDown     key.Binding
	PageUp       key.Binding
	ScrollTop    key.Binding
	ScrollBottom key.Binding
	Clear        key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// Default returns the default bindings.
func Default() KeyMap {
	return KeyMap{
		FocusNext: key.NewBinding(
			key.WithKeys("tab", "l"),
			key.WithHelp("tab", "next panel"),
		),
		FocusPrev: key.NewBinding(
			key.WithKeys("shift+tab", "h"),
			key.WithHelp("shift+tab", "prev panel"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "page down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "page up"),
		),
		ScrollTop: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		ScrollBottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Lookup returns the command bound to msg, or CmdNone.
func (k KeyMap) Lookup(msg tea.KeyMsg) Command {
	for _, e := range k.entries() {
		if key.Matches(msg, e.binding) {
			return e.cmd
		}
	}
	return CmdNone
}

type entry struct {
	binding key.Binding
	cmd     Command
}

func (k KeyMap) entries() []entry {
	return []entry{
		{k.Quit, CmdQuit},
		{k.FocusNext, CmdFocusNext},
		{k.FocusPrev, CmdFocusPrev},
		{k.ScrollDown, CmdScrollDown},
		{k.ScrollUp, CmdScrollUp},
		{k.PageDown, CmdPageDown},
		{k.PageUp, CmdPageUp},
		{k.ScrollTop, CmdScrollTop},
		{k.ScrollBottom, CmdScrollBottom},
		{k.Clear, CmdClear},
		{k.Help, CmdToggleHelp},
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.FocusNext, k.ScrollDown, k.ScrollUp, k.Clear, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.FocusNext, k.FocusPrev},
		{k.ScrollDown, k.ScrollUp, k.PageDown, k.PageUp, k.ScrollTop, k.ScrollBottom},
		{k.Clear, k.Help, k.Quit},
	}
}
