package tui

import "github.com/aridash/ari/internal/widget"

// Layout constants
const (
	// NarrowWidth is the terminal width below which panels stack vertically.
	NarrowWidth = 80
	// MinPanelHeight keeps a panel's title and one content line visible.
	MinPanelHeight = 4
	// ChatWidthPercent is the share of the width given to the left column.
	ChatWidthPercent = 60
)

// PanelOrder is the focus and layout order of the dashboard panels.
var PanelOrder = []string{widget.ChatID, widget.ThinkingID, widget.TasksID, widget.NoticesID}

// Size is a panel's outer size in cells.
type Size struct {
	Width  int
	Height int
}

// PanelSizes divides the body area (terminal minus footer) between the
// panels. Wide terminals get a 2x2 grid with chat and tasks on the left;
// narrow ones stack every panel at full width.
func PanelSizes(width, bodyHeight int) map[string]Size {
	sizes := make(map[string]Size, len(PanelOrder))

	if width < NarrowWidth {
		h := max(MinPanelHeight, bodyHeight/len(PanelOrder))
		for _, id := range PanelOrder {
			sizes[id] = Size{Width: width, Height: h}
		}
		return sizes
	}

	left := width * ChatWidthPercent / 100
	right := width - left
	top := max(MinPanelHeight, bodyHeight/2)
	bottom := max(MinPanelHeight, bodyHeight-top)

	sizes[widget.ChatID] = Size{Width: left, Height: top}
	sizes[widget.ThinkingID] = Size{Width: right, Height: top}
	sizes[widget.TasksID] = Size{Width: left, Height: bottom}
	sizes[widget.NoticesID] = Size{Width: right, Height: bottom}
	return sizes
}
