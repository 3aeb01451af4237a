package widget

import (
	"time"

	"github.com/aridash/ari/internal/dedup"
	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/tui/styles"
)

// DefaultMaxNotices bounds the notice panel.
const DefaultMaxNotices = 50

// Notices shows system notifications, hiding repeats the dedup filter has
// seen within its TTL.
type Notices struct {
	base
	filter *dedup.Filter
	bus    *event.Bus
	nowFn  func() time.Time

	notices []Notice
	max     int
}

var _ Widget = (*Notices)(nil)

// NewNotices creates the notice panel with its own dedup filter.
func NewNotices(filter *dedup.Filter, bus *event.Bus) *Notices {
	if filter == nil {
		filter = dedup.New()
	}
	return &Notices{
		base:   newBase(NoticesID, "System"),
		filter: filter,
		bus:    bus,
		nowFn:  time.Now,
		max:    DefaultMaxNotices,
	}
}

// SetMaxNotices bounds the panel. Non-positive values are ignored.
func (n *Notices) SetMaxNotices(max int) {
	if max > 0 {
		n.max = max
	}
}

// Apply shows a Notice unless it duplicates a recent one.
func (n *Notices) Apply(u Update) error {
	if err := n.live("apply"); err != nil {
		return err
	}
	notice, ok := u.Payload.(Notice)
	if !ok {
		return errors.NewWidgetError(n.id, "apply", errors.ErrUnsupportedPayload)
	}
	if notice.Text == "" {
		return nil
	}

	show, identity := n.filter.Check(dedup.Notice{
		ID:     notice.ID,
		Level:  notice.Level,
		Source: notice.Source,
		Text:   notice.Text,
		Fields: notice.Fields,
	})
	if !show {
		n.bus.Publish(event.NewNoticeSuppressedEvent(n.id, identity))
		return nil
	}

	if notice.Timestamp.IsZero() {
		notice.Timestamp = n.nowFn()
	}
	n.notices = append(n.notices, notice)
	if over := len(n.notices) - n.max; over > 0 {
		n.notices = append(n.notices[:0:0], n.notices[over:]...)
	}
	n.refresh()
	return nil
}

func levelIcon(level string) string {
	switch level {
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	case "success":
		return "✅"
	default:
		return "ℹ️"
	}
}

func (n *Notices) refresh() {
	lines := make([]string, 0, len(n.notices))
	for _, nt := range n.notices {
		line := styles.Muted.Render(nt.Timestamp.Format("15:04:05")) + " " +
			levelIcon(nt.Level) + " " + styles.NoticeStyle(nt.Level).Render(nt.Text)
		lines = append(lines, line)
	}
	n.setContent(plain(lines))
}

// Notices returns the visible notices, oldest first.
func (n *Notices) Notices() []Notice {
	return append([]Notice(nil), n.notices...)
}

// Clear empties the panel and forgets remembered identities.
func (n *Notices) Clear() error {
	if err := n.live("clear"); err != nil {
		return err
	}
	n.notices = nil
	n.filter.Reset()
	n.refresh()
	return nil
}

// Remove tears the widget down.
func (n *Notices) Remove() error {
	if err := n.live("remove"); err != nil {
		return err
	}
	n.removed = true
	n.notices = nil
	return nil
}

// View renders the framed panel.
func (n *Notices) View() string { return n.frame() }
