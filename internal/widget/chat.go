package widget

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/tui/styles"
)

// DefaultChatHistory bounds the chat transcript.
const DefaultChatHistory = 500

// Message is one rendered chat entry.
type Message struct {
	Sender    string
	Text      string
	Streaming bool
}

// Chat shows agent output. Each sender has at most one streaming message that
// is updated in place until a final chunk finishes it.
type Chat struct {
	base
	messages   []*Message
	streams    map[string]*Message
	maxHistory int
}

var _ Widget = (*Chat)(nil)

// NewChat creates the chat widget.
func NewChat() *Chat {
	return &Chat{
		base:       newBase(ChatID, "Chat"),
		streams:    make(map[string]*Message),
		maxHistory: DefaultChatHistory,
	}
}

// Apply renders a ChatChunk. Chunks with no sender or text are ignored.
func (c *Chat) Apply(u Update) error {
	if err := c.live("apply"); err != nil {
		return err
	}
	chunk, ok := u.Payload.(ChatChunk)
	if !ok {
		return errors.NewWidgetError(c.id, "apply", errors.ErrUnsupportedPayload)
	}
	if chunk.Sender == "" || chunk.Text == "" {
		return nil
	}

	msg, ok := c.streams[chunk.Sender]
	if !ok {
		msg = &Message{Sender: chunk.Sender, Streaming: true}
		c.messages = append(c.messages, msg)
		c.streams[chunk.Sender] = msg
	}
	msg.Text = chunk.Text
	if u.IsFinal {
		msg.Streaming = false
		delete(c.streams, chunk.Sender)
	}

	c.trim()
	c.refresh()
	return nil
}

// SetMaxHistory bounds the transcript. Non-positive values are ignored.
func (c *Chat) SetMaxHistory(n int) {
	if n > 0 {
		c.maxHistory = n
	}
}

func (c *Chat) trim() {
	for len(c.messages) > c.maxHistory {
		old := c.messages[0]
		c.messages[0] = nil
		c.messages = c.messages[1:]
		if c.streams[old.Sender] == old {
			delete(c.streams, old.Sender)
		}
	}
}

func (c *Chat) refresh() {
	width := c.contentWidth()
	body := lipgloss.NewStyle().Width(width)

	lines := make([]string, 0, len(c.messages)*3)
	for _, m := range c.messages {
		if m.Streaming {
			lines = append(lines, styles.SenderStreaming.Render(m.Sender+" ⚡"))
		} else {
			lines = append(lines, styles.Sender.Render(m.Sender))
		}
		lines = append(lines, body.Render(m.Text), "")
	}
	c.setContent(plain(lines))
}

// Messages returns a copy of the transcript.
func (c *Chat) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Clear empties the transcript.
func (c *Chat) Clear() error {
	if err := c.live("clear"); err != nil {
		return err
	}
	c.messages = nil
	clear(c.streams)
	c.refresh()
	return nil
}

// Remove tears the widget down.
func (c *Chat) Remove() error {
	if err := c.live("remove"); err != nil {
		return err
	}
	c.removed = true
	c.messages = nil
	c.streams = nil
	return nil
}

// View renders the framed panel.
func (c *Chat) View() string { return c.frame() }
