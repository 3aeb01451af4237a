package widget

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/timer"
	"github.com/aridash/ari/internal/tui/styles"
)

// DefaultClearDelay is how long a completed thinking entry stays visible.
const DefaultClearDelay = 3 * time.Second

// maxInputCells bounds each tool input value in the thinking panel.
const maxInputCells = 60

// ThinkingState is the lifecycle state of an agent's thinking entry.
type ThinkingState int

const (
	// ThinkingActive means the agent is still producing steps.
	ThinkingActive ThinkingState = iota
	// ThinkingCompletePendingClear means the agent finished and a clear timer is armed.
	ThinkingCompletePendingClear
)

// String returns the state name.
func (s ThinkingState) String() string {
	if s == ThinkingCompletePendingClear {
		return "complete_pending_clear"
	}
	return "active"
}

// Step is one tool call (or reasoning block) inside a thinking entry.
type Step struct {
	Tool  string
	Input map[string]string
	Text  string
}

// ThinkingEntry is one agent's visible thinking. The widget owns the entry;
// the timer registry only knows ClearTimerKey.
type ThinkingEntry struct {
	AgentID       string
	Steps         []Step
	State         ThinkingState
	ClearTimerKey string
}

// Thinking shows what each agent is currently doing. Completed entries are
// cleared after a delay unless the agent resumes first.
type Thinking struct {
	base
	timers     *timer.Registry
	clearDelay time.Duration
	logger     *logging.Logger

	entries map[string]*ThinkingEntry
	order   []string
}

var _ Widget = (*Thinking)(nil)

// ThinkingOption configures a Thinking widget.
type ThinkingOption func(*thinkingConfig)

type thinkingConfig struct {
	clearDelay time.Duration
	bus        *event.Bus
	logger     *logging.Logger
}

// WithClearDelay overrides DefaultClearDelay.
func WithClearDelay(d time.Duration) ThinkingOption {
	return func(c *thinkingConfig) {
		if d > 0 {
			c.clearDelay = d
		}
	}
}

// WithThinkingBus publishes the clear timers' events on b.
func WithThinkingBus(b *event.Bus) ThinkingOption {
	return func(c *thinkingConfig) { c.bus = b }
}

// WithThinkingLogger sets the widget logger.
func WithThinkingLogger(l *logging.Logger) ThinkingOption {
	return func(c *thinkingConfig) { c.logger = l }
}

// NewThinking creates the thinking widget. Clear timers fire on exec.
func NewThinking(exec loop.Executor, opts ...ThinkingOption) *Thinking {
	cfg := thinkingConfig{clearDelay: DefaultClearDelay, logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	logger := cfg.logger.WithWidget(ThinkingID)

	return &Thinking{
		base:       newBase(ThinkingID, "Thinking"),
		timers:     timer.NewRegistry("thinking", exec, timer.WithBus(cfg.bus), timer.WithLogger(logger)),
		clearDelay: cfg.clearDelay,
		logger:     logger,
		entries:    make(map[string]*ThinkingEntry),
	}
}

func clearKey(agent string) string { return "clear:" + agent }

// Apply handles ThinkingStep and ThinkingDone.
func (t *Thinking) Apply(u Update) error {
	if err := t.live("apply"); err != nil {
		return err
	}
	switch p := u.Payload.(type) {
	case ThinkingStep:
		t.step(p)
	case ThinkingDone:
		t.done(p.Agent)
	default:
		return errors.NewWidgetError(t.id, "apply", errors.ErrUnsupportedPayload)
	}
	t.refresh()
	return nil
}

func (t *Thinking) step(p ThinkingStep) {
	e, ok := t.entries[p.Agent]
	if !ok {
		e = &ThinkingEntry{AgentID: p.Agent}
		t.entries[p.Agent] = e
		t.order = append(t.order, p.Agent)
	}

	if e.State == ThinkingCompletePendingClear {
		t.timers.Cancel(e.ClearTimerKey)
		e.State = ThinkingActive
		e.ClearTimerKey = ""
	}

	if n := len(e.Steps); n > 0 && e.Steps[n-1].Tool == p.Tool {
		e.Steps[n-1].Input = p.Input
		e.Steps[n-1].Text = p.Text
		return
	}
	e.Steps = append(e.Steps, Step{Tool: p.Tool, Input: p.Input, Text: p.Text})
}

func (t *Thinking) done(agent string) {
	e, ok := t.entries[agent]
	if !ok {
		return
	}
	key := clearKey(agent)
	e.State = ThinkingCompletePendingClear
	e.ClearTimerKey = key
	t.timers.Arm(key, t.clearDelay, func() { t.expire(agent, key) })
}

// expire runs on the loop when a clear timer fires. The entry may have been
// resumed, replaced or the widget removed since the timer was armed.
func (t *Thinking) expire(agent, key string) {
	if t.removed {
		return
	}
	e, ok := t.entries[agent]
	if !ok || e.State != ThinkingCompletePendingClear || e.ClearTimerKey != key {
		return
	}
	t.drop(agent)
	t.refresh()
	t.logger.Debug("thinking entry cleared", "agent", agent)
}

func (t *Thinking) drop(agent string) {
	delete(t.entries, agent)
	for i, a := range t.order {
		if a == agent {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
}

// RemoveEntry drops an agent's entry and cancels its clear timer.
func (t *Thinking) RemoveEntry(agent string) error {
	if err := t.live("remove_entry"); err != nil {
		return err
	}
	e, ok := t.entries[agent]
	if !ok {
		return errors.NewNotFoundError("thinking entry", agent)
	}
	if e.ClearTimerKey != "" {
		t.timers.Cancel(e.ClearTimerKey)
	}
	t.drop(agent)
	t.refresh()
	return nil
}

// Entry returns a copy of the agent's entry.
func (t *Thinking) Entry(agent string) (ThinkingEntry, bool) {
	e, ok := t.entries[agent]
	if !ok {
		return ThinkingEntry{}, false
	}
	cp := *e
	cp.Steps = append([]Step(nil), e.Steps...)
	return cp, true
}

// Len returns the number of visible entries.
func (t *Thinking) Len() int { return len(t.entries) }

// PendingClears returns the number of armed clear timers.
func (t *Thinking) PendingClears() int { return t.timers.Len() }

func agentIcon(agent string) string {
	switch {
	case strings.HasPrefix(agent, "Worker_"):
		return "👷"
	case agent == "Planning":
		return "📋"
	default:
		return "🤖"
	}
}

func (t *Thinking) refresh() {
	var lines []string
	for _, agent := range t.order {
		e := t.entries[agent]
		header := styles.ThinkingAgent.Render(agentIcon(agent) + " " + agent)
		if e.State == ThinkingCompletePendingClear {
			header += " " + styles.ThinkingDone.Render("done")
		} else {
			header += " " + styles.Muted.Render("thinking...")
		}
		lines = append(lines, header)

		for _, s := range e.Steps {
			lines = append(lines, styles.Muted.Render("   └─ tool: ")+styles.ThinkingTool.Render(s.Tool))
			keys := make([]string, 0, len(s.Input))
			for k := range s.Input {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v := strings.Join(strings.Fields(s.Input[k]), " ")
				v = ansi.Truncate(v, maxInputCells, "...")
				lines = append(lines, styles.Muted.Render("   └─ "+k+": ")+styles.ThinkingValue.Render(v))
			}
			if s.Text != "" {
				v := ansi.Truncate(strings.Join(strings.Fields(s.Text), " "), maxInputCells, "...")
				lines = append(lines, styles.Muted.Render("   └─ ")+styles.ThinkingValue.Render(v))
			}
		}
		lines = append(lines, "")
	}
	t.setContent(plain(lines))
}

// Clear drops every entry and cancels all clear timers.
func (t *Thinking) Clear() error {
	if err := t.live("clear"); err != nil {
		return err
	}
	t.timers.ClearAll()
	clear(t.entries)
	t.order = nil
	t.refresh()
	return nil
}

// Remove cancels and awaits every clear timer, then tears the widget down.
func (t *Thinking) Remove() error {
	if err := t.live("remove"); err != nil {
		return err
	}
	t.timers.ClearAll()
	t.removed = true
	t.entries = nil
	t.order = nil
	return nil
}

// View renders the framed panel.
func (t *Thinking) View() string { return t.frame() }
