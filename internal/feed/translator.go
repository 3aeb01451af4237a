// Package feed turns agent messages into widget updates.
//
// Agents are identified by sender name. The main agent and workers stream
// into the chat panel, the planner's final message becomes the task plan, and
// worker progress moves their task through the table. Tool calls and
// reasoning blocks of in-progress messages feed the thinking panel.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/widget"
)

// Block types carried by agent messages.
const (
	BlockText     = "text"
	BlockToolUse  = "tool_use"
	BlockThinking = "thinking"
)

// ReasoningTool is the tool name thinking blocks are shown under.
const ReasoningTool = "reasoning"

// createWorkerTool is the main agent's tool that hands a task to a worker.
const createWorkerTool = "create_worker"

// Block is one content block of an agent message.
type Block struct {
	Type  string            `yaml:"type" json:"type"`
	Text  string            `yaml:"text,omitempty" json:"text,omitempty"`
	Tool  string            `yaml:"tool,omitempty" json:"tool,omitempty"`
	Input map[string]string `yaml:"input,omitempty" json:"input,omitempty"`
}

// Message is one agent message. Streaming agents send the same message
// repeatedly with growing content; Last marks the final version.
type Message struct {
	Name   string  `yaml:"name" json:"name"`
	Blocks []Block `yaml:"blocks" json:"blocks"`
	Last   bool    `yaml:"last,omitempty" json:"last,omitempty"`
}

// Text returns the first text block, or "".
func (m Message) Text() string {
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			return b.Text
		}
	}
	return ""
}

// Sink receives translated updates. router.Router implements it.
type Sink interface {
	Route(target string, payload widget.Payload, isFinal bool) (uint64, error)
}

// Rules classify senders. Patterns use glob syntax.
type Rules struct {
	MainAgent string   `mapstructure:"main_agent" yaml:"main_agent"`
	Planner   string   `mapstructure:"planner" yaml:"planner"`
	Workers   string   `mapstructure:"workers" yaml:"workers"`
	Hidden    []string `mapstructure:"hidden" yaml:"hidden"`
}

// DefaultRules matches the agent names the orchestrator uses.
func DefaultRules() Rules {
	return Rules{
		MainAgent: "Ari",
		Planner:   "Planning",
		Workers:   "Worker_*",
	}
}

type senderKind int

const (
	senderOther senderKind = iota
	senderMain
	senderPlanner
	senderWorker
)

// Translator converts agent messages into updates for a Sink. It is safe for
// concurrent use.
type Translator struct {
	sink    Sink
	logger  *logging.Logger
	main    glob.Glob
	planner glob.Glob
	workers glob.Glob
	hidden  []glob.Glob

	mu      sync.Mutex
	planned bool
	tasks   map[int]struct{}
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the translator logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTranslator compiles rules and returns a Translator writing to sink.
func NewTranslator(sink Sink, rules Rules, opts ...Option) (*Translator, error) {
	t := &Translator{sink: sink, logger: logging.NopLogger()}

	var err error
	if t.main, err = compile("main_agent", rules.MainAgent); err != nil {
		return nil, err
	}
	if t.planner, err = compile("planner", rules.Planner); err != nil {
		return nil, err
	}
	if t.workers, err = compile("workers", rules.Workers); err != nil {
		return nil, err
	}
	for _, p := range rules.Hidden {
		g, err := compile("hidden", p)
		if err != nil {
			return nil, err
		}
		t.hidden = append(t.hidden, g)
	}

	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent("feed")
	return t, nil
}

func compile(field, pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, errors.NewValidationError("pattern is empty").WithField("feed." + field)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError(err.Error()).WithField("feed." + field).WithValue(pattern)
	}
	return g, nil
}

func (t *Translator) classify(name string) senderKind {
	switch {
	case t.main.Match(name):
		return senderMain
	case t.planner.Match(name):
		return senderPlanner
	case t.workers.Match(name):
		return senderWorker
	default:
		return senderOther
	}
}

func (t *Translator) hiddenSender(name string) bool {
	for _, g := range t.hidden {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Translate routes the updates derived from msg. Problems with the message
// itself (a malformed plan, an unparseable worker name) are reported as
// warning notices rather than returned; only routing failures are errors.
func (t *Translator) Translate(msg Message) error {
	if msg.Name == "" {
		return nil
	}

	var errs []error
	route := func(target string, p widget.Payload, final bool) {
		if _, err := t.sink.Route(target, p, final); err != nil {
			errs = append(errs, err)
		}
	}

	if msg.Last {
		route(widget.ThinkingID, widget.ThinkingDone{Agent: msg.Name}, true)
	} else {
		for _, step := range thinkingSteps(msg) {
			route(widget.ThinkingID, step, false)
		}
	}

	switch t.classify(msg.Name) {
	case senderMain:
		t.chat(msg, route)
		t.createWorker(msg, route)
	case senderPlanner:
		t.plan(msg, route)
	case senderWorker:
		t.chat(msg, route)
		t.worker(msg, route)
	default:
		t.chat(msg, route)
	}

	return errors.Join(errs...)
}

type routeFunc func(target string, p widget.Payload, final bool)

func thinkingSteps(msg Message) []widget.ThinkingStep {
	var steps []widget.ThinkingStep
	for _, b := range msg.Blocks {
		switch b.Type {
		case BlockToolUse:
			if len(b.Input) == 0 {
				continue
			}
			steps = append(steps, widget.ThinkingStep{Agent: msg.Name, Tool: b.Tool, Input: b.Input})
		case BlockThinking:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			steps = append(steps, widget.ThinkingStep{Agent: msg.Name, Tool: ReasoningTool, Text: b.Text})
		}
	}
	return steps
}

func (t *Translator) chat(msg Message, route routeFunc) {
	if t.hiddenSender(msg.Name) {
		return
	}
	text := msg.Text()
	if text == "" {
		return
	}
	route(widget.ChatID, widget.ChatChunk{Sender: msg.Name, Text: text}, msg.Last)
}

// createWorker marks a task Preparing when the main agent's first block is a
// create_worker call for a planned task.
func (t *Translator) createWorker(msg Message, route routeFunc) {
	if len(msg.Blocks) == 0 {
		return
	}
	first := msg.Blocks[0]
	if first.Type != BlockToolUse || first.Tool != createWorkerTool {
		return
	}
	raw, ok := first.Input["task_id"]
	if !ok {
		return
	}
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		t.warn(route, fmt.Sprintf("create_worker: invalid task_id %q", raw))
		return
	}
	if !t.known(id) {
		return
	}
	route(widget.TasksID, widget.TaskStatusUpdate{TaskID: id, Status: widget.TaskPreparing}, false)
}

type planDoc struct {
	Steps []struct {
		TaskID   int    `json:"task_id"`
		TaskName string `json:"task_name"`
	} `json:"steps"`
}

// plan parses the planner's final message once.
func (t *Translator) plan(msg Message, route routeFunc) {
	if !msg.Last {
		return
	}
	t.mu.Lock()
	if t.planned {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	text := msg.Text()
	if text == "" {
		return
	}
	steps, err := ParsePlan(text)
	if err != nil {
		t.logger.Warn("failed to parse plan", "error", err)
		t.warn(route, "planner: "+err.Error())
		return
	}

	t.mu.Lock()
	t.planned = true
	t.tasks = make(map[int]struct{}, len(steps))
	for _, s := range steps {
		t.tasks[s.ID] = struct{}{}
	}
	t.mu.Unlock()

	t.logger.Info("plan received", "tasks", len(steps))
	route(widget.TasksID, widget.TaskPlan{Steps: steps}, true)
}

// ParsePlan extracts the JSON object between the first '{' and the last '}'
// of text and returns its steps. Steps without an ID are numbered by position.
func ParsePlan(text string) ([]widget.TaskStep, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, errors.NewValidationError("no JSON object in plan")
	}

	var doc planDoc
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return nil, errors.Wrap(errors.NewValidationError(err.Error()), "invalid plan JSON")
	}

	steps := make([]widget.TaskStep, 0, len(doc.Steps))
	for i, s := range doc.Steps {
		id := s.TaskID
		if id == 0 {
			id = i + 1
		}
		steps = append(steps, widget.TaskStep{ID: id, Name: s.TaskName})
	}
	return steps, nil
}

// worker moves the worker's task to Running while it streams and to Done
// on its final message. The task ID is the number after the last '-'.
func (t *Translator) worker(msg Message, route routeFunc) {
	idx := strings.LastIndexByte(msg.Name, '-')
	if idx < 0 {
		t.warn(route, fmt.Sprintf("worker %q has no task number", msg.Name))
		return
	}
	id, err := strconv.Atoi(msg.Name[idx+1:])
	if err != nil {
		t.warn(route, fmt.Sprintf("worker %q has an invalid task number", msg.Name))
		return
	}

	text := msg.Text()
	if text == "" || !t.known(id) {
		return
	}

	status := widget.TaskRunning
	if msg.Last {
		status = widget.TaskDone
	}
	route(widget.TasksID, widget.TaskStatusUpdate{TaskID: id, Status: status, Result: text}, msg.Last)
}

func (t *Translator) known(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[id]
	return t.planned && ok
}

func (t *Translator) warn(route routeFunc, text string) {
	route(widget.NoticesID, widget.Notice{Level: "warning", Source: "feed", Text: text}, true)
}

// Reset forgets the current plan so the next planner message is parsed.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.planned = false
	t.tasks = nil
}

// Notice routes a system notice as-is.
func (t *Translator) Notice(n widget.Notice) error {
	_, err := t.sink.Route(widget.NoticesID, n, true)
	return err
}
