package feed

import (
	"sync"
	"testing"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/widget"
)

type routed struct {
	target  string
	payload widget.Payload
	final   bool
}

type fakeSink struct {
	mu     sync.Mutex
	routes []routed
	err    error
}

func (s *fakeSink) Route(target string, p widget.Payload, final bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.routes = append(s.routes, routed{target, p, final})
	return uint64(len(s.routes)), nil
}

func (s *fakeSink) to(target string) []routed {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []routed
	for _, r := range s.routes {
		if r.target == target {
			out = append(out, r)
		}
	}
	return out
}

func newTranslator(t *testing.T) (*Translator, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	tr, err := NewTranslator(sink, DefaultRules())
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	return tr, sink
}

func text(name, s string, last bool) Message {
	return Message{Name: name, Blocks: []Block{{Type: BlockText, Text: s}}, Last: last}
}

const planText = `Plan: {"steps":[{"task_id":1,"task_name":"search"},{"task_id":2,"task_name":"write"}]} done`

func TestTranslate_MainAgentChat(t *testing.T) {
	tr, sink := newTranslator(t)

	if err := tr.Translate(text("Ari", "Hello", false)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Translate(text("Ari", "Hello world", true)); err != nil {
		t.Fatal(err)
	}

	chat := sink.to(widget.ChatID)
	if len(chat) != 2 {
		t.Fatalf("chat routes = %d, want 2", len(chat))
	}
	if got := chat[1].payload.(widget.ChatChunk); got.Text != "Hello world" || !chat[1].final {
		t.Errorf("final chunk = %+v final=%v", got, chat[1].final)
	}

	thinking := sink.to(widget.ThinkingID)
	if len(thinking) != 1 {
		t.Fatalf("thinking routes = %d, want 1 (done)", len(thinking))
	}
	if _, ok := thinking[0].payload.(widget.ThinkingDone); !ok {
		t.Errorf("thinking payload = %T, want ThinkingDone", thinking[0].payload)
	}
}

func TestTranslate_ThinkingSteps(t *testing.T) {
	tr, sink := newTranslator(t)

	msg := Message{Name: "Worker_1-1", Blocks: []Block{
		{Type: BlockToolUse, Tool: "web_search", Input: map[string]string{"query": "go"}},
		{Type: BlockToolUse, Tool: "noop"},
		{Type: BlockThinking, Text: "considering options"},
		{Type: BlockThinking, Text: "  "},
	}}
	_ = tr.Translate(msg)

	thinking := sink.to(widget.ThinkingID)
	if len(thinking) != 2 {
		t.Fatalf("thinking routes = %d, want 2", len(thinking))
	}
	first := thinking[0].payload.(widget.ThinkingStep)
	if first.Tool != "web_search" || first.Input["query"] != "go" {
		t.Errorf("first step = %+v", first)
	}
	second := thinking[1].payload.(widget.ThinkingStep)
	if second.Tool != ReasoningTool || second.Text != "considering options" {
		t.Errorf("second step = %+v", second)
	}
}

func TestTranslate_PlanParsedOnceOnFinal(t *testing.T) {
	tr, sink := newTranslator(t)

	_ = tr.Translate(text("Planning", planText, false))
	if n := len(sink.to(widget.TasksID)); n != 0 {
		t.Fatalf("non-final plan routed %d task updates, want 0", n)
	}

	_ = tr.Translate(text("Planning", planText, true))
	_ = tr.Translate(text("Planning", planText, true))

	tasks := sink.to(widget.TasksID)
	if len(tasks) != 1 {
		t.Fatalf("task routes = %d, want 1", len(tasks))
	}
	plan := tasks[0].payload.(widget.TaskPlan)
	if len(plan.Steps) != 2 || plan.Steps[1].Name != "write" {
		t.Errorf("plan = %+v", plan)
	}
	if n := len(sink.to(widget.ChatID)); n != 0 {
		t.Errorf("planner routed %d chat updates, want 0", n)
	}
}

func TestTranslate_BadPlanBecomesNotice(t *testing.T) {
	tr, sink := newTranslator(t)

	_ = tr.Translate(text("Planning", "no json here", true))
	_ = tr.Translate(text("Planning", "{not json}", true))

	notices := sink.to(widget.NoticesID)
	if len(notices) != 2 {
		t.Fatalf("notices = %d, want 2", len(notices))
	}
	if n := notices[0].payload.(widget.Notice); n.Level != "warning" {
		t.Errorf("Level = %q, want warning", n.Level)
	}

	// A failed parse does not consume the one-shot plan.
	_ = tr.Translate(text("Planning", planText, true))
	if n := len(sink.to(widget.TasksID)); n != 1 {
		t.Errorf("task routes = %d, want 1", n)
	}
}

func TestTranslate_WorkerLifecycle(t *testing.T) {
	tr, sink := newTranslator(t)
	_ = tr.Translate(text("Planning", planText, true))

	create := Message{Name: "Ari", Blocks: []Block{{
		Type: BlockToolUse, Tool: "create_worker", Input: map[string]string{"task_id": "2"},
	}}}
	_ = tr.Translate(create)
	_ = tr.Translate(text("Worker_2-2", "working", false))
	_ = tr.Translate(text("Worker_2-2", "finished", true))

	tasks := sink.to(widget.TasksID)[1:]
	want := []widget.TaskStatusUpdate{
		{TaskID: 2, Status: widget.TaskPreparing},
		{TaskID: 2, Status: widget.TaskRunning, Result: "working"},
		{TaskID: 2, Status: widget.TaskDone, Result: "finished"},
	}
	if len(tasks) != len(want) {
		t.Fatalf("status routes = %d, want %d", len(tasks), len(want))
	}
	for i, w := range want {
		if got := tasks[i].payload.(widget.TaskStatusUpdate); got != w {
			t.Errorf("status[%d] = %+v, want %+v", i, got, w)
		}
	}
	if !tasks[2].final {
		t.Error("done status should be final")
	}
	if n := len(sink.to(widget.ChatID)); n != 2 {
		t.Errorf("worker chat routes = %d, want 2", n)
	}
}

func TestTranslate_WorkerEdgeCases(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		wantTasks   int
		wantNotices int
	}{
		{"unknown task", text("Worker_9-9", "x", false), 1, 0},
		{"no task number", text("Worker_x", "x", false), 1, 1},
		{"bad task number", text("Worker_1-a", "x", false), 1, 1},
		{"empty text", text("Worker_1-1", "", false), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, sink := newTranslator(t)
			_ = tr.Translate(text("Planning", planText, true))
			_ = tr.Translate(tt.msg)

			if n := len(sink.to(widget.TasksID)); n != tt.wantTasks {
				t.Errorf("task routes = %d, want %d", n, tt.wantTasks)
			}
			if n := len(sink.to(widget.NoticesID)); n != tt.wantNotices {
				t.Errorf("notices = %d, want %d", n, tt.wantNotices)
			}
		})
	}
}

func TestTranslate_StatusBeforePlanIsIgnored(t *testing.T) {
	tr, sink := newTranslator(t)
	_ = tr.Translate(text("Worker_1-1", "early", false))
	if n := len(sink.to(widget.TasksID)); n != 0 {
		t.Errorf("task routes = %d, want 0", n)
	}
}

func TestTranslate_HiddenSenders(t *testing.T) {
	sink := &fakeSink{}
	rules := DefaultRules()
	rules.Hidden = []string{"Tool*"}
	tr, err := NewTranslator(sink, rules)
	if err != nil {
		t.Fatal(err)
	}
	_ = tr.Translate(text("ToolRunner", "noise", true))
	_ = tr.Translate(text("Observer", "visible", true))

	chat := sink.to(widget.ChatID)
	if len(chat) != 1 || chat[0].payload.(widget.ChatChunk).Sender != "Observer" {
		t.Errorf("chat routes = %+v", chat)
	}
}

func TestNewTranslator_InvalidRules(t *testing.T) {
	rules := DefaultRules()
	rules.MainAgent = ""
	_, err := NewTranslator(&fakeSink{}, rules)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("NewTranslator() error = %v, want ErrInvalidInput", err)
	}
}

func TestTranslate_RouteErrorsAreReturned(t *testing.T) {
	tr, sink := newTranslator(t)
	sink.err = errors.ErrRouterClosed
	if err := tr.Translate(text("Ari", "x", true)); !errors.Is(err, errors.ErrRouterClosed) {
		t.Errorf("Translate() error = %v, want ErrRouterClosed", err)
	}
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantIDs []int
		wantErr bool
	}{
		{"surrounding prose", planText, []int{1, 2}, false},
		{"missing ids numbered by position", `{"steps":[{"task_name":"a"},{"task_name":"b"}]}`, []int{1, 2}, false},
		{"no object", "nothing", nil, true},
		{"brace order reversed", "} {", nil, true},
		{"invalid json", "{steps}", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := ParsePlan(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(steps) != len(tt.wantIDs) {
				t.Fatalf("len(steps) = %d, want %d", len(steps), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if steps[i].ID != id {
					t.Errorf("steps[%d].ID = %d, want %d", i, steps[i].ID, id)
				}
			}
		})
	}
}
