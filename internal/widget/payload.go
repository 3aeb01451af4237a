package widget

import "time"

// Payload is the content of a routed update. The concrete types below are the
// only payloads the dashboard renders.
type Payload interface {
	Kind() string
}

// ChatChunk carries the full text so far of a sender's message. A final
// update finishes the stream.
type ChatChunk struct {
	Sender string
	Text   string
}

// Kind implements Payload.
func (ChatChunk) Kind() string { return "chat" }

// ThinkingStep reports an agent building a tool call or reasoning. A step for
// the same agent and tool replaces the agent's active entry; a new tool starts
// a new entry. Text carries free-form reasoning.
type ThinkingStep struct {
	Agent string
	Tool  string
	Input map[string]string
	Text  string
}

// Kind implements Payload.
func (ThinkingStep) Kind() string { return "thinking.step" }

// ThinkingDone marks the agent's active entry complete. It is cleared after
// the configured delay unless the agent starts thinking again first.
type ThinkingDone struct {
	Agent string
}

// Kind implements Payload.
func (ThinkingDone) Kind() string { return "thinking.done" }

// TaskStatus is the lifecycle state of a planned task.
type TaskStatus int

// Task statuses, matching the planner's numeric codes.
const (
	TaskWaiting TaskStatus = iota
	TaskPreparing
	TaskRunning
	TaskDone
)

// String returns the status label shown in the task table.
func (s TaskStatus) String() string {
	switch s {
	case TaskWaiting:
		return "waiting"
	case TaskPreparing:
		return "preparing"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// TaskStep is one planned task.
type TaskStep struct {
	ID   int
	Name string
}

// TaskPlan replaces the task list. Every task starts as TaskWaiting.
type TaskPlan struct {
	Steps []TaskStep
}

// Kind implements Payload.
func (TaskPlan) Kind() string { return "tasks.plan" }

// TaskStatusUpdate changes one task's status and, if Result is set, its result.
type TaskStatusUpdate struct {
	TaskID int
	Status TaskStatus
	Result string
}

// Kind implements Payload.
func (TaskStatusUpdate) Kind() string { return "tasks.status" }

// Notice is a system notification. Levels are info, warning, error and success.
type Notice struct {
	ID        string
	Level     string
	Source    string
	Text      string
	Fields    map[string]string
	Timestamp time.Time
}

// Kind implements Payload.
func (Notice) Kind() string { return "notice" }
