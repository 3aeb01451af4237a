package widget

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"

	"github.com/aridash/ari/internal/coalesce"
	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/tui/styles"
)

const maxResultCells = 60

// Task is one row of the task table.
type Task struct {
	ID     int
	Name   string
	Status TaskStatus
	Result string
}

// TaskList shows the plan as a table. Status updates go through a render
// guard: while a table render is in flight, further updates to the same task
// merge and are drawn by a single follow-up render.
type TaskList struct {
	base
	exec   loop.Executor
	guard  *coalesce.Coalescer
	logger *logging.Logger

	tasks []*Task
	index map[int]*Task
}

var _ Widget = (*TaskList)(nil)

// NewTaskList creates the task list. Table renders complete on exec.
func NewTaskList(exec loop.Executor, bus *event.Bus, logger *logging.Logger) *TaskList {
	if logger == nil {
		logger = logging.NopLogger()
	}
	tl := &TaskList{
		base:   newBase(TasksID, "Tasks"),
		exec:   exec,
		logger: logger.WithWidget(TasksID),
		index:  make(map[int]*Task),
	}
	tl.guard = coalesce.New(TasksID, exec, tl.render, coalesce.WithBus(bus), coalesce.WithLogger(logger))
	return tl
}

// Apply handles TaskPlan and TaskStatusUpdate. A status update for a task
// not in the plan is a validation error.
func (tl *TaskList) Apply(u Update) error {
	if err := tl.live("apply"); err != nil {
		return err
	}
	switch p := u.Payload.(type) {
	case TaskPlan:
		tl.plan(p)
		tl.guard.Invalidate()
	case TaskStatusUpdate:
		if _, ok := tl.index[p.TaskID]; !ok {
			return errors.NewWidgetError(tl.id, "apply",
				errors.NewValidationError("unknown task").WithField("task_id").WithValue(p.TaskID))
		}
		tl.guard.Submit(strconv.Itoa(p.TaskID), coalesce.Patch{Status: int(p.Status), Result: p.Result})
	default:
		return errors.NewWidgetError(tl.id, "apply", errors.ErrUnsupportedPayload)
	}
	return nil
}

func (tl *TaskList) plan(p TaskPlan) {
	tl.tasks = make([]*Task, 0, len(p.Steps))
	clear(tl.index)
	for _, s := range p.Steps {
		if _, dup := tl.index[s.ID]; dup {
			continue
		}
		task := &Task{ID: s.ID, Name: s.Name, Status: TaskWaiting}
		tl.tasks = append(tl.tasks, task)
		tl.index[s.ID] = task
	}
}

// render applies the merged batch on the loop, then lays out the table off
// the loop and posts the result back.
func (tl *TaskList) render(batch []coalesce.PendingUpdate, done func(error)) {
	for _, p := range batch {
		id, err := strconv.Atoi(p.RowKey)
		if err != nil {
			continue
		}
		task, ok := tl.index[id]
		if !ok {
			continue
		}
		task.Status = TaskStatus(p.LatestStatus)
		if p.LatestResult != "" {
			task.Result = p.LatestResult
		}
	}

	snapshot := tl.Tasks()
	width := tl.contentWidth()
	go func() {
		view := renderTaskTable(snapshot, width)
		posted := tl.exec.Post(func() {
			if !tl.removed {
				tl.setContent(view)
			}
			done(nil)
		})
		if !posted {
			done(errors.ErrClosed)
		}
	}()
}

func renderTaskTable(tasks []Task, width int) string {
	if len(tasks) == 0 {
		return styles.Muted.Render("No plan yet")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		result := ansi.Truncate(t.Result, maxResultCells, "...")
		rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, t.Status.String(), result})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderColor)).
		Headers("#", "Task", "Status", "Result").
		Rows(rows...).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			if col == 2 && row >= 0 && row < len(tasks) {
				return lipgloss.NewStyle().Foreground(styles.TaskStatusColor(int(tasks[row].Status)))
			}
			return styles.Text
		})
	return tbl.String()
}

// Tasks returns a copy of the rows in plan order.
func (tl *TaskList) Tasks() []Task {
	out := make([]Task, len(tl.tasks))
	for i, t := range tl.tasks {
		out[i] = *t
	}
	return out
}

// RenderState returns the render guard's state.
func (tl *TaskList) RenderState() coalesce.State { return tl.guard.State() }

// Renders returns how many table renders have started.
func (tl *TaskList) Renders() int { return tl.guard.Renders() }

// Clear empties the plan.
func (tl *TaskList) Clear() error {
	if err := tl.live("clear"); err != nil {
		return err
	}
	tl.plan(TaskPlan{})
	tl.guard.Invalidate()
	return nil
}

// Remove tears the widget down. A render in flight completes without drawing.
func (tl *TaskList) Remove() error {
	if err := tl.live("remove"); err != nil {
		return err
	}
	tl.removed = true
	tl.tasks = nil
	clear(tl.index)
	return nil
}

// View renders the framed panel.
func (tl *TaskList) View() string { return tl.frame() }
