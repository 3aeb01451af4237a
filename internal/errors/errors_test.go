package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// DispatchError Tests
// -----------------------------------------------------------------------------

func TestDispatchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DispatchError
		want string
	}{
		{
			name: "target and sequence",
			err:  NewDispatchError("tasks", 17, ErrWidgetNotFound),
			want: "dispatch error [target=tasks, seq=17]: widget not found",
		},
		{
			name: "no context",
			err:  NewDispatchError("", 0, nil),
			want: "dispatch error: dispatch failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatchError_Severity(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  Severity
	}{
		{"not found", ErrWidgetNotFound, SeverityDebug},
		{"race", ErrRenderReentrant, SeverityCritical},
		{"evicted", ErrMessageEvicted, SeverityWarning},
		{"panic", ErrDispatchPanic, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDispatchError("w", 1, tt.cause)
			if got := err.Severity(); got != tt.want {
				t.Errorf("Severity() = %v, want %v", got, tt.want)
			}
			if !err.IsRecoverable() {
				t.Error("IsRecoverable() = false, want true")
			}
		})
	}
}

func TestDispatchError_IsAndAs(t *testing.T) {
	wrapped := fmt.Errorf("batch: %w", NewDispatchError("chat", 3, ErrWidgetNotFound))

	if !Is(wrapped, ErrWidgetNotFound) {
		t.Error("Is(wrapped, ErrWidgetNotFound) = false, want true")
	}

	var dispatchErr *DispatchError
	if !As(wrapped, &dispatchErr) {
		t.Fatal("As(wrapped, *DispatchError) = false, want true")
	}
	if dispatchErr.Sequence != 3 {
		t.Errorf("Sequence = %d, want 3", dispatchErr.Sequence)
	}
}

// -----------------------------------------------------------------------------
// WidgetError / TimerError Tests
// -----------------------------------------------------------------------------

func TestWidgetError_Error(t *testing.T) {
	err := NewWidgetError("thinking", "scroll", ErrWidgetNotFound)
	want := "widget error [widget=thinking, op=scroll]: widget not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
}

func TestTimerError(t *testing.T) {
	err := NewTimerError("clear:agent-1", ErrTimerRace)

	if got, want := err.Error(), "timer error [key=clear:agent-1]: timer race detected"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if IsRecoverable(err) {
		t.Error("IsRecoverable() = true, want false")
	}
	if !IsRace(err) {
		t.Error("IsRace() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError_MatchesWidgetSentinel(t *testing.T) {
	err := NewNotFoundError("widget", "tasks")

	if got, want := err.Error(), "widget not found: tasks"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrWidgetNotFound) {
		t.Error("Is(err, ErrWidgetNotFound) = false, want true")
	}
	if Is(NewNotFoundError("agent", "x"), ErrWidgetNotFound) {
		t.Error("agent NotFoundError should not match ErrWidgetNotFound")
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("bad"),
			want: "validation error: bad",
		},
		{
			name: "field and value",
			err:  NewValidationError("must be positive").WithField("ui.batch_size").WithValue(0),
			want: "validation error [field=ui.batch_size, value=0]: must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !Is(tt.err, ErrInvalidInput) {
				t.Error("Is(err, ErrInvalidInput) = false, want true")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"plain", errors.New("boom"), SeverityError},
		{"sentinel race", ErrTimerRace, SeverityCritical},
		{"typed", NewValidationError("x"), SeverityWarning},
		{"wrapped typed", fmt.Errorf("ctx: %w", NewNotFoundError("widget", "a")), SeverityDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"plain", errors.New("boom"), true},
		{"reentrant", fmt.Errorf("render: %w", ErrRenderReentrant), false},
		{"dispatch", NewDispatchError("a", 1, ErrDispatchPanic), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(ErrClosed, "closing %s", "router")
	if got, want := err.Error(), "closing router: resource closed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrClosed) {
		t.Error("Is(err, ErrClosed) = false, want true")
	}
}
