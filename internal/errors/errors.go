// Package errors provides centralized error definitions and error handling utilities
// for the Ari dashboard core. It defines the sentinel errors each subsystem returns,
// typed errors that carry routing context, and classification helpers used by the
// router and widgets to decide whether a failure is a no-op, a recoverable condition,
// or a programming error.
//
// # Error Types
//
// Domain-specific errors:
//   - DispatchError: a single routed message could not be applied to its widget
//   - WidgetError: a widget operation failed (scroll, apply, remove)
//   - TimerError: the timer registry or render guard detected a race
//
// Semantic errors:
//   - NotFoundError: a widget or entity is gone
//   - ValidationError: invalid payload or configuration
//
// # Usage
//
//	err := errors.NewDispatchError("thinking", 42, errors.ErrWidgetNotFound)
//	if errors.IsNotFound(err) { ... } // silently skip
//
//	var dispatchErr *errors.DispatchError
//	if errors.As(err, &dispatchErr) { ... }
//
// # Error Classification
//
// Every typed error reports a Severity. NotFound failures are SeverityDebug because
// the dashboard treats a vanished widget as a no-op. Races are SeverityCritical.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are expected and handled as no-ops.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for programming errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Router sentinel errors
var (
	// ErrQueueFull indicates the router queue was at capacity. The router resolves
	// it internally by eviction and never returns it to producers.
	ErrQueueFull = New("router queue full")
	// ErrMessageEvicted marks a message removed from the queue to make room.
	ErrMessageEvicted = New("message evicted")
	// ErrMessageRejected marks an incoming message dropped because every queued
	// message was final.
	ErrMessageRejected = New("message rejected")
	// ErrStaleSequence marks a message older than one already dispatched to its target.
	ErrStaleSequence = New("stale sequence")
	// ErrRouterClosed indicates the router no longer accepts messages.
	ErrRouterClosed = New("router closed")
	// ErrDispatchPanic indicates a widget panicked while applying a message.
	ErrDispatchPanic = New("dispatch panicked")
)

// Widget sentinel errors
var (
	// ErrWidgetNotFound indicates the target widget no longer exists.
	ErrWidgetNotFound = New("widget not found")
	// ErrUnsupportedPayload indicates a widget was sent a payload kind it does not render.
	ErrUnsupportedPayload = New("unsupported payload")
	// ErrWidgetExists indicates a widget ID was registered twice.
	ErrWidgetExists = New("widget already registered")
)

// Timer and render-guard sentinel errors
var (
	// ErrTimerRace indicates two live timers were observed for one key.
	ErrTimerRace = New("timer race detected")
	// ErrRenderReentrant indicates a render started while one was in flight.
	ErrRenderReentrant = New("render started while rendering")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = New("invalid input")
	// ErrClosed indicates an operation on a closed resource.
	ErrClosed = New("resource closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AriError is the base interface for all typed errors in this module.
type AriError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRecoverable returns true if the system keeps running normally after
	// logging the error.
	IsRecoverable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message     string
	cause       error
	severity    Severity
	recoverable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRecoverable returns whether the error is recoverable.
func (e *baseError) IsRecoverable() bool {
	return e.recoverable
}

// severityFor picks the default severity for a cause.
func severityFor(cause error) Severity {
	switch {
	case cause == nil:
		return SeverityError
	case errors.Is(cause, ErrWidgetNotFound):
		return SeverityDebug
	case errors.Is(cause, ErrTimerRace), errors.Is(cause, ErrRenderReentrant):
		return SeverityCritical
	case errors.Is(cause, ErrMessageEvicted), errors.Is(cause, ErrMessageRejected),
		errors.Is(cause, ErrStaleSequence):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DispatchError represents a routed message that could not be applied.
//
// Example:
//
//	err := errors.NewDispatchError("tasks", 17, errors.ErrWidgetNotFound)
//	fmt.Println(err) // "dispatch error [target=tasks, seq=17]: widget not found"
type DispatchError struct {
	baseError
	Target   string
	Sequence uint64
}

// NewDispatchError creates a new DispatchError. Dispatch failures never stop the
// router, so every DispatchError is recoverable.
func NewDispatchError(target string, sequence uint64, cause error) *DispatchError {
	return &DispatchError{
		baseError: baseError{
			message:     "dispatch failed",
			cause:       cause,
			severity:    severityFor(cause),
			recoverable: true,
		},
		Target:   target,
		Sequence: sequence,
	}
}

// WithSeverity sets the error severity.
func (e *DispatchError) WithSeverity(s Severity) *DispatchError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *DispatchError) Error() string {
	var parts []string
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	if e.Sequence != 0 {
		parts = append(parts, fmt.Sprintf("seq=%d", e.Sequence))
	}

	prefix := "dispatch error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("dispatch error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WidgetError represents a failed widget operation.
//
// Example:
//
//	err := errors.NewWidgetError("thinking", "scroll", errors.ErrWidgetNotFound)
//	fmt.Println(err) // "widget error [widget=thinking, op=scroll]: widget not found"
type WidgetError struct {
	baseError
	WidgetID string
	Op       string
}

// NewWidgetError creates a new WidgetError.
func NewWidgetError(widgetID, op string, cause error) *WidgetError {
	return &WidgetError{
		baseError: baseError{
			message:     op + " failed",
			cause:       cause,
			severity:    severityFor(cause),
			recoverable: true,
		},
		WidgetID: widgetID,
		Op:       op,
	}
}

// Error returns the formatted error message.
func (e *WidgetError) Error() string {
	var parts []string
	if e.WidgetID != "" {
		parts = append(parts, fmt.Sprintf("widget=%s", e.WidgetID))
	}
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	prefix := "widget error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("widget error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WidgetError) Is(target error) bool {
	if _, ok := target.(*WidgetError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimerError represents a timer registry or render-guard invariant violation.
// These are programming errors: they are logged loudly and never retried.
type TimerError struct {
	baseError
	Key string
}

// NewTimerError creates a new TimerError.
func NewTimerError(key string, cause error) *TimerError {
	return &TimerError{
		baseError: baseError{
			message:     "timer invariant violated",
			cause:       cause,
			severity:    SeverityCritical,
			recoverable: false,
		},
		Key: key,
	}
}

// Error returns the formatted error message.
func (e *TimerError) Error() string {
	prefix := "timer error"
	if e.Key != "" {
		prefix = fmt.Sprintf("timer error [key=%s]", e.Key)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TimerError) Is(target error) bool {
	if _, ok := target.(*TimerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("widget", "tasks")
//	fmt.Println(err) // "widget not found: tasks"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:     fmt.Sprintf("%s not found", resourceType),
			severity:    SeverityDebug,
			recoverable: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s: %s", e.message, e.ResourceID)
	}
	return e.message
}

// Is checks if this error matches the target. A widget NotFoundError matches
// ErrWidgetNotFound.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrWidgetNotFound && e.ResourceType == "widget" {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("capacity must be positive").WithField("ui.queue_capacity")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:     message,
			cause:       ErrInvalidInput,
			severity:    SeverityWarning,
			recoverable: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	if len(parts) > 0 {
		return fmt.Sprintf("validation error [%s]: %s", strings.Join(parts, ", "), e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsNotFound reports whether err means the target widget or entity is gone.
// Callers treat such failures as silent no-ops.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *NotFoundError
	return Is(err, ErrWidgetNotFound) || As(err, &notFound)
}

// IsRace reports whether err signals a timer or render-guard race.
func IsRace(err error) bool {
	return err != nil && (Is(err, ErrTimerRace) || Is(err, ErrRenderReentrant))
}

// IsRecoverable returns true if the system continues normally after err.
// Unknown errors are treated as recoverable; races never are.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if IsRace(err) {
		return false
	}
	var ariErr AriError
	if As(err, &ariErr) {
		return ariErr.IsRecoverable()
	}
	return true
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AriError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    log.Error("invariant violated", "err", err)
//	case errors.SeverityDebug:
//	    // widget gone; nothing to do
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var ariErr AriError
	if As(err, &ariErr) {
		return ariErr.Severity()
	}
	return severityFor(err)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to load script")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
