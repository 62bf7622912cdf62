package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes classifying leaf action failures. The code is a stable
// discriminant for logs, metrics and the history store; the wrapped error
// carries the detail.
const (
	CodeExists          = "exists"
	CodeMismatch        = "mismatch"
	CodeIO              = "io"
	CodeCommand         = "command"
	CodeMalformedOutput = "malformed-output"
	CodeNetwork         = "network"
	CodePrecondition    = "precondition"
	CodeUnsupported     = "unsupported"
)

// Error is a classified leaf action error.
type Error struct {
	// Code is one of the Code* constants.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Path is the filesystem path involved, if any.
	Path string `json:"path,omitempty"`

	// Command is the rendered command line involved, if any.
	Command string `json:"command,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " (command=%s)", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on the classification code, so callers can compare against a
// bare &Error{Code: ...} with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a classified error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithPath adds filesystem path context.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCommand adds command line context.
func (e *Error) WithCommand(command string) *Error {
	e.Command = command
	return e
}

// Wrap attaches the underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// HasCode reports whether err carries the given classification code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrCancelled is returned when a cooperative stop signal is observed before
// an action begins its own mutation. The action's state is left unchanged so
// a subsequent run can resume.
var ErrCancelled = errors.New("cancelled before execution")

// IsCancelled reports whether err stems from the cooperative stop signal,
// either observed at an action boundary or surfaced by the context itself at
// a suspension point.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ChildError wraps a single failing child with the child's name so composite
// boundaries add "which child" context without altering the error itself.
type ChildError struct {
	Name string
	Err  error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("child action `%s`: %v", e.Name, e.Err)
}

func (e *ChildError) Unwrap() error { return e.Err }

// ChildName digs the innermost failing child name out of err, if any.
func ChildName(err error) string {
	var e *ChildError
	if !errors.As(err, &e) {
		return ""
	}
	// Prefer the deepest child, which names the leaf that actually failed.
	if inner := ChildName(e.Err); inner != "" {
		return inner
	}
	return e.Name
}

// ChildrenError aggregates the errors of multiple failing children of one
// composite.
type ChildrenError struct {
	Errs []error
}

func (e *ChildrenError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("multiple errors: %s", strings.Join(msgs, " & "))
}

func (e *ChildrenError) Unwrap() []error { return e.Errs }

// joinChildErrors folds zero, one or many child errors into nil, the single
// error, or a ChildrenError.
func joinChildErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &ChildrenError{Errs: errs}
	}
}

// TaskError reports that the goroutine driving a child never produced a
// result because it panicked.
type TaskError struct {
	Name  string
	Value any
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task running `%s` panicked: %v", e.Name, e.Value)
}

// RevertError is the higher-severity failure mode: undoing already-applied
// changes during partial-failure cleanup itself failed. It is always reported
// separately from the execution error that triggered the cleanup, because it
// leaves the host in a state requiring manual attention.
type RevertError struct {
	// Cause is the execution error that triggered the cleanup, if any.
	Cause error

	// Failures are the errors encountered while reverting.
	Failures []error
}

func (e *RevertError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"failed to revert after error: %s (original error: %v)",
			strings.Join(msgs, " & "), e.Cause,
		)
	}
	return fmt.Sprintf("failed to revert: %s", strings.Join(msgs, " & "))
}

func (e *RevertError) Unwrap() []error {
	if e.Cause != nil {
		return append([]error{e.Cause}, e.Failures...)
	}
	return e.Failures
}
