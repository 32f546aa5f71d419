// Package errors provides centralized error handling for taskwire.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrTaskNotFound indicates that a task does not exist in the store.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskExists indicates an attempt to create a task that already exists.
	ErrTaskExists = errors.New("task already exists")

	// ErrSubtaskNotFound indicates that no subtask exists at the given path.
	ErrSubtaskNotFound = errors.New("subtask not found")

	// ErrParentNotFound indicates that the parent node of a nested subtask
	// path does not exist.
	ErrParentNotFound = errors.New("parent subtask not found")

	// ErrInvalidPath indicates a subtask path is not a dotted sequence of
	// non-negative indices.
	ErrInvalidPath = errors.New("invalid subtask path")

	// ErrPathTraversal indicates an attempt to use path traversal in an
	// identifier or domain segment.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrLockTimeout indicates a file lock could not be acquired within the
	// timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrSnapshotNotFound indicates the referenced snapshot is missing from
	// the content store.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNothingToUndo indicates the operation history has no undoable entry.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the operation history has no redoable entry.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrHistoryCorrupted indicates the persisted history file could not be
	// decoded and was reset.
	ErrHistoryCorrupted = errors.New("history file corrupted")

	// ErrUnknownIntent indicates a request named an intent outside the
	// dispatch table.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrInvalidStatus indicates a task status outside OK/WARN/FAIL.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidPriority indicates a priority outside LOW/MEDIUM/HIGH/CRITICAL.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidStorage indicates invalid storage configuration values.
	ErrConfigInvalidStorage = errors.New("invalid storage configuration")

	// ErrConfigInvalidHistory indicates invalid history configuration values.
	ErrConfigInvalidHistory = errors.New("invalid history configuration")

	// ErrConfigInvalidIdempotency indicates invalid idempotency configuration values.
	ErrConfigInvalidIdempotency = errors.New("invalid idempotency configuration")

	// ErrConfigInvalidLog indicates invalid log configuration values.
	ErrConfigInvalidLog = errors.New("invalid log configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrConflictingFlags indicates that mutually exclusive flags were specified.
	ErrConflictingFlags = errors.New("conflicting flags specified")

	// ErrInputTooLarge indicates a request payload exceeded the size limit.
	ErrInputTooLarge = errors.New("input too large")

	// ErrNoLocalTasks indicates migration found no local task directory.
	ErrNoLocalTasks = errors.New("no local task directory")

	// ErrJSONErrorOutput indicates that an error has already been output as JSON.
	// This ensures a non-zero exit code while preventing duplicate error messages.
	// Commands should silence cobra's error printing when this is returned.
	ErrJSONErrorOutput = errors.New("error output as JSON")

	// ErrUnsupportedOS indicates the current operating system is not supported.
	ErrUnsupportedOS = errors.New("unsupported operating system")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
