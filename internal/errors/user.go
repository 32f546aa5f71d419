package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// This single source of truth ensures UserMessage and Actionable stay in sync.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Store & Tasks
	// ===================
	{
		err: ErrTaskNotFound,
		info: ErrorInfo{
			Message: "The specified task was not found.",
			Action:  "Send {\"intent\":\"context\",\"include_all\":true} to list known tasks.",
		},
	},
	{
		err: ErrTaskExists,
		info: ErrorInfo{
			Message: "A task with this ID already exists.",
			Action:  "Use a different ID or operate on the existing task.",
		},
	},
	{
		err: ErrSubtaskNotFound,
		info: ErrorInfo{
			Message: "No subtask exists at the given path.",
			Action:  "Send {\"intent\":\"context\",\"task\":\"<id>\"} to inspect subtask paths.",
		},
	},
	{
		err: ErrParentNotFound,
		info: ErrorInfo{
			Message: "The parent of the given subtask path does not exist.",
			Action:  "Check the dotted path against the current subtask tree.",
		},
	},
	{
		err: ErrInvalidPath,
		info: ErrorInfo{
			Message: "Subtask paths are dotted index sequences like \"0\" or \"2.1\".",
			Action:  "Use digits separated by dots; indices start at 0.",
		},
	},
	{
		err: ErrPathTraversal,
		info: ErrorInfo{
			Message: "Identifiers must not contain path separators or '..'.",
			Action:  "Use only letters, digits, '-' and '_' in task IDs.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Could not acquire the task file lock. Another process may be using it.",
			Action:  "Wait and try again, or check for stuck taskwire processes.",
		},
	},

	// ===================
	// History
	// ===================
	{
		err: ErrNothingToUndo,
		info: ErrorInfo{
			Message: "There is no operation to undo.",
			Action:  "Send {\"intent\":\"history\"} to inspect the operation log.",
		},
	},
	{
		err: ErrNothingToRedo,
		info: ErrorInfo{
			Message: "There is no undone operation to redo.",
			Action:  "",
		},
	},
	{
		err: ErrSnapshotNotFound,
		info: ErrorInfo{
			Message: "A snapshot referenced by the history is missing.",
			Action:  "The snapshot may have been garbage-collected; the operation cannot be replayed.",
		},
	},
	{
		err: ErrHistoryCorrupted,
		info: ErrorInfo{
			Message: "The history file could not be decoded and was reset.",
			Action:  "Undo/redo starts from a fresh log; task files are unaffected.",
		},
	},

	// ===================
	// Requests
	// ===================
	{
		err: ErrUnknownIntent,
		info: ErrorInfo{
			Message: "The request names an intent this engine does not know.",
			Action:  "Run 'taskwire intent' with no input to list available intents.",
		},
	},
	{
		err: ErrInvalidStatus,
		info: ErrorInfo{
			Message: "Task status must be OK, WARN or FAIL.",
			Action:  "",
		},
	},
	{
		err: ErrInvalidPriority,
		info: ErrorInfo{
			Message: "Task priority must be LOW, MEDIUM, HIGH or CRITICAL.",
			Action:  "",
		},
	},
	{
		err: ErrInputTooLarge,
		info: ErrorInfo{
			Message: "The request payload exceeds the 10 MiB limit.",
			Action:  "Split the request into smaller batches.",
		},
	},
	{
		err: ErrNoLocalTasks,
		info: ErrorInfo{
			Message: "No local .tasks directory was found to migrate.",
			Action:  "Run from the project root that contains .tasks/.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "Configuration file not found.",
			Action:  "Run 'taskwire init' to create a starter taskwire.yaml.",
		},
	},
	{
		err: ErrConfigNil,
		info: ErrorInfo{
			Message: "Configuration is not loaded.",
			Action:  "Ensure taskwire.yaml exists and is valid YAML.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format specified.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrConflictingFlags,
		info: ErrorInfo{
			Message: "The specified flags cannot be used together.",
			Action:  "Check the command help for valid flag combinations.",
		},
	},
	{
		err: ErrEmptyValue,
		info: ErrorInfo{
			Message: "A required value was not provided.",
			Action:  "Provide the required value and try again.",
		},
	},
	{
		err: ErrUnsupportedOS,
		info: ErrorInfo{
			Message: "Your operating system is not supported for this operation.",
			Action:  "Taskwire supports macOS, Linux, and Windows.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
// Built once from errorInfoEntries during package initialization.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates a map from the errorInfoEntries slice.
// This is called once during package init for O(1) direct lookups.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries O(1) direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
// Returns an ErrorInfo with the original error message if not found.
func getErrorInfo(err error) ErrorInfo {
	// Fast path: O(1) lookup for direct sentinel errors
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Slow path: errors.Is() for wrapped errors
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// This function maps sentinel errors to helpful, actionable messages
// that are suitable for display to end users.
//
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
//
// For errors that are not recoverable or have no clear action, the action
// string will be empty.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
