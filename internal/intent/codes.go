package intent

// Error codes carried in the envelope's error detail. Grouped by taxonomy:
// input, not-found, state-conflict, infrastructure, batch, internal.
const (
	CodeMissingIntent = "MISSING_INTENT"
	CodeUnknownIntent = "UNKNOWN_INTENT"

	CodeMissingTask      = "MISSING_TASK"
	CodeInvalidTask      = "INVALID_TASK"
	CodeMissingPath      = "MISSING_PATH"
	CodeInvalidPath      = "INVALID_PATH"
	CodeMissingTitle     = "MISSING_TITLE"
	CodeInvalidTitle     = "INVALID_TITLE"
	CodeInvalidParent    = "INVALID_PARENT"
	CodeInvalidPriority  = "INVALID_PRIORITY"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeMissingSubtasks  = "MISSING_SUBTASKS"
	CodeInvalidSubtasks  = "INVALID_SUBTASKS"
	CodeMissingNote      = "MISSING_NOTE"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeInputTooLarge    = "INPUT_TOO_LARGE"
	CodeMissingOps       = "MISSING_OPERATIONS"
	CodeTooManyOps       = "TOO_MANY_OPERATIONS"
	CodeTooManyOpsAfter  = "TOO_MANY_OPERATIONS_AFTER_EXPANSION"

	CodeTaskNotFound    = "TASK_NOT_FOUND"
	CodeSubtaskNotFound = "SUBTASK_NOT_FOUND"
	CodeParentNotFound  = "PARENT_NOT_FOUND"

	CodeCannotComplete      = "CANNOT_COMPLETE"
	CodeIncompleteSubtasks  = "INCOMPLETE_SUBTASKS"
	CodeUnverifiedCriteria  = "UNVERIFIED_CRITERIA"
	CodeNoSubtasksCreated   = "NO_SUBTASKS_CREATED"
	CodeNothingToUndo       = "NOTHING_TO_UNDO"
	CodeNothingToRedo       = "NOTHING_TO_REDO"
	CodeNoLocalTasks        = "NO_LOCAL_TASKS"

	CodeUndoFailed      = "UNDO_FAILED"
	CodeRedoFailed      = "REDO_FAILED"
	CodeDeleteFailed    = "DELETE_FAILED"
	CodeMigrationFailed = "MIGRATION_FAILED"

	CodeBatchFailed  = "BATCH_FAILED"
	CodeBatchPartial = "BATCH_PARTIAL"

	CodeInternalError = "INTERNAL_ERROR"
)
