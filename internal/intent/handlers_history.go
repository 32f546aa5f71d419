package intent

import (
	"context"
	"errors"

	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// handleUndo reverts the most recent recorded operation by restoring the
// task file's pre-image.
func (e *Engine) handleUndo(ctx context.Context, _ Request) *Response {
	if e.history == nil {
		return e.failSimple(IntentUndo, CodeNothingToUndo, "history is disabled", false)
	}
	op, err := e.history.Undo(ctx)
	if err != nil {
		if errors.Is(err, twerrors.ErrNothingToUndo) {
			return e.failSimple(IntentUndo, CodeNothingToUndo, "nothing to undo", false)
		}
		return e.failSimple(IntentUndo, CodeUndoFailed, "undo failed: "+err.Error(), false)
	}
	return e.ok(IntentUndo, map[string]any{
		"undone_operation": map[string]any{
			"id":        op.ID,
			"intent":    op.Intent,
			"task_id":   op.TaskID,
			"timestamp": op.Timestamp,
		},
		"can_undo": e.history.CanUndo(ctx),
		"can_redo": e.history.CanRedo(ctx),
	})
}

// handleRedo reapplies the most recently undone operation.
func (e *Engine) handleRedo(ctx context.Context, _ Request) *Response {
	if e.history == nil {
		return e.failSimple(IntentRedo, CodeNothingToRedo, "history is disabled", false)
	}
	op, err := e.history.Redo(ctx)
	if err != nil {
		if errors.Is(err, twerrors.ErrNothingToRedo) {
			return e.failSimple(IntentRedo, CodeNothingToRedo, "nothing to redo", false)
		}
		return e.failSimple(IntentRedo, CodeRedoFailed, "redo failed: "+err.Error(), false)
	}
	return e.ok(IntentRedo, map[string]any{
		"redo_operation": map[string]any{
			"id":      op.ID,
			"intent":  op.Intent,
			"task_id": op.TaskID,
			"data":    op.Data,
		},
		"can_undo": e.history.CanUndo(ctx),
		"can_redo": e.history.CanRedo(ctx),
	})
}
