package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/domain"
	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// handleProgress toggles a subtask's completion without checkpoint gating.
// The gated path is the done intent; progress is the blunt instrument.
func (e *Engine) handleProgress(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentProgress, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentProgress, req)
	if pathResp != nil {
		return pathResp
	}

	completed := req.BoolOr("completed", true)
	err := e.store.SetSubtask(ctx, t.ID, path, func(st *domain.Subtask) error {
		now := time.Now().UTC()
		st.Completed = completed
		if completed {
			st.CompletedAt = &now
			if st.StartedAt == nil {
				st.StartedAt = &now
			}
		} else {
			st.CompletedAt = nil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, twerrors.ErrSubtaskNotFound) {
			return e.fail(IntentProgress, &ErrorDetail{
				Code:        CodeSubtaskNotFound,
				Message:     fmt.Sprintf("no subtask at path %s in task %s", path, t.ID),
				Recoverable: true,
				Field:       "path",
				Got:         path,
			})
		}
		return e.failSimple(IntentProgress, CodeInternalError, "failed to update subtask: "+err.Error(), false)
	}

	t, err = e.store.LoadTask(ctx, t.ID)
	if err != nil {
		return e.failSimple(IntentProgress, CodeInternalError, "failed to reload task: "+err.Error(), false)
	}
	return e.ok(IntentProgress, map[string]any{
		"path":          path,
		"completed":     completed,
		"task_progress": t.Progress(),
		"task_status":   string(t.Status),
	})
}

// handleNote appends a progress note to a subtask and records it on the
// task timeline.
func (e *Engine) handleNote(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentNote, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentNote, req)
	if pathResp != nil {
		return pathResp
	}
	st, stResp := e.findSubtask(IntentNote, t, path)
	if stResp != nil {
		return stResp
	}

	note := strings.TrimSpace(req.String("note"))
	if note == "" {
		return e.fail(IntentNote, &ErrorDetail{
			Code:        CodeMissingNote,
			Message:     "request has no 'note' text",
			Recoverable: true,
			Field:       "note",
		})
	}
	if len(note) > MaxStringLength {
		return e.fail(IntentNote, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     fmt.Sprintf("note exceeds %d characters", MaxStringLength),
			Recoverable: true,
			Field:       "note",
		})
	}

	st.ProgressNotes = append(st.ProgressNotes, note)
	if st.StartedAt == nil {
		now := time.Now().UTC()
		st.StartedAt = &now
	}
	t.AddEvent(domain.NewEvent(domain.EventComment, domain.ActorAI, "subtask:"+path, map[string]any{
		"note": note,
	}))
	if saveResp := e.saveTask(ctx, IntentNote, t); saveResp != nil {
		return saveResp
	}
	return e.ok(IntentNote, map[string]any{
		"path":            path,
		"note":            note,
		"total_notes":     len(st.ProgressNotes),
		"computed_status": string(t.Status),
	})
}

// handleBlock marks a subtask blocked or unblocked. The task-level blocked
// flag follows: a task is blocked while any top-level subtask is.
func (e *Engine) handleBlock(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentBlock, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentBlock, req)
	if pathResp != nil {
		return pathResp
	}
	st, stResp := e.findSubtask(IntentBlock, t, path)
	if stResp != nil {
		return stResp
	}

	blocked := req.BoolOr("blocked", true)
	reason := strings.TrimSpace(req.String("reason"))
	st.Blocked = blocked
	if blocked {
		st.BlockReason = reason
	} else {
		st.BlockReason = ""
		reason = ""
	}

	anyBlocked := false
	for i := range t.Subtasks {
		if t.Subtasks[i].Blocked {
			anyBlocked = true
			break
		}
	}
	t.Blocked = anyBlocked
	t.UpdateStatusFromProgress()

	eventType := domain.EventUnblocked
	var data map[string]any
	if blocked {
		eventType = domain.EventBlocked
		data = map[string]any{"reason": reason}
	}
	t.AddEvent(domain.NewEvent(eventType, domain.ActorAI, "subtask:"+path, data))
	if saveResp := e.saveTask(ctx, IntentBlock, t); saveResp != nil {
		return saveResp
	}
	return e.ok(IntentBlock, map[string]any{
		"path":            path,
		"blocked":         blocked,
		"reason":          reason,
		"computed_status": string(t.Status),
	})
}

// handleDelete removes a subtask (when a path is given) or the whole task.
func (e *Engine) handleDelete(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentDelete, req)
	if failResp != nil {
		return failResp
	}

	if path := req.Path(); path != "" {
		if msg := ValidatePath(path); msg != "" {
			return e.fail(IntentDelete, &ErrorDetail{
				Code:        CodeInvalidPath,
				Message:     msg,
				Recoverable: true,
				Field:       "path",
				Got:         path,
			})
		}
		list, idx, err := t.FindParentList(path)
		if err != nil {
			code := CodeSubtaskNotFound
			if errors.Is(err, twerrors.ErrParentNotFound) {
				code = CodeParentNotFound
			}
			return e.fail(IntentDelete, &ErrorDetail{
				Code:        code,
				Message:     fmt.Sprintf("no subtask at path %s in task %s", path, t.ID),
				Recoverable: true,
				Field:       "path",
				Got:         path,
			})
		}
		victim := (*list)[idx]
		*list = append((*list)[:idx], (*list)[idx+1:]...)
		t.UpdateStatusFromProgress()
		if saveResp := e.saveTask(ctx, IntentDelete, t); saveResp != nil {
			return saveResp
		}
		return e.ok(IntentDelete, map[string]any{
			"deleted": map[string]any{
				"type":          "subtask",
				"path":          path,
				"title":         victim.Title,
				"was_completed": victim.Completed,
			},
			"remaining_subtasks": len(t.Subtasks),
			"task_progress":      t.Progress(),
		})
	}

	_, total := t.Counts()
	deleted := map[string]any{
		"type":           "task",
		"id":             t.ID,
		"title":          t.Title,
		"status":         string(t.Status),
		"subtasks_count": total,
	}
	if err := e.store.DeleteTask(ctx, t.ID); err != nil {
		return e.failSimple(IntentDelete, CodeDeleteFailed, "failed to delete task: "+err.Error(), false)
	}
	if lastID, _ := e.store.LastTask(); lastID == t.ID {
		if err := e.store.ClearLastTask(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("last-task pointer not cleared")
		}
	}
	return e.ok(IntentDelete, map[string]any{
		"deleted": deleted,
	})
}

// handleComplete closes out a whole task. Every subtask must be completed
// and every declared criteria list confirmed first.
func (e *Engine) handleComplete(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentComplete, req)
	if failResp != nil {
		return failResp
	}

	raw := req.StringOr("status", "OK")
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return e.fail(IntentComplete, &ErrorDetail{
			Code:        CodeInvalidStatus,
			Message:     "invalid completion status",
			Recoverable: true,
			Field:       "status",
			Expected:    "OK, WARN or FAIL",
			Got:         raw,
		})
	}

	completed, total := t.Counts()
	if completed < total {
		firstIncomplete := 0
		for i := range t.Subtasks {
			if !t.Subtasks[i].Completed {
				firstIncomplete = i
				break
			}
		}
		return e.fail(IntentComplete, &ErrorDetail{
			Code:        CodeIncompleteSubtasks,
			Message:     fmt.Sprintf("%d of %d subtasks are incomplete", total-completed, total),
			Recoverable: true,
			Field:       "task",
			Recovery: &Recovery{
				Action: "done",
				Hint:   map[string]any{"task": t.ID, "path": pathLabel(firstIncomplete)},
			},
		})
	}
	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		if len(st.SuccessCriteria) > 0 && !st.CriteriaConfirmed {
			return e.fail(IntentComplete, &ErrorDetail{
				Code:        CodeUnverifiedCriteria,
				Message:     fmt.Sprintf("subtask at path %d has unverified success criteria", i),
				Recoverable: true,
				Field:       "task",
				Recovery: &Recovery{
					Action: "verify",
					Hint: map[string]any{
						"task":        t.ID,
						"path":        pathLabel(i),
						"checkpoints": map[string]any{"criteria": map[string]any{"confirmed": true}},
					},
				},
			})
		}
	}

	now := time.Now().UTC()
	t.Status = status
	t.CompletedAt = &now
	t.AddEvent(domain.NewEvent(domain.EventStatus, domain.ActorAI, "", map[string]any{
		"status": string(status),
	}))
	if saveResp := e.saveTask(ctx, IntentComplete, t); saveResp != nil {
		return saveResp
	}
	return e.ok(IntentComplete, map[string]any{
		"task_id": t.ID,
		"status":  string(status),
	})
}
