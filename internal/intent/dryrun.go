package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskwire/taskwire/internal/domain"
)

// taskPreflightIntents need an existing task before a dry run can say
// anything useful about the operation itself.
var taskPreflightIntents = map[Intent]bool{
	IntentDecompose: true,
	IntentDefine:    true,
	IntentVerify:    true,
	IntentProgress:  true,
	IntentComplete:  true,
	IntentDone:      true,
	IntentDelete:    true,
}

// preflight validates a modifying request without executing it. A dry run
// always reports success; would_execute says whether the real request
// would go through, and validation carries the per-field findings.
func (e *Engine) preflight(ctx context.Context, in Intent, req Request) *Response {
	result := map[string]any{
		"dry_run":       true,
		"intent":        string(in),
		"would_execute": true,
		"validation":    map[string]any{},
	}
	validation := result["validation"].(map[string]any)
	blocked := func(reason string) {
		result["would_execute"] = false
		if _, seen := result["reason"]; !seen && reason != "" {
			result["reason"] = reason
		}
	}

	taskID := req.TaskID()
	var t *domain.Task
	if taskPreflightIntents[in] {
		if taskID == "" {
			return e.dryRunWithoutTask(in, "missing 'task' field")
		}
		if msg := ValidateTaskID(taskID); msg != "" {
			return e.dryRunWithoutTask(in, msg)
		}
		loaded, err := e.store.LoadTask(ctx, taskID)
		if err != nil {
			return e.dryRunWithoutTask(in, fmt.Sprintf("task '%s' not found", taskID))
		}
		t = loaded
		validation["task_exists"] = true
		validation["task_status"] = string(t.Status)
		validation["subtasks_count"] = len(t.Subtasks)
	}

	switch in {
	case IntentCreate:
		title := strings.TrimSpace(req.String("title"))
		switch {
		case title == "":
			validation["title_valid"] = false
			blocked("title is required")
		case len(title) > MaxTitleLength:
			validation["title_valid"] = false
			blocked(fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
		default:
			validation["title_valid"] = true
		}

	case IntentDecompose:
		subtasks := req.Slice("subtasks")
		if len(subtasks) == 0 {
			validation["subtasks_provided"] = false
			blocked("subtasks are required")
			break
		}
		if msg := ValidateSubtasks(req["subtasks"]); msg != "" {
			validation["subtasks_valid"] = false
			blocked(msg)
			break
		}
		validation["subtasks_to_create"] = len(subtasks)

	case IntentDefine, IntentVerify, IntentProgress:
		if msg := preflightPath(req, validation); msg != "" {
			blocked(msg)
		}

	case IntentDone:
		if msg := preflightPath(req, validation); msg != "" {
			blocked(msg)
			break
		}
		st, err := t.FindSubtask(req.Path())
		if err != nil {
			validation["subtask_exists"] = false
			blocked(fmt.Sprintf("no subtask at path %s", req.Path()))
			break
		}
		validation["subtask_exists"] = true
		validation["already_completed"] = st.Completed
		validation["criteria_confirmed"] = st.CriteriaConfirmed || len(st.SuccessCriteria) == 0
		validation["tests_auto_confirmed"] = len(st.Tests) == 0 && !st.TestsConfirmed
		validation["blockers_auto_resolved"] = len(st.Blockers) == 0 && !st.BlockersResolved

	case IntentDelete:
		path := req.Path()
		if path == "" {
			validation["would_delete"] = "task"
			validation["task_title"] = t.Title
			break
		}
		st, err := t.FindSubtask(path)
		if err != nil {
			validation["subtask_exists"] = false
			blocked(fmt.Sprintf("no subtask at path %s", path))
			break
		}
		validation["subtask_exists"] = true
		validation["subtask_title"] = st.Title
		validation["would_delete"] = "subtask"

	case IntentComplete:
		raw := req.StringOr("status", "OK")
		if _, err := domain.ParseStatus(raw); err != nil {
			validation["status_valid"] = false
			blocked(fmt.Sprintf("status must be OK, WARN or FAIL, got '%s'", raw))
			break
		}
		validation["status_valid"] = true
	}

	resp := e.ok(in, result)
	if taskID != "" {
		snapshot, _ := e.buildContext(ctx, taskID, false, false)
		resp.Context = snapshot
	}
	return resp
}

// dryRunWithoutTask is the short-circuit when the referenced task cannot be
// loaded: still a success, but nothing else can be validated.
func (e *Engine) dryRunWithoutTask(in Intent, reason string) *Response {
	return e.ok(in, map[string]any{
		"dry_run":       true,
		"would_execute": false,
		"reason":        reason,
	})
}

func preflightPath(req Request, validation map[string]any) string {
	path := req.Path()
	if path == "" {
		validation["path_valid"] = false
		return "path is required"
	}
	if msg := ValidatePath(path); msg != "" {
		validation["path_valid"] = false
		return msg
	}
	validation["path_valid"] = true
	return ""
}
