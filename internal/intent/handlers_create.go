package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/domain"
)

// handleCreate creates a new task, optionally with an initial subtask tree.
// The store assigns the next sequential ID.
func (e *Engine) handleCreate(ctx context.Context, req Request) *Response {
	title := strings.TrimSpace(req.String("title"))
	if title == "" {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeMissingTitle,
			Message:     "title is required",
			Recoverable: true,
			Field:       "title",
		})
	}
	if len(title) > MaxTitleLength {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeInvalidTitle,
			Message:     fmt.Sprintf("title exceeds %d characters", MaxTitleLength),
			Recoverable: true,
			Field:       "title",
			Expected:    fmt.Sprintf("at most %d characters", MaxTitleLength),
			Got:         fmt.Sprintf("%d characters", len(title)),
		})
	}
	for _, field := range []string{"description", "context"} {
		if msg := ValidateString(req[field], field, MaxStringLength); msg != "" {
			return e.fail(IntentCreate, &ErrorDetail{
				Code:        CodeValidationError,
				Message:     msg,
				Recoverable: true,
				Field:       field,
			})
		}
	}

	parent := strings.TrimSpace(req.String("parent"))
	if parent != "" {
		if msg := ValidateTaskID(parent); msg != "" {
			return e.fail(IntentCreate, &ErrorDetail{
				Code:        CodeInvalidParent,
				Message:     msg,
				Recoverable: true,
				Field:       "parent",
				Got:         parent,
			})
		}
	}

	priority, err := domain.ParsePriority(req.StringOr("priority", string(domain.PriorityMedium)))
	if err != nil {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeInvalidPriority,
			Message:     "invalid priority",
			Recoverable: true,
			Field:       "priority",
			Expected:    "LOW, MEDIUM, HIGH or CRITICAL",
			Got:         req.String("priority"),
		})
	}

	if msg := ValidateArray(req["tags"], "tags", MaxTags); msg != "" {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     msg,
			Recoverable: true,
			Field:       "tags",
		})
	}
	if msg := ValidateArray(req["success_criteria"], "success_criteria", MaxCheckpointItems); msg != "" {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     msg,
			Recoverable: true,
			Field:       "success_criteria",
		})
	}
	if msg := ValidateSubtasks(req["subtasks"]); msg != "" {
		return e.fail(IntentCreate, &ErrorDetail{
			Code:        CodeInvalidSubtasks,
			Message:     msg,
			Recoverable: true,
			Field:       "subtasks",
		})
	}

	t := domain.NewTask("", title)
	t.Description = strings.TrimSpace(req.String("description"))
	t.Context = strings.TrimSpace(req.String("context"))
	t.Parent = parent
	t.Priority = priority
	t.Domain = req.Domain()
	t.Phase = strings.TrimSpace(req.String("phase"))
	t.Component = strings.TrimSpace(req.String("component"))
	t.Tags = stringSlice(req.Slice("tags"))
	t.SuccessCriteria = stringSlice(req.Slice("success_criteria"))
	t.DependsOn = stringSlice(req.Slice("depends_on"))

	subtasksCreated := 0
	for _, el := range req.Slice("subtasks") {
		node, isNode := el.(map[string]any)
		if !isNode {
			continue
		}
		t.Subtasks = append(t.Subtasks, subtaskFromSpec(node))
		subtasksCreated++
	}
	t.UpdateStatusFromProgress()
	t.AddEvent(domain.NewEvent(domain.EventCreated, domain.ActorAI, "", map[string]any{
		"title": title,
	}))

	if err := e.store.CreateTask(ctx, t); err != nil {
		return e.failSimple(IntentCreate, CodeInternalError, "failed to create task: "+err.Error(), false)
	}
	if err := e.store.SaveLastTask(t.ID, t.Domain); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("last-task pointer not saved")
	}

	return e.ok(IntentCreate, map[string]any{
		"task_id":          t.ID,
		"title":            t.Title,
		"subtasks_created": subtasksCreated,
	})
}

// handleDecompose appends subtasks to an existing task. Bad entries are
// collected rather than aborting the whole request; the operation fails
// only when nothing could be created.
func (e *Engine) handleDecompose(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentDecompose, req)
	if failResp != nil {
		return failResp
	}

	specs := req.Slice("subtasks")
	if len(specs) == 0 {
		return e.fail(IntentDecompose, &ErrorDetail{
			Code:        CodeMissingSubtasks,
			Message:     "request has no 'subtasks' to add",
			Recoverable: true,
			Field:       "subtasks",
		})
	}

	// Optional parent path nests new subtasks under an existing node.
	var parentNode *domain.Subtask
	parentPath := strings.TrimSpace(req.String("parent"))
	if parentPath != "" {
		if msg := ValidatePath(parentPath); msg != "" {
			return e.fail(IntentDecompose, &ErrorDetail{
				Code:        CodeInvalidPath,
				Message:     msg,
				Recoverable: true,
				Field:       "parent",
				Got:         parentPath,
			})
		}
		node, nodeResp := e.findSubtask(IntentDecompose, t, parentPath)
		if nodeResp != nil {
			return nodeResp
		}
		parentNode = node
	}

	created := make([]map[string]any, 0, len(specs))
	var specErrors []map[string]any
	for i, el := range specs {
		node, isNode := el.(map[string]any)
		if !isNode {
			specErrors = append(specErrors, map[string]any{
				"index": i,
				"error": "subtask must be an object",
			})
			continue
		}
		title, _ := node["title"].(string)
		if msg := ValidateSubtasks([]any{el}); msg != "" {
			specErrors = append(specErrors, map[string]any{
				"index": i,
				"title": strings.TrimSpace(title),
				"error": msg,
			})
			continue
		}

		st := subtaskFromSpec(node)
		var path string
		if parentNode != nil {
			parentNode.Children = append(parentNode.Children, st)
			path = fmt.Sprintf("%s.%d", parentPath, len(parentNode.Children)-1)
		} else {
			t.Subtasks = append(t.Subtasks, st)
			path = pathLabel(len(t.Subtasks) - 1)
		}
		created = append(created, map[string]any{
			"path":     path,
			"title":    st.Title,
			"criteria": len(st.SuccessCriteria),
			"tests":    len(st.Tests),
			"blockers": len(st.Blockers),
		})
	}

	if len(created) == 0 {
		first, _ := specErrors[0]["error"].(string)
		return e.fail(IntentDecompose, &ErrorDetail{
			Code:        CodeNoSubtasksCreated,
			Message:     "no subtasks created: " + first,
			Recoverable: true,
			Field:       "subtasks",
		})
	}

	t.UpdateStatusFromProgress()
	if saveResp := e.saveTask(ctx, IntentDecompose, t); saveResp != nil {
		return saveResp
	}

	var errsOut any
	if len(specErrors) > 0 {
		errsOut = specErrors
	}
	return e.ok(IntentDecompose, map[string]any{
		"created":       created,
		"total_created": len(created),
		"errors":        errsOut,
	})
}
