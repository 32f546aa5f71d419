package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskwire/taskwire/internal/domain"
)

// requireTask loads the task referenced by the request, or returns the
// failure envelope to send instead.
func (e *Engine) requireTask(ctx context.Context, in Intent, req Request) (*domain.Task, *Response) {
	taskID := req.TaskID()
	if taskID == "" {
		return nil, e.fail(in, &ErrorDetail{
			Code:        CodeMissingTask,
			Message:     "request has no 'task' field",
			Recoverable: true,
			Field:       "task",
			Recovery: &Recovery{
				Action: "context",
				Hint:   map[string]any{"include_all": true},
			},
		})
	}
	if msg := ValidateTaskID(taskID); msg != "" {
		return nil, e.fail(in, &ErrorDetail{
			Code:        CodeInvalidTask,
			Message:     msg,
			Recoverable: true,
			Field:       "task",
			Got:         taskID,
		})
	}
	t, err := e.store.LoadTask(ctx, taskID)
	if err != nil {
		return nil, e.taskNotFound(in, taskID)
	}
	return t, nil
}

// requirePath validates the request's dotted subtask path.
func (e *Engine) requirePath(in Intent, req Request) (string, *Response) {
	path := req.Path()
	if path == "" {
		return "", e.fail(in, &ErrorDetail{
			Code:        CodeMissingPath,
			Message:     "request has no 'path' field",
			Recoverable: true,
			Field:       "path",
			Expected:    `dotted digits like "0" or "2.1"`,
		})
	}
	if msg := ValidatePath(path); msg != "" {
		return "", e.fail(in, &ErrorDetail{
			Code:        CodeInvalidPath,
			Message:     msg,
			Recoverable: true,
			Field:       "path",
			Got:         path,
		})
	}
	return path, nil
}

// findSubtask resolves a validated path inside t.
func (e *Engine) findSubtask(in Intent, t *domain.Task, path string) (*domain.Subtask, *Response) {
	st, err := t.FindSubtask(path)
	if err != nil {
		return nil, e.fail(in, &ErrorDetail{
			Code:        CodeSubtaskNotFound,
			Message:     fmt.Sprintf("no subtask at path %s in task %s", path, t.ID),
			Recoverable: true,
			Field:       "path",
			Got:         path,
		})
	}
	return st, nil
}

// saveTask persists t, returning the failure envelope on error.
func (e *Engine) saveTask(ctx context.Context, in Intent, t *domain.Task) *Response {
	if err := e.store.SaveTask(ctx, t); err != nil {
		return e.failSimple(in, CodeInternalError, "failed to save task: "+err.Error(), false)
	}
	return nil
}

// stringSlice converts a JSON array into trimmed non-empty strings.
func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		s, isString := el.(string)
		if !isString {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// subtaskFromSpec builds a subtask (and its children) from a decoded JSON
// node. Callers validate the node first; unknown fields are ignored.
func subtaskFromSpec(node map[string]any) domain.Subtask {
	now := time.Now().UTC()
	title, _ := node["title"].(string)
	st := domain.Subtask{
		Title:           strings.TrimSpace(title),
		SuccessCriteria: stringSlice(node["success_criteria"]),
		Tests:           stringSlice(node["tests"]),
		Blockers:        stringSlice(node["blockers"]),
		CreatedAt:       &now,
	}
	if children, ok := node["children"].([]any); ok {
		for _, el := range children {
			child, isNode := el.(map[string]any)
			if !isNode {
				continue
			}
			st.Children = append(st.Children, subtaskFromSpec(child))
		}
	}
	return st
}
