package intent

import (
	"time"

	"github.com/taskwire/taskwire/internal/domain"
)

// Response is the uniform envelope every surface returns. Field order and
// names are wire contract: success, intent, result, timestamp and error are
// always present (error is null on success); the rest are omitted when empty.
type Response struct {
	Success     bool             `json:"success"`
	Intent      Intent           `json:"intent"`
	Result      map[string]any   `json:"result"`
	Timestamp   string           `json:"timestamp"`
	Summary     string           `json:"summary,omitempty"`
	State       *TaskState       `json:"state,omitempty"`
	Hints       []ActionHint     `json:"hints,omitempty"`
	Context     map[string]any   `json:"context,omitempty"`
	Suggestions []Suggestion     `json:"suggestions,omitempty"`
	Meta        *Meta            `json:"meta,omitempty"`
	Error       *ErrorDetail     `json:"error"`
	Idempotency *IdempotencyInfo `json:"idempotency,omitempty"`
}

// ErrorDetail describes a failure: a stable code, a human message, and
// whether the caller can recover by changing the request.
type ErrorDetail struct {
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Field       string    `json:"field,omitempty"`
	Expected    string    `json:"expected,omitempty"`
	Got         string    `json:"got,omitempty"`
	Recovery    *Recovery `json:"recovery,omitempty"`
}

// Recovery is a ready-to-send follow-up request that resolves the error.
type Recovery struct {
	Action string         `json:"action"`
	Hint   map[string]any `json:"hint,omitempty"`
}

// TaskState is the compact task scan attached to envelopes: top-level
// subtasks only, completed ones skipped.
type TaskState struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Progress string   `json:"progress"`
	Ready    []string `json:"ready"`
	Blocked  []string `json:"blocked"`
	Next     *string  `json:"next"`
}

// ActionHint is a ready-to-call MCP tool invocation.
type ActionHint struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
	Why  string         `json:"why"`
}

// Suggestion is a prioritized next step for the agent.
type Suggestion struct {
	Action   string         `json:"action"`
	Target   string         `json:"target"`
	Reason   string         `json:"reason"`
	Priority string         `json:"priority"`
	Params   map[string]any `json:"params,omitempty"`
}

// Suggestion priorities.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Meta summarizes the task's standing after the operation.
type Meta struct {
	TaskID               string        `json:"task_id"`
	TaskStatus           string        `json:"task_status"`
	TaskProgress         int           `json:"task_progress"`
	Subtasks             SubtaskCounts `json:"subtasks"`
	PendingVerifications int           `json:"pending_verifications"`
	UnresolvedBlockers   int           `json:"unresolved_blockers"`
	NextActionHint       string        `json:"next_action_hint,omitempty"`
}

// SubtaskCounts pairs completed with total top-level subtasks.
type SubtaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// IdempotencyInfo reports replay handling for keyed requests.
type IdempotencyInfo struct {
	Key    string `json:"key"`
	Cached bool   `json:"cached"`
}

// ok builds a success envelope.
func (e *Engine) ok(in Intent, result map[string]any) *Response {
	return &Response{
		Success:   true,
		Intent:    in,
		Result:    result,
		Timestamp: e.timestamp(),
	}
}

// fail builds a failure envelope.
func (e *Engine) fail(in Intent, detail *ErrorDetail) *Response {
	return &Response{
		Success:   false,
		Intent:    in,
		Timestamp: e.timestamp(),
		Error:     detail,
	}
}

// failSimple builds a failure envelope from a code and message.
func (e *Engine) failSimple(in Intent, code, message string, recoverable bool) *Response {
	return e.fail(in, &ErrorDetail{Code: code, Message: message, Recoverable: recoverable})
}

// timestamp returns the envelope time in ISO-8601 UTC with a Z suffix.
func (e *Engine) timestamp() string {
	return e.clk.Now().UTC().Format(time.RFC3339)
}

// taskNotFound is the shared not-found failure with its context recovery.
func (e *Engine) taskNotFound(in Intent, taskID string) *Response {
	return e.fail(in, &ErrorDetail{
		Code:        CodeTaskNotFound,
		Message:     "task '" + taskID + "' not found",
		Recoverable: true,
		Field:       "task",
		Recovery: &Recovery{
			Action: "context",
			Hint:   map[string]any{"include_all": true},
		},
	})
}

// TaskStateFromTask scans a task into the compact envelope state.
func TaskStateFromTask(t *domain.Task) *TaskState {
	completed, total := t.Counts()
	state := &TaskState{
		ID:       t.ID,
		Title:    t.Title,
		Status:   string(t.Status),
		Progress: progressLabel(completed, total, t.Progress()),
		Ready:    []string{},
		Blocked:  []string{},
	}

	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		if st.Completed {
			continue
		}
		path := pathLabel(i)
		switch {
		case st.ReadyForCompletion():
			state.Ready = append(state.Ready, path)
		case st.Blocked:
			state.Blocked = append(state.Blocked, path)
		}
	}
	if len(state.Ready) > 0 {
		next := state.Ready[0]
		state.Next = &next
	}
	return state
}
