package intent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/task"
)

// handleContext returns the workspace snapshot: totals, status breakdown,
// optionally every task, and the focused task in full.
func (e *Engine) handleContext(ctx context.Context, req Request) *Response {
	taskID := req.TaskID()
	snapshot, tasks := e.buildContext(ctx, taskID, req.BoolOr("include_all", false), req.BoolOr("compact", false))

	var current *domain.Task
	if taskID != "" {
		if t, err := e.store.LoadTask(ctx, taskID); err == nil {
			current = t
			if saveErr := e.store.SaveLastTask(t.ID, t.Domain); saveErr != nil {
				zerolog.Ctx(ctx).Debug().Err(saveErr).Msg("last-task pointer not saved")
			}
		}
	}

	resp := e.ok(IntentContext, map[string]any{"snapshot": snapshot})
	resp.Context = snapshot
	resp.Suggestions = generateSuggestions(taskID, current, tasks)
	return resp
}

// handleResume rebuilds working context for a task: the task itself, its
// recent timeline, dependency standing, and checkpoint status. Without a
// task reference it falls back to the last-task pointer.
func (e *Engine) handleResume(ctx context.Context, req Request) *Response {
	taskID := req.TaskID()
	if taskID == "" {
		taskID, _ = e.store.LastTask()
	}
	if taskID == "" {
		snapshot, tasks := e.buildContext(ctx, "", true, false)
		resp := e.ok(IntentResume, map[string]any{
			"task":              nil,
			"timeline":          []any{},
			"dependencies":      map[string]any{},
			"checkpoint_status": map[string]any{},
			"message":           "No task in progress. Review the context and pick one.",
		})
		resp.Context = snapshot
		resp.Suggestions = generateSuggestions("", nil, tasks)
		if len(resp.Suggestions) == 0 || resp.Suggestions[0].Action != "context" {
			resp.Suggestions = append([]Suggestion{{
				Action:   "context",
				Target:   "all",
				Reason:   "Inspect the workspace before choosing a task",
				Priority: PriorityHigh,
				Params:   map[string]any{"include_all": true},
			}}, resp.Suggestions...)
		}
		return resp
	}

	t, err := e.store.LoadTask(ctx, taskID)
	if err != nil {
		return e.taskNotFound(IntentResume, taskID)
	}

	limit := req.IntOr("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	timeline := make([]map[string]any, 0, limit)
	for i := len(t.Events) - 1; i >= 0 && len(timeline) < limit; i-- {
		ev := t.Events[i]
		timeline = append(timeline, map[string]any{
			"timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
			"type":      ev.Type,
			"actor":     ev.Actor,
			"target":    ev.Target,
			"data":      ev.Data,
			"formatted": formatEvent(ev),
		})
	}

	dependsOn := t.DependsOn
	if dependsOn == nil {
		dependsOn = []string{}
	}
	blockedBy := []map[string]any{}
	firstBlockedID := ""
	for _, depID := range t.DependsOn {
		dep, depErr := e.store.LoadTask(ctx, depID)
		switch {
		case depErr != nil:
			blockedBy = append(blockedBy, map[string]any{"id": depID, "status": "missing"})
		case dep.Status != domain.StatusOK:
			blockedBy = append(blockedBy, map[string]any{"id": dep.ID, "status": string(dep.Status)})
		default:
			continue
		}
		if firstBlockedID == "" {
			firstBlockedID = depID
		}
	}
	blocking := []string{}
	if all, listErr := e.store.ListTasks(ctx); listErr == nil {
		for _, other := range all {
			if other.ID == t.ID {
				continue
			}
			for _, depID := range other.DependsOn {
				if task.NormalizeTaskID(depID) == t.ID {
					blocking = append(blocking, other.ID)
					break
				}
			}
		}
	}

	pending := []string{}
	ready := []string{}
	t.WalkSubtasks(func(path string, st *domain.Subtask) {
		if st.Completed {
			return
		}
		if len(st.SuccessCriteria) > 0 && !st.CriteriaConfirmed {
			pending = append(pending, path)
		}
		if st.ReadyForCompletion() {
			ready = append(ready, path)
		}
	})

	var suggestions []Suggestion
	switch {
	case len(ready) > 0:
		suggestions = append(suggestions, Suggestion{
			Action:   "done",
			Target:   ready[0],
			Reason:   "Checkpoints confirmed, ready to complete",
			Priority: PriorityHigh,
			Params:   map[string]any{"task": t.ID, "path": ready[0]},
		})
	case len(pending) > 0:
		suggestions = append(suggestions, Suggestion{
			Action:   "verify",
			Target:   pending[0],
			Reason:   "Success criteria await verification",
			Priority: PriorityHigh,
			Params: map[string]any{
				"task":        t.ID,
				"path":        pending[0],
				"checkpoints": map[string]any{"criteria": map[string]any{"confirmed": true}},
			},
		})
	}
	if firstBlockedID != "" {
		suggestions = append(suggestions, Suggestion{
			Action:   "context",
			Target:   firstBlockedID,
			Reason:   "Dependency is not complete",
			Priority: PriorityNormal,
			Params:   map[string]any{"task": firstBlockedID},
		})
	}

	if saveErr := e.store.SaveLastTask(t.ID, t.Domain); saveErr != nil {
		zerolog.Ctx(ctx).Debug().Err(saveErr).Msg("last-task pointer not saved")
	}

	resp := e.ok(IntentResume, map[string]any{
		"task":     t,
		"timeline": timeline,
		"dependencies": map[string]any{
			"depends_on": dependsOn,
			"blocked_by": blockedBy,
			"blocking":   blocking,
		},
		"checkpoint_status": map[string]any{
			"pending": pending,
			"ready":   ready,
		},
	})
	resp.Context = map[string]any{
		"task_id":      t.ID,
		"status":       string(t.Status),
		"progress":     t.Progress(),
		"blocked":      t.Blocked,
		"events_count": len(t.Events),
		"deps_count":   len(t.DependsOn),
	}
	resp.Suggestions = suggestions
	return resp
}

// handleHistory lists a task's timeline when a task is referenced, or the
// operation log (newest first) when not.
func (e *Engine) handleHistory(ctx context.Context, req Request) *Response {
	if taskID := req.TaskID(); taskID != "" {
		t, err := e.store.LoadTask(ctx, taskID)
		if err != nil {
			return e.taskNotFound(IntentHistory, taskID)
		}
		limit := req.IntOr("limit", 50)
		if limit <= 0 {
			limit = 50
		}
		events := make([]map[string]any, 0, limit)
		for i := len(t.Events) - 1; i >= 0 && len(events) < limit; i-- {
			ev := t.Events[i]
			events = append(events, map[string]any{
				"timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
				"type":      ev.Type,
				"actor":     ev.Actor,
				"target":    ev.Target,
				"data":      ev.Data,
				"formatted": formatEvent(ev),
			})
		}
		return e.ok(IntentHistory, map[string]any{
			"task_id":      t.ID,
			"events":       events,
			"total_events": len(t.Events),
		})
	}

	if e.history == nil {
		return e.ok(IntentHistory, map[string]any{
			"operations":    []any{},
			"total":         0,
			"current_index": -1,
			"can_undo":      false,
			"can_redo":      false,
		})
	}

	view := e.history.Recent(ctx, req.IntOr("limit", 10))
	operations := make([]map[string]any, 0, len(view.Operations))
	for i := len(view.Operations) - 1; i >= 0; i-- {
		op := view.Operations[i]
		operations = append(operations, map[string]any{
			"id":        op.ID,
			"intent":    op.Intent,
			"task_id":   op.TaskID,
			"timestamp": op.Timestamp,
			"datetime":  time.Unix(op.Timestamp, 0).UTC().Format(time.RFC3339),
			"undone":    op.Undone,
		})
	}
	return e.ok(IntentHistory, map[string]any{
		"operations":    operations,
		"total":         view.Total,
		"current_index": view.CurrentIndex,
		"can_undo":      view.CanUndo,
		"can_redo":      view.CanRedo,
	})
}

// handleStorage describes the storage layout: the global root, the derived
// namespace for this project, and the local directory if one exists.
func (e *Engine) handleStorage(ctx context.Context, _ Request) *Response {
	namespace := task.DeriveNamespace(e.workDir)

	localDir := e.localDir
	if !filepath.IsAbs(localDir) {
		localDir = filepath.Join(e.workDir, localDir)
	}
	if abs, err := filepath.Abs(localDir); err == nil {
		localDir = abs
	}

	namespaces, err := task.ListNamespaces(e.globalRoot)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("namespace listing failed")
		namespaces = []task.Namespace{}
	}

	return e.ok(IntentStorage, map[string]any{
		"root":         e.globalRoot,
		"root_exists":  dirExists(e.globalRoot),
		"namespace":    namespace,
		"local_dir":    localDir,
		"local_exists": dirExists(localDir),
		"namespaces":   namespaces,
	})
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// formatEvent renders a timeline entry as one human-readable line.
func formatEvent(ev domain.Event) string {
	target := strings.TrimPrefix(ev.Target, "subtask:")
	switch ev.Type {
	case domain.EventCreated:
		if title, ok := ev.Data["title"].(string); ok {
			return fmt.Sprintf("Created '%s'", title)
		}
		return "Task created"
	case domain.EventCheckpoint:
		return fmt.Sprintf("Checkpoints verified at path %s", target)
	case domain.EventStatus:
		return fmt.Sprintf("Status set to %v", ev.Data["status"])
	case domain.EventBlocked:
		if reason, ok := ev.Data["reason"].(string); ok && reason != "" {
			return fmt.Sprintf("Blocked at path %s: %s", target, reason)
		}
		return fmt.Sprintf("Blocked at path %s", target)
	case domain.EventUnblocked:
		return fmt.Sprintf("Unblocked at path %s", target)
	case domain.EventSubtaskDone:
		return fmt.Sprintf("Completed path %s", target)
	case domain.EventComment:
		if note, ok := ev.Data["note"].(string); ok {
			return fmt.Sprintf("Note at path %s: %s", target, note)
		}
		return fmt.Sprintf("Note at path %s", target)
	default:
		return ev.Type
	}
}
