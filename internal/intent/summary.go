package intent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/taskwire/taskwire/internal/domain"
)

// Display budgets for envelope trimmings.
const (
	maxSummaryWidth = 100
	maxHintTitle    = 30
	maxHints        = 3
	maxSuggestions  = 5
)

func progressLabel(completed, total, pct int) string {
	return fmt.Sprintf("%d/%d (%d%%)", completed, total, pct)
}

func pathLabel(i int) string {
	return strconv.Itoa(i)
}

func truncateTitle(title string) string {
	return runewidth.Truncate(title, maxHintTitle, "")
}

// buildMeta summarizes a task's standing: counts, outstanding
// verifications, blockers, and the single most useful next action.
func buildMeta(t *domain.Task) *Meta {
	completed, total := t.Counts()
	meta := &Meta{
		TaskID:       t.ID,
		TaskStatus:   string(t.Status),
		TaskProgress: t.Progress(),
		Subtasks:     SubtaskCounts{Total: total, Completed: completed},
	}

	firstPending, firstBlocked := -1, -1
	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		pendingHere := false
		if len(st.SuccessCriteria) > 0 && !st.CriteriaConfirmed {
			meta.PendingVerifications++
			pendingHere = true
		}
		if len(st.Tests) > 0 && !st.TestsConfirmed {
			meta.PendingVerifications++
			pendingHere = true
		}
		if pendingHere && firstPending < 0 {
			firstPending = i
		}
		if len(st.Blockers) > 0 && !st.BlockersResolved {
			meta.UnresolvedBlockers++
			if firstBlocked < 0 {
				firstBlocked = i
			}
		}
	}

	switch {
	case meta.UnresolvedBlockers > 0:
		meta.NextActionHint = fmt.Sprintf("resolve blockers at path %d", firstBlocked)
	case meta.PendingVerifications > 0:
		meta.NextActionHint = fmt.Sprintf("verify criteria at path %d", firstPending)
	case total > 0 && completed == total:
		meta.NextActionHint = "complete task"
	}
	return meta
}

// generateSummary renders the per-intent one-liner, appends the next ready
// path, and truncates to the display budget.
func generateSummary(in Intent, result map[string]any, state *TaskState) string {
	s := summaryBody(in, result)
	if state != nil && state.Next != nil {
		s += fmt.Sprintf(" Next: path %s.", *state.Next)
	}
	return runewidth.Truncate(s, maxSummaryWidth, "...")
}

func summaryBody(in Intent, result map[string]any) string {
	switch in {
	case IntentContext:
		if snap, ok := result["snapshot"].(map[string]any); ok {
			return fmt.Sprintf("Context loaded. %v tasks.", snap["total_tasks"])
		}
	case IntentCreate:
		return fmt.Sprintf("Created %v. Add subtasks with decompose.", result["task_id"])
	case IntentDecompose:
		return fmt.Sprintf("Added %v subtasks. Verify criteria when ready.", result["total_created"])
	case IntentDefine:
		return fmt.Sprintf("Defined %s at path %v.", joinKeys(result["updated"]), result["path"])
	case IntentVerify:
		return fmt.Sprintf("Verified %s at path %v.", joinKeys(result["verified"]), result["path"])
	case IntentProgress:
		if done, _ := result["completed"].(bool); done {
			return fmt.Sprintf("Marked path %v complete.", result["path"])
		}
		return fmt.Sprintf("Marked path %v incomplete.", result["path"])
	case IntentDone:
		return doneSummary(result)
	case IntentDelete:
		if deleted, ok := result["deleted"].(map[string]any); ok {
			return fmt.Sprintf("Deleted %v.", deleted["type"])
		}
	case IntentComplete:
		return fmt.Sprintf("Task %v completed with status %v.", result["task_id"], result["status"])
	case IntentBatch:
		return fmt.Sprintf("Batch: %v/%v operations.", result["completed"], result["total"])
	case IntentUndo:
		if op, ok := result["undone_operation"].(map[string]any); ok {
			return fmt.Sprintf("Undone: %v.", op["intent"])
		}
	case IntentRedo:
		if op, ok := result["redo_operation"].(map[string]any); ok {
			return fmt.Sprintf("Redone: %v.", op["intent"])
		}
	case IntentHistory:
		if total, ok := result["total"]; ok {
			return fmt.Sprintf("%v operations in history.", total)
		}
	case IntentStorage:
		return fmt.Sprintf("Storage: %v.", result["namespace"])
	}
	return string(in) + " completed."
}

func doneSummary(result map[string]any) string {
	path := result["path"]
	if already, _ := result["already_completed"].(bool); already {
		return fmt.Sprintf("Path %v was already completed.", path)
	}
	if forced, _ := result["forced"].(bool); forced {
		return fmt.Sprintf("Path %v force-completed.", path)
	}
	if verified, ok := result["verified"].([]string); ok && len(verified) > 0 {
		return fmt.Sprintf("Path %v done (%d auto-verified).", path, len(verified))
	}
	return fmt.Sprintf("Path %v done. Progress: %v%%.", path, result["task_progress"])
}

// joinKeys renders a result map's keys sorted, for define/verify summaries.
func joinKeys(v any) string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return "nothing"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// hintsForTask suggests the next tool calls for a loaded task: close ready
// subtasks, verify pending criteria, or complete the task.
func hintsForTask(taskID string, t *domain.Task) []ActionHint {
	hints := make([]ActionHint, 0, maxHints)
	incomplete := 0
	for i := range t.Subtasks {
		if len(hints) == maxHints {
			break
		}
		st := &t.Subtasks[i]
		if st.Completed {
			continue
		}
		incomplete++
		path := pathLabel(i)
		switch {
		case st.ReadyForCompletion():
			hints = append(hints, ActionHint{
				Tool: "tasks_done",
				Args: map[string]any{"task": taskID, "path": path},
				Why:  "Subtask ready: " + truncateTitle(st.Title),
			})
		case len(st.SuccessCriteria) > 0 && !st.CriteriaConfirmed:
			hints = append(hints, ActionHint{
				Tool: "tasks_verify",
				Args: map[string]any{
					"task":        taskID,
					"path":        path,
					"checkpoints": map[string]any{"criteria": map[string]any{"confirmed": true}},
				},
				Why: "Verify criteria: " + truncateTitle(st.Title),
			})
		}
	}
	if incomplete == 0 && len(t.Subtasks) > 0 {
		hints = append(hints, ActionHint{
			Tool: "tasks_complete",
			Args: map[string]any{"task": taskID},
			Why:  "All subtasks done, complete task",
		})
	}
	return hints
}

// hintsWithoutTask points the agent at the first failing task when nothing
// is in focus.
func hintsWithoutTask(tasks []*domain.Task) []ActionHint {
	for _, t := range tasks {
		if t.Status == domain.StatusFail {
			return []ActionHint{{
				Tool: "tasks_context",
				Args: map[string]any{"task": t.ID},
				Why:  "Focus on incomplete task",
			}}
		}
	}
	return nil
}

// generateSuggestions builds the prioritized next steps attached by the
// context and resume handlers.
func generateSuggestions(taskID string, t *domain.Task, all []*domain.Task) []Suggestion {
	if t == nil {
		for _, candidate := range all {
			if candidate.Status == domain.StatusFail {
				return []Suggestion{{
					Action:   "context",
					Target:   candidate.ID,
					Reason:   "Focus on incomplete task",
					Priority: PriorityHigh,
				}}
			}
		}
		return []Suggestion{{
			Action:   "decompose",
			Target:   "new",
			Reason:   "No tasks in progress; create one and break it down",
			Priority: PriorityNormal,
		}}
	}

	suggestions := make([]Suggestion, 0, maxSuggestions)
	add := func(s Suggestion) {
		if len(suggestions) < maxSuggestions {
			suggestions = append(suggestions, s)
		}
	}

	completed, total := t.Counts()
	anyPending := false
	for i := range t.Subtasks {
		st := &t.Subtasks[i]
		path := pathLabel(i)
		if !st.Completed && len(st.SuccessCriteria) == 0 {
			add(Suggestion{
				Action:   "define",
				Target:   path,
				Reason:   "No success criteria defined",
				Priority: PriorityHigh,
				Params:   map[string]any{"task": taskID, "path": path},
			})
		}
		if len(st.SuccessCriteria) > 0 && !st.CriteriaConfirmed {
			anyPending = true
			if st.Completed {
				add(Suggestion{
					Action:   "verify",
					Target:   path,
					Reason:   "Completed but criteria unverified",
					Priority: PriorityHigh,
					Params:   map[string]any{"task": taskID, "path": path},
				})
			}
		}
		if len(st.Tests) > 0 && !st.TestsConfirmed {
			anyPending = true
			if st.Completed {
				add(Suggestion{
					Action:   "verify",
					Target:   path,
					Reason:   "Completed but tests unconfirmed",
					Priority: PriorityNormal,
					Params:   map[string]any{"task": taskID, "path": path},
				})
			}
		}
		if !st.Completed && len(st.Blockers) > 0 && !st.BlockersResolved {
			add(Suggestion{
				Action:   "resolve",
				Target:   path,
				Reason:   "Blockers unresolved",
				Priority: PriorityHigh,
				Params:   map[string]any{"task": taskID, "path": path},
			})
		}
		if !st.Completed && st.ReadyForCompletion() {
			add(Suggestion{
				Action:   "progress",
				Target:   path,
				Reason:   "All checkpoints confirmed, ready to complete",
				Priority: PriorityHigh,
				Params:   map[string]any{"task": taskID, "path": path},
			})
		}
	}

	if total > 0 && completed == total && !anyPending && t.Status != domain.StatusOK {
		add(Suggestion{
			Action:   "complete",
			Target:   taskID,
			Reason:   "All subtasks done and verified",
			Priority: PriorityHigh,
			Params:   map[string]any{"task": taskID},
		})
	}
	return suggestions
}

// buildContext assembles the workspace snapshot shared by the context
// intent and resume. The task list is returned for reuse.
func (e *Engine) buildContext(ctx context.Context, taskID string, includeAll, compact bool) (map[string]any, []*domain.Task) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		tasks = nil
	}

	byStatus := map[string]int{
		string(domain.StatusOK):   0,
		string(domain.StatusWarn): 0,
		string(domain.StatusFail): 0,
	}
	for _, t := range tasks {
		byStatus[string(t.Status)]++
	}

	out := map[string]any{
		"tasks_dir":   e.store.Dir(),
		"total_tasks": len(tasks),
		"by_status":   byStatus,
	}

	if includeAll {
		list := make([]map[string]any, 0, len(tasks))
		for _, t := range tasks {
			if compact {
				list = append(list, map[string]any{
					"id":       t.ID,
					"status":   t.Status,
					"progress": t.Progress(),
				})
				continue
			}
			_, total := t.Counts()
			list = append(list, map[string]any{
				"id":             t.ID,
				"title":          t.Title,
				"status":         t.Status,
				"progress":       t.Progress(),
				"subtasks_count": total,
				"blocked":        t.Blocked,
			})
		}
		out["tasks"] = list
	}

	if taskID != "" {
		if t, loadErr := e.store.LoadTask(ctx, taskID); loadErr == nil {
			out["current_task"] = t
		}
	}
	return out, tasks
}
