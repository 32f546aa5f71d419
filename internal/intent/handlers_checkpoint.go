package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskwire/taskwire/internal/domain"
)

// checkpointFacets are the three gate lists a subtask carries.
var checkpointFacets = []string{"criteria", "tests", "blockers"}

// handleDefine sets checkpoint lists on a subtask. Only facets present in
// the request change; redefining a facet clears its confirmation.
func (e *Engine) handleDefine(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentDefine, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentDefine, req)
	if pathResp != nil {
		return pathResp
	}
	st, stResp := e.findSubtask(IntentDefine, t, path)
	if stResp != nil {
		return stResp
	}

	updated := map[string]any{}
	for _, facet := range checkpointFacets {
		if !req.Has(facet) {
			continue
		}
		if msg := ValidateArray(req[facet], facet, MaxCheckpointItems); msg != "" {
			return e.fail(IntentDefine, &ErrorDetail{
				Code:        CodeValidationError,
				Message:     msg,
				Recoverable: true,
				Field:       facet,
			})
		}
		items := stringSlice(req[facet])
		if items == nil {
			items = []string{}
		}
		switch facet {
		case "criteria":
			st.SuccessCriteria = items
			st.CriteriaConfirmed = false
		case "tests":
			st.Tests = items
			st.TestsConfirmed = false
			st.TestsAutoConfirmed = false
		case "blockers":
			st.Blockers = items
			st.BlockersResolved = false
			st.BlockersAutoResolved = false
		}
		updated[facet] = items
	}
	if len(updated) == 0 {
		return e.fail(IntentDefine, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     "at least one of criteria, tests or blockers is required",
			Recoverable: true,
			Field:       "criteria",
		})
	}

	if saveResp := e.saveTask(ctx, IntentDefine, t); saveResp != nil {
		return saveResp
	}
	return e.ok(IntentDefine, map[string]any{
		"path":    path,
		"updated": updated,
	})
}

// handleVerify confirms or rejects checkpoints on a subtask. Notes are
// appended to the facet's evidence trail.
func (e *Engine) handleVerify(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentVerify, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentVerify, req)
	if pathResp != nil {
		return pathResp
	}
	st, stResp := e.findSubtask(IntentVerify, t, path)
	if stResp != nil {
		return stResp
	}

	checkpoints := req.Map("checkpoints")
	if len(checkpoints) == 0 {
		return e.fail(IntentVerify, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     "request has no 'checkpoints' object",
			Recoverable: true,
			Field:       "checkpoints",
			Recovery: &Recovery{
				Action: "verify",
				Hint: map[string]any{
					"task":        t.ID,
					"path":        path,
					"checkpoints": map[string]any{"criteria": map[string]any{"confirmed": true}},
				},
			},
		})
	}

	verified := map[string]any{}
	for _, facet := range checkpointFacets {
		raw, present := checkpoints[facet]
		if !present {
			continue
		}
		cp, isObject := raw.(map[string]any)
		if !isObject {
			return e.fail(IntentVerify, &ErrorDetail{
				Code:        CodeValidationError,
				Message:     fmt.Sprintf("checkpoints.%s must be an object", facet),
				Recoverable: true,
				Field:       "checkpoints",
			})
		}
		confirmed, _ := cp["confirmed"].(bool)
		note, _ := cp["note"].(string)
		note = strings.TrimSpace(note)

		switch facet {
		case "criteria":
			st.CriteriaConfirmed = confirmed
			if note != "" {
				st.CriteriaNotes = append(st.CriteriaNotes, note)
			}
		case "tests":
			st.TestsConfirmed = confirmed
			st.TestsAutoConfirmed = false
			if note != "" {
				st.TestsNotes = append(st.TestsNotes, note)
			}
		case "blockers":
			st.BlockersResolved = confirmed
			st.BlockersAutoResolved = false
			if note != "" {
				st.BlockersNotes = append(st.BlockersNotes, note)
			}
		}
		verified[facet] = confirmed
	}
	if len(verified) == 0 {
		return e.fail(IntentVerify, &ErrorDetail{
			Code:        CodeValidationError,
			Message:     "checkpoints must name criteria, tests or blockers",
			Recoverable: true,
			Field:       "checkpoints",
		})
	}

	t.AddEvent(domain.NewEvent(domain.EventCheckpoint, domain.ActorAI, "subtask:"+path, map[string]any{
		"verified": verified,
	}))
	if saveResp := e.saveTask(ctx, IntentVerify, t); saveResp != nil {
		return saveResp
	}
	return e.ok(IntentVerify, map[string]any{
		"path":     path,
		"verified": verified,
		"subtask_state": map[string]any{
			"criteria_confirmed": st.CriteriaConfirmed,
			"tests_confirmed":    st.TestsConfirmed,
			"blockers_resolved":  st.BlockersResolved,
		},
	})
}

// handleDone completes a subtask through its checkpoint gates. Empty
// checkpoint lists auto-confirm (with audit flags); declared-but-unconfirmed
// checkpoints block completion unless forced or, for criteria, accompanied
// by an evidence note.
func (e *Engine) handleDone(ctx context.Context, req Request) *Response {
	t, failResp := e.requireTask(ctx, IntentDone, req)
	if failResp != nil {
		return failResp
	}
	path, pathResp := e.requirePath(IntentDone, req)
	if pathResp != nil {
		return pathResp
	}
	st, stResp := e.findSubtask(IntentDone, t, path)
	if stResp != nil {
		return stResp
	}

	if st.Completed {
		var completedAt any
		if st.CompletedAt != nil {
			completedAt = st.CompletedAt.Format(time.RFC3339)
		}
		return e.ok(IntentDone, map[string]any{
			"path":              path,
			"already_completed": true,
			"completed_at":      completedAt,
		})
	}

	force := req.BoolOr("force", false)
	note := strings.TrimSpace(req.String("note"))

	var issues []string
	verified := []string{}

	switch {
	case len(st.SuccessCriteria) == 0:
		if !st.CriteriaConfirmed {
			st.CriteriaConfirmed = true
			verified = append(verified, "criteria")
		}
	case !st.CriteriaConfirmed:
		switch {
		case note != "":
			st.CriteriaConfirmed = true
			st.CriteriaNotes = append(st.CriteriaNotes, note)
			verified = append(verified, "criteria")
		case force:
			st.CriteriaConfirmed = true
			verified = append(verified, "criteria")
		default:
			issues = append(issues, fmt.Sprintf("%d unverified success criteria", len(st.SuccessCriteria)))
		}
	}

	switch {
	case len(st.Tests) == 0:
		if !st.TestsConfirmed {
			st.TestsConfirmed = true
			st.TestsAutoConfirmed = true
			verified = append(verified, "tests")
		}
	case !st.TestsConfirmed:
		if force {
			st.TestsConfirmed = true
			verified = append(verified, "tests")
		} else {
			issues = append(issues, fmt.Sprintf("%d unconfirmed tests", len(st.Tests)))
		}
	}

	switch {
	case len(st.Blockers) == 0:
		if !st.BlockersResolved {
			st.BlockersResolved = true
			st.BlockersAutoResolved = true
			verified = append(verified, "blockers")
		}
	case !st.BlockersResolved:
		if force {
			st.BlockersResolved = true
			verified = append(verified, "blockers")
		} else {
			issues = append(issues, fmt.Sprintf("%d unresolved blockers", len(st.Blockers)))
		}
	}

	if !force {
		incompleteChildren := 0
		for i := range st.Children {
			if !st.Children[i].Completed {
				incompleteChildren++
			}
		}
		if incompleteChildren > 0 {
			issues = append(issues, fmt.Sprintf("%d incomplete children", incompleteChildren))
		}
		if st.Blocked {
			reason := st.BlockReason
			if reason == "" {
				reason = "no reason recorded"
			}
			issues = append(issues, "subtask is blocked: "+reason)
		}
	}

	if len(issues) > 0 {
		return e.fail(IntentDone, &ErrorDetail{
			Code:        CodeCannotComplete,
			Message:     fmt.Sprintf("cannot complete path %s: %s", path, strings.Join(issues, "; ")),
			Recoverable: true,
			Field:       "path",
			Recovery: &Recovery{
				Action: "done",
				Hint: map[string]any{
					"task":  t.ID,
					"path":  path,
					"force": true,
					"note":  "Forced completion",
				},
			},
		})
	}

	now := time.Now().UTC()
	st.Completed = true
	st.CompletedAt = &now
	if st.StartedAt == nil {
		st.StartedAt = &now
	}
	t.UpdateStatusFromProgress()
	t.AddEvent(domain.NewEvent(domain.EventSubtaskDone, domain.ActorAI, "subtask:"+path, map[string]any{
		"forced":   force,
		"verified": verified,
	}))
	if saveResp := e.saveTask(ctx, IntentDone, t); saveResp != nil {
		return saveResp
	}

	return e.ok(IntentDone, map[string]any{
		"path":          path,
		"completed":     true,
		"completed_at":  now.Format(time.RFC3339),
		"verified":      verified,
		"forced":        force,
		"task_progress": t.Progress(),
	})
}
