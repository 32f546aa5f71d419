package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
)

func TestHandleDefine(t *testing.T) {
	t.Run("sets only the facets present", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "define", "task": "TASK-001", "path": "1",
			"tests":    []any{"go test ./loader"},
			"blockers": []any{"schema freeze"},
		})
		require.True(t, resp.Success)
		assert.Equal(t, "1", resp.Result["path"])

		updated, ok := resp.Result["updated"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, updated, "tests")
		assert.Contains(t, updated, "blockers")
		assert.NotContains(t, updated, "criteria")

		st := te.load(t, "TASK-001").Subtasks[1]
		assert.Equal(t, []string{"go test ./loader"}, st.Tests)
		assert.Equal(t, []string{"schema freeze"}, st.Blockers)
		assert.Empty(t, st.SuccessCriteria, "absent facets stay untouched")
	})

	t.Run("redefining clears the confirmation", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[0].CriteriaConfirmed = true
		})

		resp := te.run(t, Request{
			"intent": "define", "task": "TASK-001", "path": "0",
			"criteria": []any{"handles empty rows", "handles BOM"},
		})
		require.True(t, resp.Success)

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.Len(t, st.SuccessCriteria, 2)
		assert.False(t, st.CriteriaConfirmed, "new criteria need fresh verification")
	})

	t.Run("empty list clears the facet", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "define", "task": "TASK-001", "path": "0",
			"criteria": []any{},
		})
		require.True(t, resp.Success)

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.NotNil(t, st.SuccessCriteria)
		assert.Empty(t, st.SuccessCriteria)
	})

	t.Run("requires at least one facet", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{"intent": "define", "task": "TASK-001", "path": "0"})
		require.False(t, resp.Success)
		assert.Equal(t, CodeValidationError, resp.Error.Code)
		assert.Equal(t, "at least one of criteria, tests or blockers is required", resp.Error.Message)
	})

	t.Run("rejects non-array facets", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "define", "task": "TASK-001", "path": "0",
			"tests": "go test",
		})
		require.False(t, resp.Success)
		assert.Equal(t, CodeValidationError, resp.Error.Code)
		assert.Equal(t, "tests", resp.Error.Field)
	})
}

func TestHandleVerify(t *testing.T) {
	t.Run("confirms facets and appends evidence", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[0].Tests = []string{"go test ./parser"}
		})

		resp := te.run(t, Request{
			"intent": "verify", "task": "TASK-001", "path": "0",
			"checkpoints": map[string]any{
				"criteria": map[string]any{"confirmed": true, "note": "checked against fixtures"},
				"tests":    map[string]any{"confirmed": true},
			},
		})
		require.True(t, resp.Success)

		verified, ok := resp.Result["verified"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, verified["criteria"])
		assert.Equal(t, true, verified["tests"])

		state, ok := resp.Result["subtask_state"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, state["criteria_confirmed"])
		assert.Equal(t, true, state["tests_confirmed"])
		assert.Equal(t, false, state["blockers_resolved"])

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.True(t, st.CriteriaConfirmed)
		assert.Equal(t, []string{"checked against fixtures"}, st.CriteriaNotes)

		events := te.load(t, "TASK-001").Events
		require.NotEmpty(t, events)
		assert.Equal(t, domain.EventCheckpoint, events[len(events)-1].Type)
	})

	t.Run("can reject a previously confirmed facet", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[0].CriteriaConfirmed = true
		})

		resp := te.run(t, Request{
			"intent": "verify", "task": "TASK-001", "path": "0",
			"checkpoints": map[string]any{
				"criteria": map[string]any{"confirmed": false, "note": "fixture 3 regressed"},
			},
		})
		require.True(t, resp.Success)
		assert.False(t, te.load(t, "TASK-001").Subtasks[0].CriteriaConfirmed)
	})

	t.Run("explicit confirmation clears the auto flag", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[0].TestsConfirmed = true
			task.Subtasks[0].TestsAutoConfirmed = true
		})

		resp := te.run(t, Request{
			"intent": "verify", "task": "TASK-001", "path": "0",
			"checkpoints": map[string]any{"tests": map[string]any{"confirmed": true}},
		})
		require.True(t, resp.Success)

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.True(t, st.TestsConfirmed)
		assert.False(t, st.TestsAutoConfirmed)
	})

	t.Run("missing checkpoints ships a recovery example", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{"intent": "verify", "task": "TASK-001", "path": "0"})
		require.False(t, resp.Success)
		assert.Equal(t, CodeValidationError, resp.Error.Code)
		require.NotNil(t, resp.Error.Recovery)
		assert.Equal(t, "verify", resp.Error.Recovery.Action)
		assert.Contains(t, resp.Error.Recovery.Hint, "checkpoints")
	})

	t.Run("rejects unknown facet sets", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "verify", "task": "TASK-001", "path": "0",
			"checkpoints": map[string]any{"vibes": map[string]any{"confirmed": true}},
		})
		require.False(t, resp.Success)
		assert.Equal(t, "checkpoints must name criteria, tests or blockers", resp.Error.Message)
	})

	t.Run("rejects non-object facet values", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "verify", "task": "TASK-001", "path": "0",
			"checkpoints": map[string]any{"criteria": true},
		})
		require.False(t, resp.Success)
		assert.Equal(t, "checkpoints.criteria must be an object", resp.Error.Message)
	})
}

func TestHandleDone(t *testing.T) {
	t.Run("auto-confirms empty checkpoint lists", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		// Path 1 has no checkpoints at all.
		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "1"})
		require.True(t, resp.Success)
		assert.Equal(t, true, resp.Result["completed"])
		assert.Equal(t, false, resp.Result["forced"])
		assert.ElementsMatch(t, []string{"criteria", "tests", "blockers"}, resp.Result["verified"])
		assert.Equal(t, 50, resp.Result["task_progress"])

		st := te.load(t, "TASK-001").Subtasks[1]
		assert.True(t, st.Completed)
		require.NotNil(t, st.CompletedAt)
		assert.True(t, st.TestsAutoConfirmed)
		assert.True(t, st.BlockersAutoResolved)
	})

	t.Run("declared criteria block completion", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		// Path 0 declares success criteria that were never verified.
		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "0"})
		require.False(t, resp.Success)
		assert.Equal(t, CodeCannotComplete, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "1 unverified success criteria")
		require.NotNil(t, resp.Error.Recovery)
		assert.Equal(t, "done", resp.Error.Recovery.Action)
		assert.Equal(t, true, resp.Error.Recovery.Hint["force"])

		assert.False(t, te.load(t, "TASK-001").Subtasks[0].Completed)
	})

	t.Run("an evidence note confirms criteria in passing", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{
			"intent": "done", "task": "TASK-001", "path": "0",
			"note": "verified by hand against the staging feed",
		})
		require.True(t, resp.Success)
		assert.Contains(t, resp.Result["verified"], "criteria")

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.True(t, st.CriteriaConfirmed)
		assert.Equal(t, []string{"verified by hand against the staging feed"}, st.CriteriaNotes)
	})

	t.Run("force overrides every gate", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[0].Tests = []string{"go test ./parser"}
			task.Subtasks[0].Blockers = []string{"schema freeze"}
			task.Subtasks[0].Blocked = true
			task.Subtasks[0].BlockReason = "waiting on schema"
			task.Subtasks[0].Children = []domain.Subtask{{Title: "Child"}}
		})

		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "0", "force": true})
		require.True(t, resp.Success)
		assert.Equal(t, true, resp.Result["forced"])

		st := te.load(t, "TASK-001").Subtasks[0]
		assert.True(t, st.Completed)
		assert.True(t, st.TestsConfirmed)
		assert.False(t, st.TestsAutoConfirmed, "forced is not auto")
		assert.True(t, st.BlockersResolved)
	})

	t.Run("incomplete children and blocks gate completion", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", func(task *domain.Task) {
			task.Subtasks[1].Children = []domain.Subtask{{Title: "Child"}}
			task.Subtasks[1].Blocked = true
			task.Subtasks[1].BlockReason = "waiting on schema"
		})

		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "1"})
		require.False(t, resp.Success)
		assert.Contains(t, resp.Error.Message, "1 incomplete children")
		assert.Contains(t, resp.Error.Message, "subtask is blocked: waiting on schema")
	})

	t.Run("completing again is a no-op report", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		first := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "1"})
		require.True(t, first.Success)

		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "1"})
		require.True(t, resp.Success)
		assert.Equal(t, true, resp.Result["already_completed"])
		assert.NotNil(t, resp.Result["completed_at"])
	})

	t.Run("records the completion event", func(t *testing.T) {
		te := newTestEngine(t)
		te.seedTask(t, "TASK-001", nil)

		resp := te.run(t, Request{"intent": "done", "task": "TASK-001", "path": "1"})
		require.True(t, resp.Success)

		events := te.load(t, "TASK-001").Events
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, domain.EventSubtaskDone, last.Type)
		assert.Equal(t, "subtask:1", last.Target)
	})
}
