package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/taskwire/taskwire/internal/intent"
)

// toolPrefix namespaces every tool so agents can spot the family at a glance.
const toolPrefix = "tasks_"

// toolSpec declares one tool: the intent it dispatches and the schema shown
// to the agent. The schema is documentation; the handler forwards whatever
// arguments arrive and lets the engine validate them.
type toolSpec struct {
	intent      intent.Intent
	description string
	options     []mcp.ToolOption
}

func toolSpecs() []toolSpec {
	return []toolSpec{
		{
			intent:      intent.IntentContext,
			description: "Show the workspace: task counts by status, the current task, and suggested next steps. Call this first.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Description("Focus on one task, e.g. TASK-001 (a bare number also works)")),
				mcp.WithBoolean("include_all", mcp.Description("List every task, not just the summary")),
				mcp.WithBoolean("compact", mcp.Description("With include_all, return id/title/status triples only")),
			},
		},
		{
			intent:      intent.IntentCreate,
			description: "Create a task. Returns the assigned task id.",
			options: []mcp.ToolOption{
				mcp.WithString("title", mcp.Required(), mcp.Description("Short imperative title, at most 500 characters")),
				mcp.WithString("description", mcp.Description("Longer free-form description")),
				mcp.WithString("priority", mcp.Description("LOW, MEDIUM, HIGH or CRITICAL (default MEDIUM)")),
				mcp.WithString("parent", mcp.Description("Parent task id, for follow-up tasks")),
				mcp.WithString("domain", mcp.Description("Storage namespace, e.g. backend/importer; phase and component compose one too")),
				mcp.WithArray("tags", mcp.Description("Free-form labels")),
				mcp.WithArray("depends_on", mcp.Description("Task ids this task waits on")),
				mcp.WithArray("subtasks", mcp.Description("Initial subtasks: strings or {title, success_criteria, tests, subtasks} objects, nested freely")),
			},
		},
		{
			intent:      intent.IntentDecompose,
			description: "Add subtasks to an existing task, optionally under a parent path.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithArray("subtasks", mcp.Required(), mcp.Description("Subtasks to add: strings or {title, ...} objects")),
				mcp.WithString("parent", mcp.Description("Dotted path to nest under, e.g. 0 or 2.1")),
			},
		},
		{
			intent:      intent.IntentDefine,
			description: "Attach success criteria, tests or blockers to a subtask. Redefining clears earlier confirmations.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithArray("criteria", mcp.Description("Success criteria, one string each")),
				mcp.WithArray("tests", mcp.Description("Tests that must pass")),
				mcp.WithArray("blockers", mcp.Description("Things currently in the way")),
			},
		},
		{
			intent:      intent.IntentVerify,
			description: "Confirm or reject a subtask's checkpoints (criteria, tests, blockers) with optional notes.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithObject("checkpoints", mcp.Required(), mcp.Description(`Per-facet verdicts, e.g. {"criteria": {"confirmed": true, "note": "all green"}}`)),
			},
		},
		{
			intent:      intent.IntentDone,
			description: "Mark a subtask done. Declared checkpoints must be verified first; use force to override.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithString("note", mcp.Description("Evidence for the completion; also confirms unverified criteria")),
				mcp.WithBoolean("force", mcp.Description("Complete despite unverified checkpoints, blocks or incomplete children")),
			},
		},
		{
			intent:      intent.IntentProgress,
			description: "Set a subtask's completion flag directly, without checkpoint gates.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithBoolean("completed", mcp.Description("Target state (default true)")),
			},
		},
		{
			intent:      intent.IntentNote,
			description: "Append a timestamped note to a subtask.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithString("note", mcp.Required(), mcp.Description("Note text")),
			},
		},
		{
			intent:      intent.IntentBlock,
			description: "Block or unblock a subtask. A blocked subtask fails the whole task's status.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Required(), mcp.Description("Dotted subtask path")),
				mcp.WithBoolean("blocked", mcp.Description("True to block, false to clear (default true)")),
				mcp.WithString("reason", mcp.Description("What is in the way")),
			},
		},
		{
			intent:      intent.IntentDelete,
			description: "Delete a subtask (with its children) or, without a path, the whole task.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("path", mcp.Description("Dotted subtask path; omit to delete the task itself")),
			},
		},
		{
			intent:      intent.IntentComplete,
			description: "Close out a task once every subtask is done and verified. Sets the final status.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("status", mcp.Description("Final status: OK, WARN or FAIL (default OK)")),
				mcp.WithBoolean("force", mcp.Description("Close despite incomplete or unverified subtasks")),
			},
		},
		{
			intent:      intent.IntentBatch,
			description: "Run several operations as one request. Atomic by default: any failure rolls every change back.",
			options: []mcp.ToolOption{
				mcp.WithArray("operations", mcp.Required(), mcp.Description(`Operations in order, e.g. [{"intent": "done", "path": "0"}]. Top-level task/domain fill in omitted fields; "paths" fans one operation out`)),
				mcp.WithString("task", mcp.Description("Default task id for operations that omit one")),
				mcp.WithBoolean("atomic", mcp.Description("Roll back on first failure (default true); false keeps completed prefix")),
			},
		},
		{
			intent:      intent.IntentUndo,
			description: "Undo the most recent modifying operation by restoring the task file snapshot.",
		},
		{
			intent:      intent.IntentRedo,
			description: "Re-apply the most recently undone operation.",
		},
		{
			intent:      intent.IntentHistory,
			description: "Show the operation log with the undo/redo cursor, or a task's event timeline.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Description("Show this task's event timeline instead of the operation log")),
				mcp.WithNumber("limit", mcp.Description("Most recent entries to return")),
			},
		},
		{
			intent:      intent.IntentResume,
			description: "Rebuild working context after an interruption: pending paths, blockers, dependencies, recent events.",
			options: []mcp.ToolOption{
				mcp.WithString("task", mcp.Description("Task to resume; defaults to the last touched task")),
			},
		},
		{
			intent:      intent.IntentMigrate,
			description: "Move this project's local task directory into the per-project global store.",
			options: []mcp.ToolOption{
				mcp.WithBoolean("dry_run", mcp.Description("Report what would move without moving it")),
			},
		},
		{
			intent:      intent.IntentStorage,
			description: "Show where tasks live: local directory, global root, namespace, and known namespaces.",
		},
	}
}

// registerTools wires one tool per intent. Modifying intents additionally
// advertise the shared dry_run and idempotency_key arguments.
func registerTools(s *server.MCPServer, eng *intent.Engine) {
	for _, spec := range toolSpecs() {
		opts := []mcp.ToolOption{mcp.WithDescription(spec.description)}
		opts = append(opts, spec.options...)
		if spec.intent.Modifying() {
			opts = append(opts,
				mcp.WithBoolean("dry_run", mcp.Description("Validate and report what would happen without changing anything")),
				mcp.WithString("idempotency_key", mcp.Description("Caller-chosen key; retries with the same key replay the first response")),
			)
		}
		s.AddTool(mcp.NewTool(toolName(spec.intent), opts...), toolHandler(eng, spec.intent))
	}
}

func toolName(in intent.Intent) string {
	return toolPrefix + string(in)
}

// toolHandler adapts one intent to the MCP tool contract. Arguments pass
// through untouched, the verb comes from the tool, and the whole response
// envelope goes back as JSON so agents see state, hints and recovery objects
// on failures too.
func toolHandler(eng *intent.Engine, in intent.Intent) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		req := make(intent.Request, len(args)+1)
		for k, v := range args {
			req[k] = v
		}
		req["intent"] = string(in)

		resp := eng.Process(ctx, req)
		payload, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("encoding response envelope", err), nil
		}

		result := mcp.NewToolResultText(string(payload))
		result.IsError = !resp.Success
		return result, nil
	}
}
