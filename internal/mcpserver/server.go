// Package mcpserver exposes the intent engine as an MCP server. It is pure
// wiring: one tool per intent, every tool handler forwarding its arguments
// to the engine and returning the response envelope as JSON.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/intent"
)

// ServerName identifies this server in the MCP handshake.
const ServerName = "taskwire"

// New builds the MCP server with every task tool registered.
func New(eng *intent.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	registerTools(s, eng)
	return s
}

// Serve runs the server over stdio until ctx is canceled or stdin closes.
// Protocol traffic owns stdout, so everything else must log to stderr.
func Serve(ctx context.Context, eng *intent.Engine, version string) error {
	s := New(eng, version)
	zerolog.Ctx(ctx).Info().Str("version", version).Msg("mcp server listening on stdio")

	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// instructions teach the agent the shared conventions once, instead of
// repeating them in every tool description.
const instructions = `Taskwire tracks multi-step work as tasks with nested subtasks.

Conventions shared by every tool:
- Subtasks are addressed by dotted paths: "0" is the first subtask, "2.1" the second child of the third.
- Every tool returns the same JSON envelope: success, result, and on failure an error with a stable code and usually a "recovery" object you can send verbatim to fix the problem.
- Successful responses carry "state" (what is ready, what is blocked, what to do next), "hints" (ready-to-call follow-ups) and "suggestions". Prefer those over guessing.
- Modifying tools accept "dry_run": true to validate without changing anything, and "idempotency_key" to make retries safe.

A typical session: tasks_context to see the workspace, tasks_create to start a task, tasks_decompose to break it down, tasks_define to attach success criteria, then tasks_done per subtask and tasks_complete at the end. tasks_resume rebuilds context after an interruption.`
