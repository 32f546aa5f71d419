package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/mcpserver"
	"github.com/taskwire/taskwire/internal/signal"
)

// newServeCmd creates the serve command, which runs the MCP stdio server.
func newServeCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the intent engine as MCP tools over stdio",
		Long: `Run an MCP (Model Context Protocol) server on stdin/stdout.

Every intent is exposed as a tool named tasks_<intent>, returning the same
JSON envelope the intent command prints. Protocol traffic owns stdout, so
all logging goes to stderr and the configured log file.

Register with an MCP client as a stdio server, e.g.:
  {"command": "taskwire", "args": ["serve"]}

The server runs until the client closes stdin or the process receives
SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags, info)
		},
		SilenceUsage: true,
	}
}

// AddServeCommand adds the serve command to the root command.
func AddServeCommand(rootCmd *cobra.Command, flags *GlobalFlags, info BuildInfo) {
	rootCmd.AddCommand(newServeCmd(flags, info))
}

// runServe builds the engine and serves MCP over stdio until the context is
// canceled or stdin closes.
func runServe(cmd *cobra.Command, flags *GlobalFlags, info BuildInfo) error {
	handler := signal.NewHandler(cmd.Context())
	defer handler.Stop()
	defer CloseLogFile()

	ctx, eng, err := setupEngine(handler.Context(), flags)
	if err != nil {
		return err
	}

	version := info.Version
	if version == "" {
		version = "dev"
	}

	err = mcpserver.Serve(ctx, eng, version)
	if errors.Is(err, context.Canceled) {
		// Signal- or client-driven shutdown is clean.
		err = nil
	}
	GetLogger().Info().Msg("mcp server stopped")
	return err
}
