// Package main provides the entry point for the taskwire CLI.
package main

import (
	"context"
	"os"

	"github.com/taskwire/taskwire/internal/cli"
)

// Build information set via ldflags at release time.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	ctx := context.Background()

	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
