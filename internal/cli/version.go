package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// versionDetails is the JSON shape of version output.
type versionDetails struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// newVersionCmd creates the version command.
func newVersionCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd.OutOrStdout(), flags, info)
		},
		SilenceUsage: true,
	}
}

// AddVersionCommand adds the version command to the root command.
func AddVersionCommand(rootCmd *cobra.Command, flags *GlobalFlags, info BuildInfo) {
	rootCmd.AddCommand(newVersionCmd(flags, info))
}

// runVersion prints build information honoring the --output flag.
func runVersion(w io.Writer, flags *GlobalFlags, info BuildInfo) error {
	details := versionDetails{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if details.Version == "" {
		details.Version = "dev"
	}
	if details.Commit == "" {
		details.Commit = "none"
	}
	if details.BuildDate == "" {
		details.BuildDate = "unknown"
	}

	if flags.Output == OutputJSON {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, err := fmt.Fprintf(w, "taskwire %s\n  commit:  %s\n  built:   %s\n  go:      %s\n  platform: %s\n",
		details.Version, details.Commit, details.BuildDate, details.GoVersion, details.Platform)
	return err
}
