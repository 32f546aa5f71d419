package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskwire/taskwire/internal/config"
)

// InitFlags holds flags specific to the init command.
type InitFlags struct {
	// Force overwrites an existing config file.
	Force bool
}

// starterConfig is the YAML shape written by taskwire init. It mirrors
// config.Config but keeps durations as strings so the generated file reads
// the way people write it.
type starterConfig struct {
	Storage     starterStorage     `yaml:"storage"`
	History     starterHistory     `yaml:"history"`
	Idempotency starterIdempotency `yaml:"idempotency"`
	Log         starterLog         `yaml:"log"`
}

type starterStorage struct {
	// Root is the global storage root; empty means ~/.taskwire.
	Root string `yaml:"root"`
	// LocalDir is the project-local task directory name.
	LocalDir string `yaml:"local_dir"`
	// LockTimeout is how long to wait for a contended task file lock.
	LockTimeout string `yaml:"lock_timeout"`
}

type starterHistory struct {
	Enabled       bool `yaml:"enabled"`
	MaxOperations int  `yaml:"max_operations"`
}

type starterIdempotency struct {
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
	EvictBatch int    `yaml:"evict_batch"`
}

type starterLog struct {
	// File enables the rotating log sink when set; empty keeps stderr only.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// starterDefaults renders the built-in defaults as the starter file content.
func starterDefaults() starterConfig {
	defaults := config.DefaultConfig()
	return starterConfig{
		Storage: starterStorage{
			Root:        defaults.Storage.Root,
			LocalDir:    defaults.Storage.LocalDir,
			LockTimeout: defaults.Storage.LockTimeout.String(),
		},
		History: starterHistory{
			Enabled:       defaults.History.Enabled,
			MaxOperations: defaults.History.MaxOperations,
		},
		Idempotency: starterIdempotency{
			TTL:        defaults.Idempotency.TTL.String(),
			MaxEntries: defaults.Idempotency.MaxEntries,
			EvictBatch: defaults.Idempotency.EvictBatch,
		},
		Log: starterLog{
			File:       defaults.Log.File,
			MaxSizeMB:  defaults.Log.MaxSizeMB,
			MaxBackups: defaults.Log.MaxBackups,
			MaxAgeDays: defaults.Log.MaxAgeDays,
		},
	}
}

// newInitCmd creates the init command for writing a starter config file.
func newInitCmd(flags *InitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter taskwire.yaml",
		Long: `Write a starter taskwire.yaml with the default configuration to the
current directory.

The generated file documents every setting with its default value. Taskwire
works without any config file; run init when you want to pin settings for a
project or enable the rotating log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), flags)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&flags.Force, "force", false, "overwrite an existing taskwire.yaml")

	return cmd
}

// AddInitCommand adds the init command to the root command.
func AddInitCommand(rootCmd *cobra.Command) {
	flags := &InitFlags{}
	rootCmd.AddCommand(newInitCmd(flags))
}

// runInit writes the starter config file to the current directory.
func runInit(w io.Writer, flags *InitFlags) error {
	path := config.ProjectConfigPath()

	if _, err := os.Stat(path); err == nil && !flags.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := yaml.Marshal(starterDefaults())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := fmt.Sprintf("# Taskwire configuration\n# Generated by taskwire init on %s\n# Every value below is the default; delete what you don't change.\n\n",
		time.Now().UTC().Format(time.RFC3339))

	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}
