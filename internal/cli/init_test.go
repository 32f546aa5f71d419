package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/config"
)

func TestInitCmd_WritesStarterConfig(t *testing.T) {
	work := isolate(t)

	stdout, _, err := runCLI(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote taskwire.yaml")

	path := filepath.Join(work, config.ProjectConfigFile)
	data, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Taskwire configuration")
	assert.Contains(t, string(data), "local_dir: .tasks")
	assert.Contains(t, string(data), "lock_timeout: 5s")

	// The generated file must load back with the built-in defaults intact.
	cfg, err := config.LoadFromPaths(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultLocalDir, cfg.Storage.LocalDir)
	assert.Equal(t, config.DefaultLockTimeout, cfg.Storage.LockTimeout)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, config.DefaultHistoryMaxOperations, cfg.History.MaxOperations)
	assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	work := isolate(t)

	_, _, err := runCLI(t, "", "init")
	require.NoError(t, err)

	path := filepath.Join(work, config.ProjectConfigFile)
	before, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
	require.NoError(t, err)

	_, _, err = runCLI(t, "", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, ExitError, ExitCodeForError(err))

	after, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	work := isolate(t)

	_, _, err := runCLI(t, "", "init")
	require.NoError(t, err)

	path := filepath.Join(work, config.ProjectConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("mangled: true\n"), 0o600))

	_, _, err = runCLI(t, "", "init", "--force")
	require.NoError(t, err)

	data, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Taskwire configuration")
	assert.NotContains(t, string(data), "mangled")
}
