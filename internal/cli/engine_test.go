package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/intent"
	"github.com/taskwire/taskwire/internal/task"
)

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	content := "storage:\n  lock_timeout: 2s\nhistory:\n  max_operations: 7\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	flags := &GlobalFlags{ConfigFile: cfgPath}
	cfg, err := loadConfig(context.Background(), flags)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Storage.LockTimeout)
	assert.Equal(t, 7, cfg.History.MaxOperations)
	// Unset values keep defaults.
	assert.Equal(t, config.DefaultLocalDir, cfg.Storage.LocalDir)
}

func TestLoadConfig_StorageRootFlagOverride(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  root: /from/file\n"), 0o600))

	flags := &GlobalFlags{ConfigFile: cfgPath, StorageRoot: "/from/flag"}
	cfg, err := loadConfig(context.Background(), flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.Storage.Root)
}

func TestLoadConfig_Discovery(t *testing.T) {
	work := isolate(t)

	content := "storage:\n  local_dir: custom-tasks\n"
	require.NoError(t, os.WriteFile(filepath.Join(work, config.ProjectConfigFile), []byte(content), 0o600))

	cfg, err := loadConfig(context.Background(), &GlobalFlags{})
	require.NoError(t, err)
	assert.Equal(t, "custom-tasks", cfg.Storage.LocalDir)
}

func TestNewEngine_GlobalNamespace(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	workDir := filepath.Join(tmp, "proj")
	require.NoError(t, os.MkdirAll(workDir, 0o750))

	cfg := config.DefaultConfig()
	cfg.Storage.Root = filepath.Join(tmp, "root")

	eng, err := newEngine(context.Background(), cfg, workDir)
	require.NoError(t, err)

	resp := eng.Process(context.Background(), intent.Request{"intent": "create", "title": "Wire the exporter"})
	require.True(t, resp.Success, "create failed: %+v", resp.Error)

	nsDir := filepath.Join(cfg.Storage.Root, task.DeriveNamespace(workDir))
	assert.Equal(t, 1, task.CountTaskFiles(nsDir))
}

func TestNewEngine_PrefersLocalDir(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	workDir := filepath.Join(tmp, "proj")
	localDir := filepath.Join(workDir, config.DefaultLocalDir)
	require.NoError(t, os.MkdirAll(localDir, 0o750))

	cfg := config.DefaultConfig()
	cfg.Storage.Root = filepath.Join(tmp, "root")

	eng, err := newEngine(context.Background(), cfg, workDir)
	require.NoError(t, err)

	resp := eng.Process(context.Background(), intent.Request{"intent": "create", "title": "Local task"})
	require.True(t, resp.Success, "create failed: %+v", resp.Error)

	assert.Equal(t, 1, task.CountTaskFiles(localDir))
	assert.Equal(t, 0, task.CountTaskFiles(filepath.Join(tmp, "root")))
}

func TestSetupEngine(t *testing.T) {
	work := isolate(t)

	flags := &GlobalFlags{StorageRoot: filepath.Join(work, "root")}
	ctx, eng, err := setupEngine(context.Background(), flags)
	require.NoError(t, err)
	require.NotNil(t, eng)

	resp := eng.Process(ctx, intent.Request{"intent": "context"})
	assert.True(t, resp.Success)
}

func TestSetupEngine_AttachesFileSink(t *testing.T) {
	work := isolate(t)
	logPath := filepath.Join(work, "taskwire.log")

	content := "log:\n  file: " + logPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(work, config.ProjectConfigFile), []byte(content), 0o600))

	ctx, eng, err := setupEngine(context.Background(), &GlobalFlags{})
	require.NoError(t, err)
	require.NotNil(t, eng)

	zerolog.Ctx(ctx).Info().Msg("file sink attached")
	CloseLogFile()

	data, err := os.ReadFile(logPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink attached")
}
