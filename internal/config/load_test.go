package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	// Change to a temp directory with no config files
	tempDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	// Point HOME somewhere empty so a developer's real global config
	// cannot leak into the test.
	t.Setenv("HOME", tempDir)

	cfg, err := Load(context.Background())
	require.NoError(t, err, "Load should not fail when no config file exists")
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultLocalDir, cfg.Storage.LocalDir)
	assert.Equal(t, DefaultLockTimeout, cfg.Storage.LockTimeout)
	assert.Equal(t, DefaultIdempotencyTTL, cfg.Idempotency.TTL)
}

func TestLoadFromPaths_ProjectConfigOverridesGlobal(t *testing.T) {
	ctx := context.Background()

	globalDir := t.TempDir()
	projectDir := t.TempDir()

	globalConfig := filepath.Join(globalDir, "config.yaml")
	err := os.WriteFile(globalConfig, []byte(`
storage:
  local_dir: .work
  lock_timeout: 10s
history:
  max_operations: 50
`), 0o600)
	require.NoError(t, err)

	projectConfig := filepath.Join(projectDir, "taskwire.yaml")
	err = os.WriteFile(projectConfig, []byte(`
storage:
  local_dir: .tasks
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFromPaths(ctx, projectConfig, globalConfig)
	require.NoError(t, err)

	// Project config overrides global for storage.local_dir
	assert.Equal(t, ".tasks", cfg.Storage.LocalDir)

	// Global config values that aren't overridden should persist
	assert.Equal(t, 10*time.Second, cfg.Storage.LockTimeout)
	assert.Equal(t, 50, cfg.History.MaxOperations)
}

func TestLoadFromPaths_GlobalConfigOnly(t *testing.T) {
	ctx := context.Background()

	globalDir := t.TempDir()
	globalConfig := filepath.Join(globalDir, "config.yaml")
	err := os.WriteFile(globalConfig, []byte(`
idempotency:
  ttl: 15m
  max_entries: 200
  evict_batch: 20
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFromPaths(ctx, "", globalConfig)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, 200, cfg.Idempotency.MaxEntries)
	assert.Equal(t, 20, cfg.Idempotency.EvictBatch)

	// Untouched sections keep defaults
	assert.Equal(t, DefaultLocalDir, cfg.Storage.LocalDir)
}

func TestLoadFromPaths_MissingFilesFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg, err := LoadFromPaths(ctx,
		filepath.Join(dir, "does-not-exist.yaml"),
		filepath.Join(dir, "also-missing.yaml"))
	require.NoError(t, err, "missing config files are not an error")

	assert.Equal(t, DefaultHistoryMaxOperations, cfg.History.MaxOperations)
}

func TestLoadFromPaths_DurationStringsAreParsed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	projectConfig := filepath.Join(dir, "taskwire.yaml")
	err := os.WriteFile(projectConfig, []byte(`
storage:
  lock_timeout: 250ms
idempotency:
  ttl: 90s
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFromPaths(ctx, projectConfig, "")
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Storage.LockTimeout)
	assert.Equal(t, 90*time.Second, cfg.Idempotency.TTL)
}

func TestLoadFromPaths_InvalidValuesAreRejected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	projectConfig := filepath.Join(dir, "taskwire.yaml")
	err := os.WriteFile(projectConfig, []byte(`
history:
  max_operations: 0
`), 0o600)
	require.NoError(t, err)

	_, err = LoadFromPaths(ctx, projectConfig, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_operations")
}

func TestLoadFromPaths_MalformedYAMLFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	projectConfig := filepath.Join(dir, "taskwire.yaml")
	err := os.WriteFile(projectConfig, []byte("storage: [not: valid"), 0o600)
	require.NoError(t, err)

	_, err = LoadFromPaths(ctx, projectConfig, "")
	require.Error(t, err)
}

func TestLoad_EnvironmentVariableOverride(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	t.Setenv("HOME", tempDir)
	t.Setenv("TASKWIRE_HISTORY_MAX_OPERATIONS", "25")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.History.MaxOperations,
		"TASKWIRE_* environment variables should override defaults")
}

func TestApplyOverrides(t *testing.T) {
	t.Run("non-zero values override", func(t *testing.T) {
		cfg := DefaultConfig()
		overrides := &Config{
			Storage: StorageConfig{
				Root:     "/srv/taskwire",
				LocalDir: ".work",
			},
			Idempotency: IdempotencyConfig{TTL: 5 * time.Minute},
		}

		applyOverrides(cfg, overrides)

		assert.Equal(t, "/srv/taskwire", cfg.Storage.Root)
		assert.Equal(t, ".work", cfg.Storage.LocalDir)
		assert.Equal(t, 5*time.Minute, cfg.Idempotency.TTL)
	})

	t.Run("zero values leave config untouched", func(t *testing.T) {
		cfg := DefaultConfig()
		applyOverrides(cfg, &Config{})

		assert.Equal(t, DefaultLocalDir, cfg.Storage.LocalDir)
		assert.Equal(t, DefaultLockTimeout, cfg.Storage.LockTimeout)
		assert.Equal(t, DefaultIdempotencyTTL, cfg.Idempotency.TTL)
	})
}

func TestLoadWithOverrides(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer func() {
		_ = os.Chdir(oldWd)
	}()
	t.Setenv("HOME", tempDir)

	t.Run("applies overrides over defaults", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), &Config{
			Storage: StorageConfig{Root: "/srv/taskwire"},
		})
		require.NoError(t, err)
		assert.Equal(t, "/srv/taskwire", cfg.Storage.Root)
	})

	t.Run("invalid override is rejected", func(t *testing.T) {
		_, err := LoadWithOverrides(context.Background(), &Config{
			Idempotency: IdempotencyConfig{TTL: -time.Second},
		})
		require.Error(t, err)
	})

	t.Run("nil overrides load plain config", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultLocalDir, cfg.Storage.LocalDir)
	})
}
