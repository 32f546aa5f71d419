package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GlobalConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, GlobalDirName), dir)
}

func TestGlobalConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, GlobalDirName, "config.yaml"), path)
}

func TestProjectConfigPath(t *testing.T) {
	assert.Equal(t, "taskwire.yaml", ProjectConfigPath())
}

func TestStorageRoot(t *testing.T) {
	t.Run("explicit root wins", func(t *testing.T) {
		cfg := StorageConfig{Root: "/srv/taskwire"}
		root, err := cfg.StorageRoot()
		require.NoError(t, err)
		assert.Equal(t, "/srv/taskwire", root)
	})

	t.Run("empty root falls back to global dir", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		cfg := StorageConfig{}
		root, err := cfg.StorageRoot()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, GlobalDirName), root)
	})
}
