package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskwire/taskwire/internal/errors"
)

// GlobalDirName is the per-user taskwire home directory under $HOME.
// It holds the global config file and the global task storage namespaces.
const GlobalDirName = ".taskwire"

// ProjectConfigFile is the per-project config filename, looked up in the
// current working directory.
const ProjectConfigFile = "taskwire.yaml"

// GlobalConfigDir returns the path to the global taskwire directory.
// This is typically ~/.taskwire on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, GlobalDirName), nil
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.taskwire/config.yaml on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ProjectConfigPath returns the relative path to the project configuration
// file. This is always taskwire.yaml relative to the working directory.
func ProjectConfigPath() string {
	return ProjectConfigFile
}

// StorageRoot resolves the global storage root: the configured value when
// set, otherwise ~/.taskwire. Namespaced task directories live beneath it.
func (c *StorageConfig) StorageRoot() (string, error) {
	if c.Root != "" {
		return c.Root, nil
	}
	return GlobalConfigDir()
}
