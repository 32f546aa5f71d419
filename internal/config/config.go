// Package config provides configuration management for taskwire with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (TASKWIRE_* prefix)
//  3. Project config (taskwire.yaml)
//  4. Global config (~/.taskwire/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/errors, but MUST NOT import
// internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for taskwire.
// It contains all configuration sections for the application.
type Config struct {
	// Storage contains settings for where and how task files are persisted.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// History contains settings for the operation history (undo/redo log).
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Idempotency contains settings for the duplicate-request cache.
	Idempotency IdempotencyConfig `yaml:"idempotency" mapstructure:"idempotency"`

	// Log contains settings for the optional rotating log file sink.
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// StorageConfig contains settings for task persistence.
//
// Storage resolution is local-first: if the project-local directory exists it
// is used, otherwise tasks live under the global root in a per-repository
// namespace derived from the git remote.
type StorageConfig struct {
	// Root is the global storage root. Empty means ~/.taskwire.
	Root string `yaml:"root" mapstructure:"root"`

	// LocalDir is the project-local task directory name.
	// Default: ".tasks"
	LocalDir string `yaml:"local_dir" mapstructure:"local_dir"`

	// LockTimeout is the maximum time to wait for a task file lock before
	// giving up. Concurrent CLI invocations and the MCP server contend on
	// these locks.
	// Default: 5s
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
}

// HistoryConfig contains settings for the operation history.
type HistoryConfig struct {
	// Enabled controls whether modifying intents are recorded for undo/redo.
	// Default: true
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// MaxOperations is the maximum number of operations kept in the log.
	// Older entries and their snapshots are discarded past this limit.
	// Default: 100
	MaxOperations int `yaml:"max_operations" mapstructure:"max_operations"`
}

// IdempotencyConfig contains settings for the duplicate-request cache.
// Successful modifying intents that carry an idempotency_key have their
// envelope cached so retried requests replay the original response instead
// of re-executing.
type IdempotencyConfig struct {
	// TTL is how long a cached response stays valid.
	// Default: 1h
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`

	// MaxEntries caps the cache size.
	// Default: 1000
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`

	// EvictBatch is how many of the oldest entries are dropped in one go
	// when the cache exceeds MaxEntries.
	// Default: 100
	EvictBatch int `yaml:"evict_batch" mapstructure:"evict_batch"`
}

// LogConfig contains settings for the rotating log file sink.
// When File is empty, logs go to stderr only.
type LogConfig struct {
	// File is the path of the log file. Empty disables the file sink.
	File string `yaml:"file" mapstructure:"file"`

	// MaxSizeMB is the maximum size of the log file before rotation.
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	// Default: 3
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files in days.
	// Default: 30
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days"`
}
