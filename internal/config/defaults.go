package config

import "time"

// Default values for the duplicate-request cache. The TTL window is long
// enough to cover agent retry loops; the cap bounds memory for long-lived
// MCP server processes.
const (
	// DefaultIdempotencyTTL is how long cached responses stay replayable.
	DefaultIdempotencyTTL = time.Hour

	// DefaultIdempotencyMaxEntries caps the cache size.
	DefaultIdempotencyMaxEntries = 1000

	// DefaultIdempotencyEvictBatch is the number of oldest entries dropped
	// when the cache exceeds the cap.
	DefaultIdempotencyEvictBatch = 100
)

// DefaultHistoryMaxOperations is the operation history depth. Snapshots for
// discarded operations are garbage-collected.
const DefaultHistoryMaxOperations = 100

// DefaultLockTimeout is how long a store waits for a contended file lock.
const DefaultLockTimeout = 5 * time.Second

// DefaultLocalDir is the project-local task directory name.
const DefaultLocalDir = ".tasks"

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			// Root: empty means ~/.taskwire, resolved at store construction
			// so config files stay portable across machines.
			Root: "",

			// LocalDir: ".tasks" matches the directory the migrate intent
			// moves into global storage.
			LocalDir: DefaultLocalDir,

			// LockTimeout: 5 seconds tolerates a slow concurrent writer
			// without hanging interactive callers.
			LockTimeout: DefaultLockTimeout,
		},
		History: HistoryConfig{
			// Enabled: true so undo/redo works out of the box.
			Enabled: true,

			// MaxOperations: 100 bounds the log and its snapshot storage.
			MaxOperations: DefaultHistoryMaxOperations,
		},
		Idempotency: IdempotencyConfig{
			TTL:        DefaultIdempotencyTTL,
			MaxEntries: DefaultIdempotencyMaxEntries,
			EvictBatch: DefaultIdempotencyEvictBatch,
		},
		Log: LogConfig{
			// File: empty disables the rotating sink; stderr logging is
			// always on.
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}
