package config

import (
	"strings"

	"github.com/taskwire/taskwire/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - Storage local dir must be a bare directory name (no separators)
//   - Storage lock timeout must be positive
//   - History max operations must be at least 1
//   - Idempotency TTL must be positive
//   - Idempotency max entries must be at least 1
//   - Idempotency evict batch must be between 1 and max entries
//   - Log max size must be positive when a log file is configured
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return err
	}

	if err := validateHistoryConfig(&cfg.History); err != nil {
		return err
	}

	if err := validateIdempotencyConfig(&cfg.Idempotency); err != nil {
		return err
	}

	return validateLogConfig(&cfg.Log)
}

// validateStorageConfig checks storage-specific configuration values.
func validateStorageConfig(cfg *StorageConfig) error {
	if cfg.LocalDir == "" {
		return errors.Wrap(errors.ErrConfigInvalidStorage,
			"storage.local_dir must not be empty")
	}

	if strings.ContainsAny(cfg.LocalDir, `/\`) {
		return errors.Wrapf(errors.ErrConfigInvalidStorage,
			"storage.local_dir must be a bare directory name, got %q", cfg.LocalDir)
	}

	if cfg.LockTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidStorage,
			"storage.lock_timeout must be positive, got %s", cfg.LockTimeout)
	}

	return nil
}

// validateHistoryConfig checks history-specific configuration values.
func validateHistoryConfig(cfg *HistoryConfig) error {
	if cfg.MaxOperations < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidHistory,
			"history.max_operations must be at least 1, got %d", cfg.MaxOperations)
	}

	return nil
}

// validateIdempotencyConfig checks idempotency cache configuration values.
func validateIdempotencyConfig(cfg *IdempotencyConfig) error {
	if cfg.TTL <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidIdempotency,
			"idempotency.ttl must be positive, got %s", cfg.TTL)
	}

	if cfg.MaxEntries < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidIdempotency,
			"idempotency.max_entries must be at least 1, got %d", cfg.MaxEntries)
	}

	if cfg.EvictBatch < 1 || cfg.EvictBatch > cfg.MaxEntries {
		return errors.Wrapf(errors.ErrConfigInvalidIdempotency,
			"idempotency.evict_batch must be between 1 and max_entries (%d), got %d",
			cfg.MaxEntries, cfg.EvictBatch)
	}

	return nil
}

// validateLogConfig checks log sink configuration values.
func validateLogConfig(cfg *LogConfig) error {
	if cfg.File == "" {
		// No file sink configured, rotation settings are irrelevant.
		return nil
	}

	if cfg.MaxSizeMB < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidLog,
			"log.max_size_mb must be at least 1, got %d", cfg.MaxSizeMB)
	}

	if cfg.MaxBackups < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidLog,
			"log.max_backups cannot be negative, got %d", cfg.MaxBackups)
	}

	return nil
}
