package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/clock"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/history"
	"github.com/taskwire/taskwire/internal/intent"
	"github.com/taskwire/taskwire/internal/task"
)

// loadConfig resolves configuration honoring the --config and --storage-root
// flags. An explicit config file replaces discovery entirely.
func loadConfig(ctx context.Context, flags *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigFile != "" {
		cfg, err = config.LoadFromPaths(ctx, flags.ConfigFile, "")
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, err
	}

	if flags.StorageRoot != "" {
		cfg.Storage.Root = flags.StorageRoot
	}
	return cfg, nil
}

// newEngine assembles the intent engine for the given working directory:
// storage resolution (local tasks directory first, then the project's
// namespace under the global root), the file store, the operation history
// with its snapshot store, and the idempotency cache.
func newEngine(ctx context.Context, cfg *config.Config, workDir string) (*intent.Engine, error) {
	root, err := cfg.Storage.StorageRoot()
	if err != nil {
		return nil, err
	}

	dir, local := task.ResolveDir(root, cfg.Storage.LocalDir, workDir)
	store, err := task.NewFileStore(dir, cfg.Storage.LockTimeout)
	if err != nil {
		return nil, err
	}

	snapshots, err := history.NewFileContentStore(filepath.Join(dir, history.SnapshotDirName))
	if err != nil {
		return nil, err
	}
	hist := history.NewLog(dir, store, snapshots, cfg.History.MaxOperations, cfg.Storage.LockTimeout)

	clk := clock.RealClock{}
	cache := intent.NewCache(cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries, cfg.Idempotency.EvictBatch, clk)

	zerolog.Ctx(ctx).Debug().
		Str("dir", dir).
		Bool("local", local).
		Bool("history", cfg.History.Enabled).
		Msg("storage resolved")

	return intent.NewEngine(intent.Config{
		Store:          store,
		History:        hist,
		Cache:          cache,
		Clock:          clk,
		HistoryEnabled: cfg.History.Enabled,
		GlobalRoot:     root,
		LocalDir:       cfg.Storage.LocalDir,
		WorkDir:        workDir,
	})
}

// setupEngine is the shared preamble for commands that execute intents:
// load configuration, attach the rotating file sink when configured, and
// build the engine. The returned context carries the logger so engine
// internals log through it.
func setupEngine(ctx context.Context, flags *GlobalFlags) (context.Context, *intent.Engine, error) {
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return ctx, nil, err
	}

	logger := GetLogger()
	if cfg.Log.File != "" {
		logger = InitLoggerWithFile(flags.Verbose, flags.Quiet, cfg.Log)
		storeGlobalLogger(logger)
	}
	ctx = logger.WithContext(ctx)

	workDir, err := os.Getwd()
	if err != nil {
		return ctx, nil, errors.Wrap(err, "failed to resolve working directory")
	}

	eng, err := newEngine(ctx, cfg, workDir)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, eng, nil
}
