package intent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	twerrors "github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/task"
)

// handleMigrate moves a project-local task tree into the global store under
// the project's derived namespace. With dry_run it only reports what would
// move; the engine keeps serving its original directory either way, so a
// fresh process is needed to pick up the new location.
func (e *Engine) handleMigrate(ctx context.Context, req Request) *Response {
	localDir := e.localDir
	if !filepath.IsAbs(localDir) {
		localDir = filepath.Join(e.workDir, localDir)
	}
	namespace := task.DeriveNamespace(e.workDir)
	globalDir := filepath.Join(e.globalRoot, namespace)

	if !dirExists(localDir) {
		return e.failSimple(IntentMigrate, CodeNoLocalTasks,
			fmt.Sprintf("no local task directory at %s", localDir), false)
	}

	if req.BoolOr("dry_run", false) {
		return e.ok(IntentMigrate, map[string]any{
			"dry_run": true,
			"would_migrate": map[string]any{
				"from":       localDir,
				"to":         globalDir,
				"namespace":  namespace,
				"task_count": task.CountTaskFiles(localDir),
			},
		})
	}

	moved, err := task.MigrateToGlobal(ctx, localDir, globalDir)
	if err != nil {
		if errors.Is(err, twerrors.ErrNoLocalTasks) {
			return e.failSimple(IntentMigrate, CodeNoLocalTasks,
				fmt.Sprintf("no local task directory at %s", localDir), false)
		}
		return e.failSimple(IntentMigrate, CodeMigrationFailed, "migration failed: "+err.Error(), false)
	}

	return e.ok(IntentMigrate, map[string]any{
		"migrated":  moved,
		"message":   fmt.Sprintf("Moved %d tasks to the global store. Restart to use %s.", moved, globalDir),
		"from":      localDir,
		"to":        globalDir,
		"namespace": namespace,
	})
}
