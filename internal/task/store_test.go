package task

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// newTestTask creates a task with two subtasks, one completed.
func newTestTask(id string) *domain.Task {
	task := domain.NewTask(id, "Ship the widget")
	task.Subtasks = []domain.Subtask{
		{Title: "design schema", Completed: true, CriteriaConfirmed: true},
		{Title: "implement store"},
	}
	return task
}

// setupTestStore creates a store rooted in a temp directory.
func setupTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(t.TempDir(), time.Second)
	require.NoError(t, err)
	return store
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates the storage directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "tasks")
		store, err := NewFileStore(dir, 0)
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects empty dir", func(t *testing.T) {
		_, err := NewFileStore("", time.Second)
		require.ErrorIs(t, err, twerrors.ErrEmptyValue)
	})
}

func TestFileStore_CreateTask(t *testing.T) {
	t.Run("creates task at the root", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		require.NoError(t, store.CreateTask(context.Background(), task))

		data, err := os.ReadFile(filepath.Join(store.Dir(), "TASK-001.task")) //#nosec G304 -- test file path
		require.NoError(t, err)

		var loaded domain.Task
		require.NoError(t, json.Unmarshal(data, &loaded))
		assert.Equal(t, "TASK-001", loaded.ID)
		assert.Equal(t, "Ship the widget", loaded.Title)
		assert.Equal(t, domain.SchemaVersion, loaded.SchemaVersion)
	})

	t.Run("creates task under its domain", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		task.Domain = "backend/auth"
		require.NoError(t, store.CreateTask(context.Background(), task))

		_, err := os.Stat(filepath.Join(store.Dir(), "backend", "auth", "TASK-001.task"))
		require.NoError(t, err)
	})

	t.Run("assigns the next sequential ID when empty", func(t *testing.T) {
		store := setupTestStore(t)

		first := newTestTask("")
		require.NoError(t, store.CreateTask(context.Background(), first))
		assert.Equal(t, "TASK-001", first.ID)

		second := newTestTask("")
		require.NoError(t, store.CreateTask(context.Background(), second))
		assert.Equal(t, "TASK-002", second.ID)
	})

	t.Run("rejects duplicate IDs", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		err := store.CreateTask(context.Background(), newTestTask("TASK-001"))
		require.ErrorIs(t, err, twerrors.ErrTaskExists)
	})

	t.Run("rejects duplicates across domains", func(t *testing.T) {
		store := setupTestStore(t)

		domainTask := newTestTask("TASK-001")
		domainTask.Domain = "backend"
		require.NoError(t, store.CreateTask(context.Background(), domainTask))

		err := store.CreateTask(context.Background(), newTestTask("TASK-001"))
		require.ErrorIs(t, err, twerrors.ErrTaskExists)
	})

	t.Run("rejects nil task", func(t *testing.T) {
		store := setupTestStore(t)
		err := store.CreateTask(context.Background(), nil)
		require.ErrorIs(t, err, twerrors.ErrEmptyValue)
	})

	t.Run("rejects path traversal in ID", func(t *testing.T) {
		store := setupTestStore(t)
		err := store.CreateTask(context.Background(), newTestTask("../escape"))
		require.ErrorIs(t, err, twerrors.ErrPathTraversal)
	})

	t.Run("rejects path traversal in domain", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		task.Domain = "../outside"
		err := store.CreateTask(context.Background(), task)
		require.ErrorIs(t, err, twerrors.ErrPathTraversal)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		store := setupTestStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := store.CreateTask(ctx, newTestTask("TASK-001"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileStore_ConcurrentCreates(t *testing.T) {
	store := setupTestStore(t)

	const workers = 5
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			task := newTestTask("")
			errs[slot] = store.CreateTask(context.Background(), task)
			ids[slot] = task.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate ID %s", ids[i])
		seen[ids[i]] = true
	}
}

func TestFileStore_LoadTask(t *testing.T) {
	t.Run("round trips a task", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		require.NoError(t, store.CreateTask(context.Background(), task))

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		assert.Equal(t, task.Title, loaded.Title)
		require.Len(t, loaded.Subtasks, 2)
		assert.True(t, loaded.Subtasks[0].Completed)
	})

	t.Run("finds tasks inside domain directories", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		task.Domain = "backend/auth"
		require.NoError(t, store.CreateTask(context.Background(), task))

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		assert.Equal(t, "backend/auth", loaded.Domain)
	})

	t.Run("returns ErrTaskNotFound for missing task", func(t *testing.T) {
		store := setupTestStore(t)
		_, err := store.LoadTask(context.Background(), "TASK-404")
		require.ErrorIs(t, err, twerrors.ErrTaskNotFound)
	})

	t.Run("reports corrupt task files", func(t *testing.T) {
		store := setupTestStore(t)

		path := filepath.Join(store.Dir(), "TASK-001.task")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := store.LoadTask(context.Background(), "TASK-001")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})
}

func TestFileStore_SaveTask(t *testing.T) {
	t.Run("refreshes UpdatedAt", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		require.NoError(t, store.CreateTask(context.Background(), task))

		before := task.UpdatedAt
		time.Sleep(10 * time.Millisecond)

		task.Title = "Ship the widget, urgently"
		require.NoError(t, store.SaveTask(context.Background(), task))

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		assert.Equal(t, "Ship the widget, urgently", loaded.Title)
		assert.True(t, loaded.UpdatedAt.After(before))
	})

	t.Run("keeps the task at its existing location", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		task.Domain = "backend"
		require.NoError(t, store.CreateTask(context.Background(), task))

		// Changing the domain field must not relocate the file.
		task.Domain = "frontend"
		require.NoError(t, store.SaveTask(context.Background(), task))

		_, err := os.Stat(filepath.Join(store.Dir(), "backend", "TASK-001.task"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(store.Dir(), "frontend", "TASK-001.task"))
		require.True(t, os.IsNotExist(err))
	})

	t.Run("writes a new file when none exists", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-009")
		require.NoError(t, store.SaveTask(context.Background(), task))

		_, err := os.Stat(filepath.Join(store.Dir(), "TASK-009.task"))
		require.NoError(t, err)
	})
}

func TestFileStore_DeleteTask(t *testing.T) {
	t.Run("removes the task file", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		require.NoError(t, store.DeleteTask(context.Background(), "TASK-001"))

		_, err := store.LoadTask(context.Background(), "TASK-001")
		require.ErrorIs(t, err, twerrors.ErrTaskNotFound)
	})

	t.Run("prunes emptied domain directories", func(t *testing.T) {
		store := setupTestStore(t)

		task := newTestTask("TASK-001")
		task.Domain = "backend/auth"
		require.NoError(t, store.CreateTask(context.Background(), task))
		require.NoError(t, store.DeleteTask(context.Background(), "TASK-001"))

		_, err := os.Stat(filepath.Join(store.Dir(), "backend"))
		require.True(t, os.IsNotExist(err))
	})

	t.Run("returns ErrTaskNotFound for missing task", func(t *testing.T) {
		store := setupTestStore(t)
		err := store.DeleteTask(context.Background(), "TASK-404")
		require.ErrorIs(t, err, twerrors.ErrTaskNotFound)
	})
}

func TestFileStore_ListTasks(t *testing.T) {
	t.Run("returns tasks sorted by ID across domains", func(t *testing.T) {
		store := setupTestStore(t)

		third := newTestTask("TASK-003")
		third.Domain = "backend"
		require.NoError(t, store.CreateTask(context.Background(), third))
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		second := newTestTask("TASK-002")
		second.Domain = "frontend/ui"
		require.NoError(t, store.CreateTask(context.Background(), second))

		tasks, err := store.ListTasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "TASK-001", tasks[0].ID)
		assert.Equal(t, "TASK-002", tasks[1].ID)
		assert.Equal(t, "TASK-003", tasks[2].ID)
	})

	t.Run("skips undecodable files", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		corrupt := filepath.Join(store.Dir(), "TASK-002.task")
		require.NoError(t, os.WriteFile(corrupt, []byte("{broken"), 0o600))

		tasks, err := store.ListTasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "TASK-001", tasks[0].ID)
	})

	t.Run("empty store yields empty slice", func(t *testing.T) {
		store := setupTestStore(t)

		tasks, err := store.ListTasks(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestFileStore_NextID(t *testing.T) {
	t.Run("starts at TASK-001", func(t *testing.T) {
		store := setupTestStore(t)

		id, err := store.NextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TASK-001", id)
	})

	t.Run("continues past the highest sequence", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		gapped := newTestTask("TASK-041")
		gapped.Domain = "backend"
		require.NoError(t, store.CreateTask(context.Background(), gapped))

		id, err := store.NextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TASK-042", id)
	})

	t.Run("ignores non-sequential IDs", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("hotfix-login")))

		id, err := store.NextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TASK-001", id)
	})
}

func TestFileStore_AddSubtask(t *testing.T) {
	t.Run("appends at the top level", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))

		err := store.AddSubtask(context.Background(), "TASK-001", "", domain.Subtask{Title: "document API"})
		require.NoError(t, err)

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		require.Len(t, loaded.Subtasks, 3)
		assert.Equal(t, "document API", loaded.Subtasks[2].Title)
	})

	t.Run("nests under a parent path", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))

		err := store.AddSubtask(context.Background(), "TASK-001", "1", domain.Subtask{Title: "write fixtures"})
		require.NoError(t, err)

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		require.Len(t, loaded.Subtasks[1].Children, 1)
		assert.Equal(t, "write fixtures", loaded.Subtasks[1].Children[0].Title)
	})

	t.Run("fails on missing parent", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))

		err := store.AddSubtask(context.Background(), "TASK-001", "9", domain.Subtask{Title: "orphan"})
		require.ErrorIs(t, err, twerrors.ErrSubtaskNotFound)
	})
}

func TestFileStore_SetSubtask(t *testing.T) {
	t.Run("mutates and refreshes task status", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))

		err := store.SetSubtask(context.Background(), "TASK-001", "1", func(st *domain.Subtask) error {
			st.Completed = true
			return nil
		})
		require.NoError(t, err)

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		assert.True(t, loaded.Subtasks[1].Completed)
		assert.Equal(t, domain.StatusOK, loaded.Status)
	})

	t.Run("propagates mutate errors without saving", func(t *testing.T) {
		store := setupTestStore(t)
		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))

		err := store.SetSubtask(context.Background(), "TASK-001", "1", func(st *domain.Subtask) error {
			st.Completed = true
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		loaded, err := store.LoadTask(context.Background(), "TASK-001")
		require.NoError(t, err)
		assert.False(t, loaded.Subtasks[1].Completed)
	})

	t.Run("rejects nil mutate func", func(t *testing.T) {
		store := setupTestStore(t)
		err := store.SetSubtask(context.Background(), "TASK-001", "0", nil)
		require.ErrorIs(t, err, twerrors.ErrEmptyValue)
	})
}

func TestFileStore_FindTaskFile(t *testing.T) {
	t.Run("returns relative paths", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.CreateTask(context.Background(), newTestTask("TASK-001")))
		nested := newTestTask("TASK-002")
		nested.Domain = "backend/auth"
		require.NoError(t, store.CreateTask(context.Background(), nested))

		rel, err := store.FindTaskFile("TASK-001")
		require.NoError(t, err)
		assert.Equal(t, "TASK-001.task", rel)

		rel, err = store.FindTaskFile("TASK-002")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("backend", "auth", "TASK-002.task"), rel)
	})

	t.Run("ignores files inside dot-directories", func(t *testing.T) {
		store := setupTestStore(t)

		snapDir := filepath.Join(store.Dir(), ".snapshots")
		require.NoError(t, os.MkdirAll(snapDir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(snapDir, "TASK-001.task"), []byte("{}"), 0o600))

		_, err := store.FindTaskFile("TASK-001")
		require.ErrorIs(t, err, twerrors.ErrTaskNotFound)
	})
}

func TestFileStore_RawAccessors(t *testing.T) {
	t.Run("write and read round trip", func(t *testing.T) {
		store := setupTestStore(t)

		rel := filepath.Join("backend", "TASK-001.task")
		require.NoError(t, store.WriteRaw(context.Background(), rel, []byte(`{"id":"TASK-001"}`)))

		data, err := store.ReadRaw(context.Background(), rel)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"TASK-001"}`, string(data))
	})

	t.Run("read of missing file returns ErrTaskNotFound", func(t *testing.T) {
		store := setupTestStore(t)
		_, err := store.ReadRaw(context.Background(), "TASK-404.task")
		require.ErrorIs(t, err, twerrors.ErrTaskNotFound)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		store := setupTestStore(t)

		rel := "TASK-001.task"
		require.NoError(t, store.WriteRaw(context.Background(), rel, []byte("{}")))
		require.NoError(t, store.RemoveRaw(context.Background(), rel))
		require.NoError(t, store.RemoveRaw(context.Background(), rel))
	})

	t.Run("rejects traversal and absolute paths", func(t *testing.T) {
		store := setupTestStore(t)

		_, err := store.ReadRaw(context.Background(), "../outside.task")
		require.ErrorIs(t, err, twerrors.ErrPathTraversal)

		err = store.WriteRaw(context.Background(), "/etc/passwd", []byte("x"))
		require.ErrorIs(t, err, twerrors.ErrPathTraversal)
	})
}

func TestFileStore_LastTask(t *testing.T) {
	t.Run("empty store has no last task", func(t *testing.T) {
		store := setupTestStore(t)

		id, dom := store.LastTask()
		assert.Empty(t, id)
		assert.Empty(t, dom)
	})

	t.Run("round trips with domain", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.SaveLastTask("TASK-001", "backend/auth"))
		id, dom := store.LastTask()
		assert.Equal(t, "TASK-001", id)
		assert.Equal(t, "backend/auth", dom)
	})

	t.Run("round trips without domain", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.SaveLastTask("TASK-001", ""))
		id, dom := store.LastTask()
		assert.Equal(t, "TASK-001", id)
		assert.Empty(t, dom)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		store := setupTestStore(t)

		require.NoError(t, store.SaveLastTask("TASK-001", ""))
		require.NoError(t, store.ClearLastTask())
		require.NoError(t, store.ClearLastTask())

		id, _ := store.LastTask()
		assert.Empty(t, id)
	})
}

func TestNormalizeTaskID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare digits", raw: "7", want: "TASK-007"},
		{name: "padded digits", raw: "042", want: "TASK-042"},
		{name: "lowercase prefix", raw: "task-7", want: "TASK-007"},
		{name: "canonical form", raw: "TASK-007", want: "TASK-007"},
		{name: "wide sequence kept", raw: "TASK-1234", want: "TASK-1234"},
		{name: "whitespace trimmed", raw: "  TASK-3 ", want: "TASK-003"},
		{name: "custom ID untouched", raw: "hotfix-login", want: "hotfix-login"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTaskID(tt.raw))
		})
	}
}
