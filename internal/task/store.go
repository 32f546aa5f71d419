// Package task provides task persistence for taskwire.
// This package implements the storage layer for task files,
// with atomic writes and file locking for data integrity.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskwire/taskwire/internal/domain"
	twerrors "github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/flock"
)

// TaskFileExt is the file extension for persisted tasks.
const TaskFileExt = ".task"

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

const (
	// lockFileName is the store-wide lock file serializing writes across processes.
	lockFileName = ".lock"

	// lastFileName records the most recently touched task as "id@domain".
	lastFileName = ".last"

	// listConcurrency bounds parallel task file reads in ListTasks.
	listConcurrency = 8
)

// taskIDSeqRegex extracts the numeric sequence from canonical task IDs.
var taskIDSeqRegex = regexp.MustCompile(`^TASK-(\d+)$`)

// Store defines the interface for task persistence operations.
type Store interface {
	// Dir returns the storage root directory.
	Dir() string

	// CreateTask persists a new task. An empty task ID is assigned the next
	// sequential ID. Returns ErrTaskExists if the ID is already taken.
	CreateTask(ctx context.Context, task *domain.Task) error

	// LoadTask retrieves a task by ID, searching the root and domain
	// subdirectories. Returns ErrTaskNotFound if no file exists.
	LoadTask(ctx context.Context, taskID string) (*domain.Task, error)

	// SaveTask writes the task back to its current location (atomic write),
	// refreshing UpdatedAt.
	SaveTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task file. Returns ErrTaskNotFound if absent.
	DeleteTask(ctx context.Context, taskID string) error

	// ListTasks returns all tasks in the store sorted by ID. Files that fail
	// to decode are skipped.
	ListTasks(ctx context.Context) ([]*domain.Task, error)

	// NextID returns the next unused sequential task ID (TASK-001, ...).
	NextID(ctx context.Context) (string, error)

	// AddSubtask appends a subtask under parentPath ("" for top level) and
	// saves the task.
	AddSubtask(ctx context.Context, taskID, parentPath string, st domain.Subtask) error

	// SetSubtask applies mutate to the subtask at path and saves the task.
	SetSubtask(ctx context.Context, taskID, path string, mutate func(*domain.Subtask) error) error

	// FindTaskFile returns the path of the task's file relative to Dir().
	FindTaskFile(taskID string) (string, error)

	// ReadRaw reads a file by path relative to Dir().
	ReadRaw(ctx context.Context, relPath string) ([]byte, error)

	// WriteRaw writes a file by path relative to Dir() (atomic write).
	WriteRaw(ctx context.Context, relPath string, data []byte) error

	// RemoveRaw deletes a file by path relative to Dir(). Missing files are
	// not an error.
	RemoveRaw(ctx context.Context, relPath string) error

	// LastTask returns the most recently touched task ID and its domain, or
	// empty strings when none is recorded.
	LastTask() (taskID, taskDomain string)

	// SaveLastTask records the most recently touched task.
	SaveLastTask(taskID, taskDomain string) error

	// ClearLastTask forgets the recorded task.
	ClearLastTask() error
}

// FileStore implements Store on the local filesystem. Task files live
// directly under the root, or under domain subdirectories
// (e.g. backend/auth/TASK-001.task).
//
// Writers serialize on a store-wide lock file; readers go lock-free because
// every write lands via atomic rename.
type FileStore struct {
	dir         string
	lockTimeout time.Duration
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed. A lockTimeout <= 0 uses flock.DefaultTimeout.
func NewFileStore(dir string, lockTimeout time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("failed to create store: dir %w", twerrors.ErrEmptyValue)
	}
	if lockTimeout <= 0 {
		lockTimeout = flock.DefaultTimeout
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{dir: dir, lockTimeout: lockTimeout}, nil
}

// Dir returns the storage root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// CreateTask persists a new task. An empty ID is assigned under the write
// lock, so concurrent creates cannot collide.
func (s *FileStore) CreateTask(ctx context.Context, task *domain.Task) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Validate inputs
	if task == nil {
		return fmt.Errorf("failed to create task: task %w", twerrors.ErrEmptyValue)
	}
	if err := validateDomain(task.Domain); err != nil {
		return err
	}
	if task.ID != "" {
		if err := validateTaskID(task.ID); err != nil {
			return err
		}
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	if task.ID == "" {
		id, idErr := s.nextIDLocked()
		if idErr != nil {
			return idErr
		}
		task.ID = id
	} else if _, findErr := s.FindTaskFile(task.ID); findErr == nil {
		return fmt.Errorf("failed to create task '%s': %w", task.ID, twerrors.ErrTaskExists)
	}

	task.SchemaVersion = domain.SchemaVersion
	return s.writeTaskLocked(task, s.taskPath(task.ID, task.Domain))
}

// LoadTask retrieves a task by ID. Reads take no lock; atomic renames keep
// task files internally consistent for readers.
func (s *FileStore) LoadTask(ctx context.Context, taskID string) (*domain.Task, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rel, err := s.FindTaskFile(taskID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, rel)) // #nosec G304 -- rel is validated against the store root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load task '%s': %w", taskID, twerrors.ErrTaskNotFound)
		}
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var t domain.Task
	if err = json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task file '%s': %w", rel, err)
	}
	return &t, nil
}

// SaveTask writes the task back, keeping its current file location when one
// exists and deriving a location from the domain otherwise.
func (s *FileStore) SaveTask(ctx context.Context, task *domain.Task) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Validate inputs
	if task == nil {
		return fmt.Errorf("failed to save task: task %w", twerrors.ErrEmptyValue)
	}
	if err := validateTaskID(task.ID); err != nil {
		return err
	}
	if err := validateDomain(task.Domain); err != nil {
		return err
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	path := s.taskPath(task.ID, task.Domain)
	if rel, findErr := s.FindTaskFile(task.ID); findErr == nil {
		path = filepath.Join(s.dir, rel)
	}
	return s.writeTaskLocked(task, path)
}

// DeleteTask removes the task's file and prunes its domain directory when
// that leaves it empty.
func (s *FileStore) DeleteTask(ctx context.Context, taskID string) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	rel, err := s.FindTaskFile(taskID)
	if err != nil {
		return err
	}
	if err = os.Remove(filepath.Join(s.dir, rel)); err != nil {
		return fmt.Errorf("failed to delete task '%s': %w", taskID, err)
	}
	s.pruneEmptyDirs(filepath.Dir(rel))
	return nil
}

// ListTasks returns every task in the store sorted by ID. Files that fail to
// decode are skipped so one corrupt file cannot hide the rest.
func (s *FileStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	paths, err := s.taskFilePaths()
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		tasks = make([]*domain.Task, 0, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			data, readErr := os.ReadFile(path) // #nosec G304 -- path comes from walking the store root
			if readErr != nil {
				return nil // Deleted since the walk; skip.
			}
			var t domain.Task
			if unmarshalErr := json.Unmarshal(data, &t); unmarshalErr != nil {
				return nil // Skip undecodable files.
			}
			mu.Lock()
			tasks = append(tasks, &t)
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// NextID returns the next unused sequential task ID.
func (s *FileStore) NextID(ctx context.Context) (string, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return "", err
	}
	defer s.releaseLock(lock)

	return s.nextIDLocked()
}

// AddSubtask appends a subtask under parentPath ("" for top level) and saves
// the task.
func (s *FileStore) AddSubtask(ctx context.Context, taskID, parentPath string, st domain.Subtask) error {
	t, err := s.LoadTask(ctx, taskID)
	if err != nil {
		return err
	}

	if parentPath == "" {
		t.Subtasks = append(t.Subtasks, st)
	} else {
		parent, findErr := t.FindSubtask(parentPath)
		if findErr != nil {
			return findErr
		}
		parent.Children = append(parent.Children, st)
	}

	t.UpdateStatusFromProgress()
	return s.SaveTask(ctx, t)
}

// SetSubtask applies mutate to the subtask at path, refreshes the derived
// task status, and saves.
func (s *FileStore) SetSubtask(ctx context.Context, taskID, path string, mutate func(*domain.Subtask) error) error {
	if mutate == nil {
		return fmt.Errorf("failed to update subtask: mutate func %w", twerrors.ErrEmptyValue)
	}

	t, err := s.LoadTask(ctx, taskID)
	if err != nil {
		return err
	}

	st, err := t.FindSubtask(path)
	if err != nil {
		return err
	}
	if err = mutate(st); err != nil {
		return err
	}

	t.UpdateStatusFromProgress()
	return s.SaveTask(ctx, t)
}

// FindTaskFile returns the path of the task's file relative to the store
// root, checking the root before walking domain subdirectories.
func (s *FileStore) FindTaskFile(taskID string) (string, error) {
	if err := validateTaskID(taskID); err != nil {
		return "", err
	}

	name := taskFileName(taskID)
	if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
		return name, nil
	}

	var found string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil // Vanished mid-walk; skip.
			}
			return walkErr
		}
		if d.IsDir() {
			// Skip internal directories such as .snapshots.
			if path != s.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			rel, relErr := filepath.Rel(s.dir, path)
			if relErr != nil {
				return relErr
			}
			found = rel
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to locate task '%s': %w", taskID, err)
	}
	if found == "" {
		return "", fmt.Errorf("failed to locate task '%s': %w", taskID, twerrors.ErrTaskNotFound)
	}
	return found, nil
}

// ReadRaw reads a file by store-relative path. The operation history uses the
// raw accessors to restore snapshots to recorded locations without decoding
// task content.
func (s *FileStore) ReadRaw(ctx context.Context, relPath string) ([]byte, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := s.validateRelPath(relPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, relPath)) // #nosec G304 -- relPath is validated against the store root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read '%s': %w", relPath, twerrors.ErrTaskNotFound)
		}
		return nil, fmt.Errorf("failed to read '%s': %w", relPath, err)
	}
	return data, nil
}

// WriteRaw atomically writes a file by store-relative path.
func (s *FileStore) WriteRaw(ctx context.Context, relPath string, data []byte) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := s.validateRelPath(relPath); err != nil {
		return err
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	path := filepath.Join(s.dir, relPath)
	if err = os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", relPath, err)
	}
	if err = atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write '%s': %w", relPath, err)
	}
	return nil
}

// RemoveRaw deletes a file by store-relative path. Missing files are not an
// error, so undoing a create stays idempotent.
func (s *FileStore) RemoveRaw(ctx context.Context, relPath string) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := s.validateRelPath(relPath); err != nil {
		return err
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	if err = os.Remove(filepath.Join(s.dir, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove '%s': %w", relPath, err)
	}
	s.pruneEmptyDirs(filepath.Dir(relPath))
	return nil
}

// acquireLock takes the store-wide write lock. The caller must release it
// with releaseLock.
func (s *FileStore) acquireLock(ctx context.Context) (*os.File, error) {
	lockPath := filepath.Join(s.dir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) // #nosec G304 -- path is derived from the store root
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err = flock.Acquire(ctx, f, s.lockTimeout); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// releaseLock unlocks and closes the lock file.
func (s *FileStore) releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = flock.Unlock(f.Fd())
	_ = f.Close()
}

// writeTaskLocked marshals and atomically writes a task, refreshing
// UpdatedAt. Callers must hold the store lock.
func (s *FileStore) writeTaskLocked(task *domain.Task, path string) error {
	task.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}
	if err = atomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	return nil
}

// taskFilePaths returns absolute paths of every task file in the store,
// skipping dot-directories and dotfiles.
func (s *FileStore) taskFilePaths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil // Vanished mid-walk; skip.
			}
			return walkErr
		}
		if d.IsDir() {
			if path != s.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), TaskFileExt) && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan storage directory: %w", err)
	}
	return paths, nil
}

// nextIDLocked scans existing task files and returns the next sequential ID.
// Callers must hold the store lock when the result is used for a create.
func (s *FileStore) nextIDLocked() (string, error) {
	paths, err := s.taskFilePaths()
	if err != nil {
		return "", err
	}

	maxSeq := 0
	for _, p := range paths {
		base := strings.TrimSuffix(filepath.Base(p), TaskFileExt)
		m := taskIDSeqRegex.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		seq, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("TASK-%03d", maxSeq+1), nil
}

// pruneEmptyDirs removes now-empty domain directories between rel and the
// store root. Failures are ignored; a leftover directory is harmless.
func (s *FileStore) pruneEmptyDirs(rel string) {
	for rel != "." && rel != "" {
		dir := filepath.Join(s.dir, rel)
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err = os.Remove(dir); err != nil {
			return
		}
		rel = filepath.Dir(rel)
	}
}

// taskFileName returns the bare file name for a task ID.
func taskFileName(taskID string) string {
	return taskID + TaskFileExt
}

// taskPath returns the absolute path for a task in a domain ("" for root).
func (s *FileStore) taskPath(taskID, taskDomain string) string {
	if taskDomain == "" {
		return filepath.Join(s.dir, taskFileName(taskID))
	}
	return filepath.Join(s.dir, filepath.FromSlash(taskDomain), taskFileName(taskID))
}

// validateTaskID rejects empty IDs and IDs carrying path separators.
func validateTaskID(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("failed to validate task ID: %w", twerrors.ErrEmptyValue)
	}
	if strings.ContainsAny(taskID, `/\`) || strings.Contains(taskID, "..") {
		return fmt.Errorf("failed to validate task ID '%s': %w", taskID, twerrors.ErrPathTraversal)
	}
	return nil
}

// validateDomain rejects domain paths that could escape the store root.
// Domains may nest with forward slashes ("backend/auth").
func validateDomain(taskDomain string) error {
	if taskDomain == "" {
		return nil
	}
	if strings.HasPrefix(taskDomain, "/") || strings.Contains(taskDomain, `\`) || strings.Contains(taskDomain, "..") {
		return fmt.Errorf("failed to validate domain '%s': %w", taskDomain, twerrors.ErrPathTraversal)
	}
	return nil
}

// validateRelPath guards the raw accessors against escaping the store root.
func (s *FileStore) validateRelPath(relPath string) error {
	if relPath == "" {
		return fmt.Errorf("failed to validate path: %w", twerrors.ErrEmptyValue)
	}
	if filepath.IsAbs(relPath) || strings.Contains(relPath, "..") || strings.Contains(relPath, `\`) {
		return fmt.Errorf("failed to validate path '%s': %w", relPath, twerrors.ErrPathTraversal)
	}
	return nil
}

// atomicWrite writes data to path via a temp file and rename, so readers
// never observe a partial file.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) // #nosec G304 -- callers validate path
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
