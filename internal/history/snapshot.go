package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// snapshotExt mirrors the task file extension so snapshots read naturally.
const snapshotExt = ".task"

// ContentStore persists point-in-time task file images for undo/redo.
// Implementations never interpret the bytes they hold.
type ContentStore interface {
	// Put stores data under id, overwriting any previous content.
	Put(id string, data []byte) error

	// Get returns the stored bytes. Returns ErrSnapshotNotFound when absent.
	Get(id string) ([]byte, error)

	// Delete removes a snapshot. Missing snapshots are not an error.
	Delete(id string) error

	// IDs lists all stored snapshot IDs.
	IDs() ([]string, error)
}

// NewSnapshotID mints a snapshot ID for a task: the task ID plus a short
// random suffix, unique enough for a directory that garbage-collects itself.
func NewSnapshotID(taskID string) string {
	return taskID + "-" + uuid.NewString()[:8]
}

// FileContentStore keeps snapshots as files in a single directory, one per
// snapshot ID.
type FileContentStore struct {
	dir string
}

// NewFileContentStore creates a snapshot store at dir, creating the
// directory if needed.
func NewFileContentStore(dir string) (*FileContentStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("failed to create snapshot store: dir %w", twerrors.ErrEmptyValue)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileContentStore{dir: dir}, nil
}

// Put stores data under id.
func (s *FileContentStore) Put(id string, data []byte) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, id+snapshotExt), data); err != nil {
		return fmt.Errorf("failed to write snapshot '%s': %w", id, err)
	}
	return nil
}

// Get returns the stored bytes for id.
func (s *FileContentStore) Get(id string) ([]byte, error) {
	if err := validateSnapshotID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+snapshotExt)) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot '%s': %w", id, twerrors.ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to read snapshot '%s': %w", id, err)
	}
	return data, nil
}

// Delete removes a snapshot. Missing snapshots are not an error.
func (s *FileContentStore) Delete(id string) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, id+snapshotExt)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot '%s': %w", id, err)
	}
	return nil
}

// IDs lists all stored snapshot IDs, sorted.
func (s *FileContentStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// validateSnapshotID rejects IDs that could escape the snapshot directory.
func validateSnapshotID(id string) error {
	if id == "" {
		return fmt.Errorf("failed to validate snapshot ID: %w", twerrors.ErrEmptyValue)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("failed to validate snapshot ID '%s': %w", id, twerrors.ErrPathTraversal)
	}
	return nil
}

// MemContentStore is an in-memory ContentStore for tests and ephemeral runs.
type MemContentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemContentStore creates an empty in-memory snapshot store.
func NewMemContentStore() *MemContentStore {
	return &MemContentStore{data: make(map[string][]byte)}
}

// Put stores a copy of data under id.
func (s *MemContentStore) Put(id string, data []byte) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[id] = cp
	return nil
}

// Get returns a copy of the stored bytes for id.
func (s *MemContentStore) Get(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("snapshot '%s': %w", id, twerrors.ErrSnapshotNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete removes a snapshot.
func (s *MemContentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// IDs lists all stored snapshot IDs, sorted.
func (s *MemContentStore) IDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
