// Package history records snapshot-based operation history for undo/redo.
//
// Every modifying intent gets one Operation carrying a pre-image snapshot of
// the task file it touched. Undo restores the pre-image (capturing an
// after-image for redo); redo restores the after-image. The log itself never
// parses task files, it moves raw bytes through the store's relative-path
// accessors, so schema changes cannot break old history.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	twerrors "github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/flock"
)

const (
	// HistoryFileName is the operation log file under the storage root.
	HistoryFileName = ".history.json"

	// SnapshotDirName is the snapshot directory under the storage root.
	SnapshotDirName = ".snapshots"

	// lockFileName serializes history mutations across processes. The lock
	// order is always history lock first, then the store's write lock; the
	// store never calls back into this package.
	lockFileName = ".history.lock"

	// DefaultMaxOperations bounds the retained operation log.
	DefaultMaxOperations = 100

	dirPerm  = 0o750
	filePerm = 0o600
)

// IntentCreate marks operations whose undo means deleting the created file
// rather than restoring a pre-image.
const IntentCreate = "create"

// Operation is one recorded modifying intent.
type Operation struct {
	ID              string         `json:"id"`
	Timestamp       int64          `json:"timestamp"`
	Intent          string         `json:"intent"`
	TaskID          string         `json:"task_id"`
	Data            map[string]any `json:"data,omitempty"`
	TaskFile        string         `json:"task_file,omitempty"`
	SnapshotID      string         `json:"snapshot_id,omitempty"`
	AfterSnapshotID string         `json:"after_snapshot_id,omitempty"`
	Undone          bool           `json:"undone"`
}

// View is a read-only slice of the log plus its cursor state.
type View struct {
	Operations   []Operation
	Total        int
	CurrentIndex int
	CanUndo      bool
	CanRedo      bool
}

// FileAccess is the slice of the task store the history log needs: raw bytes
// keyed by store-relative path, plus task file location.
type FileAccess interface {
	FindTaskFile(taskID string) (string, error)
	ReadRaw(ctx context.Context, relPath string) ([]byte, error)
	WriteRaw(ctx context.Context, relPath string, data []byte) error
	RemoveRaw(ctx context.Context, relPath string) error
}

// historyFile is the on-disk shape of the operation log.
type historyFile struct {
	Operations   []Operation `json:"operations"`
	CurrentIndex int         `json:"current_index"`
	UpdatedAt    string      `json:"updated_at"`
}

// Log is the operation history for one storage directory.
type Log struct {
	dir         string
	files       FileAccess
	snapshots   ContentStore
	maxOps      int
	lockTimeout time.Duration

	mu  sync.Mutex
	seq atomic.Uint64
}

// NewLog opens the operation history for a storage directory. A maxOps <= 0
// uses DefaultMaxOperations; a lockTimeout <= 0 uses flock.DefaultTimeout.
func NewLog(dir string, files FileAccess, snapshots ContentStore, maxOps int, lockTimeout time.Duration) *Log {
	if maxOps <= 0 {
		maxOps = DefaultMaxOperations
	}
	if lockTimeout <= 0 {
		lockTimeout = flock.DefaultTimeout
	}
	return &Log{
		dir:         dir,
		files:       files,
		snapshots:   snapshots,
		maxOps:      maxOps,
		lockTimeout: lockTimeout,
	}
}

// Record captures the task's pre-image and appends an operation for a
// modifying intent. Recording truncates any redo tail, trims the log to its
// retention cap, and garbage-collects unreferenced snapshots. Returns the
// new operation's ID.
//
// Create operations never carry a pre-image, so undoing one deletes the
// task file; every other intent requires the task file to exist.
func (l *Log) Record(ctx context.Context, intentName, taskID string, data map[string]any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var relPath, snapID string
	if intentName != IntentCreate {
		rel, err := l.files.FindTaskFile(taskID)
		if err != nil {
			return "", twerrors.Wrapf(err, "cannot record %s", intentName)
		}
		relPath = rel
		pre, readErr := l.files.ReadRaw(ctx, rel)
		if readErr != nil {
			return "", fmt.Errorf("failed to read task for snapshot: %w", readErr)
		}
		snapID = NewSnapshotID(taskID)
		if putErr := l.snapshots.Put(snapID, pre); putErr != nil {
			return "", fmt.Errorf("failed to snapshot task: %w", putErr)
		}
	}

	lock, err := l.acquireLock(ctx)
	if err != nil {
		return "", err
	}
	defer l.releaseLock(lock)

	hf := l.load(ctx)

	// Recording invalidates the redo tail.
	if hf.CurrentIndex < len(hf.Operations)-1 {
		hf.Operations = hf.Operations[:hf.CurrentIndex+1]
	}

	op := Operation{
		ID:         l.newOperationID(),
		Timestamp:  time.Now().Unix(),
		Intent:     intentName,
		TaskID:     taskID,
		Data:       data,
		TaskFile:   relPath,
		SnapshotID: snapID,
	}
	hf.Operations = append(hf.Operations, op)
	hf.CurrentIndex = len(hf.Operations) - 1

	// Trim to the retention cap, oldest first.
	if len(hf.Operations) > l.maxOps {
		drop := len(hf.Operations) - l.maxOps
		hf.Operations = hf.Operations[drop:]
		hf.CurrentIndex -= drop
	}

	l.gcSnapshots(ctx, hf)

	if err = l.save(hf); err != nil {
		return "", err
	}
	return op.ID, nil
}

// Undo reverts the operation at the cursor and returns it. The current file
// content is snapshotted first so the operation can be redone.
func (l *Log) Undo(ctx context.Context) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := l.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(lock)

	hf := l.load(ctx)
	if hf.CurrentIndex < 0 || hf.CurrentIndex >= len(hf.Operations) {
		return nil, twerrors.ErrNothingToUndo
	}
	op := &hf.Operations[hf.CurrentIndex]
	if op.Undone {
		return nil, twerrors.ErrNothingToUndo
	}

	if op.SnapshotID == "" && op.Intent == IntentCreate {
		if err = l.undoCreate(ctx, op); err != nil {
			return nil, err
		}
	} else {
		if err = l.undoRestore(ctx, op); err != nil {
			return nil, err
		}
	}

	op.Undone = true
	hf.CurrentIndex--

	if err = l.save(hf); err != nil {
		return nil, err
	}
	undone := *op
	return &undone, nil
}

// undoCreate removes the created task file, keeping its content for redo.
func (l *Log) undoCreate(ctx context.Context, op *Operation) error {
	rel := op.TaskFile
	if rel == "" {
		// Creates never record a file path; resolve it now.
		if found, findErr := l.files.FindTaskFile(op.TaskID); findErr == nil {
			rel = found
		}
	}
	if rel == "" {
		return nil // Nothing on disk; undo is a no-op.
	}

	if current, readErr := l.files.ReadRaw(ctx, rel); readErr == nil {
		afterID := NewSnapshotID(op.TaskID)
		if putErr := l.snapshots.Put(afterID, current); putErr != nil {
			return fmt.Errorf("failed to snapshot task before undo: %w", putErr)
		}
		op.AfterSnapshotID = afterID
	}
	if removeErr := l.files.RemoveRaw(ctx, rel); removeErr != nil {
		return fmt.Errorf("failed to undo create: %w", removeErr)
	}
	op.TaskFile = rel
	return nil
}

// undoRestore snapshots the current content, then writes the pre-image back.
func (l *Log) undoRestore(ctx context.Context, op *Operation) error {
	if current, readErr := l.files.ReadRaw(ctx, op.TaskFile); readErr == nil {
		afterID := NewSnapshotID(op.TaskID)
		if putErr := l.snapshots.Put(afterID, current); putErr != nil {
			return fmt.Errorf("failed to snapshot task before undo: %w", putErr)
		}
		op.AfterSnapshotID = afterID
	}

	pre, getErr := l.snapshots.Get(op.SnapshotID)
	if getErr != nil {
		return fmt.Errorf("operation '%s': %w", op.ID, twerrors.ErrSnapshotNotFound)
	}
	if writeErr := l.files.WriteRaw(ctx, op.TaskFile, pre); writeErr != nil {
		return fmt.Errorf("failed to restore task file: %w", writeErr)
	}
	return nil
}

// Redo re-applies the most recently undone operation and returns it.
func (l *Log) Redo(ctx context.Context) (*Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := l.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(lock)

	hf := l.load(ctx)

	var next int
	switch {
	case hf.CurrentIndex < 0:
		next = 0
	case hf.CurrentIndex < len(hf.Operations)-1:
		next = hf.CurrentIndex + 1
	default:
		next = hf.CurrentIndex
	}
	if next < 0 || next >= len(hf.Operations) {
		return nil, twerrors.ErrNothingToRedo
	}
	op := &hf.Operations[next]
	if !op.Undone {
		return nil, twerrors.ErrNothingToRedo
	}

	after, getErr := l.snapshots.Get(op.AfterSnapshotID)
	if getErr != nil {
		return nil, fmt.Errorf("operation '%s': %w", op.ID, twerrors.ErrSnapshotNotFound)
	}
	if writeErr := l.files.WriteRaw(ctx, op.TaskFile, after); writeErr != nil {
		return nil, fmt.Errorf("failed to restore task file: %w", writeErr)
	}

	op.Undone = false
	hf.CurrentIndex = next

	if err = l.save(hf); err != nil {
		return nil, err
	}
	redone := *op
	return &redone, nil
}

// CanUndo reports whether an operation is available to undo.
func (l *Log) CanUndo(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return canUndo(l.load(ctx))
}

// CanRedo reports whether an undone operation is available to redo.
func (l *Log) CanRedo(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return canRedo(l.load(ctx))
}

// Recent returns the last limit operations in chronological order together
// with the log's cursor state. A limit <= 0 returns everything.
func (l *Log) Recent(ctx context.Context, limit int) View {
	l.mu.Lock()
	defer l.mu.Unlock()

	hf := l.load(ctx)
	ops := hf.Operations
	if limit > 0 && len(ops) > limit {
		ops = ops[len(ops)-limit:]
	}
	out := make([]Operation, len(ops))
	copy(out, ops)

	return View{
		Operations:   out,
		Total:        len(hf.Operations),
		CurrentIndex: hf.CurrentIndex,
		CanUndo:      canUndo(hf),
		CanRedo:      canRedo(hf),
	}
}

func canUndo(hf *historyFile) bool {
	return hf.CurrentIndex >= 0 && hf.CurrentIndex < len(hf.Operations) && !hf.Operations[hf.CurrentIndex].Undone
}

func canRedo(hf *historyFile) bool {
	if hf.CurrentIndex < len(hf.Operations)-1 {
		return true
	}
	return hf.CurrentIndex >= 0 && hf.CurrentIndex < len(hf.Operations) && hf.Operations[hf.CurrentIndex].Undone
}

// load reads the history file. Missing or corrupt files reset to an empty
// history so one bad write cannot wedge undo forever; corruption is logged.
func (l *Log) load(ctx context.Context) *historyFile {
	empty := &historyFile{Operations: []Operation{}, CurrentIndex: -1}

	data, err := os.ReadFile(l.historyPath()) // #nosec G304 -- path is derived from the store root
	if err != nil {
		return empty
	}

	var hf historyFile
	if err = json.Unmarshal(data, &hf); err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(fmt.Errorf("%w: %w", twerrors.ErrHistoryCorrupted, err)).
			Str("path", l.historyPath()).
			Msg("resetting corrupt operation history")
		return empty
	}
	if hf.Operations == nil {
		hf.Operations = []Operation{}
	}
	if hf.CurrentIndex >= len(hf.Operations) {
		hf.CurrentIndex = len(hf.Operations) - 1
	}
	if hf.CurrentIndex < -1 {
		hf.CurrentIndex = -1
	}
	return &hf
}

// save atomically writes the history file.
func (l *Log) save(hf *historyFile) error {
	hf.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(hf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err = os.MkdirAll(l.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err = writeFileAtomic(l.historyPath(), data); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// gcSnapshots deletes snapshot files no longer referenced by any retained
// operation. Runs whenever trimming or tail truncation discards entries;
// cheap enough to run on every record.
func (l *Log) gcSnapshots(ctx context.Context, hf *historyFile) {
	referenced := make(map[string]bool, len(hf.Operations)*2)
	for _, op := range hf.Operations {
		if op.SnapshotID != "" {
			referenced[op.SnapshotID] = true
		}
		if op.AfterSnapshotID != "" {
			referenced[op.AfterSnapshotID] = true
		}
	}

	ids, err := l.snapshots.IDs()
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("snapshot listing failed, skipping gc")
		return
	}
	for _, id := range ids {
		if referenced[id] {
			continue
		}
		if err = l.snapshots.Delete(id); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("snapshot_id", id).Msg("snapshot delete failed")
		}
	}
}

func (l *Log) historyPath() string {
	return filepath.Join(l.dir, HistoryFileName)
}

// acquireLock takes the cross-process history lock.
func (l *Log) acquireLock(ctx context.Context) (*os.File, error) {
	if err := os.MkdirAll(l.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(l.dir, lockFileName), os.O_CREATE|os.O_RDWR, filePerm) // #nosec G304 -- path is derived from the store root
	if err != nil {
		return nil, fmt.Errorf("failed to open history lock: %w", err)
	}
	if err = flock.Acquire(ctx, f, l.lockTimeout); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (l *Log) releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = flock.Unlock(f.Fd())
	_ = f.Close()
}

// newOperationID derives a short unique ID from the clock and a sequence
// counter.
func (l *Log) newOperationID() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "ops:%d-%d", time.Now().UnixNano(), l.seq.Add(1)))
	return hex.EncodeToString(sum[:])[:12]
}

// writeFileAtomic writes data via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) // #nosec G304 -- callers derive path from the store root
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
