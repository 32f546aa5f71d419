// Package domain provides shared domain types for the taskwire intent engine.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case; they are the persisted on-disk format
// and the wire format echoed inside response envelopes, so renaming a tag is
// a breaking change.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/taskwire/taskwire/internal/errors"
)

// SchemaVersion is the current version of the persisted Task schema.
const SchemaVersion = 1

// Task represents a single unit of work tracked by taskwire.
// Tasks are created through the intent protocol and carry a tree of
// checkpoint-gated subtasks plus a timeline of structured events.
//
// Example JSON representation:
//
//	{
//	    "id": "TASK-001",
//	    "title": "Add rate limiting to the API gateway",
//	    "status": "WARN",
//	    "priority": "HIGH",
//	    "subtasks": [...],
//	    "events": [...],
//	    "created_at": "2026-03-01T10:00:00Z",
//	    "updated_at": "2026-03-01T10:05:00Z",
//	    "schema_version": 1
//	}
type Task struct {
	// ID is the unique identifier for the task. Format: TASK-NNN.
	ID string `json:"id"`

	// Title is a short human-readable summary of the work.
	Title string `json:"title"`

	// Description holds free-form detail beyond the title.
	Description string `json:"description,omitempty"`

	// Status is the traffic-light health derived from subtask progress.
	Status Status `json:"status"`

	// Priority orders this task relative to others.
	Priority Priority `json:"priority"`

	// Parent is the ID of a parent task, empty for top-level tasks.
	Parent string `json:"parent,omitempty"`

	// Domain is an optional grouping segment; tasks are stored under
	// a per-domain subdirectory when set.
	Domain string `json:"domain,omitempty"`

	// Phase and Component are optional classification labels.
	Phase     string `json:"phase,omitempty"`
	Component string `json:"component,omitempty"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Context carries background a future session needs to resume work.
	Context string `json:"context,omitempty"`

	// Blocked marks the whole task as blocked; a blocked task reports
	// status FAIL regardless of progress.
	Blocked bool `json:"blocked,omitempty"`

	// Blockers lists what is blocking the task when Blocked is true.
	Blockers []string `json:"blockers,omitempty"`

	// Subtasks is the checkpoint-gated work breakdown. Dotted paths
	// ("0", "2.1") address nodes in this tree.
	Subtasks []Subtask `json:"subtasks"`

	// SuccessCriteria are task-level acceptance criteria.
	SuccessCriteria []string `json:"success_criteria,omitempty"`

	// DependsOn lists task IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`

	// Events is the structured timeline, oldest first.
	Events []Event `json:"events,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last persisted.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the task was completed (nil if not yet complete).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SchemaVersion indicates the version of the Task struct schema.
	SchemaVersion int `json:"schema_version"`
}

// Subtask is one node in a task's work breakdown tree.
//
// Completion is checkpoint-gated: a subtask is ready to be marked done only
// when its success criteria are confirmed, and its tests and blockers are
// either absent or confirmed/resolved. The *_auto_* flags record checkpoints
// that were satisfied automatically because the corresponding list was empty,
// so reviewers can tell a real confirmation from a vacuous one.
type Subtask struct {
	// Title describes the subtask.
	Title string `json:"title"`

	// Completed marks the subtask as done.
	Completed bool `json:"completed"`

	// SuccessCriteria, Tests and Blockers declare the three checkpoints.
	SuccessCriteria []string `json:"success_criteria,omitempty"`
	Tests           []string `json:"tests,omitempty"`
	Blockers        []string `json:"blockers,omitempty"`

	// CriteriaConfirmed, TestsConfirmed and BlockersResolved record
	// checkpoint confirmations.
	CriteriaConfirmed bool `json:"criteria_confirmed,omitempty"`
	TestsConfirmed    bool `json:"tests_confirmed,omitempty"`
	BlockersResolved  bool `json:"blockers_resolved,omitempty"`

	// TestsAutoConfirmed and BlockersAutoResolved are set when the done
	// handler force-satisfies an empty checkpoint list.
	TestsAutoConfirmed   bool `json:"tests_auto_confirmed,omitempty"`
	BlockersAutoResolved bool `json:"blockers_auto_resolved,omitempty"`

	// CriteriaNotes, TestsNotes and BlockersNotes hold confirmation evidence.
	CriteriaNotes []string `json:"criteria_notes,omitempty"`
	TestsNotes    []string `json:"tests_notes,omitempty"`
	BlockersNotes []string `json:"blockers_notes,omitempty"`

	// ProgressNotes are free-form work-in-progress notes.
	ProgressNotes []string `json:"progress_notes,omitempty"`

	// Children are nested subtasks addressed by extending the dotted path.
	Children []Subtask `json:"children,omitempty"`

	// Blocked and BlockReason mark the subtask as stuck.
	Blocked     bool   `json:"blocked,omitempty"`
	BlockReason string `json:"block_reason,omitempty"`

	// CreatedAt, StartedAt and CompletedAt track the subtask lifecycle.
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a task with the given ID and title, stamped with the
// current UTC time. The initial status is FAIL (no progress yet) and the
// initial priority is MEDIUM.
func NewTask(id, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:            id,
		Title:         title,
		Status:        StatusFail,
		Priority:      PriorityMedium,
		Subtasks:      []Subtask{},
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: SchemaVersion,
	}
}

// ReadyForCompletion reports whether every declared checkpoint is satisfied:
// criteria confirmed, tests confirmed or absent, blockers resolved or absent.
// It does not consider Completed; callers filter completed subtasks themselves.
func (s *Subtask) ReadyForCompletion() bool {
	return s.CriteriaConfirmed &&
		(len(s.Tests) == 0 || s.TestsConfirmed) &&
		(len(s.Blockers) == 0 || s.BlockersResolved)
}

// Counts returns the completed and total number of top-level subtasks.
func (t *Task) Counts() (completed, total int) {
	for i := range t.Subtasks {
		if t.Subtasks[i].Completed {
			completed++
		}
	}
	return completed, len(t.Subtasks)
}

// Progress returns the completion percentage over top-level subtasks,
// 0 when the task has none.
func (t *Task) Progress() int {
	completed, total := t.Counts()
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}

// UpdateStatusFromProgress recalculates Status from subtask progress:
// no progress means FAIL, partial progress WARN, full progress OK.
// A blocked task stays FAIL regardless of progress.
func (t *Task) UpdateStatusFromProgress() {
	switch prog := t.Progress(); {
	case t.Blocked:
		t.Status = StatusFail
	case prog == 100:
		t.Status = StatusOK
	case prog > 0:
		t.Status = StatusWarn
	default:
		t.Status = StatusFail
	}
}

// AddEvent appends an event to the task timeline.
func (t *Task) AddEvent(e Event) {
	t.Events = append(t.Events, e)
}

// ParsePath splits a dotted subtask path ("0", "2.1.0") into integer indices.
// Returns ErrInvalidPath for empty paths or non-numeric segments.
func ParsePath(path string) ([]int, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrInvalidPath, "empty path")
	}
	parts := strings.Split(path, ".")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidPath, "segment %q", part)
		}
		indices = append(indices, n)
	}
	return indices, nil
}

// FindSubtask resolves a dotted path to a pointer into the subtask tree.
// The pointer stays valid until the tree is structurally modified.
func (t *Task) FindSubtask(path string) (*Subtask, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	list := t.Subtasks
	var current *Subtask
	for depth, idx := range indices {
		if idx >= len(list) {
			return nil, errors.Wrapf(errors.ErrSubtaskNotFound, "path %s", path)
		}
		current = &list[idx]
		if depth < len(indices)-1 {
			list = current.Children
		}
	}
	return current, nil
}

// FindParentList resolves a dotted path to the slice containing its final
// segment plus the index within that slice. Used for structural operations
// (delete, insert) that need to modify the containing list.
func (t *Task) FindParentList(path string) (*[]Subtask, int, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, 0, err
	}
	list := &t.Subtasks
	for depth := 0; depth < len(indices)-1; depth++ {
		idx := indices[depth]
		if idx >= len(*list) {
			return nil, 0, errors.Wrapf(errors.ErrParentNotFound, "path %s", path)
		}
		list = &(*list)[idx].Children
	}
	last := indices[len(indices)-1]
	if last >= len(*list) {
		return nil, 0, errors.Wrapf(errors.ErrSubtaskNotFound, "path %s", path)
	}
	return list, last, nil
}

// WalkSubtasks visits every subtask in the tree depth-first, passing each
// node's dotted path. Pointers are valid for the duration of the call.
func (t *Task) WalkSubtasks(fn func(path string, st *Subtask)) {
	walkSubtaskList(t.Subtasks, "", fn)
}

func walkSubtaskList(list []Subtask, prefix string, fn func(path string, st *Subtask)) {
	for i := range list {
		path := strconv.Itoa(i)
		if prefix != "" {
			path = prefix + "." + path
		}
		fn(path, &list[i])
		walkSubtaskList(list[i].Children, path, fn)
	}
}
