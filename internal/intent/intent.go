// Package intent implements the JSON intent protocol: request validation,
// idempotent replay, snapshot-based operation history, per-verb handlers,
// atomic batches, and the uniform response envelope.
package intent

import (
	"sort"
	"strings"

	"github.com/taskwire/taskwire/internal/task"
)

// Intent is one verb of the protocol. The set is closed; unknown verbs are
// rejected at the JSON boundary.
type Intent string

// Modifying intents.
const (
	IntentCreate    Intent = "create"
	IntentDecompose Intent = "decompose"
	IntentDefine    Intent = "define"
	IntentVerify    Intent = "verify"
	IntentDone      Intent = "done"
	IntentProgress  Intent = "progress"
	IntentNote      Intent = "note"
	IntentBlock     Intent = "block"
	IntentDelete    Intent = "delete"
	IntentComplete  Intent = "complete"
)

// Read-only intents.
const (
	IntentContext Intent = "context"
	IntentResume  Intent = "resume"
	IntentHistory Intent = "history"
	IntentStorage Intent = "storage"
)

// History and structural intents. Batch and migrate sit outside the
// modifying set: batch manages its own recoverability, migrate moves whole
// trees.
const (
	IntentUndo    Intent = "undo"
	IntentRedo    Intent = "redo"
	IntentBatch   Intent = "batch"
	IntentMigrate Intent = "migrate"
)

// modifyingIntents drive idempotency, dry-run preflight, and history
// recording.
var modifyingIntents = map[Intent]bool{
	IntentCreate:    true,
	IntentDecompose: true,
	IntentDefine:    true,
	IntentVerify:    true,
	IntentDone:      true,
	IntentProgress:  true,
	IntentNote:      true,
	IntentBlock:     true,
	IntentDelete:    true,
	IntentComplete:  true,
}

// historyIntents operate on the operation log itself and are never recorded
// into it.
var historyIntents = map[Intent]bool{
	IntentUndo:    true,
	IntentRedo:    true,
	IntentHistory: true,
}

// Modifying reports whether the intent mutates task files.
func (i Intent) Modifying() bool {
	return modifyingIntents[i]
}

// HistoryClass reports whether the intent belongs to the undo/redo/history
// family.
func (i Intent) HistoryClass() bool {
	return historyIntents[i]
}

// AvailableIntents returns every dispatchable intent name, sorted.
func AvailableIntents() []string {
	names := make([]string, 0, len(handlers))
	for in := range handlers {
		names = append(names, string(in))
	}
	sort.Strings(names)
	return names
}

// Request is one decoded intent request: an untyped field map. Accessors
// tolerate absent and mistyped fields, returning zero values, so handlers
// validate semantics rather than shape.
type Request map[string]any

// Intent returns the request verb.
func (r Request) Intent() Intent {
	return Intent(r.String("intent"))
}

// TaskID returns the normalized task reference ("7" becomes "TASK-007").
func (r Request) TaskID() string {
	return task.NormalizeTaskID(r.String("task"))
}

// Path returns the dotted subtask path.
func (r Request) Path() string {
	return strings.TrimSpace(r.String("path"))
}

// Domain returns the storage namespace: explicit domain, else
// phase/component, else phase.
func (r Request) Domain() string {
	if d := strings.TrimSpace(r.String("domain")); d != "" {
		return d
	}
	phase := strings.TrimSpace(r.String("phase"))
	component := strings.TrimSpace(r.String("component"))
	switch {
	case phase != "" && component != "":
		return phase + "/" + component
	case phase != "":
		return phase
	default:
		return ""
	}
}

// Has reports whether key is present, even with a null value.
func (r Request) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the string at key, or "".
func (r Request) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// StringOr returns the string at key, or def when absent or not a string.
func (r Request) StringOr(key, def string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key, or false.
func (r Request) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// BoolOr returns the bool at key, or def when absent or not a bool.
func (r Request) BoolOr(key string, def bool) bool {
	if b, ok := r[key].(bool); ok {
		return b
	}
	return def
}

// IntOr returns the integer at key, accepting JSON numbers, or def.
func (r Request) IntOr(key string, def int) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// Slice returns the array at key, or nil.
func (r Request) Slice(key string) []any {
	s, _ := r[key].([]any)
	return s
}

// Map returns the object at key, or nil.
func (r Request) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}
