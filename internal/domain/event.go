package domain

import "time"

// Event types recorded on task timelines. The values are persisted inside
// task files, so changing one is a breaking change.
const (
	// EventCreated records task creation.
	EventCreated = "created"

	// EventCheckpoint records a criteria/tests/blockers confirmation.
	EventCheckpoint = "checkpoint"

	// EventStatus records a status change.
	EventStatus = "status"

	// EventBlocked records a task or subtask becoming blocked.
	EventBlocked = "blocked"

	// EventUnblocked records a task or subtask becoming unblocked.
	EventUnblocked = "unblocked"

	// EventSubtaskDone records a subtask completion.
	EventSubtaskDone = "subtask_done"

	// EventComment records a manual note.
	EventComment = "comment"
)

// ActorAI identifies the AI agent as the source of an event.
const ActorAI = "ai"

// Event is one entry in a task's structured timeline.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type (created, checkpoint, status, ...).
	Type string `json:"type"`

	// Actor is who caused the event.
	Actor string `json:"actor"`

	// Target is what was affected: "" for the task itself, "subtask:0"
	// or "subtask:1.2" for a node in the subtask tree.
	Target string `json:"target,omitempty"`

	// Data is the event-specific payload.
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event of the given type, stamped with the current
// UTC time.
func NewEvent(eventType, actor, target string, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Actor:     actor,
		Target:    target,
		Data:      data,
	}
}
