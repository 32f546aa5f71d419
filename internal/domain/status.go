// Package domain provides shared domain types for the taskwire intent engine.
package domain

import (
	"strings"

	"github.com/taskwire/taskwire/internal/errors"
)

// Status is the traffic-light health of a task.
//
// The engine derives it from subtask progress: nothing done means FAIL,
// everything done means OK, anything in between means WARN. A blocked task
// reports FAIL regardless of progress.
type Status string

// Task status values.
const (
	// StatusOK indicates all subtasks are completed.
	StatusOK Status = "OK"

	// StatusWarn indicates the task is in progress.
	StatusWarn Status = "WARN"

	// StatusFail indicates no progress yet, or the task is blocked.
	StatusFail Status = "FAIL"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusWarn, StatusFail:
		return true
	default:
		return false
	}
}

// ParseStatus converts a raw string (case-insensitive) into a Status.
// Returns ErrInvalidStatus for anything outside OK/WARN/FAIL.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidStatus, "%q", raw)
	}
	return s, nil
}

// Priority orders tasks by urgency.
type Priority string

// Task priority values.
const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// ParsePriority converts a raw string (case-insensitive) into a Priority.
// Returns ErrInvalidPriority for unknown values.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidPriority, "%q", raw)
	}
	return p, nil
}
