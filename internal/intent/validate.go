package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation limits. Shared by handlers and the dry-run preflight.
const (
	MaxTaskIDLength     = 64
	MaxPathLength       = 100
	MaxPathSegments     = 10
	MaxStringLength     = 10000
	MaxArrayLength      = 1000
	MaxTitleLength      = 500
	MaxCheckpointItems  = 100
	MaxTags             = 50
	MaxSubtaskDepth     = 10
	MaxSubtasksPerLevel = 1000
)

var (
	taskIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	pathRegex   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)
)

// ValidateTaskID returns "" when id is a usable task reference, else a
// human-readable message. Traversal sequences are rejected before any other
// check so they can never reach the filesystem layer.
func ValidateTaskID(id string) string {
	if id == "" {
		return "task ID is required"
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return "task ID must not contain path separators"
	}
	if len(id) > MaxTaskIDLength {
		return fmt.Sprintf("task ID exceeds %d characters", MaxTaskIDLength)
	}
	if !taskIDRegex.MatchString(id) {
		return "task ID may only contain letters, digits, hyphens and underscores"
	}
	return ""
}

// ValidatePath returns "" when path is a valid dotted subtask address.
func ValidatePath(path string) string {
	if path == "" {
		return "path is required"
	}
	if len(path) > MaxPathLength {
		return fmt.Sprintf("path exceeds %d characters", MaxPathLength)
	}
	if !pathRegex.MatchString(path) {
		return `path must be dotted digit segments like "0" or "2.1"`
	}
	if strings.Count(path, ".")+1 > MaxPathSegments {
		return fmt.Sprintf("path exceeds %d segments", MaxPathSegments)
	}
	return ""
}

// ValidateString checks an optional string field. Absent (nil) values are
// valid; max <= 0 uses MaxStringLength.
func ValidateString(v any, field string, max int) string {
	if v == nil {
		return ""
	}
	if max <= 0 {
		max = MaxStringLength
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%s must be a string", field)
	}
	if len(s) > max {
		return fmt.Sprintf("%s exceeds %d characters", field, max)
	}
	return ""
}

// ValidateArray checks an optional array field. Absent (nil) values are
// valid; max <= 0 uses MaxArrayLength.
func ValidateArray(v any, field string, max int) string {
	if v == nil {
		return ""
	}
	if max <= 0 {
		max = MaxArrayLength
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Sprintf("%s must be an array", field)
	}
	if len(arr) > max {
		return fmt.Sprintf("%s exceeds %d elements", field, max)
	}
	return ""
}

// ValidateSubtasks checks a subtask tree for decompose/create: every node
// needs a title within limits, checkpoint lists stay within bounds, and the
// tree fails closed past the depth and width caps.
func ValidateSubtasks(v any) string {
	if v == nil {
		return ""
	}
	arr, ok := v.([]any)
	if !ok {
		return "subtasks must be an array"
	}
	return validateSubtaskLevel(arr, 1)
}

func validateSubtaskLevel(arr []any, depth int) string {
	if depth > MaxSubtaskDepth {
		return fmt.Sprintf("subtask nesting exceeds depth %d", MaxSubtaskDepth)
	}
	if len(arr) > MaxSubtasksPerLevel {
		return fmt.Sprintf("more than %d subtasks at one level", MaxSubtasksPerLevel)
	}

	for i, el := range arr {
		node, ok := el.(map[string]any)
		if !ok {
			return fmt.Sprintf("subtask %d must be an object", i)
		}
		title, _ := node["title"].(string)
		if strings.TrimSpace(title) == "" {
			return fmt.Sprintf("subtask %d is missing a title", i)
		}
		if len(title) > MaxTitleLength {
			return fmt.Sprintf("subtask %d title exceeds %d characters", i, MaxTitleLength)
		}
		for _, field := range []string{"success_criteria", "tests", "blockers"} {
			if msg := ValidateArray(node[field], fmt.Sprintf("subtask %d %s", i, field), MaxCheckpointItems); msg != "" {
				return msg
			}
		}
		if children, present := node["children"]; present && children != nil {
			childArr, childOK := children.([]any)
			if !childOK {
				return fmt.Sprintf("subtask %d children must be an array", i)
			}
			if msg := validateSubtaskLevel(childArr, depth+1); msg != "" {
				return msg
			}
		}
	}
	return ""
}
