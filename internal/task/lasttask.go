package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// bareSeqRegex matches a bare numeric task reference like "7" or "042".
var bareSeqRegex = regexp.MustCompile(`^\d+$`)

// LastTask returns the most recently touched task ID and its domain, parsed
// from the store's .last file. Returns empty strings when nothing is
// recorded or the file is unreadable.
func (s *FileStore) LastTask() (taskID, taskDomain string) {
	data, err := os.ReadFile(filepath.Join(s.dir, lastFileName)) // #nosec G304 -- path is derived from the store root
	if err != nil {
		return "", ""
	}
	ref := strings.TrimSpace(string(data))
	if ref == "" {
		return "", ""
	}
	if id, dom, ok := strings.Cut(ref, "@"); ok {
		return id, dom
	}
	return ref, ""
}

// SaveLastTask records the most recently touched task in "id@domain" form so
// resume can pick it up without an explicit task argument.
func (s *FileStore) SaveLastTask(taskID, taskDomain string) error {
	if err := validateTaskID(taskID); err != nil {
		return err
	}
	if err := validateDomain(taskDomain); err != nil {
		return err
	}

	ref := taskID
	if taskDomain != "" {
		ref = taskID + "@" + taskDomain
	}
	if err := os.WriteFile(filepath.Join(s.dir, lastFileName), []byte(ref), filePerm); err != nil {
		return fmt.Errorf("failed to record last task: %w", err)
	}
	return nil
}

// ClearLastTask forgets the recorded task. Called when the recorded task is
// deleted so resume does not chase a dangling reference.
func (s *FileStore) ClearLastTask() error {
	if err := os.Remove(filepath.Join(s.dir, lastFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear last task: %w", err)
	}
	return nil
}

// NormalizeTaskID canonicalizes loose task references: "7", "042" and
// "task-7" all become "TASK-007" (zero-padded to three digits, wider
// sequences kept as-is). Values that match neither form are returned
// trimmed but otherwise unchanged, so custom IDs keep working.
func NormalizeTaskID(raw string) string {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return ""
	}
	if bareSeqRegex.MatchString(ref) {
		if seq, err := strconv.Atoi(ref); err == nil {
			return fmt.Sprintf("TASK-%03d", seq)
		}
		return ref
	}
	if m := taskIDSeqRegex.FindStringSubmatch(strings.ToUpper(ref)); m != nil {
		if seq, err := strconv.Atoi(m[1]); err == nil {
			return fmt.Sprintf("TASK-%03d", seq)
		}
	}
	return ref
}
