package task

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// DefaultNamespace is used when neither a git remote nor a usable directory
// name can be derived.
const DefaultNamespace = "default"

// namespaceCharRegex matches characters that are unsafe in a namespace
// directory name.
var namespaceCharRegex = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Namespace describes one project partition under the global storage root.
type Namespace struct {
	Namespace string `json:"namespace"`
	Path      string `json:"path"`
	TaskCount int    `json:"task_count"`
}

// DeriveNamespace returns the storage namespace for a project directory:
// "owner_repo" parsed from the git remote URL (origin preferred), falling
// back to the directory's base name.
func DeriveNamespace(projectDir string) string {
	if url := gitRemoteURL(projectDir); url != "" {
		if ns := ownerRepoFromURL(url); ns != "" {
			return sanitizeNamespace(ns)
		}
	}

	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return DefaultNamespace
	}
	base := filepath.Base(abs)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return DefaultNamespace
	}
	return sanitizeNamespace(base)
}

// ResolveDir picks the storage directory for a project: the local tasks
// directory when it exists, otherwise the project's namespace under the
// global root. The returned flag reports whether local storage won.
func ResolveDir(globalRoot, localDir, projectDir string) (dir string, local bool) {
	localPath := filepath.Join(projectDir, localDir)
	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		return localPath, true
	}
	return filepath.Join(globalRoot, DeriveNamespace(projectDir)), false
}

// ListNamespaces enumerates project partitions under the global storage root
// with their task counts, sorted by namespace.
func ListNamespaces(globalRoot string) ([]Namespace, error) {
	entries, err := os.ReadDir(globalRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Namespace{}, nil
		}
		return nil, fmt.Errorf("failed to read storage root: %w", err)
	}

	namespaces := make([]Namespace, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(globalRoot, entry.Name())
		namespaces = append(namespaces, Namespace{
			Namespace: entry.Name(),
			Path:      path,
			TaskCount: countTaskFiles(path),
		})
	}

	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].Namespace < namespaces[j].Namespace })
	return namespaces, nil
}

// CountTaskFiles reports how many task files live under dir, recursively.
func CountTaskFiles(dir string) int {
	return countTaskFiles(dir)
}

// MigrateToGlobal moves every file from localDir into globalDir, preserving
// subdirectory structure. Existing destination files are never overwritten;
// colliding sources stay behind. Returns the number of task files moved.
func MigrateToGlobal(ctx context.Context, localDir, globalDir string) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("failed to migrate '%s': %w", localDir, twerrors.ErrNoLocalTasks)
	}
	if err = os.MkdirAll(globalDir, dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create global namespace directory: %w", err)
	}

	moved := 0
	err = filepath.WalkDir(localDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(localDir, path)
		if relErr != nil {
			return relErr
		}
		dst := filepath.Join(globalDir, rel)
		if _, statErr := os.Stat(dst); statErr == nil {
			return nil // Never overwrite; leave the source in place.
		}
		if mkErr := os.MkdirAll(filepath.Dir(dst), dirPerm); mkErr != nil {
			return mkErr
		}
		if mvErr := moveFile(path, dst); mvErr != nil {
			return mvErr
		}
		if strings.HasSuffix(d.Name(), TaskFileExt) && !strings.HasPrefix(d.Name(), ".") {
			moved++
		}
		return nil
	})
	if err != nil {
		return moved, fmt.Errorf("failed to migrate tasks: %w", err)
	}

	removeEmptyTree(localDir)
	return moved, nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src) // #nosec G304 -- src comes from walking the local tasks directory
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", src, err)
	}
	if err = os.WriteFile(dst, data, filePerm); err != nil {
		return fmt.Errorf("failed to write '%s': %w", dst, err)
	}
	if err = os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove '%s': %w", src, err)
	}
	return nil
}

// removeEmptyTree deletes dir if the migration emptied it. Best effort; a
// directory still holding skipped files stays.
func removeEmptyTree(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			removeEmptyTree(filepath.Join(dir, entry.Name()))
		}
	}
	entries, err = os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
}

// countTaskFiles walks dir counting task files, skipping dot-directories.
func countTaskFiles(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Count what is readable.
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), TaskFileExt) && !strings.HasPrefix(d.Name(), ".") {
			count++
		}
		return nil
	})
	return count
}

// gitRemoteURL extracts a remote URL from the project's .git/config,
// preferring the origin remote and otherwise taking the first remote seen.
func gitRemoteURL(projectDir string) string {
	data, err := os.ReadFile(filepath.Join(projectDir, ".git", "config")) // #nosec G304 -- fixed path under the project directory
	if err != nil {
		return ""
	}

	var current, first string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, `[remote "`):
			current = strings.TrimSuffix(strings.TrimPrefix(line, `[remote "`), `"]`)
		case strings.HasPrefix(line, "["):
			current = ""
		case current != "" && strings.HasPrefix(line, "url"):
			_, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			url := strings.TrimSpace(value)
			if url == "" {
				continue
			}
			if current == "origin" {
				return url
			}
			if first == "" {
				first = url
			}
		}
	}
	return first
}

// ownerRepoFromURL reduces a git remote URL to "owner_repo". Handles both
// scheme URLs (https://github.com/owner/repo.git) and scp-like syntax
// (git@github.com:owner/repo.git).
func ownerRepoFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ".git")

	var path string
	if idx := strings.Index(raw, "://"); idx >= 0 {
		rest := raw[idx+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return ""
		}
		path = rest[slash+1:]
	} else if host, p, ok := strings.Cut(raw, ":"); ok && strings.Contains(host, "@") {
		path = p
	} else {
		return ""
	}

	segs := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(segs) >= 2:
		return segs[len(segs)-2] + "_" + segs[len(segs)-1]
	case len(segs) == 1 && segs[0] != "":
		return segs[0]
	default:
		return ""
	}
}

// sanitizeNamespace replaces filesystem-hostile characters so the namespace
// is always a safe single directory name.
func sanitizeNamespace(name string) string {
	safe := namespaceCharRegex.ReplaceAllString(name, "_")
	safe = strings.Trim(safe, "._")
	if safe == "" {
		return DefaultNamespace
	}
	return safe
}
