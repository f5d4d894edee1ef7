// Package workspace hands each running task an isolated scratch directory so
// concurrent agents never trample each other's files. Directories live under
// one root and are reclaimed when the task finishes or goes stale.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Info describes one task workspace.
type Info struct {
	Path      string
	TaskID    string
	CreatedAt time.Time
}

// Manager creates and reclaims per-task directories under Root.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at root. An empty root defaults to
// ".hive/workspaces".
func NewManager(root string) *Manager {
	if root == "" {
		root = filepath.Join(".hive", "workspaces")
	}
	return &Manager{root: root}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// Create makes a fresh directory for the task. An existing directory for the
// same task id is an error; the caller must clean up before retrying with a
// new workspace.
func (m *Manager) Create(taskID string) (*Info, error) {
	if taskID == "" {
		return nil, fmt.Errorf("workspace needs a task id")
	}

	path := filepath.Join(m.root, sanitize(taskID))
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("workspace for task %q already exists at %s", taskID, path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace for task %q: %w", taskID, err)
	}

	// Marker ties the directory back to its task even after a rename-unsafe
	// sanitize.
	marker := filepath.Join(path, ".task")
	if err := os.WriteFile(marker, []byte(taskID+"\n"), 0o644); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("writing workspace marker: %w", err)
	}

	return &Info{Path: path, TaskID: taskID, CreatedAt: time.Now()}, nil
}

// Cleanup removes the task's workspace directory and everything in it.
func (m *Manager) Cleanup(info *Info) error {
	if info == nil || info.Path == "" {
		return nil
	}
	if err := os.RemoveAll(info.Path); err != nil {
		return fmt.Errorf("removing workspace %s: %w", info.Path, err)
	}
	return nil
}

// List returns the workspaces currently on disk.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading workspace root: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, entry.Name())

		taskID := entry.Name()
		if raw, err := os.ReadFile(filepath.Join(path, ".task")); err == nil {
			taskID = strings.TrimSpace(string(raw))
		}

		createdAt := time.Time{}
		if fi, err := entry.Info(); err == nil {
			createdAt = fi.ModTime()
		}
		infos = append(infos, Info{Path: path, TaskID: taskID, CreatedAt: createdAt})
	}
	return infos, nil
}

// Prune removes workspaces older than maxAge, returning the task ids it
// reclaimed. Stale workspaces accumulate when a run is killed mid-task.
func (m *Manager) Prune(maxAge time.Duration) ([]string, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var pruned []string
	for _, info := range infos {
		if info.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(info.Path); err != nil {
			return pruned, fmt.Errorf("pruning workspace %s: %w", info.Path, err)
		}
		pruned = append(pruned, info.TaskID)
	}
	return pruned, nil
}

// sanitize maps a task id to a safe directory name.
func sanitize(taskID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, taskID)
}
