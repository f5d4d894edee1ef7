package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateAndCleanup(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "ws"))

	info, err := m.Create("task-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.TaskID != "task-1" {
		t.Errorf("TaskID = %q", info.TaskID)
	}
	if _, err := os.Stat(info.Path); err != nil {
		t.Fatalf("workspace dir missing: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(info.Path, ".task"))
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if string(raw) != "task-1\n" {
		t.Errorf("marker = %q", raw)
	}

	if err := m.Cleanup(info); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(info.Path); !os.IsNotExist(err) {
		t.Error("workspace dir survived cleanup")
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "ws"))

	if _, err := m.Create("task-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("task-1"); err == nil {
		t.Error("duplicate workspace created")
	}
	if _, err := m.Create(""); err == nil {
		t.Error("empty task id accepted")
	}
}

func TestCreateSanitizesTaskID(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	m := NewManager(root)

	info, err := m.Create("fix bug #7: crash/loop")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Dir(info.Path) != root {
		t.Errorf("workspace escaped root: %s", info.Path)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].TaskID != "fix bug #7: crash/loop" {
		t.Errorf("List = %+v, marker should preserve the original id", infos)
	}
}

func TestListEmptyRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "never-created"))

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List on missing root: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List = %d entries", len(infos))
	}
}

func TestPrune(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "ws"))

	stale, err := m.Create("stale")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("fresh"); err != nil {
		t.Fatal(err)
	}

	// Age the stale workspace past the cutoff.
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale.Path, old, old); err != nil {
		t.Fatal(err)
	}

	pruned, err := m.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != "stale" {
		t.Errorf("pruned = %v", pruned)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].TaskID != "fresh" {
		t.Errorf("survivors = %+v", infos)
	}
}
