package sop

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/hive/internal/workflow"
)

const deploySOP = `name: deploy
steps:
  - name: build
    tool: shell
    args:
      command: "make build"
  - name: announce
    tool: log
    args:
      message: "built {{ steps.build }}"
    on_failure: continue
`

func writeSOP(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeSOP(t, dir, "deploy.yaml", deploySOP)

	s, err := LoadFile(filepath.Join(dir, "deploy.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Name != "deploy" {
		t.Errorf("Name = %q", s.Name)
	}
	if len(s.Steps) != 2 {
		t.Fatalf("Steps = %d, want 2", len(s.Steps))
	}
	if s.Steps[0].Tool != "shell" || s.Steps[0].Args["command"] != "make build" {
		t.Errorf("first step = %+v", s.Steps[0])
	}
	if s.Steps[1].OnFailure != workflow.FailureContinue {
		t.Errorf("OnFailure = %q", s.Steps[1].OnFailure)
	}
}

func TestLoadFileNameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	writeSOP(t, dir, "triage.yml", "steps:\n  - tool: log\n    args:\n      message: hi\n")

	s, err := LoadFile(filepath.Join(dir, "triage.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "triage" {
		t.Errorf("Name = %q, want triage", s.Name)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeSOP(t, dir, "deploy.yaml", deploySOP)
	writeSOP(t, dir, "triage.yml", "name: triage\nsteps:\n  - tool: log\n")
	writeSOP(t, dir, "notes.txt", "not a sop")

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "deploy" || names[1] != "triage" {
		t.Errorf("Names = %v, want [deploy triage]", names)
	}
}

func TestLoadDirMissingIsNotError(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("missing dir returned error: %v", err)
	}
}

func TestLoadDirInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeSOP(t, dir, "bad.yaml", "name: bad\nsteps: []\n")

	r := NewRegistry()
	if err := r.LoadDir(dir); err == nil {
		t.Error("step-less sop loaded without error")
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&workflow.SOP{
		Name:  "x",
		Steps: []workflow.Step{{Tool: "log"}},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Get("x"); err != nil {
		t.Errorf("Get(x): %v", err)
	}

	_, err := r.Get("ghost")
	var nerr *NotFoundError
	if !errors.As(err, &nerr) || nerr.Name != "ghost" {
		t.Errorf("Get(ghost) = %v, want NotFoundError", err)
	}
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	s := &workflow.SOP{Name: "x", Steps: []workflow.Step{{Tool: "log"}}}
	if err := r.Register(s); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(s); err == nil {
		t.Error("duplicate name registered")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sop     *workflow.SOP
		wantErr bool
	}{
		{"valid", &workflow.SOP{Name: "a", Steps: []workflow.Step{{Tool: "log"}}}, false},
		{"nil", nil, true},
		{"unnamed", &workflow.SOP{Steps: []workflow.Step{{Tool: "log"}}}, true},
		{"no steps", &workflow.SOP{Name: "a"}, true},
		{"toolless step", &workflow.SOP{Name: "a", Steps: []workflow.Step{{Name: "x"}}}, true},
		{"negative retries", &workflow.SOP{Name: "a", Steps: []workflow.Step{{Tool: "log", RetryCount: -1}}}, true},
		{"bad policy", &workflow.SOP{Name: "a", Steps: []workflow.Step{{Tool: "log", OnFailure: "explode"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sop)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
