// Package sop loads standard operating procedures from YAML files and serves
// them to the workflow engine by name. An SOP file is a workflow.SOP document;
// the registry validates each one at load time so execution never trips over a
// malformed step.
package sop

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aristath/hive/internal/workflow"
)

// NotFoundError is returned when no SOP with the requested name is registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sop %q not found", e.Name)
}

// Registry holds validated SOPs keyed by name.
type Registry struct {
	mu   sync.RWMutex
	sops map[string]*workflow.SOP
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sops: make(map[string]*workflow.SOP)}
}

// Register adds a validated SOP. Duplicate names are rejected so two files
// cannot silently shadow each other.
func (r *Registry) Register(s *workflow.SOP) error {
	if err := Validate(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sops[s.Name]; exists {
		return fmt.Errorf("sop %q already registered", s.Name)
	}
	r.sops[s.Name] = s
	return nil
}

// Get returns the SOP with the given name.
func (r *Registry) Get(name string) (*workflow.SOP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sops[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return s, nil
}

// Names returns the registered SOP names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sops))
	for name := range r.sops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile parses one YAML SOP document. A missing name defaults to the file
// name without extension.
func LoadFile(path string) (*workflow.SOP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sop file: %w", err)
	}

	var s workflow.SOP
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid sop in %s: %w", path, err)
	}
	return &s, nil
}

// LoadDir loads every .yaml/.yml file in dir into the registry. A missing
// directory is not an error; an invalid file is.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading sop directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		s, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks structural requirements: a name, at least one step, a tool
// on every step, non-negative retry counts, and a known failure policy.
func Validate(s *workflow.SOP) error {
	if s == nil {
		return fmt.Errorf("sop is nil")
	}
	if s.Name == "" {
		return fmt.Errorf("sop has no name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("sop %q has no steps", s.Name)
	}

	for i, step := range s.Steps {
		if step.Tool == "" {
			return fmt.Errorf("sop %q: step %d has no tool", s.Name, i)
		}
		if step.RetryCount < 0 {
			return fmt.Errorf("sop %q: step %d has negative retry_count", s.Name, i)
		}
		switch step.OnFailure {
		case "", workflow.FailureContinue, workflow.FailureAbort:
		default:
			return fmt.Errorf("sop %q: step %d has unknown on_failure %q", s.Name, i, step.OnFailure)
		}
	}
	return nil
}
