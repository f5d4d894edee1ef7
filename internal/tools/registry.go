// Package tools provides the named tool registry the workflow engine and
// agents dispatch through. Tools are registered once at startup and looked up
// by name; the registry is safe for concurrent readers.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/hive/internal/workflow"
)

// Tool is a named operation. Execution failures must be returned, not
// swallowed, so callers' retry logic can observe them.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, args map[string]any) (any, error)
}

// NotFoundError reports a lookup of an unregistered tool name.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Tool)
}

// Registry maps tool names to implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name is rejected: two tools fighting
// over one name is a wiring bug.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Name() == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, &NotFoundError{Tool: name}
	}
	return t, nil
}

// Execute looks up and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, args)
}

// Resolve implements workflow.ToolResolver.
func (r *Registry) Resolve(name string) (workflow.Tool, bool) {
	t, err := r.Get(name)
	if err != nil {
		return nil, false
	}
	return t, true
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, args map[string]any) (any, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Run(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}
