package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/hive/internal/config"
	"github.com/aristath/hive/internal/events"
	"github.com/aristath/hive/internal/llm"
	"github.com/aristath/hive/internal/orchestrator"
	"github.com/aristath/hive/internal/persistence"
	"github.com/aristath/hive/internal/queue"
	"github.com/aristath/hive/internal/sop"
	"github.com/aristath/hive/internal/tools"
	"github.com/aristath/hive/internal/workspace"
)

// Plan is a YAML batch of tasks to delegate in one run.
type Plan struct {
	Tasks []taskSpec `yaml:"tasks"`
}

type taskSpec struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	Role        string         `yaml:"role"`
	SOP         string         `yaml:"sop"`
	Scope       map[string]any `yaml:"scope"`
	Resources   []string       `yaml:"resources"`
	Priority    int            `yaml:"priority"`
	Timeout     string         `yaml:"timeout"`
	Retries     int            `yaml:"retries"`
	DependsOn   []string       `yaml:"depends_on"`
}

// task converts the spec into a queue task. A named SOP lands in the scope
// under the key the SOP executor routes on.
func (s taskSpec) task() (*queue.Task, error) {
	taskType := s.Type
	if taskType == "" {
		taskType = string(queue.TypeDevelopment)
	}

	var timeout time.Duration
	if s.Timeout != "" {
		var err error
		timeout, err = time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("task %q: bad timeout %q: %w", s.ID, s.Timeout, err)
		}
	}

	scope := s.Scope
	if s.SOP != "" {
		if scope == nil {
			scope = make(map[string]any, 1)
		}
		scope["sop"] = s.SOP
	}

	return &queue.Task{
		ID:          s.ID,
		Type:        queue.TaskType(taskType),
		Description: s.Description,
		AgentRole:   s.Role,
		Scope:       scope,
		Resources:   s.Resources,
		Priority:    s.Priority,
		Timeout:     timeout,
		Retries:     s.Retries,
		DependsOn:   s.DependsOn,
	}, nil
}

// loadPlan parses a plan file.
func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("plan %s has no tasks", path)
	}
	return &plan, nil
}

// runPlan executes a plan file end to end: negotiate roles where none is
// given, enqueue everything, and run the queue with both the agent and SOP
// execution paths wired to the bus.
func runPlan(ctx context.Context, cfg *config.Config, pm *llm.ProcessManager, bus *events.Bus, path string) error {
	plan, err := loadPlan(path)
	if err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(ctx, cfg.Runner.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	sops := sop.NewRegistry()
	if err := sops.LoadDir(cfg.Runner.SOPDir); err != nil {
		return fmt.Errorf("loading SOPs: %w", err)
	}
	toolReg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(toolReg); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	factory := orchestrator.NewClientFactory(cfg.Providers, pm)
	delib, closeDelib := deliberator(cfg, factory)
	defer closeDelib()

	q := queue.New()
	summary := make([]string, 0, len(plan.Tasks))
	for _, spec := range plan.Tasks {
		task, err := spec.task()
		if err != nil {
			return err
		}

		// SOP tasks run through the workflow engine and need no agent;
		// agent tasks without an assigned role go through negotiation.
		if !isSOPTask(task) {
			if task.AgentRole == "" {
				task.AgentRole = negotiateRole(ctx, cfg, delib, factory, store, bus, task.ID, task.Description, task.Type)
			}
			if _, ok := cfg.Agents[task.AgentRole]; !ok {
				return fmt.Errorf("task %q: no agent configured for role %q", task.ID, task.AgentRole)
			}
		}

		if err := q.Add(task); err != nil {
			return fmt.Errorf("enqueueing plan: %w", err)
		}
		bus.Publish(events.TaskQueued{
			ID:        task.ID,
			Type:      string(task.Type),
			Priority:  task.Priority,
			Timestamp: time.Now(),
		})
		summary = append(summary, task.Description)
	}

	clar := orchestrator.NewClarificationChannel(2*cfg.Runner.Concurrency, clarificationAnswerer(delib, strings.Join(summary, "; ")))
	agents := orchestrator.NewLLMExecutor(cfg.Agents, factory, clar)
	executor := orchestrator.NewSOPExecutor(sops, toolReg, agents, bus, store)

	runner := orchestrator.NewRunner(q, executor, orchestrator.Config{
		Concurrency:    cfg.Runner.Concurrency,
		Workspaces:     workspace.NewManager(cfg.Runner.WorkspaceDir),
		Store:          store,
		Bus:            bus,
		Clarifications: clar,
	})
	if _, err := runner.Run(ctx); err != nil {
		return err
	}

	if failures := q.Failures(); len(failures) > 0 {
		ids := make([]string, 0, len(failures))
		for id := range failures {
			ids = append(ids, id)
		}
		return fmt.Errorf("%d of %d tasks failed: %s", len(failures), len(plan.Tasks), strings.Join(ids, ", "))
	}
	return nil
}

func isSOPTask(t *queue.Task) bool {
	_, ok := t.Scope["sop"]
	return ok
}
