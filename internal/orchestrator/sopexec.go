package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aristath/hive/internal/events"
	"github.com/aristath/hive/internal/queue"
	"github.com/aristath/hive/internal/sop"
	"github.com/aristath/hive/internal/workflow"
)

// RunRecorder persists workflow run outcomes; persistence.SQLiteStore
// implements it.
type RunRecorder interface {
	SaveRun(ctx context.Context, sopName, taskID string, startedAt time.Time, res *workflow.Result) (string, error)
}

// SOPExecutor routes tasks that name an SOP in their scope through the
// workflow engine; everything else goes to the fallback executor. Step
// outcomes are published as workflow events and the run is recorded.
type SOPExecutor struct {
	sops     *sop.Registry
	tools    workflow.ToolResolver
	fallback Executor
	bus      *events.Bus
	store    RunRecorder
}

// NewSOPExecutor creates the routing executor. Bus and store are optional;
// fallback may be nil when every task is expected to carry an SOP.
func NewSOPExecutor(sops *sop.Registry, tools workflow.ToolResolver, fallback Executor, bus *events.Bus, store RunRecorder) *SOPExecutor {
	return &SOPExecutor{
		sops:     sops,
		tools:    tools,
		fallback: fallback,
		bus:      bus,
		store:    store,
	}
}

// Execute runs the task's SOP when its scope names one under the "sop" key.
// The remaining scope entries become the run's parameters, alongside the task
// description and workspace path.
func (e *SOPExecutor) Execute(ctx context.Context, task *queue.Task, workDir string) (string, error) {
	name, ok := task.Scope["sop"].(string)
	if !ok || name == "" {
		if e.fallback == nil {
			return "", fmt.Errorf("task %q names no sop and no fallback executor is configured", task.ID)
		}
		return e.fallback.Execute(ctx, task, workDir)
	}

	doc, err := e.sops.Get(name)
	if err != nil {
		return "", fmt.Errorf("task %q: %w", task.ID, err)
	}

	params := make(map[string]any, len(task.Scope)+2)
	for key, value := range task.Scope {
		if key != "sop" {
			params[key] = value
		}
	}
	params["task"] = task.Description
	if workDir != "" {
		params["workdir"] = workDir
	}

	engine := workflow.NewEngine(e.tools)
	if e.bus != nil {
		engine.Notify = func(entry workflow.StepLog) {
			e.bus.Publish(events.WorkflowStep{
				ID:        task.ID,
				SOP:       name,
				Step:      entry.Step,
				Status:    entry.Status,
				Timestamp: entry.Timestamp,
			})
		}
	}

	startedAt := time.Now().UTC()
	res := engine.Execute(ctx, *doc, params)

	if e.store != nil {
		if _, serr := e.store.SaveRun(ctx, name, task.ID, startedAt, &res); serr != nil {
			log.Printf("WARNING: recording sop run for task %q: %v", task.ID, serr)
		}
	}

	if !res.Success {
		return "", fmt.Errorf("sop %q for task %q: %w", name, task.ID, res.Err)
	}
	return renderOutput(res.Output), nil
}

// renderOutput flattens the SOP's final output into the task result string.
func renderOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
