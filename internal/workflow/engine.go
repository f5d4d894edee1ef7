package workflow

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// Tool executes one named operation. Implementations must surface failures as
// returned errors so the engine's retry logic can catch them.
type Tool interface {
	Run(ctx context.Context, args map[string]any) (any, error)
}

// ToolResolver looks tools up by name. The tools package's Registry
// implements it; tests inject small fakes.
type ToolResolver interface {
	Resolve(name string) (Tool, bool)
}

// Engine interprets SOP documents against a tool registry. Steps run
// strictly sequentially: later steps may reference earlier outputs through
// the run context, so there is no cross-step parallelism to exploit safely.
type Engine struct {
	tools ToolResolver

	// Notify, when set, observes each step log as it is recorded. Called
	// synchronously from Execute; keep it fast.
	Notify func(StepLog)
}

// NewEngine creates an engine bound to a tool resolver.
func NewEngine(tools ToolResolver) *Engine {
	return &Engine{tools: tools}
}

// Execute runs a SOP with the given parameters and returns the structured
// outcome. The run aborts immediately on an unknown tool name; per-step tool
// failures consume the step's retry budget first and then either abort the
// run or, with OnFailure "continue", move on to the next step.
func (e *Engine) Execute(ctx context.Context, sop SOP, params map[string]any) Result {
	ec := NewContext(params)
	logs := make([]StepLog, 0, len(sop.Steps))
	var lastOutput any

	for _, step := range sop.Steps {
		name := step.label()

		if step.Condition != "" && !evalCondition(step.Condition, ec) {
			logs = e.record(logs, StepLog{
				Step:      name,
				Status:    StatusSkipped,
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		tool, ok := e.tools.Resolve(step.Tool)
		if !ok {
			err := &ToolNotFoundError{Tool: step.Tool, Step: name}
			logs = e.record(logs, StepLog{
				Step:      name,
				Status:    StatusFailure,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			return Result{Success: false, Err: err, Logs: logs}
		}

		args, _ := Resolve(step.Args, ec).(map[string]any)

		output, err := e.runWithRetry(ctx, tool, args, step.RetryCount)
		if err != nil {
			stepErr := &RetryExhaustedError{Step: name, Attempts: step.RetryCount + 1, Cause: err}
			logs = e.record(logs, StepLog{
				Step:      name,
				Status:    StatusFailure,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			if step.OnFailure == FailureContinue {
				log.Printf("WARNING: step %q failed, continuing per failure policy: %v", name, err)
				continue
			}
			return Result{Success: false, Err: stepErr, Logs: logs}
		}

		output = autoParse(output)
		ec.Steps[name] = output
		lastOutput = output

		logs = e.record(logs, StepLog{
			Step:      name,
			Status:    StatusSuccess,
			Output:    output,
			Timestamp: time.Now().UTC(),
		})
	}

	return Result{Success: true, Output: lastOutput, Logs: logs}
}

func (e *Engine) record(logs []StepLog, entry StepLog) []StepLog {
	if e.Notify != nil {
		e.Notify(entry)
	}
	return append(logs, entry)
}

// runWithRetry invokes the tool up to retryCount+1 times.
func (e *Engine) runWithRetry(ctx context.Context, tool Tool, args map[string]any, retryCount int) (any, error) {
	var output any
	var err error

	for attempt := 0; attempt <= retryCount; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		output, err = tool.Run(ctx, args)
		if err == nil {
			return output, nil
		}
	}
	return nil, err
}

// autoParse upgrades JSON-looking string outputs to structured values so
// later steps can address into them. Parse failures fall back silently to
// the raw string.
func autoParse(output any) any {
	s, ok := output.(string)
	if !ok {
		return output
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return output
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return output
	}
	return parsed
}
