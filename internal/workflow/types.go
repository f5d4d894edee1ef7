package workflow

import "time"

// SOP is a named, ordered list of tool-invocation steps. Immutable once
// loaded; the sop package is responsible for loading and validating them.
type SOP struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step describes one tool invocation within a SOP.
type Step struct {
	Name       string         `yaml:"name" json:"name"`                   // Context key for the output (defaults to Tool)
	Tool       string         `yaml:"tool" json:"tool"`                   // Key into the tool registry
	Args       map[string]any `yaml:"args" json:"args"`                   // Template object resolved against the context
	Condition  string         `yaml:"condition" json:"condition"`         // Optional template condition; falsy skips the step
	RetryCount int            `yaml:"retry_count" json:"retry_count"`     // Extra attempts after the first failure (default 0)
	OnFailure  string         `yaml:"on_failure" json:"on_failure"`       // "continue" or "abort" (default abort)
}

// Failure policies.
const (
	FailureContinue = "continue"
	FailureAbort    = "abort"
)

// label returns the key under which the step's output is stored.
func (s Step) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Tool
}

// Step log statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// StepLog records the outcome of one step.
type StepLog struct {
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of one SOP run. Output is the last successful step's
// (possibly JSON-parsed) output. Err is typed: errors.As distinguishes
// ToolNotFoundError from RetryExhaustedError.
type Result struct {
	Success bool
	Output  any
	Err     error
	Logs    []StepLog
}
