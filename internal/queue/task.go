package queue

import "time"

// State represents the current lifecycle state of a task.
type State int

const (
	StatePending   State = iota // Waiting for dependencies or selection
	StateRunning                // Claimed by a dispatcher
	StateCompleted              // Finished successfully
	StateFailed                 // Retry budget exhausted or dependency cascade
)

// String returns the lowercase name used in logs and persistence.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// TaskType classifies a task. Admission rejects anything outside this set.
type TaskType string

const (
	TypeDevelopment   TaskType = "development"
	TypeResearch      TaskType = "research"
	TypeReview        TaskType = "review"
	TypeTesting       TaskType = "testing"
	TypeDocumentation TaskType = "documentation"
	TypeAnalysis      TaskType = "analysis"
)

// ValidTypes lists every admissible task type.
var ValidTypes = []TaskType{
	TypeDevelopment,
	TypeResearch,
	TypeReview,
	TypeTesting,
	TypeDocumentation,
	TypeAnalysis,
}

func validType(t TaskType) bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Task represents a unit of work in the queue.
type Task struct {
	ID          string         // Unique identifier (generated when empty)
	Type        TaskType       // One of ValidTypes
	Description string         // Human-readable instruction for the agent
	AgentRole   string         // Key into config.Agents (set by negotiation)
	Scope       map[string]any // Opaque caller data passed through to the agent
	Resources   []string       // Resource keys this task mutates (for locking)
	Priority    int            // Lower value = more urgent
	Timeout     time.Duration  // Per-attempt execution budget (0 = none)
	Retries     int            // Max retry budget; attempts never exceed Retries+1
	DependsOn   []string       // Task IDs that must complete first

	state    State
	attempts int
	result   string
	err      error
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// Attempts returns how many times the task has failed so far.
func (t *Task) Attempts() int { return t.attempts }

// Result returns the recorded output of a completed task.
func (t *Task) Result() string { return t.result }

// Err returns the terminal error of a failed task.
func (t *Task) Err() error { return t.err }

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}

	cp := *t
	if t.DependsOn != nil {
		cp.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Resources != nil {
		cp.Resources = append([]string(nil), t.Resources...)
	}
	if t.Scope != nil {
		cp.Scope = make(map[string]any, len(t.Scope))
		for k, v := range t.Scope {
			cp.Scope[k] = v
		}
	}
	return &cp
}
