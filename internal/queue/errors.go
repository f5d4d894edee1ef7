package queue

import "fmt"

// ValidationError reports a task rejected at admission: unknown type,
// duplicate ID, or a malformed field. Callers branch with errors.As.
type ValidationError struct {
	TaskID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task %q: %s", e.TaskID, e.Reason)
}

// NotFoundError reports an operation against an unknown task ID.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

// StateError reports an operation invalid for the task's current state,
// e.g. completing a task that was never claimed.
type StateError struct {
	TaskID string
	State  State
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s task %q in state %s", e.Op, e.TaskID, e.State)
}

// DependencyError is recorded as the terminal error of tasks failed by the
// dependency cascade. The dependent never ran, so no retry was consumed.
type DependencyError struct {
	TaskID string
	DepID  string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %q skipped: dependency %q failed", e.TaskID, e.DepID)
}
