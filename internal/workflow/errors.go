package workflow

import "fmt"

// ToolNotFoundError aborts a SOP run immediately: referencing an unknown tool
// is a programmer error in the SOP document, not a per-step failure.
type ToolNotFoundError struct {
	Tool string
	Step string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("step %q references unknown tool %q", e.Step, e.Tool)
}

// RetryExhaustedError reports a step that failed on every attempt.
type RetryExhaustedError struct {
	Step     string
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempt(s): %v", e.Step, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }
