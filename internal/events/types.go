// Package events carries runtime notifications from the queue, the runner,
// and the workflow engine to observers such as the TUI and the persistence
// layer. Delivery is channel-based and best-effort.
package events

import "time"

// Event is implemented by every published notification. Topic routes the
// event; TaskID is empty for events not tied to one task.
type Event interface {
	EventType() string
	Topic() string
	TaskID() string
}

// Topics.
const (
	TopicTask        = "task"
	TopicQueue       = "queue"
	TopicNegotiation = "negotiation"
	TopicWorkflow    = "workflow"
)

// Event types.
const (
	EventTypeTaskQueued         = "task.queued"
	EventTypeTaskStarted        = "task.started"
	EventTypeTaskCompleted      = "task.completed"
	EventTypeTaskFailed         = "task.failed"
	EventTypeTaskRetried        = "task.retried"
	EventTypeTaskSkipped        = "task.skipped"
	EventTypeQueueProgress      = "queue.progress"
	EventTypeNegotiationDecided = "negotiation.decided"
	EventTypeWorkflowStep       = "workflow.step"
)

// TaskQueued is published when a task is admitted to the queue.
type TaskQueued struct {
	ID        string
	Type      string
	Priority  int
	Timestamp time.Time
}

func (e TaskQueued) EventType() string { return EventTypeTaskQueued }
func (e TaskQueued) Topic() string     { return TopicTask }
func (e TaskQueued) TaskID() string    { return e.ID }

// TaskStarted is published when a worker claims a task.
type TaskStarted struct {
	ID        string
	AgentRole string
	Attempt   int
	Timestamp time.Time
}

func (e TaskStarted) EventType() string { return EventTypeTaskStarted }
func (e TaskStarted) Topic() string     { return TopicTask }
func (e TaskStarted) TaskID() string    { return e.ID }

// TaskCompleted is published on successful completion.
type TaskCompleted struct {
	ID        string
	Result    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompleted) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompleted) Topic() string     { return TopicTask }
func (e TaskCompleted) TaskID() string    { return e.ID }

// TaskFailed is published when a task exhausts its retries.
type TaskFailed struct {
	ID        string
	Err       error
	Attempts  int
	Timestamp time.Time
}

func (e TaskFailed) EventType() string { return EventTypeTaskFailed }
func (e TaskFailed) Topic() string     { return TopicTask }
func (e TaskFailed) TaskID() string    { return e.ID }

// TaskRetried is published when a failed attempt leaves retries on the table
// and the task returns to the pending pool.
type TaskRetried struct {
	ID        string
	Err       error
	Attempt   int
	Timestamp time.Time
}

func (e TaskRetried) EventType() string { return EventTypeTaskRetried }
func (e TaskRetried) Topic() string     { return TopicTask }
func (e TaskRetried) TaskID() string    { return e.ID }

// TaskSkipped is published when a task is failed transitively because a
// dependency failed.
type TaskSkipped struct {
	ID        string
	DepID     string
	Timestamp time.Time
}

func (e TaskSkipped) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkipped) Topic() string     { return TopicTask }
func (e TaskSkipped) TaskID() string    { return e.ID }

// QueueProgress is a snapshot of queue counters.
type QueueProgress struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Timestamp time.Time
}

func (e QueueProgress) EventType() string { return EventTypeQueueProgress }
func (e QueueProgress) Topic() string     { return TopicQueue }
func (e QueueProgress) TaskID() string    { return "" }

// NegotiationDecided is published after a bidding round settles.
type NegotiationDecided struct {
	ID        string // task the round was about
	Winner    string
	Score     float64
	Simulated bool
	Timestamp time.Time
}

func (e NegotiationDecided) EventType() string { return EventTypeNegotiationDecided }
func (e NegotiationDecided) Topic() string     { return TopicNegotiation }
func (e NegotiationDecided) TaskID() string    { return e.ID }

// WorkflowStep is published after each SOP step finishes.
type WorkflowStep struct {
	ID        string // owning task, empty for ad-hoc runs
	SOP       string
	Step      string
	Status    string
	Timestamp time.Time
}

func (e WorkflowStep) EventType() string { return EventTypeWorkflowStep }
func (e WorkflowStep) Topic() string     { return TopicWorkflow }
func (e WorkflowStep) TaskID() string    { return e.ID }
