package queue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"
)

// Queue is an in-memory priority/dependency task queue.
//
// Selection is a linear scan over pending tasks: with the dependency filter in
// the way a heap buys little, and queue sizes here are moderate. Mutations are
// guarded by a mutex, but there is no atomic claim-and-execute primitive
// beyond Next itself; callers running multiple dispatch loops must serialize
// claims through a single dispatcher.
type Queue struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	order      []string            // admission order
	dependents map[string][]string // taskID -> tasks that depend on it
}

// Stats summarizes queue occupancy per state.
type Stats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// Add validates and admits a single task as Pending.
// Tasks with an empty ID are assigned a generated one. Duplicate IDs are
// rejected, not overwritten. Dependencies may reference tasks admitted later;
// Validate catches IDs that never arrive.
func (q *Queue) Add(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.add(t)
}

// AddAll admits a batch of tasks, stopping at the first invalid one.
// Tasks admitted before the failure remain in the queue.
func (q *Queue) AddAll(ts []*Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range ts {
		if err := q.add(t); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) add(t *Task) error {
	if t == nil {
		return &ValidationError{Reason: "nil task"}
	}
	if !validType(t.Type) {
		return &ValidationError{TaskID: t.ID, Reason: fmt.Sprintf("unknown type %q", t.Type)}
	}
	if t.Retries < 0 {
		return &ValidationError{TaskID: t.ID, Reason: "negative retry budget"}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if _, exists := q.tasks[t.ID]; exists {
		return &ValidationError{TaskID: t.ID, Reason: "duplicate task ID"}
	}

	t.state = StatePending
	t.attempts = 0

	q.tasks[t.ID] = t
	q.order = append(q.order, t.ID)
	for _, depID := range t.DependsOn {
		q.dependents[depID] = append(q.dependents[depID], t.ID)
	}
	return nil
}

// Validate checks the dependency graph: every referenced dependency must
// exist and the graph must be acyclic. Returns a topological order of task
// IDs on success.
func (q *Queue) Validate() ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for id, t := range q.tasks {
		for _, depID := range t.DependsOn {
			if _, exists := q.tasks[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range q.order {
		t := q.tasks[id]
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range t.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(q.tasks) {
		var missing []string
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for _, id := range q.order {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Next claims the most urgent eligible task and returns a copy of it, or nil
// when nothing is eligible. Eligible means Pending with every dependency
// Completed. Lowest Priority value wins; ties go to the earlier admission.
// The claimed task is flipped to Running before Next returns.
//
// A nil result does not mean the queue is drained: tasks may be blocked on
// running dependencies. Callers distinguish the two with Done.
func (q *Queue) Next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *Task
	for _, id := range q.order {
		t := q.tasks[id]
		if t.state != StatePending || !q.depsCompleted(t) {
			continue
		}
		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}

	if best == nil {
		return nil
	}

	best.state = StateRunning
	return cloneTask(best)
}

func (q *Queue) depsCompleted(t *Task) bool {
	for _, depID := range t.DependsOn {
		dep, exists := q.tasks[depID]
		if !exists || dep.state != StateCompleted {
			return false
		}
	}
	return true
}

// Complete moves a Running task to Completed and records its result.
func (q *Queue) Complete(id, result string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, exists := q.tasks[id]
	if !exists {
		return &NotFoundError{TaskID: id}
	}
	if t.state != StateRunning {
		return &StateError{TaskID: id, State: t.state, Op: "complete"}
	}

	t.state = StateCompleted
	t.result = result
	return nil
}

// Fail records a failed attempt for a Running task. The task's own Retries
// field is the single source of truth for retry eligibility. When attempts
// remain the task returns to Pending and Fail reports true (will retry);
// otherwise it is terminally Failed and Fail reports false.
func (q *Queue) Fail(id string, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, exists := q.tasks[id]
	if !exists {
		return false, &NotFoundError{TaskID: id}
	}
	if t.state != StateRunning {
		return false, &StateError{TaskID: id, State: t.state, Op: "fail"}
	}

	t.attempts++
	if t.attempts <= t.Retries {
		t.state = StatePending
		return true, nil
	}

	t.state = StateFailed
	t.err = cause
	return false, nil
}

// Blocked reports whether any direct dependency of the task is permanently
// Failed. A dependency still Pending or Running does not count: the task is
// merely not yet eligible.
func (q *Queue) Blocked(id string) (bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, exists := q.tasks[id]
	if !exists {
		return false, &NotFoundError{TaskID: id}
	}
	for _, depID := range t.DependsOn {
		if dep, ok := q.tasks[depID]; ok && dep.state == StateFailed {
			return true, nil
		}
	}
	return false, nil
}

// SkipBlocked cascades permanent failure: every task whose dependency chain
// contains a Failed task is itself marked Failed, transitively, without
// consuming its retry budget — the dependent never got a chance to run, so the
// failure is not its own. Returns the IDs of all newly failed tasks in
// admission order.
func (q *Queue) SkipBlocked() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Seed with already-failed tasks, then propagate along the dependents map.
	failedBy := make(map[string]string) // doomed taskID -> failed dependency
	frontier := make([]string, 0)
	for _, id := range q.order {
		if q.tasks[id].state == StateFailed {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		depID := frontier[0]
		frontier = frontier[1:]

		for _, childID := range q.dependents[depID] {
			child := q.tasks[childID]
			if child == nil || child.state != StatePending {
				continue
			}
			if _, done := failedBy[childID]; done {
				continue
			}
			failedBy[childID] = depID
			frontier = append(frontier, childID)
		}
	}

	skipped := make([]string, 0, len(failedBy))
	for _, id := range q.order {
		depID, doomed := failedBy[id]
		if !doomed {
			continue
		}
		t := q.tasks[id]
		t.state = StateFailed
		t.err = &DependencyError{TaskID: id, DepID: depID}
		skipped = append(skipped, id)
	}
	return skipped
}

// Cancel removes a Pending task entirely. Running tasks cannot be cancelled;
// Cancel reports false for them and for unknown IDs.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, exists := q.tasks[id]
	if !exists || t.state != StatePending {
		return false
	}

	delete(q.tasks, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	for _, depID := range t.DependsOn {
		deps := q.dependents[depID]
		for i, d := range deps {
			if d == id {
				q.dependents[depID] = append(deps[:i], deps[i+1:]...)
				break
			}
		}
	}
	return true
}

// Get returns a copy of the task with the given ID.
func (q *Queue) Get(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, exists := q.tasks[id]
	if !exists {
		return nil, false
	}
	return cloneTask(t), true
}

// Tasks returns copies of all tasks in admission order.
func (q *Queue) Tasks() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, cloneTask(q.tasks[id]))
	}
	return out
}

// Stats returns per-state occupancy counts.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	st := Stats{Total: len(q.tasks)}
	for _, t := range q.tasks {
		switch t.state {
		case StatePending:
			st.Pending++
		case StateRunning:
			st.Running++
		case StateCompleted:
			st.Completed++
		case StateFailed:
			st.Failed++
		}
	}
	return st
}

// Results returns the recorded outputs of all Completed tasks.
func (q *Queue) Results() map[string]string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]string)
	for id, t := range q.tasks {
		if t.state == StateCompleted {
			out[id] = t.result
		}
	}
	return out
}

// Failures returns the terminal errors of all Failed tasks.
func (q *Queue) Failures() map[string]error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]error)
	for id, t := range q.tasks {
		if t.state == StateFailed {
			out[id] = t.err
		}
	}
	return out
}

// Done reports whether no Pending or Running tasks remain.
// An empty queue is done.
func (q *Queue) Done() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, t := range q.tasks {
		if t.state == StatePending || t.state == StateRunning {
			return false
		}
	}
	return true
}
