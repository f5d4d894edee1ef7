// Package orchestrator drives the task queue: it claims eligible tasks,
// executes them concurrently through provider-backed agents, cascades
// dependency failures, and checkpoints every state change.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/hive/internal/events"
	"github.com/aristath/hive/internal/persistence"
	"github.com/aristath/hive/internal/queue"
	"github.com/aristath/hive/internal/workspace"
)

// Checkpointer persists task snapshots as the run progresses. Checkpoint
// failures are logged, never fatal: losing a snapshot is better than losing
// the run.
type Checkpointer interface {
	SaveTask(ctx context.Context, rec persistence.TaskRecord) error
}

// Config wires the runner's collaborators. Everything except the executor is
// optional.
type Config struct {
	Concurrency    int // max tasks in flight, default 2
	Workspaces     *workspace.Manager
	Store          Checkpointer
	Bus            *events.Bus
	Clarifications *ClarificationChannel
}

// Runner executes a queue to completion.
type Runner struct {
	queue    *queue.Queue
	locks    *queue.ResourceLocks
	executor Executor
	cfg      Config
}

// NewRunner creates a Runner over the queue.
func NewRunner(q *queue.Queue, executor Executor, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Runner{
		queue:    q,
		locks:    queue.NewResourceLocks(),
		executor: executor,
		cfg:      cfg,
	}
}

// Run validates the queue and executes it until no task is Pending or
// Running. Failed tasks and their dependency cascades are reflected in the
// queue; the returned map holds the results of every completed task.
func (r *Runner) Run(ctx context.Context) (map[string]string, error) {
	if _, err := r.queue.Validate(); err != nil {
		return nil, fmt.Errorf("queue validation: %w", err)
	}
	for _, t := range r.queue.Tasks() {
		r.checkpoint(ctx, t.ID)
	}

	if r.cfg.Clarifications != nil {
		r.cfg.Clarifications.Start(ctx)
		defer r.cfg.Clarifications.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.queue.Results(), err
		}

		// Claim everything currently eligible; the errgroup limit bounds how
		// many actually run at once.
		var wave []*queue.Task
		for {
			t := r.queue.Next()
			if t == nil {
				break
			}
			wave = append(wave, t)
		}

		if len(wave) == 0 {
			// Nothing eligible and nothing running: pending tasks, if any,
			// are doomed by failed dependencies. Cascade and finish.
			r.skipBlocked(ctx)
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for _, t := range wave {
			g.Go(func() error {
				r.execute(gctx, t)
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return r.queue.Results(), err
		}
		r.skipBlocked(ctx)
		r.publishProgress()
	}

	return r.queue.Results(), nil
}

// execute runs one claimed task attempt end to end. Errors land in the queue
// as failed attempts, never escape as Go errors: a task failure must not
// abort sibling tasks.
func (r *Runner) execute(ctx context.Context, t *queue.Task) {
	attempt := t.Attempts() + 1
	r.publish(events.TaskStarted{ID: t.ID, AgentRole: t.AgentRole, Attempt: attempt, Timestamp: time.Now()})
	started := time.Now()

	var workDir string
	var ws *workspace.Info
	if r.cfg.Workspaces != nil {
		var err error
		ws, err = r.cfg.Workspaces.Create(t.ID)
		if err != nil {
			r.fail(ctx, t, fmt.Errorf("creating workspace: %w", err))
			return
		}
		workDir = ws.Path
		defer func() {
			if err := r.cfg.Workspaces.Cleanup(ws); err != nil {
				log.Printf("WARNING: cleaning workspace for task %q: %v", t.ID, err)
			}
		}()
	}

	r.locks.AcquireAll(t.Resources)
	defer r.locks.ReleaseAll(t.Resources)

	execCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	result, err := r.executor.Execute(execCtx, t, workDir)
	if err != nil {
		r.fail(ctx, t, err)
		return
	}

	if err := r.queue.Complete(t.ID, result); err != nil {
		log.Printf("ERROR: completing task %q: %v", t.ID, err)
		return
	}
	r.publish(events.TaskCompleted{ID: t.ID, Result: result, Duration: time.Since(started), Timestamp: time.Now()})
	r.checkpoint(ctx, t.ID)
}

func (r *Runner) fail(ctx context.Context, t *queue.Task, cause error) {
	retry, err := r.queue.Fail(t.ID, cause)
	if err != nil {
		log.Printf("ERROR: failing task %q: %v", t.ID, err)
		return
	}

	if retry {
		log.Printf("WARNING: task %q attempt %d failed, retrying: %v", t.ID, t.Attempts()+1, cause)
		r.publish(events.TaskRetried{ID: t.ID, Err: cause, Attempt: t.Attempts() + 1, Timestamp: time.Now()})
	} else {
		log.Printf("ERROR: task %q failed permanently: %v", t.ID, cause)
		r.publish(events.TaskFailed{ID: t.ID, Err: cause, Attempts: t.Attempts() + 1, Timestamp: time.Now()})
	}
	r.checkpoint(ctx, t.ID)
}

// skipBlocked cascades permanent failures to dependents and records the
// skips.
func (r *Runner) skipBlocked(ctx context.Context) {
	for _, id := range r.queue.SkipBlocked() {
		depID := ""
		if t, ok := r.queue.Get(id); ok {
			if derr, isDep := t.Err().(*queue.DependencyError); isDep {
				depID = derr.DepID
			}
		}
		r.publish(events.TaskSkipped{ID: id, DepID: depID, Timestamp: time.Now()})
		r.checkpoint(ctx, id)
	}
}

func (r *Runner) publish(e events.Event) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(e)
	}
}

func (r *Runner) publishProgress() {
	if r.cfg.Bus == nil {
		return
	}
	st := r.queue.Stats()
	r.cfg.Bus.Publish(events.QueueProgress{
		Total:     st.Total,
		Pending:   st.Pending,
		Running:   st.Running,
		Completed: st.Completed,
		Failed:    st.Failed,
		Timestamp: time.Now(),
	})
}

func (r *Runner) checkpoint(ctx context.Context, id string) {
	if r.cfg.Store == nil {
		return
	}
	t, ok := r.queue.Get(id)
	if !ok {
		return
	}

	errStr := ""
	if t.Err() != nil {
		errStr = t.Err().Error()
	}
	rec := persistence.TaskRecord{
		ID:          t.ID,
		Type:        string(t.Type),
		Description: t.Description,
		AgentRole:   t.AgentRole,
		Priority:    t.Priority,
		Retries:     t.Retries,
		State:       t.State().String(),
		Attempts:    t.Attempts(),
		Result:      t.Result(),
		Error:       errStr,
		DependsOn:   t.DependsOn,
	}
	if err := r.cfg.Store.SaveTask(ctx, rec); err != nil {
		log.Printf("WARNING: checkpointing task %q: %v", id, err)
	}
}
