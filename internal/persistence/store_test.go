package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aristath/hive/internal/negotiation"
	"github.com/aristath/hive/internal/workflow"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dep := TaskRecord{ID: "t1", Type: "development", Description: "base", Priority: 1, State: "completed"}
	if err := store.SaveTask(ctx, dep); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	rec := TaskRecord{
		ID:          "t2",
		Type:        "review",
		Description: "review base",
		AgentRole:   "reviewer",
		Priority:    2,
		Retries:     1,
		State:       "pending",
		DependsOn:   []string{"t1"},
	}
	if err := store.SaveTask(ctx, rec); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	got, err := store.GetTask(ctx, "t2")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Description != "review base" || got.AgentRole != "reviewer" || got.Priority != 2 {
		t.Errorf("GetTask = %+v", got)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0] != "t1" {
		t.Errorf("DependsOn = %v", got.DependsOn)
	}
}

func TestSaveTaskIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := TaskRecord{ID: "t1", Type: "development", Description: "v1", State: "pending"}
	if err := store.SaveTask(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Description = "v2"
	rec.State = "running"
	if err := store.SaveTask(ctx, rec); err != nil {
		t.Fatalf("second SaveTask: %v", err)
	}

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "v2" || got.State != "running" {
		t.Errorf("after upsert: %+v", got)
	}

	all, err := store.ListTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("ListTasks = %d rows, want 1", len(all))
	}
}

func TestUpdateTaskState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveTask(ctx, TaskRecord{ID: "t1", Type: "development", Description: "d", State: "pending"}); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateTaskState(ctx, "t1", "failed", 3, "", errors.New("agent crashed")); err != nil {
		t.Fatalf("UpdateTaskState: %v", err)
	}

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "failed" || got.Attempts != 3 || got.Error != "agent crashed" {
		t.Errorf("after update: %+v", got)
	}

	if err := store.UpdateTaskState(ctx, "ghost", "failed", 1, "", nil); err == nil {
		t.Error("update of unknown task succeeded")
	}
}

func TestSaveDecisionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := &negotiation.Decision{
		TaskID: "t1",
		Topic:  "build a parser",
		Winner: negotiation.Bid{AgentID: "value", Cost: 30, Quality: 80},
		Candidates: []negotiation.Bid{
			{AgentID: "value", Cost: 30, Quality: 80},
			{AgentID: "pricey", Cost: 90, Quality: 90},
		},
		DecidedAt: time.Now().UTC(),
	}
	if err := store.SaveDecision(ctx, d); err != nil {
		t.Fatalf("SaveDecision: %v", err)
	}

	decisions, err := store.DecisionsForTask(ctx, "t1")
	if err != nil {
		t.Fatalf("DecisionsForTask: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	got := decisions[0]
	if got.Winner.AgentID != "value" || got.Winner.Quality != 80 {
		t.Errorf("winner = %+v", got.Winner)
	}
	if len(got.Candidates) != 2 {
		t.Errorf("candidates = %d", len(got.Candidates))
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res := &workflow.Result{
		Success: true,
		Output:  map[string]any{"status": float64(200)},
		Logs: []workflow.StepLog{
			{Step: "fetch", Status: workflow.StatusSuccess, Timestamp: time.Now().UTC()},
			{Step: "announce", Status: workflow.StatusSkipped, Timestamp: time.Now().UTC()},
		},
	}

	runID, err := store.SaveRun(ctx, "deploy", "t1", time.Now().UTC(), res)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if runID == "" {
		t.Fatal("empty run id")
	}

	rec, logs, err := store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.SOP != "deploy" || !rec.Success || rec.TaskID != "t1" {
		t.Errorf("run = %+v", rec)
	}
	if !strings.Contains(rec.Output, "200") {
		t.Errorf("Output = %q", rec.Output)
	}
	if len(logs) != 2 || logs[0].Step != "fetch" || logs[1].Status != workflow.StatusSkipped {
		t.Errorf("logs = %+v", logs)
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok := &workflow.Result{Success: true}
	failed := &workflow.Result{Success: false, Err: errors.New("step exploded")}

	if _, err := store.SaveRun(ctx, "deploy", "", time.Now().Add(-time.Hour), ok); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(ctx, "deploy", "", time.Now(), failed); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(ctx, "triage", "", time.Now(), ok); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, "deploy")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Success || runs[0].Error != "step exploded" {
		t.Errorf("newest run = %+v", runs[0])
	}

	all, err := store.ListRuns(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all runs = %d, want 3", len(all))
	}
}
