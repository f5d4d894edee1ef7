package queue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func mustAdd(t *testing.T, q *Queue, task *Task) {
	t.Helper()
	if err := q.Add(task); err != nil {
		t.Fatalf("Add(%q) failed: %v", task.ID, err)
	}
}

// TestAddValidation tests schema validation at admission.
func TestAddValidation(t *testing.T) {
	tests := []struct {
		name        string
		task        *Task
		setup       func(q *Queue)
		wantErr     bool
		errContains string
	}{
		{
			name: "valid task",
			task: &Task{ID: "a", Type: TypeDevelopment, Description: "build it"},
		},
		{
			name:        "unknown type",
			task:        &Task{ID: "a", Type: TaskType("juggling")},
			wantErr:     true,
			errContains: "unknown type",
		},
		{
			name:        "negative retries",
			task:        &Task{ID: "a", Type: TypeReview, Retries: -1},
			wantErr:     true,
			errContains: "negative retry budget",
		},
		{
			name: "duplicate ID rejected",
			task: &Task{ID: "a", Type: TypeTesting},
			setup: func(q *Queue) {
				mustAdd(t, q, &Task{ID: "a", Type: TypeTesting})
			},
			wantErr:     true,
			errContains: "duplicate",
		},
		{
			name:        "nil task",
			task:        nil,
			wantErr:     true,
			errContains: "nil task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			if tt.setup != nil {
				tt.setup(q)
			}

			err := q.Add(tt.task)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestAddGeneratesID verifies empty IDs get a generated unique ID.
func TestAddGeneratesID(t *testing.T) {
	q := New()
	a := &Task{Type: TypeResearch}
	b := &Task{Type: TypeResearch}
	mustAdd(t, q, a)
	mustAdd(t, q, b)

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated IDs")
	}
	if a.ID == b.ID {
		t.Fatalf("generated IDs collide: %q", a.ID)
	}
}

// TestNextPriorityOrdering verifies the lowest priority value wins among
// eligible tasks, with admission order breaking ties.
func TestNextPriorityOrdering(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "low", Type: TypeDevelopment, Priority: 10})
	mustAdd(t, q, &Task{ID: "urgent", Type: TypeDevelopment, Priority: 1})
	mustAdd(t, q, &Task{ID: "mid", Type: TypeDevelopment, Priority: 5})
	mustAdd(t, q, &Task{ID: "urgent-later", Type: TypeDevelopment, Priority: 1})

	want := []string{"urgent", "urgent-later", "mid", "low"}
	for i, id := range want {
		next := q.Next()
		if next == nil {
			t.Fatalf("Next() #%d returned nil, want %q", i, id)
		}
		if next.ID != id {
			t.Errorf("Next() #%d = %q, want %q", i, next.ID, id)
		}
		if err := q.Complete(next.ID, "ok"); err != nil {
			t.Fatalf("Complete(%q): %v", next.ID, err)
		}
	}

	if next := q.Next(); next != nil {
		t.Errorf("Next() on drained queue = %q, want nil", next.ID)
	}
}

// TestNextDependencyGating verifies a task with an incomplete dependency is
// never selected, regardless of priority.
func TestNextDependencyGating(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "slow", Type: TypeDevelopment, Priority: 100})
	mustAdd(t, q, &Task{ID: "eager", Type: TypeReview, Priority: 0, DependsOn: []string{"slow"}})

	next := q.Next()
	if next == nil || next.ID != "slow" {
		t.Fatalf("Next() = %v, want slow", next)
	}

	// slow is Running, eager is gated: nothing is eligible but we're not done.
	if got := q.Next(); got != nil {
		t.Errorf("Next() with gated task = %q, want nil", got.ID)
	}
	if q.Done() {
		t.Error("Done() = true while a task is running")
	}

	if err := q.Complete("slow", "done"); err != nil {
		t.Fatal(err)
	}
	next = q.Next()
	if next == nil || next.ID != "eager" {
		t.Fatalf("Next() after dependency completed = %v, want eager", next)
	}
}

// TestFailRetryExhaustion verifies the retry budget: exactly retries+1
// failures transition a task to Failed on the final call.
func TestFailRetryExhaustion(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "flaky", Type: TypeTesting, Retries: 2})

	for attempt := 1; attempt <= 2; attempt++ {
		if next := q.Next(); next == nil || next.ID != "flaky" {
			t.Fatalf("attempt %d: Next() = %v, want flaky", attempt, next)
		}
		retry, err := q.Fail("flaky", fmt.Errorf("boom %d", attempt))
		if err != nil {
			t.Fatalf("Fail attempt %d: %v", attempt, err)
		}
		if !retry {
			t.Fatalf("Fail attempt %d = false, want true (budget remaining)", attempt)
		}
		got, _ := q.Get("flaky")
		if got.State() != StatePending {
			t.Errorf("attempt %d: state = %s, want pending", attempt, got.State())
		}
	}

	// Final attempt exhausts the budget.
	if next := q.Next(); next == nil {
		t.Fatal("final attempt: Next() returned nil")
	}
	retry, err := q.Fail("flaky", errors.New("boom 3"))
	if err != nil {
		t.Fatal(err)
	}
	if retry {
		t.Error("Fail on exhausted budget = true, want false")
	}

	got, _ := q.Get("flaky")
	if got.State() != StateFailed {
		t.Errorf("state = %s, want failed", got.State())
	}
	if got.Attempts() != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts())
	}
	if !q.Done() {
		t.Error("Done() = false after terminal failure")
	}
}

// TestFailRequiresRunning verifies state discipline on Fail and Complete.
func TestFailRequiresRunning(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "a", Type: TypeAnalysis})

	if _, err := q.Fail("a", errors.New("x")); err == nil {
		t.Error("Fail on pending task succeeded, want StateError")
	}
	if err := q.Complete("a", "x"); err == nil {
		t.Error("Complete on pending task succeeded, want StateError")
	}
	var serr *StateError
	err := q.Complete("a", "x")
	if !errors.As(err, &serr) {
		t.Errorf("expected StateError, got %T", err)
	}
	if _, err := q.Fail("ghost", errors.New("x")); err == nil {
		t.Error("Fail on unknown task succeeded, want NotFoundError")
	}
}

// TestSkipBlockedCascade verifies transitive cascade failure without
// consuming the dependents' retry budgets.
func TestSkipBlockedCascade(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "root", Type: TypeDevelopment})
	mustAdd(t, q, &Task{ID: "child", Type: TypeReview, Retries: 5, DependsOn: []string{"root"}})
	mustAdd(t, q, &Task{ID: "grandchild", Type: TypeTesting, Retries: 5, DependsOn: []string{"child"}})
	mustAdd(t, q, &Task{ID: "bystander", Type: TypeResearch})

	// Fail root terminally.
	if next := q.Next(); next == nil {
		t.Fatal("Next() returned nil")
	}
	if _, err := q.Fail("root", errors.New("root broke")); err != nil {
		t.Fatal(err)
	}

	blocked, err := q.Blocked("child")
	if err != nil || !blocked {
		t.Errorf("Blocked(child) = %v, %v, want true", blocked, err)
	}
	blocked, _ = q.Blocked("bystander")
	if blocked {
		t.Error("Blocked(bystander) = true, want false")
	}

	skipped := q.SkipBlocked()
	want := []string{"child", "grandchild"}
	if len(skipped) != len(want) {
		t.Fatalf("SkipBlocked() = %v, want %v", skipped, want)
	}
	for i, id := range want {
		if skipped[i] != id {
			t.Errorf("skipped[%d] = %q, want %q", i, skipped[i], id)
		}
	}

	for _, id := range want {
		got, _ := q.Get(id)
		if got.State() != StateFailed {
			t.Errorf("%s state = %s, want failed", id, got.State())
		}
		if got.Attempts() != 0 {
			t.Errorf("%s attempts = %d, want 0 (cascade must not consume retries)", id, got.Attempts())
		}
		var derr *DependencyError
		if !errors.As(got.Err(), &derr) {
			t.Errorf("%s error = %T, want DependencyError", id, got.Err())
		}
	}

	// Repeat invocation finds nothing new.
	if again := q.SkipBlocked(); len(again) != 0 {
		t.Errorf("second SkipBlocked() = %v, want empty", again)
	}

	got, _ := q.Get("bystander")
	if got.State() != StatePending {
		t.Errorf("bystander state = %s, want pending", got.State())
	}
}

// TestCancel verifies only pending tasks can be cancelled.
func TestCancel(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "a", Type: TypeDevelopment})
	mustAdd(t, q, &Task{ID: "b", Type: TypeDevelopment})

	if next := q.Next(); next == nil || next.ID != "a" {
		t.Fatalf("Next() = %v, want a", next)
	}

	if q.Cancel("a") {
		t.Error("Cancel(running) = true, want false")
	}
	if !q.Cancel("b") {
		t.Error("Cancel(pending) = false, want true")
	}
	if q.Cancel("b") {
		t.Error("Cancel(removed) = true, want false")
	}
	if _, ok := q.Get("b"); ok {
		t.Error("cancelled task still present")
	}
}

// TestValidate tests dependency graph validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(q *Queue)
		wantErr     bool
		errContains string
	}{
		{
			name: "valid chain",
			setup: func(q *Queue) {
				mustAdd(t, q, &Task{ID: "a", Type: TypeDevelopment})
				mustAdd(t, q, &Task{ID: "b", Type: TypeReview, DependsOn: []string{"a"}})
			},
		},
		{
			name: "missing dependency",
			setup: func(q *Queue) {
				mustAdd(t, q, &Task{ID: "a", Type: TypeDevelopment, DependsOn: []string{"ghost"}})
			},
			wantErr:     true,
			errContains: "ghost",
		},
		{
			name: "cycle",
			setup: func(q *Queue) {
				mustAdd(t, q, &Task{ID: "a", Type: TypeDevelopment, DependsOn: []string{"b"}})
				mustAdd(t, q, &Task{ID: "b", Type: TypeDevelopment, DependsOn: []string{"a"}})
			},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:  "empty queue",
			setup: func(q *Queue) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			tt.setup(q)

			_, err := q.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestAccessors verifies Stats, Results, Failures, and Done.
func TestAccessors(t *testing.T) {
	q := New()
	if !q.Done() {
		t.Error("empty queue should be done")
	}

	mustAdd(t, q, &Task{ID: "ok", Type: TypeDevelopment})
	mustAdd(t, q, &Task{ID: "bad", Type: TypeTesting})
	mustAdd(t, q, &Task{ID: "waiting", Type: TypeReview, Priority: 99})

	n := q.Next()
	q.Complete(n.ID, "result-ok")
	n = q.Next()
	q.Fail(n.ID, errors.New("went wrong"))

	st := q.Stats()
	if st.Total != 3 || st.Completed != 1 || st.Failed != 1 || st.Pending != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	results := q.Results()
	if results["ok"] != "result-ok" {
		t.Errorf("Results()[ok] = %q", results["ok"])
	}
	failures := q.Failures()
	if failures["bad"] == nil || !strings.Contains(failures["bad"].Error(), "went wrong") {
		t.Errorf("Failures()[bad] = %v", failures["bad"])
	}
	if q.Done() {
		t.Error("Done() = true with a pending task")
	}
}

// TestTaskCopyIsolation verifies accessors return copies, not live pointers.
func TestTaskCopyIsolation(t *testing.T) {
	q := New()
	mustAdd(t, q, &Task{ID: "a", Type: TypeDevelopment, DependsOn: []string{}, Scope: map[string]any{"k": "v"}})

	got, _ := q.Get("a")
	got.Scope["k"] = "mutated"
	got.Priority = 42

	fresh, _ := q.Get("a")
	if fresh.Scope["k"] != "v" {
		t.Error("scope mutation leaked into queue state")
	}
	if fresh.Priority == 42 {
		t.Error("field mutation leaked into queue state")
	}
}
