package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestClarificationAskAnswer(t *testing.T) {
	ch := NewClarificationChannel(4, func(_ context.Context, taskID, question string) (string, error) {
		return fmt.Sprintf("answer for %s: %s", taskID, question), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.Start(ctx)

	got, err := ch.Ask(ctx, "t1", "which port?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "answer for t1: which port?" {
		t.Errorf("answer = %q", got)
	}
}

func TestClarificationAnswerError(t *testing.T) {
	ch := NewClarificationChannel(1, func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("no plan context")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.Start(ctx)

	if _, err := ch.Ask(ctx, "t1", "q"); err == nil {
		t.Error("answer error not surfaced")
	}
}

func TestClarificationConcurrentAskers(t *testing.T) {
	ch := NewClarificationChannel(8, func(_ context.Context, taskID, _ string) (string, error) {
		return taskID, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			got, err := ch.Ask(ctx, id, "q")
			if err != nil || got != id {
				t.Errorf("Ask(%s) = %q, %v", id, got, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestClarificationStopWithLiveContext(t *testing.T) {
	ch := NewClarificationChannel(1, func(_ context.Context, _, _ string) (string, error) {
		return "ok", nil
	})

	// The runner defers Stop while the caller's context is still live; Stop
	// must shut the handler down on its own rather than wait for that
	// context.
	ch.Start(context.Background())

	if _, err := ch.Ask(context.Background(), "t1", "q"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		ch.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked with a live parent context")
	}
}

func TestClarificationStopWithoutStart(t *testing.T) {
	ch := NewClarificationChannel(1, nil)
	ch.Stop() // must not block
}

func TestClarificationCancellation(t *testing.T) {
	started := make(chan struct{})
	ch := NewClarificationChannel(1, func(ctx context.Context, _, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Ask(ctx, "t1", "q")
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Ask survived cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Ask blocked after cancellation")
	}

	ch.Stop()
}
