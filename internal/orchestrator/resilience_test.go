package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/hive/internal/llm"
)

// flakyClient fails a set number of calls before succeeding.
type flakyClient struct {
	calls    int32
	failures int32
}

func (c *flakyClient) Generate(_ context.Context, _ llm.Request) (llm.Completion, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if n <= atomic.LoadInt32(&c.failures) {
		return llm.Completion{}, errors.New("transient provider error")
	}
	return llm.Completion{Content: "ok"}, nil
}

func (c *flakyClient) Close() error      { return nil }
func (c *flakyClient) SessionID() string { return "s" }

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0,
	}
}

func TestGenerateWithRetryRecovers(t *testing.T) {
	client := &flakyClient{failures: 2}
	cb := NewBreakerRegistry().Get("claude")

	out, err := generateWithRetry(context.Background(), client, llm.Request{Prompt: "p"}, cb, fastRetryConfig())
	if err != nil {
		t.Fatalf("generateWithRetry: %v", err)
	}
	if out.Content != "ok" {
		t.Errorf("Content = %q", out.Content)
	}
	if got := atomic.LoadInt32(&client.calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGenerateWithRetryStopsOnCancel(t *testing.T) {
	client := &flakyClient{failures: 1000}
	cb := NewBreakerRegistry().Get("claude")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	cfg := fastRetryConfig()
	cfg.MaxElapsedTime = time.Minute
	if _, err := generateWithRetry(ctx, client, llm.Request{}, cb, cfg); err == nil {
		t.Error("cancelled retry loop returned success")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := &flakyClient{failures: 1000}
	cb := NewBreakerRegistry().Get("codex")

	cfg := fastRetryConfig()
	cfg.MaxElapsedTime = 50 * time.Millisecond

	// Drive the breaker past its trip threshold across several call sites,
	// as separate task attempts would.
	var lastErr error
	for i := 0; i < 3; i++ {
		_, lastErr = generateWithRetry(context.Background(), client, llm.Request{}, cb, cfg)
	}
	if lastErr == nil {
		t.Fatal("expected failure")
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %v, want open", cb.State())
	}

	// With the circuit open the next attempt fails fast, without a call.
	before := atomic.LoadInt32(&client.calls)
	_, err := generateWithRetry(context.Background(), client, llm.Request{}, cb, cfg)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if after := atomic.LoadInt32(&client.calls); after != before {
		t.Errorf("open breaker still reached the provider: %d -> %d calls", before, after)
	}
}

func TestBreakerRegistryPerProvider(t *testing.T) {
	r := NewBreakerRegistry()
	a := r.Get("claude")
	b := r.Get("codex")
	if a == b {
		t.Error("providers share a breaker")
	}
	if r.Get("claude") != a {
		t.Error("registry did not reuse the existing breaker")
	}
}
