// Package llm provides provider-neutral access to LLM coding CLIs. Each
// provider is a subprocess adapter around its vendor CLI; the rest of the
// system only sees the Client interface.
package llm

import (
	"context"
	"fmt"
)

// Request is one completion call.
type Request struct {
	SystemPrompt string
	Prompt       string
}

// Completion is the provider's reply.
type Completion struct {
	Content   string
	SessionID string
}

// Client is implemented by every provider adapter. Generate is synchronous
// and safe to call repeatedly within one session; the adapter threads the
// session through the underlying CLI so context accumulates.
type Client interface {
	Generate(ctx context.Context, req Request) (Completion, error)

	// Close releases any provider resources. Per-invocation adapters make
	// this a no-op.
	Close() error

	// SessionID returns the provider session identifier.
	SessionID() string
}

// Config selects and parameterizes a provider adapter.
type Config struct {
	Provider  string // "claude" or "codex"
	WorkDir   string
	SessionID string // resume an existing session when set
	Model     string // optional model override
}

// New builds a Client for cfg.Provider. The ProcessManager may be nil when
// subprocess tracking is not needed.
func New(cfg Config, pm *ProcessManager) (Client, error) {
	switch cfg.Provider {
	case "claude":
		return NewClaudeClient(cfg, pm)
	case "codex":
		return NewCodexClient(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// Completer adapts a Client to the plain system-prompt/prompt call shape that
// negotiation and SOP tools expect.
type Completer struct {
	Client Client
}

func (c Completer) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	out, err := c.Client.Generate(ctx, Request{SystemPrompt: systemPrompt, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
