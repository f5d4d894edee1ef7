package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aristath/hive/internal/config"
	"github.com/aristath/hive/internal/llm"
	"github.com/aristath/hive/internal/queue"
)

// Executor runs one claimed task attempt and returns its textual result.
type Executor interface {
	Execute(ctx context.Context, task *queue.Task, workDir string) (string, error)
}

// ClientFactory builds a provider client for one agent, rooted in the task's
// workspace. Tests substitute a fake.
type ClientFactory func(agent config.AgentConfig, workDir string) (llm.Client, error)

// NewClientFactory builds clients from the configured provider table.
func NewClientFactory(providers map[string]config.ProviderConfig, pm *llm.ProcessManager) ClientFactory {
	return func(agent config.AgentConfig, workDir string) (llm.Client, error) {
		provider, ok := providers[agent.Provider]
		if !ok {
			return nil, fmt.Errorf("agent references unknown provider %q", agent.Provider)
		}

		model := provider.Model
		if agent.Model != "" {
			model = agent.Model
		}
		return llm.New(llm.Config{Provider: provider.Type, WorkDir: workDir, Model: model}, pm)
	}
}

// maxClarifications caps the question/answer round-trips within one attempt
// so a confused agent cannot loop forever.
const maxClarifications = 3

// LLMExecutor executes tasks by prompting the agent's provider, with backoff
// and per-provider circuit breaking around the call.
type LLMExecutor struct {
	agents    map[string]config.AgentConfig
	factory   ClientFactory
	clarifier Clarifier // optional
	breakers  *BreakerRegistry
	retry     RetryConfig
}

// NewLLMExecutor creates an executor over the configured agent roles. A nil
// clarifier disables the question protocol.
func NewLLMExecutor(agents map[string]config.AgentConfig, factory ClientFactory, clarifier Clarifier) *LLMExecutor {
	return &LLMExecutor{
		agents:    agents,
		factory:   factory,
		clarifier: clarifier,
		breakers:  NewBreakerRegistry(),
		retry:     DefaultRetryConfig(),
	}
}

// Execute prompts the task's agent and returns the completion text. A fresh
// client (and provider session) is created per attempt so a retried task
// starts from a clean slate. When the agent replies with a question object it
// is routed through the clarifier and the answer is fed back into the same
// session, up to maxClarifications times.
func (e *LLMExecutor) Execute(ctx context.Context, task *queue.Task, workDir string) (string, error) {
	agent, ok := e.agents[task.AgentRole]
	if !ok {
		return "", fmt.Errorf("task %q has no configured agent for role %q", task.ID, task.AgentRole)
	}

	client, err := e.factory(agent, workDir)
	if err != nil {
		return "", fmt.Errorf("creating client for role %q: %w", task.AgentRole, err)
	}
	defer client.Close()

	cb := e.breakers.Get(agent.Provider)
	req := llm.Request{
		SystemPrompt: agent.SystemPrompt,
		Prompt:       e.buildPrompt(task),
	}
	out, err := generateWithRetry(ctx, client, req, cb, e.retry)
	if err != nil {
		return "", fmt.Errorf("task %q attempt failed: %w", task.ID, err)
	}

	for round := 0; e.clarifier != nil && round < maxClarifications; round++ {
		question, ok := parseQuestion(out.Content)
		if !ok {
			break
		}

		answer, err := e.clarifier.Ask(ctx, task.ID, question)
		if err != nil {
			log.Printf("WARNING: clarification for task %q unanswered: %v", task.ID, err)
			break
		}

		out, err = generateWithRetry(ctx, client, llm.Request{Prompt: "Clarification: " + answer}, cb, e.retry)
		if err != nil {
			return "", fmt.Errorf("task %q attempt failed after clarification: %w", task.ID, err)
		}
	}
	return out.Content, nil
}

// buildPrompt renders the task into the agent's user prompt.
func (e *LLMExecutor) buildPrompt(task *queue.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s (%s): %s", task.ID, task.Type, task.Description)

	if len(task.Scope) > 0 {
		if scope, err := json.MarshalIndent(task.Scope, "", "  "); err == nil {
			b.WriteString("\n\nScope:\n")
			b.Write(scope)
		}
	}
	if e.clarifier != nil {
		b.WriteString("\n\nIf you cannot proceed without more information, reply with only " +
			`{"question": "..."} and you will receive an answer.`)
	}
	return b.String()
}

// parseQuestion recognizes a reply that is exactly the question object the
// prompt asks for. Prose around the object means the agent chose to answer,
// not to ask.
func parseQuestion(reply string) (string, bool) {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}

	var payload struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload.Question == "" {
		return "", false
	}
	return payload.Question, true
}
