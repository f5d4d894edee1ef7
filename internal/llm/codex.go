package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CodexClient drives the `codex` CLI, which emits newline-delimited JSON
// events. The thread id from the first ThreadStarted event is kept so later
// calls resume the same conversation.
type CodexClient struct {
	threadID string
	workDir  string
	model    string
	pm       *ProcessManager
}

type codexEvent struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

// NewCodexClient creates a codex adapter. A non-empty cfg.SessionID resumes
// that thread.
func NewCodexClient(cfg Config, pm *ProcessManager) (*CodexClient, error) {
	return &CodexClient{
		threadID: cfg.SessionID,
		workDir:  cfg.WorkDir,
		model:    cfg.Model,
		pm:       pm,
	}, nil
}

// Generate invokes the CLI and scans its event stream for the turn result.
// Codex has no system prompt flag, so the system prompt is folded into the
// message itself.
func (c *CodexClient) Generate(ctx context.Context, req Request) (Completion, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	var args []string
	if c.threadID == "" {
		args = []string{"exec", prompt, "--json"}
	} else {
		args = []string{"resume", c.threadID, prompt, "--json"}
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	cmd := newCommand(ctx, "codex", args...)
	cmd.Dir = c.workDir

	stdout, err := runCommand(cmd, c.pm)
	if err != nil {
		return Completion{}, err
	}

	threadID, content, err := parseCodexEvents(stdout)
	if err != nil {
		return Completion{}, err
	}
	if threadID != "" {
		c.threadID = threadID
	}
	return Completion{Content: content, SessionID: c.threadID}, nil
}

// parseCodexEvents walks the NDJSON stream, returning the thread id from
// ThreadStarted and the content of the last TurnCompleted event.
func parseCodexEvents(data []byte) (threadID, content string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt codexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return "", "", fmt.Errorf("parsing codex event: %w", err)
		}
		switch evt.Type {
		case "ThreadStarted":
			threadID = evt.ThreadID
		case "TurnCompleted":
			content = evt.Content
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("reading codex events: %w", err)
	}
	return threadID, content, nil
}

// Close is a no-op; the CLI runs per invocation.
func (c *CodexClient) Close() error { return nil }

// SessionID returns the codex thread id.
func (c *CodexClient) SessionID() string { return c.threadID }
