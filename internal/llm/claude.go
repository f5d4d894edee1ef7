package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ClaudeClient drives the `claude` CLI. Each Generate call is one CLI
// invocation; the first call pins a session id and later calls resume it.
type ClaudeClient struct {
	sessionID string
	workDir   string
	model     string
	started   bool
	pm        *ProcessManager
}

// claudeReply mirrors the CLI's --output-format json shape.
type claudeReply struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// NewClaudeClient creates a claude adapter. An empty cfg.SessionID starts a
// fresh session under a generated id.
func NewClaudeClient(cfg Config, pm *ProcessManager) (*ClaudeClient, error) {
	sessionID := cfg.SessionID
	resuming := sessionID != ""
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}

	return &ClaudeClient{
		sessionID: sessionID,
		workDir:   workDir,
		model:     cfg.Model,
		started:   resuming,
		pm:        pm,
	}, nil
}

// Generate invokes the CLI once and parses its JSON reply.
func (c *ClaudeClient) Generate(ctx context.Context, req Request) (Completion, error) {
	args := []string{"-p", req.Prompt, "--output-format", "json"}
	if c.started {
		args = append(args, "--resume", c.sessionID)
	} else {
		args = append(args, "--session-id", c.sessionID)
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	cmd := newCommand(ctx, "claude", args...)
	cmd.Dir = c.workDir

	stdout, err := runCommand(cmd, c.pm)
	if err != nil {
		return Completion{}, err
	}

	out, err := parseClaudeReply(stdout)
	if err != nil {
		return Completion{}, err
	}
	c.started = true
	return out, nil
}

func parseClaudeReply(data []byte) (Completion, error) {
	var reply claudeReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Completion{}, fmt.Errorf("parsing claude reply: %w", err)
	}

	var content string
	for _, block := range reply.Result.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return Completion{Content: content, SessionID: reply.SessionID}, nil
}

// Close is a no-op; the CLI runs per invocation.
func (c *ClaudeClient) Close() error { return nil }

// SessionID returns the session identifier in use.
func (c *ClaudeClient) SessionID() string { return c.sessionID }
