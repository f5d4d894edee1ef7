package tools

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// RegisterBuiltins installs the tools every hive instance ships with.
func RegisterBuiltins(r *Registry) error {
	builtins := []Tool{
		Func{
			ToolName: "log",
			Desc:     "Writes a message to the orchestrator log and echoes it back.",
			Fn:       runLog,
		},
		Func{
			ToolName: "shell",
			Desc:     "Runs a shell command and returns its stdout.",
			Fn:       runShell,
		},
	}

	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func runLog(_ context.Context, args map[string]any) (any, error) {
	msg, _ := args["message"].(string)
	if msg == "" {
		return nil, fmt.Errorf("log: missing message argument")
	}
	log.Printf("sop: %s", msg)
	return msg, nil
}

func runShell(ctx context.Context, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("shell: missing command argument")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if dir, ok := args["dir"].(string); ok && dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("shell: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}
