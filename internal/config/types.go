// Package config loads the hive configuration from layered JSON files:
// defaults, then the global file in the home directory, then the project
// file, each overriding the last.
package config

// ProviderConfig selects an LLM CLI adapter. Providers are separate from
// agents; several agents can share one provider.
type ProviderConfig struct {
	Type  string `json:"type"`            // llm adapter: "claude" or "codex"
	Model string `json:"model,omitempty"` // default model for this provider
}

// AgentConfig defines a role backed by a provider.
type AgentConfig struct {
	Provider     string   `json:"provider"`                // key into Providers
	Model        string   `json:"model,omitempty"`         // overrides the provider default
	SystemPrompt string   `json:"system_prompt,omitempty"` // role instructions
	TaskTypes    []string `json:"task_types,omitempty"`    // task types this role accepts, empty = all
}

// RunnerConfig tunes the task runner.
type RunnerConfig struct {
	Concurrency  int    `json:"concurrency,omitempty"`   // max tasks in flight
	DBPath       string `json:"db_path,omitempty"`       // sqlite database location
	SOPDir       string `json:"sop_dir,omitempty"`       // directory of SOP yaml files
	WorkspaceDir string `json:"workspace_dir,omitempty"` // root for per-task scratch dirs
}

// NegotiationConfig tunes task assignment.
type NegotiationConfig struct {
	// Mode is "bidding" when real agents bid, "simulate" to have one LLM
	// invent candidate roles.
	Mode string `json:"mode,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Providers   map[string]ProviderConfig `json:"providers"`
	Agents      map[string]AgentConfig    `json:"agents"`
	Runner      RunnerConfig              `json:"runner"`
	Negotiation NegotiationConfig         `json:"negotiation"`
}
