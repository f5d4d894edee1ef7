package config

// DefaultConfig returns the built-in providers, agents, and runner settings.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"claude": {Type: "claude"},
			"codex":  {Type: "codex"},
		},
		Agents: map[string]AgentConfig{
			"coordinator": {
				Provider:     "claude",
				SystemPrompt: "You coordinate task planning and delegate work across the swarm.",
			},
			"developer": {
				Provider:     "claude",
				SystemPrompt: "You implement features and write production code.",
				TaskTypes:    []string{"development"},
			},
			"reviewer": {
				Provider:     "claude",
				SystemPrompt: "You review code for correctness, style, and maintainability.",
				TaskTypes:    []string{"review"},
			},
			"tester": {
				Provider:     "claude",
				SystemPrompt: "You write tests and validate functionality.",
				TaskTypes:    []string{"testing"},
			},
			"researcher": {
				Provider:     "claude",
				SystemPrompt: "You investigate questions and summarize findings with sources.",
				TaskTypes:    []string{"research", "analysis"},
			},
		},
		Runner: RunnerConfig{
			Concurrency:  2,
			DBPath:       ".hive/hive.db",
			SOPDir:       ".hive/sops",
			WorkspaceDir: ".hive/workspaces",
		},
		Negotiation: NegotiationConfig{
			Mode: "simulate",
		},
	}
}
