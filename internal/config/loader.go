package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths. Order
// of precedence, highest first: project file, global file, defaults. Missing
// files are skipped; malformed JSON is an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads from the conventional paths: ~/.hive/config.json for the
// global layer and .hive/config.json relative to the working directory.
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".hive", "config.json")
	projectPath := filepath.Join(".hive", "config.json")
	return Load(globalPath, projectPath)
}

func mergeFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	// Runner and negotiation settings override field by field so a file can
	// change one knob without restating the rest.
	if loaded.Runner.Concurrency > 0 {
		base.Runner.Concurrency = loaded.Runner.Concurrency
	}
	if loaded.Runner.DBPath != "" {
		base.Runner.DBPath = loaded.Runner.DBPath
	}
	if loaded.Runner.SOPDir != "" {
		base.Runner.SOPDir = loaded.Runner.SOPDir
	}
	if loaded.Runner.WorkspaceDir != "" {
		base.Runner.WorkspaceDir = loaded.Runner.WorkspaceDir
	}
	if loaded.Negotiation.Mode != "" {
		base.Negotiation.Mode = loaded.Negotiation.Mode
	}
	return nil
}
