package config

import "time"

// Default returns a config with built-in defaults applied. Used when no
// config file exists and env loading is not desired.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrency: 3,
			WarnFraction:   0.80,
			StopFraction:   0.95,
			PollInterval:   2 * time.Second,
			StallWindow:    10 * time.Minute,
		},
		Executor: ExecutorConfig{
			StartupCommand: "claude",
			ReadySentinel:  "? for shortcuts",
			StartupTimeout: 30 * time.Second,
			Handover:       true,
		},
		Workspace: WorkspaceConfig{
			BaseRef:     "main",
			WorktreeDir: defaultWorktreeDir(),
		},
	}
}
