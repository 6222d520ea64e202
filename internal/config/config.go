// Package config handles configuration loading for flotilla. It supports
// XDG config paths, project-level overrides, environment variables, and a
// per-session overlay with explicit precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for flotilla.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Executor     ExecutorConfig     `mapstructure:"executor"`
	Workspace    WorkspaceConfig    `mapstructure:"workspace"`
}

// OrchestratorConfig holds wave scheduling and budget settings.
type OrchestratorConfig struct {
	// MaxConcurrency is the admission limit for running contexts.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// BudgetCeilingUSD is the default session budget. Zero means none.
	BudgetCeilingUSD float64 `mapstructure:"budget_ceiling_usd"`
	// WarnFraction is the budget usage fraction at which warnings begin.
	WarnFraction float64 `mapstructure:"warn_fraction"`
	// StopFraction is the budget usage fraction at which admission stops.
	StopFraction float64 `mapstructure:"stop_fraction"`
	// PollInterval is the lifecycle polling cadence.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// StallWindow is how long an active context may be silent before it
	// is reported stalled.
	StallWindow time.Duration `mapstructure:"stall_window"`
}

// ExecutorConfig holds settings for the hosted executor subprocess.
type ExecutorConfig struct {
	// StartupCommand launches the executor inside a hosted context.
	StartupCommand string `mapstructure:"startup_command"`
	// ReadySentinel is the output substring that marks the executor
	// ready for input.
	ReadySentinel string `mapstructure:"ready_sentinel"`
	// StartupTimeout bounds the readiness wait.
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
	// Handover includes a repository-state summary in task payloads.
	Handover bool `mapstructure:"handover"`
}

// WorkspaceConfig holds workspace provider settings.
type WorkspaceConfig struct {
	// BaseRef is the default base line for new sessions.
	BaseRef string `mapstructure:"base_ref"`
	// WorktreeDir is where isolated worktrees are materialized.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// SessionOverlay holds per-session values that override the loaded
// config. Zero values defer to the config.
type SessionOverlay struct {
	MaxConcurrency   int
	BudgetCeilingUSD float64
	BaseRef          string
}

// Overlay returns a copy of the config with session values applied.
// Precedence: session value > config file > built-in default.
func (c *Config) Overlay(s SessionOverlay) *Config {
	out := *c
	if s.MaxConcurrency > 0 {
		out.Orchestrator.MaxConcurrency = s.MaxConcurrency
	}
	if s.BudgetCeilingUSD > 0 {
		out.Orchestrator.BudgetCeilingUSD = s.BudgetCeilingUSD
	}
	if s.BaseRef != "" {
		out.Workspace.BaseRef = s.BaseRef
	}
	return &out
}

// Load loads configuration with precedence (highest to lowest):
// 1. Environment variables (FLOTILLA_*)
// 2. Project config (.flotilla.yaml in current directory or a parent)
// 3. User config (~/.config/flotilla/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FLOTILLA")
	v.AutomaticEnv()
	v.BindEnv("executor.startup_command", "FLOTILLA_STARTUP_COMMAND")
	v.BindEnv("orchestrator.budget_ceiling_usd", "FLOTILLA_BUDGET_CEILING_USD")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures built-in default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.max_concurrency", 3)
	v.SetDefault("orchestrator.budget_ceiling_usd", 0.0)
	v.SetDefault("orchestrator.warn_fraction", 0.80)
	v.SetDefault("orchestrator.stop_fraction", 0.95)
	v.SetDefault("orchestrator.poll_interval", "2s")
	v.SetDefault("orchestrator.stall_window", "10m")

	v.SetDefault("executor.startup_command", "claude")
	v.SetDefault("executor.ready_sentinel", "? for shortcuts")
	v.SetDefault("executor.startup_timeout", "30s")
	v.SetDefault("executor.handover", true)

	v.SetDefault("workspace.base_ref", "main")
	v.SetDefault("workspace.worktree_dir", defaultWorktreeDir())
}

// defaultWorktreeDir is the XDG cache location for worktrees.
func defaultWorktreeDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "flotilla", "worktrees")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cache", "flotilla", "worktrees")
	}
	return filepath.Join(home, ".cache", "flotilla", "worktrees")
}

// getUserConfigDir returns the XDG config directory for flotilla.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flotilla")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "flotilla")
	}
	return filepath.Join(home, ".config", "flotilla")
}

// findProjectConfig searches for .flotilla.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".flotilla.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
