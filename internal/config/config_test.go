package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  max_concurrency: 5
  budget_ceiling_usd: 25.0
executor:
  startup_timeout: 45s
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Orchestrator.MaxConcurrency != 5 {
		t.Errorf("MaxConcurrency = %d, want 5", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.BudgetCeilingUSD != 25.0 {
		t.Errorf("BudgetCeilingUSD = %v, want 25.0", cfg.Orchestrator.BudgetCeilingUSD)
	}
	if cfg.Executor.StartupTimeout != 45*time.Second {
		t.Errorf("StartupTimeout = %v, want 45s", cfg.Executor.StartupTimeout)
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
workspace:
  base_ref: develop
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Workspace.BaseRef != "develop" {
		t.Errorf("BaseRef = %q, want develop", cfg.Workspace.BaseRef)
	}
	if cfg.Orchestrator.WarnFraction != 0.80 {
		t.Errorf("WarnFraction = %v, want 0.80", cfg.Orchestrator.WarnFraction)
	}
	if cfg.Orchestrator.StopFraction != 0.95 {
		t.Errorf("StopFraction = %v, want 0.95", cfg.Orchestrator.StopFraction)
	}
	if cfg.Executor.ReadySentinel == "" {
		t.Error("ReadySentinel should have a default")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOverlayPrecedence(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxConcurrency = 4
	cfg.Workspace.BaseRef = "develop"

	out := cfg.Overlay(SessionOverlay{
		MaxConcurrency:   8,
		BudgetCeilingUSD: 10.0,
	})

	if out.Orchestrator.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want session value 8", out.Orchestrator.MaxConcurrency)
	}
	if out.Orchestrator.BudgetCeilingUSD != 10.0 {
		t.Errorf("BudgetCeilingUSD = %v, want session value 10.0", out.Orchestrator.BudgetCeilingUSD)
	}
	// Values the overlay leaves zero fall through to the config.
	if out.Workspace.BaseRef != "develop" {
		t.Errorf("BaseRef = %q, want config value develop", out.Workspace.BaseRef)
	}

	// Original untouched.
	if cfg.Orchestrator.MaxConcurrency != 4 {
		t.Errorf("Overlay mutated the source config")
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Orchestrator.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Executor.StartupTimeout != 30*time.Second {
		t.Errorf("StartupTimeout = %v, want 30s", cfg.Executor.StartupTimeout)
	}
	if cfg.Orchestrator.BudgetCeilingUSD != 0 {
		t.Errorf("BudgetCeilingUSD = %v, want 0 (no ceiling)", cfg.Orchestrator.BudgetCeilingUSD)
	}
}
