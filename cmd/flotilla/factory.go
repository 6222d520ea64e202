package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/flotilla/internal/agent"
	"github.com/ShayCichocki/flotilla/internal/config"
	"github.com/ShayCichocki/flotilla/internal/host"
	"github.com/ShayCichocki/flotilla/internal/monitor"
	"github.com/ShayCichocki/flotilla/internal/orchestrator"
	"github.com/ShayCichocki/flotilla/internal/recovery"
	"github.com/ShayCichocki/flotilla/internal/state"
	"github.com/ShayCichocki/flotilla/internal/workspace"
)

// openStore opens the state database, preferring a project-local one
// when the current directory is inside an initialized repository.
func openStore() (*state.DB, error) {
	db, err := state.Open(resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// resolveDBPath picks the project database if one exists, otherwise the
// global one.
func resolveDBPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return state.DefaultDBPath()
	}
	if root, err := findGitRoot(cwd); err == nil {
		projectPath := state.ProjectDBPath(root)
		if _, err := os.Stat(projectPath); err == nil {
			return projectPath
		}
	}
	return state.DefaultDBPath()
}

// engineDeps bundles everything needed to drive waves against live
// contexts. Close the store when done.
type engineDeps struct {
	store      *state.DB
	engine     *orchestrator.Engine
	contexts   *agent.Manager
	recovery   *recovery.Manager
	workspaces *workspace.WorktreeProvider
	cfg        *config.Config
}

// buildEngine constructs the full collaborator stack: worktree provider
// rooted at the enclosing git repository, tmux host, context manager,
// output poller, and the engine over all of them. The overlay applies
// per-invocation flag values over the loaded config.
func buildEngine(overlay config.SessionOverlay) (*engineDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg = cfg.Overlay(overlay)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	repoRoot, err := findGitRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("find git repository: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}

	workspaces, err := workspace.NewWorktreeProvider(cfg.Workspace.WorktreeDir, repoRoot)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create workspace provider: %w", err)
	}

	tmux := host.NewTmuxHost()
	contexts := agent.NewManager(workspaces, tmux, agent.Config{
		StartupCommand: cfg.Executor.StartupCommand,
		ReadySentinel:  cfg.Executor.ReadySentinel,
		StartupTimeout: cfg.Executor.StartupTimeout,
		Handover:       cfg.Executor.Handover,
	})

	classifier := monitor.NewProtocolClassifier(monitor.NewHeuristicClassifier())
	poller := monitor.NewPoller(tmux, classifier,
		monitor.WithStallWindow(cfg.Orchestrator.StallWindow))

	engine := orchestrator.NewEngine(store, contexts, poller, orchestrator.Config{
		MaxConcurrency: cfg.Orchestrator.MaxConcurrency,
		PollInterval:   cfg.Orchestrator.PollInterval,
		WarnFraction:   cfg.Orchestrator.WarnFraction,
		StopFraction:   cfg.Orchestrator.StopFraction,
	}, orchestrator.WithLogger(orchestrator.NewDebugLoggerForRepo(repoRoot)))

	return &engineDeps{
		store:      store,
		engine:     engine,
		contexts:   contexts,
		recovery:   recovery.NewManager(store, tmux, contexts),
		workspaces: workspaces,
		cfg:        cfg,
	}, nil
}

// findGitRoot finds the root of the git repository starting from the
// given directory.
func findGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a git repository")
		}
		dir = parent
	}
}
