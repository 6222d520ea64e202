package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/config"
	"github.com/ShayCichocki/flotilla/internal/monitor"
	"github.com/ShayCichocki/flotilla/internal/orchestrator"
	"github.com/ShayCichocki/flotilla/internal/state"
)

var (
	runForce          bool
	runWave           int
	runMaxConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run <session-id>",
	Short: "Execute a session's waves in order",
	Long: `Execute a session's waves, starting from the first unfinished wave.

Waves run strictly in order. Within a wave, nodes are admitted in
discovery order up to the concurrency limit; as contexts finish,
waiting nodes backfill the freed slots. A failed wave halts execution
before the next wave starts. Use --force to push past a failed wave:
its failed nodes stay failed, and only later waves run.

Budget guardrails apply on every admission. Crossing the warning
fraction flags the session; crossing the hard stop pauses it and
refuses new admissions until the ceiling is raised.

Examples:
  flotilla run 3f2a1b...            # run remaining waves
  flotilla run 3f2a1b... --wave 2   # run only wave 2
  flotilla run 3f2a1b... --force    # run past a failed wave`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Run past a failed earlier wave")
	runCmd.Flags().IntVar(&runWave, "wave", -1, "Run only the given wave index")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Override the admission limit")
}

func runRun(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	deps, err := buildEngine(config.SessionOverlay{
		MaxConcurrency: runMaxConcurrency,
	})
	if err != nil {
		return err
	}
	defer deps.store.Close()

	if err := CheckPrerequisites(deps.cfg.Executor.StartupCommand); err != nil {
		return err
	}

	session, err := deps.engine.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := monitor.NewActivityWatcher(func(workspacePath string, at time.Time) {
		if id := agentIDByWorkspace(deps.store, sessionID, workspacePath); id != "" {
			deps.store.TouchAgentOutput(id, at)
		}
	})
	defer watcher.Close()
	go watchAdmissions(deps.store, watcher, deps.engine.Events().Subscribe())

	done := make(chan struct{})
	go printEvents(deps.engine.Events().Subscribe(), done)
	defer func() { <-done }()
	defer deps.engine.Events().Close()

	if runWave >= 0 {
		return runOneWave(ctx, deps.engine, sessionID, runWave)
	}

	for i := range session.Waves {
		current, err := deps.engine.GetCurrentWave(sessionID)
		if err != nil {
			return err
		}
		if current < 0 {
			break
		}
		if i < current {
			continue
		}
		if err := runOneWave(ctx, deps.engine, sessionID, i); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	final, err := deps.engine.GetSession(sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("\nSession %s: %s\n", sessionID, final.Status)
	return nil
}

func runOneWave(ctx context.Context, engine *orchestrator.Engine, sessionID string, waveIndex int) error {
	err := engine.RunWave(ctx, sessionID, waveIndex, orchestrator.RunWaveOptions{Force: runForce})

	var notRunnable *orchestrator.WaveNotRunnableError
	if errors.As(err, &notRunnable) {
		color.Red("Wave %d is blocked: wave %d is %s. Use --force to run anyway.",
			notRunnable.WaveIndex, notRunnable.BlockingWave, notRunnable.BlockingStatus)
		return err
	}
	var budget *orchestrator.BudgetExceededError
	if errors.As(err, &budget) {
		color.Red("Budget stop: $%.2f of $%.2f used. Session paused.",
			budget.CostUSD, budget.CeilingUSD)
		return err
	}
	return err
}

// watchAdmissions registers admitted agents' workspaces with the
// activity watcher and unregisters them when they reach a terminal
// state, so transcript writes stamp last-output times between polls.
func watchAdmissions(store *state.DB, watcher *monitor.ActivityWatcher, events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventNodeAdmitted:
			if a, err := store.GetAgent(ev.AgentID); err == nil && a.WorkspacePath != "" {
				watcher.Watch(a.WorkspacePath)
			}
		case orchestrator.EventNodeCompleted, orchestrator.EventNodeFailed:
			if a, err := store.GetAgent(ev.AgentID); err == nil && a.WorkspacePath != "" {
				watcher.Unwatch(a.WorkspacePath)
			}
		}
	}
}

// agentIDByWorkspace finds the session agent owning a workspace path.
func agentIDByWorkspace(store *state.DB, sessionID, workspacePath string) string {
	agents, err := store.ListAgentsBySession(sessionID)
	if err != nil {
		return ""
	}
	for _, a := range agents {
		if a.WorkspacePath == workspacePath {
			return a.ID
		}
	}
	return ""
}

// printEvents renders engine events until the subscription closes.
func printEvents(events <-chan orchestrator.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventWaveStarted:
			color.Cyan("==> Wave %d started", ev.WaveIndex)
		case orchestrator.EventWaveCompleted:
			color.Green("==> Wave %d complete", ev.WaveIndex)
		case orchestrator.EventWaveFailed:
			color.Red("==> Wave %d failed", ev.WaveIndex)
		case orchestrator.EventNodeAdmitted:
			fmt.Printf("    %s admitted (agent %s)\n", ev.NodeID, ev.AgentID)
		case orchestrator.EventNodeCompleted:
			color.Green("    %s complete", ev.NodeID)
		case orchestrator.EventNodeFailed:
			color.Red("    %s failed: %s", ev.NodeID, ev.Message)
		case orchestrator.EventNodeStalled:
			color.Yellow("    %s stalled (no output)", ev.NodeID)
		case orchestrator.EventBudgetWarning:
			color.Yellow("    budget warning: $%.2f used", ev.CostUSD)
		case orchestrator.EventSessionPaused:
			color.Red("    session paused: %s", ev.Message)
		case orchestrator.EventSessionDone:
			color.Green("==> Session complete")
		}
	}
}
