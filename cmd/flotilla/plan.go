package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/config"
	"github.com/ShayCichocki/flotilla/internal/graph"
	"github.com/ShayCichocki/flotilla/internal/orchestrator"
	"github.com/ShayCichocki/flotilla/internal/plan"
)

var (
	planBaseRef string
	planBudget  float64
	planDryRun  bool
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Compile a plan document and create a session",
	Long: `Compile a plan document into a dependency graph and create a session.

The plan file (JSON or YAML) lists workstream nodes and dependency
edges. Compilation rejects unknown edge endpoints and cycles, then
schedules the nodes into waves: every node in a wave depends only on
nodes in strictly earlier waves.

Examples:
  flotilla plan plan.yaml
  flotilla plan plan.json --base-ref develop --budget 25.0
  flotilla plan plan.yaml --dry-run   # show waves, create nothing`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planBaseRef, "base-ref", "", "Base ref workspaces branch from (default from config)")
	planCmd.Flags().Float64Var(&planBudget, "budget", 0, "Session budget ceiling in USD (0 = config default)")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Compile and show waves without creating a session")
}

func runPlan(cmd *cobra.Command, args []string) error {
	doc, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	dag, err := doc.Compile()
	if err != nil {
		return fmt.Errorf("compile plan: %w", err)
	}

	waves, err := graph.ComputeWaves(dag)
	if err != nil {
		return fmt.Errorf("compute waves: %w", err)
	}

	fmt.Printf("Plan: %d node(s) in %d wave(s)\n\n", dag.Size(), len(waves))
	for _, w := range waves {
		fmt.Printf("  Wave %d: %s\n", w.Index, strings.Join(w.Members, ", "))
		for _, id := range w.Members {
			if after := dag.Dependencies(id); len(after) > 0 {
				fmt.Printf("    %s after %s\n", id, strings.Join(after, ", "))
			}
		}
	}
	fmt.Println()

	if planDryRun {
		fmt.Println("Dry run mode - no session was created.")
		return nil
	}

	deps, err := buildEngine(config.SessionOverlay{
		BudgetCeilingUSD: planBudget,
		BaseRef:          planBaseRef,
	})
	if err != nil {
		return err
	}
	defer deps.store.Close()

	sessionID, err := deps.engine.CreateSession(dag, orchestrator.SessionConfig{
		BaseRef:          deps.cfg.Workspace.BaseRef,
		BudgetCeilingUSD: deps.cfg.Orchestrator.BudgetCeilingUSD,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	color.Green("Session created: %s", sessionID)
	fmt.Printf("Run it with: flotilla run %s\n", sessionID)
	return nil
}
