package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/orchestrator"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

var budgetCmd = &cobra.Command{
	Use:   "budget <session-id>",
	Short: "Show a session's budget position",
	Long: `Show a session's cumulative cost against its ceiling.

Cost is derived from the agents' accumulated costs, archived agents
included, so it never drifts from the per-agent records. The guardrail
warns at 80% of the ceiling and stops admitting new work at 95%.`,
	Args: cobra.ExactArgs(1),
	RunE: runBudget,
}

func runBudget(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := db.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	cost, err := db.SessionTotalCost(session.ID)
	if err != nil {
		return fmt.Errorf("session cost: %w", err)
	}

	fmt.Printf("Session: %s\n", session.ID)
	fmt.Printf("  Cost: $%.2f\n", cost)
	if session.BudgetCeilingUSD <= 0 {
		fmt.Println("  Ceiling: none")
		return nil
	}

	fraction := cost / session.BudgetCeilingUSD
	fmt.Printf("  Ceiling: $%.2f (%.0f%% used)\n", session.BudgetCeilingUSD, fraction*100)

	guard := orchestrator.NewBudgetGuard(0, 0)
	switch guard.Check(cost, session.BudgetCeilingUSD) {
	case models.BudgetStop:
		color.Red("  State: STOP - no new work is admitted")
	case models.BudgetWarn:
		color.Yellow("  State: WARN - approaching the ceiling")
	default:
		color.Green("  State: OK")
	}
	return nil
}
