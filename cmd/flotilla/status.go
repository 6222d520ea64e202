package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/state"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session state",
	Long: `Display the state of active sessions.

Shows:
  - Sessions with their wave progress
  - Agents and their lifecycle status
  - Cumulative cost against the budget ceiling

With a session ID, shows that session in detail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := resolveDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No sessions. Run 'flotilla plan <file>' to start.")
		return nil
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		session, err := db.GetSession(args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return displaySession(db, session)
	}

	ids, err := db.ListActiveSessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No active sessions. Run 'flotilla plan <file>' to start.")
		return nil
	}

	for i, id := range ids {
		if i > 0 {
			fmt.Println()
		}
		session, err := db.GetSession(id)
		if err != nil {
			return fmt.Errorf("get session %s: %w", id, err)
		}
		if err := displaySession(db, session); err != nil {
			return err
		}
	}
	return nil
}

func displaySession(db *state.DB, s *models.Session) error {
	elapsed := formatDuration(time.Since(s.CreatedAt))

	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("  Status: %s", s.Status)
	if s.PausedReason != "" {
		fmt.Printf(" (%s)", s.PausedReason)
	}
	fmt.Println()
	fmt.Printf("  Created: %s ago\n", elapsed)
	fmt.Printf("  Base ref: %s\n", s.BaseRef)

	cost, err := db.SessionTotalCost(s.ID)
	if err != nil {
		return fmt.Errorf("session cost: %w", err)
	}
	if s.BudgetCeilingUSD > 0 {
		pct := cost / s.BudgetCeilingUSD * 100
		fmt.Printf("  Cost: $%.2f / $%.2f (%.0f%%)\n", cost, s.BudgetCeilingUSD, pct)
	} else {
		fmt.Printf("  Cost: $%.2f (no ceiling)\n", cost)
	}

	fmt.Println("  Waves:")
	for _, w := range s.Waves {
		fmt.Printf("    %d: %-8s", w.Index, w.Status)
		for _, id := range w.Members {
			node := s.Nodes[id]
			fmt.Printf("  %s", formatNode(id, node))
		}
		fmt.Println()
	}

	agents, err := db.ListAgentsBySession(s.ID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	if len(agents) > 0 {
		fmt.Println("  Agents:")
		for _, a := range agents {
			silent := ""
			if a.LastOutputAt != nil && !a.Status.Terminal() {
				silent = fmt.Sprintf(" (output %s ago)", formatDuration(time.Since(*a.LastOutputAt)))
			}
			fmt.Printf("    %s: %s node=%s $%.2f%s\n", a.ID, a.Status, a.NodeID, a.CostUSD, silent)
		}
	}
	return nil
}

func formatNode(id string, node *models.WorkstreamNode) string {
	if node == nil {
		return id
	}
	switch node.Status {
	case models.NodeStatusComplete:
		return color.GreenString("%s✓", id)
	case models.NodeStatusFailed:
		return color.RedString("%s✗", id)
	case models.NodeStatusRunning:
		return color.CyanString("%s…", id)
	default:
		return id
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
