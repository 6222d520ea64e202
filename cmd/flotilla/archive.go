package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	archivePurge  time.Duration
	archiveLedger bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive [session-id]",
	Short: "Archive a session into the ledger",
	Long: `Move a session out of the active set into the archived ledger.

Archival snapshots the session's total cost and agent count, adds them
to the append-only ledger totals, and removes the session from the
active set in one atomic step. Purging old archive rows later never
shrinks the ledger totals.

Examples:
  flotilla archive 3f2a1b...        # archive one session
  flotilla archive --ledger         # show the ledger totals
  flotilla archive --purge 720h     # drop archive rows older than 30 days`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().DurationVar(&archivePurge, "purge", 0, "Purge archived sessions older than this")
	archiveCmd.Flags().BoolVar(&archiveLedger, "ledger", false, "Show the aggregate ledger and exit")
}

func runArchive(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if archiveLedger {
		ledger, err := db.GetLedger()
		if err != nil {
			return fmt.Errorf("get ledger: %w", err)
		}
		fmt.Printf("Ledger: $%.2f across %d agent(s)\n", ledger.TotalCostUSD, ledger.TotalAgents)
		return nil
	}

	if archivePurge > 0 {
		purged, err := db.PurgeArchived(archivePurge)
		if err != nil {
			return fmt.Errorf("purge archived: %w", err)
		}
		fmt.Printf("Purged %d archived session(s).\n", purged)
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("session-id required (or --ledger / --purge)")
	}

	archived, err := db.ArchiveSession(args[0])
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	color.Green("Session %s archived: $%.2f across %d agent(s).",
		archived.ID, archived.TotalCostUSD, archived.AgentCount)
	return nil
}
