package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var wavesCmd = &cobra.Command{
	Use:   "waves <session-id>",
	Short: "Show a session's wave schedule",
	Long: `Show a session's precomputed wave schedule and per-wave timing.

Each wave lists the nodes that may run concurrently once every earlier
wave has completed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWaves,
}

func runWaves(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := db.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	fmt.Printf("Session %s: %d wave(s)\n\n", session.ID, len(session.Waves))
	for _, w := range session.Waves {
		fmt.Printf("Wave %d [%s]\n", w.Index, w.Status)
		fmt.Printf("  Members: %s\n", strings.Join(w.Members, ", "))
		if w.StartedAt != nil {
			fmt.Printf("  Started: %s\n", w.StartedAt.Format(time.RFC3339))
		}
		if w.CompletedAt != nil {
			fmt.Printf("  Finished: %s", w.CompletedAt.Format(time.RFC3339))
			if w.StartedAt != nil {
				fmt.Printf(" (took %s)", formatDuration(w.CompletedAt.Sub(*w.StartedAt)))
			}
			fmt.Println()
		}
	}
	return nil
}
