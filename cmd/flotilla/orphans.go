package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/config"
)

var orphansArchive bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List agents whose hosted contexts are gone",
	Long: `List orphaned agents: non-terminal agents whose hosted subprocess no
longer exists, typically after a crash or reboot.

An orphan is resumable when its workspace still holds the delivered
task transcript; resuming starts a fresh context in the same workspace
and replays the task. Orphans without a transcript can only be
archived.

Examples:
  flotilla orphans              # list orphans
  flotilla orphans --archive    # archive every non-resumable orphan
  flotilla resume <agent-id>    # resume one orphan`,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansArchive, "archive", false, "Archive non-resumable orphans")
}

func runOrphans(cmd *cobra.Command, args []string) error {
	deps, err := buildEngine(config.SessionOverlay{})
	if err != nil {
		return err
	}
	defer deps.store.Close()

	orphans, err := deps.recovery.ListOrphans()
	if err != nil {
		return fmt.Errorf("list orphans: %w", err)
	}
	if len(orphans) == 0 {
		fmt.Println("No orphaned agents.")
		return nil
	}

	fmt.Printf("Found %d orphaned agent(s):\n", len(orphans))
	for _, o := range orphans {
		verdict := color.RedString("not resumable")
		if o.Resumable {
			verdict = color.GreenString("resumable")
		}
		fmt.Printf("  %s: node=%s session=%s last status=%s (%s)\n",
			o.Agent.ID, o.Agent.NodeID, o.Agent.SessionID, o.Agent.Status, verdict)
	}

	if !orphansArchive {
		return nil
	}

	archived := 0
	for _, o := range orphans {
		if o.Resumable {
			continue
		}
		if err := deps.recovery.Archive(o.Agent.ID); err != nil {
			return fmt.Errorf("archive %s: %w", o.Agent.ID, err)
		}
		archived++
	}
	fmt.Printf("Archived %d non-resumable orphan(s).\n", archived)
	return nil
}
