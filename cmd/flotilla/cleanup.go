package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/agent"
	"github.com/ShayCichocki/flotilla/internal/config"
)

var (
	cleanupMerge bool
	cleanupForce bool
	cleanupPrune bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <agent-id>",
	Short: "Tear down an agent's context and workspace",
	Long: `Tear down an agent: kill its hosted context, optionally merge its
branch into the session base ref, and remove its worktree.

A workspace with uncommitted changes refuses teardown unless --force
is given. With --merge, the agent's branch is merged first; a branch
with no new commits is a clean no-op, and a conflicted merge is
aborted with the workspace left intact for manual resolution.

Examples:
  flotilla cleanup a1b2c3 --merge   # merge then remove
  flotilla cleanup a1b2c3 --force   # discard uncommitted changes
  flotilla cleanup --prune          # drop stale worktree bookkeeping`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupMerge, "merge", false, "Merge the agent's branch into the base ref first")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Discard uncommitted changes")
	cleanupCmd.Flags().BoolVar(&cleanupPrune, "prune", false, "Prune stale worktree bookkeeping and exit")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	deps, err := buildEngine(config.SessionOverlay{})
	if err != nil {
		return err
	}
	defer deps.store.Close()

	if cleanupPrune {
		if err := deps.workspaces.Prune(); err != nil {
			return fmt.Errorf("prune worktrees: %w", err)
		}
		fmt.Println("Pruned stale worktree bookkeeping.")
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("agent-id required (or --prune)")
	}

	if err := deps.engine.Cleanup(args[0], agent.DestroyOptions{
		Merge: cleanupMerge,
		Force: cleanupForce,
	}); err != nil {
		return fmt.Errorf("cleanup agent: %w", err)
	}
	color.Green("Agent %s cleaned up.", args[0])
	return nil
}
