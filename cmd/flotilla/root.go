package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/host"
)

// CheckPrerequisites verifies tmux and git are available in PATH, plus
// the configured executor command. Returns an error with installation
// guidance when something is missing.
func CheckPrerequisites(startupCommand string) error {
	if !host.Available() {
		return fmt.Errorf("tmux not found in PATH\n\n" +
			"Flotilla hosts executor subprocesses in tmux sessions.\n\n" +
			"Install it with your package manager, e.g.:\n" +
			"  apt install tmux\n" +
			"  brew install tmux")
	}
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH\n\n" +
			"Flotilla isolates each workstream in a git worktree.")
	}
	if startupCommand != "" {
		bin := strings.Fields(startupCommand)[0]
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("executor command %q not found in PATH\n\n"+
				"Set executor.startup_command in your config to a command\n"+
				"that is installed, or install %s.", bin, bin)
		}
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Wave-based multi-agent orchestration",
	Long: `Flotilla drives a fleet of coding agents through a dependency graph
of workstreams. The graph is compiled into waves of independently
runnable nodes; each node gets an isolated git worktree and a hosted
executor subprocess, and the scheduler admits work wave by wave under
a concurrency limit and a cost budget.

Typical flow:
  flotilla plan plan.yaml          # compile the plan, create a session
  flotilla run <session-id>        # execute waves in order
  flotilla status                  # inspect sessions, waves, and agents
  flotilla cleanup <agent-id>      # merge and tear down a finished agent
  flotilla archive <session-id>    # move a finished session to the ledger`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(wavesCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(versionCmd)
}
