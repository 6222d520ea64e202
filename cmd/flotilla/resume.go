package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/flotilla/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <agent-id>",
	Short: "Resume an orphaned agent in its existing workspace",
	Long: `Resume an orphaned agent.

A fresh context is started in the agent's existing workspace and the
original task is redelivered with a resume preamble, so committed work
survives and uncommitted work stays in place. Resume requires the
workspace transcript; an agent whose context is still alive, or whose
workspace lost its transcript, is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	deps, err := buildEngine(config.SessionOverlay{})
	if err != nil {
		return err
	}
	defer deps.store.Close()

	if err := CheckPrerequisites(deps.cfg.Executor.StartupCommand); err != nil {
		return err
	}

	if err := deps.recovery.Resume(args[0]); err != nil {
		return fmt.Errorf("resume agent: %w", err)
	}
	color.Green("Agent %s resumed.", args[0])
	return nil
}
