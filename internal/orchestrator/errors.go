package orchestrator

import "fmt"

// BudgetExceededError indicates a session's cumulative cost reached the
// hard-stop fraction of its ceiling. The session is paused, not crashed;
// running contexts finish naturally but no new ones are admitted.
type BudgetExceededError struct {
	// SessionID is the paused session.
	SessionID string
	// CostUSD is the cumulative cost at the time of refusal.
	CostUSD float64
	// CeilingUSD is the session's budget ceiling.
	CeilingUSD float64
}

// Error returns a human-readable description.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("session %s: cost $%.2f reached the stop threshold of the $%.2f budget",
		e.SessionID, e.CostUSD, e.CeilingUSD)
}

// WaveNotRunnableError indicates a wave cannot start because an earlier
// wave has not completed. A failed earlier wave requires an explicit
// operator override.
type WaveNotRunnableError struct {
	// SessionID is the session.
	SessionID string
	// WaveIndex is the wave that was requested.
	WaveIndex int
	// BlockingWave is the earlier wave that is not complete.
	BlockingWave int
	// BlockingStatus is that wave's current status.
	BlockingStatus string
}

// Error returns a human-readable description.
func (e *WaveNotRunnableError) Error() string {
	return fmt.Sprintf("session %s: wave %d cannot start, wave %d is %s",
		e.SessionID, e.WaveIndex, e.BlockingWave, e.BlockingStatus)
}
