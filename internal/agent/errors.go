package agent

import "fmt"

// StartupTimeoutError indicates a hosted subprocess never produced its
// readiness sentinel within the startup window. The captured output is
// persisted as a diagnostic artifact; the operator may retry the node.
type StartupTimeoutError struct {
	// SessionID is the owning session.
	SessionID string
	// NodeID is the node whose context failed to start.
	NodeID string
	// DiagnosticPath is where the captured output buffer was written.
	DiagnosticPath string
}

// Error returns a human-readable description.
func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("session %s node %s: executor did not become ready in time (diagnostic at %s)",
		e.SessionID, e.NodeID, e.DiagnosticPath)
}
