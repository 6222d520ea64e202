package models

import "time"

// AgentStatus represents the lifecycle state of an execution context.
//
// The state machine is spawned -> active <-> idle -> {complete | failed},
// with killed reachable from any state when the hosted subprocess disappears.
type AgentStatus string

const (
	// AgentStatusSpawned indicates the context was created but has not
	// produced classifiable output yet.
	AgentStatusSpawned AgentStatus = "spawned"
	// AgentStatusActive indicates the executor is producing output.
	AgentStatusActive AgentStatus = "active"
	// AgentStatusIdle indicates the executor is waiting at an interactive
	// prompt with no pending work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusComplete indicates the executor signalled done and the
	// work was persisted.
	AgentStatusComplete AgentStatus = "complete"
	// AgentStatusFailed indicates the executor reported an error. Terminal;
	// there is no automatic retry.
	AgentStatusFailed AgentStatus = "failed"
	// AgentStatusKilled indicates the hosted subprocess no longer exists.
	AgentStatusKilled AgentStatus = "killed"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusSpawned, AgentStatusActive, AgentStatusIdle,
		AgentStatusComplete, AgentStatusFailed, AgentStatusKilled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is an end state for the agent.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusComplete || s == AgentStatusFailed || s == AgentStatusKilled
}

// Agent is the durable record of one execution context working a node.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// SessionID is the owning orchestration session.
	SessionID string `json:"session_id"`
	// NodeID is the workstream node this agent is executing.
	NodeID string `json:"node_id"`
	// Status is the current lifecycle state.
	Status AgentStatus `json:"status"`
	// WorkspacePath is the isolated workspace directory.
	WorkspacePath string `json:"workspace_path,omitempty"`
	// BranchRef is the branch-like identifier of the workspace.
	BranchRef string `json:"branch_ref,omitempty"`
	// ContextID is the process-hosting handle for the subprocess.
	ContextID string `json:"context_id,omitempty"`
	// CreatedAt is when the execution context was materialized.
	CreatedAt time.Time `json:"created_at"`
	// LastOutputAt is when the context's captured output last changed.
	LastOutputAt *time.Time `json:"last_output_at,omitempty"`
	// CostUSD is the accumulated cost attributed to this agent.
	CostUSD float64 `json:"cost_usd"`
}
