package models

import "time"

// SessionStatus represents the current state of an orchestration session.
type SessionStatus string

const (
	// SessionStatusActive indicates the session is executing or executable.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusPaused indicates admission is suspended, typically by
	// the budget guardrail or an operator.
	SessionStatusPaused SessionStatus = "paused"
	// SessionStatusComplete indicates every wave reached a terminal state.
	SessionStatusComplete SessionStatus = "complete"
)

// Valid returns true if the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusComplete:
		return true
	default:
		return false
	}
}

// Session is the aggregate root for one orchestrated run: a compiled DAG,
// its waves, and the agents materialized for its nodes.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
	// Status is the current state of the session.
	Status SessionStatus `json:"status"`
	// BaseRef is the base line completed work is reconciled into.
	BaseRef string `json:"base_ref"`
	// Nodes holds the session's workstream nodes keyed by node ID.
	Nodes map[string]*WorkstreamNode `json:"nodes"`
	// Waves is the precomputed execution schedule in order.
	Waves []*Wave `json:"waves"`
	// BudgetCeilingUSD is the maximum cumulative cost before new work is
	// blocked. Zero means no limit.
	BudgetCeilingUSD float64 `json:"budget_ceiling_usd"`
	// PausedReason describes why the session is paused, if it is.
	PausedReason string `json:"paused_reason,omitempty"`
}

// ArchivedSession is the terminal snapshot of a session after it leaves
// the active set. It feeds the append-only ledger of aggregate totals.
type ArchivedSession struct {
	// ID is the archived session's identifier.
	ID string `json:"id"`
	// CreatedAt is when the session was originally created.
	CreatedAt time.Time `json:"created_at"`
	// ArchivedAt is when the session was moved out of the active set.
	ArchivedAt time.Time `json:"archived_at"`
	// Status is the session status at archival time.
	Status SessionStatus `json:"status"`
	// TotalCostUSD is the sum of all agent costs at archival time.
	TotalCostUSD float64 `json:"total_cost_usd"`
	// AgentCount is the number of agents the session ever spawned.
	AgentCount int `json:"agent_count"`
}

// BudgetState classifies cumulative cost against the session budget.
type BudgetState int

const (
	// BudgetOK indicates usage is below the warning fraction.
	BudgetOK BudgetState = iota
	// BudgetWarn indicates usage is at or above the warning fraction but
	// below the hard stop; admission continues with a flagged condition.
	BudgetWarn
	// BudgetStop indicates usage reached the hard-stop fraction; no new
	// contexts are admitted and the session pauses.
	BudgetStop
)

// String returns a human-readable representation of the budget state.
func (b BudgetState) String() string {
	switch b {
	case BudgetOK:
		return "OK"
	case BudgetWarn:
		return "WARN"
	case BudgetStop:
		return "STOP"
	default:
		return "Unknown"
	}
}
