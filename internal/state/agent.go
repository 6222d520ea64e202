package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// ErrAgentNotFound indicates the requested agent record does not exist.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// CreateAgent persists a new agent record.
func (db *DB) CreateAgent(a *models.Agent) error {
	var lastOutput any
	if a.LastOutputAt != nil {
		lastOutput = formatTime(*a.LastOutputAt)
	}

	_, err := db.Exec(`
		INSERT INTO agents (id, session_id, node_id, status, workspace_path, branch_ref, context_id, created_at, last_output_at, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.NodeID, string(a.Status), a.WorkspacePath, a.BranchRef, a.ContextID,
		formatTime(a.CreatedAt), lastOutput, a.CostUSD)
	if err != nil {
		return fmt.Errorf("create agent %s for session %s: %w", a.ID, a.SessionID, err)
	}
	return nil
}

// GetAgent retrieves an agent record by ID, archived or not.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow(`
		SELECT id, session_id, node_id, status, workspace_path, branch_ref, context_id, created_at, last_output_at, cost_usd
		FROM agents WHERE id = ?
	`, id)

	a, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

// UpdateAgentStatus sets an agent's lifecycle status. Idempotent: applying
// the same status again leaves the record unchanged.
func (db *DB) UpdateAgentStatus(id string, status models.AgentStatus) error {
	res, err := db.Exec(`UPDATE agents SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update agent %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return nil
}

// UpdateAgentCost sets an agent's accumulated cost. The session total is
// always derived from agent rows, so no session mutation happens here.
func (db *DB) UpdateAgentCost(id string, costUSD float64) error {
	res, err := db.Exec(`UPDATE agents SET cost_usd = ? WHERE id = ?`, costUSD, id)
	if err != nil {
		return fmt.Errorf("update agent %s cost: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return nil
}

// UpdateAgentContext replaces an agent's hosted-context handle, used when
// recovery spawns a new subprocess into an existing workspace.
func (db *DB) UpdateAgentContext(id, contextID string) error {
	res, err := db.Exec(`UPDATE agents SET context_id = ? WHERE id = ?`, contextID, id)
	if err != nil {
		return fmt.Errorf("update agent %s context: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return nil
}

// TouchAgentOutput records when the agent's captured output last changed.
func (db *DB) TouchAgentOutput(id string, at time.Time) error {
	_, err := db.Exec(`UPDATE agents SET last_output_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch agent %s output: %w", id, err)
	}
	return nil
}

// ListAgentsBySession returns all non-archived agents for a session.
func (db *DB) ListAgentsBySession(sessionID string) ([]models.Agent, error) {
	rows, err := db.Query(`
		SELECT id, session_id, node_id, status, workspace_path, branch_ref, context_id, created_at, last_output_at, cost_usd
		FROM agents WHERE session_id = ? AND archived = 0 ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list agents for session %s: %w", sessionID, err)
	}
	return collectAgents(rows)
}

// ListAgents returns all non-archived agents, optionally filtered by status.
func (db *DB) ListAgents(status *models.AgentStatus) ([]models.Agent, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, session_id, node_id, status, workspace_path, branch_ref, context_id, created_at, last_output_at, cost_usd
			FROM agents WHERE status = ? AND archived = 0 ORDER BY created_at
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, session_id, node_id, status, workspace_path, branch_ref, context_id, created_at, last_output_at, cost_usd
			FROM agents WHERE archived = 0 ORDER BY created_at
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return collectAgents(rows)
}

// ArchiveAgent moves an agent's metadata into the archived set without
// touching its workspace.
func (db *DB) ArchiveAgent(id string) error {
	res, err := db.Exec(`UPDATE agents SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("archive agent %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return nil
}

// SessionTotalCost derives the session's total cost as the sum of all its
// agents' cost fields, archived ones included. The total is never stored
// independently.
func (db *DB) SessionTotalCost(sessionID string) (float64, error) {
	row := db.QueryRow(`
		SELECT COALESCE(SUM(cost_usd), 0.0) FROM agents WHERE session_id = ?
	`, sessionID)

	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum agent costs for session %s: %w", sessionID, err)
	}
	return total, nil
}

// scanAgent reads one agent row via the given scan function.
func scanAgent(scan func(...any) error) (*models.Agent, error) {
	var a models.Agent
	var createdAt string
	var lastOutputAt sql.NullString
	var workspacePath, branchRef, contextID sql.NullString

	err := scan(&a.ID, &a.SessionID, &a.NodeID, &a.Status, &workspacePath, &branchRef,
		&contextID, &createdAt, &lastOutputAt, &a.CostUSD)
	if err != nil {
		return nil, err
	}

	a.WorkspacePath = workspacePath.String
	a.BranchRef = branchRef.String
	a.ContextID = contextID.String
	a.CreatedAt, _ = parseTime(createdAt)
	a.LastOutputAt = parseNullableTime(lastOutputAt)
	return &a, nil
}

// collectAgents drains agent rows into a slice.
func collectAgents(rows *sql.Rows) ([]models.Agent, error) {
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}
