package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// ErrSessionNotFound indicates the requested session is not in the active set.
var ErrSessionNotFound = fmt.Errorf("session not found")

// CreateSession persists a new session and its precomputed waves in a
// single transaction.
func (db *DB) CreateSession(s *models.Session) error {
	nodesJSON, err := json.Marshal(s.Nodes)
	if err != nil {
		return fmt.Errorf("marshal session nodes: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, created_at, status, base_ref, budget_ceiling_usd, paused_reason, nodes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID, formatTime(s.CreatedAt), string(s.Status), s.BaseRef, s.BudgetCeilingUSD, s.PausedReason, string(nodesJSON))
		if err != nil {
			return fmt.Errorf("create session %s: %w", s.ID, err)
		}

		for _, w := range s.Waves {
			membersJSON, err := json.Marshal(w.Members)
			if err != nil {
				return fmt.Errorf("marshal wave %d members: %w", w.Index, err)
			}
			_, err = tx.Exec(`
				INSERT INTO waves (session_id, wave_index, members, status)
				VALUES (?, ?, ?, ?)
			`, s.ID, w.Index, string(membersJSON), string(w.Status))
			if err != nil {
				return fmt.Errorf("create wave %d for session %s: %w", w.Index, s.ID, err)
			}
		}

		return nil
	})
}

// GetSession retrieves a session snapshot, including its waves.
// Returns ErrSessionNotFound if the session is not in the active set.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.QueryRow(`
		SELECT id, created_at, status, base_ref, budget_ceiling_usd, paused_reason, nodes
		FROM sessions WHERE id = ?
	`, id)

	var s models.Session
	var createdAt, nodesJSON string
	var pausedReason sql.NullString
	err := row.Scan(&s.ID, &createdAt, &s.Status, &s.BaseRef, &s.BudgetCeilingUSD, &pausedReason, &nodesJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	s.CreatedAt, _ = parseTime(createdAt)
	s.PausedReason = pausedReason.String
	if err := json.Unmarshal([]byte(nodesJSON), &s.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes for session %s: %w", id, err)
	}

	waves, err := db.listWaves(id)
	if err != nil {
		return nil, err
	}
	s.Waves = waves

	return &s, nil
}

// ListActiveSessions returns the IDs of all sessions in the active set,
// newest first.
func (db *DB) ListActiveSessions() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateSessionStatus sets a session's status and paused reason.
func (db *DB) UpdateSessionStatus(id string, status models.SessionStatus, pausedReason string) error {
	res, err := db.Exec(`
		UPDATE sessions SET status = ?, paused_reason = ?, version = version + 1
		WHERE id = ?
	`, string(status), pausedReason, id)
	if err != nil {
		return fmt.Errorf("update session %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// UpdateNodeStatus mutates one node's status inside the session's node
// document. The read-modify-write runs in a transaction so concurrent node
// updates from different contexts are never lost.
func (db *DB) UpdateNodeStatus(sessionID, nodeID string, status models.NodeStatus, errMsg string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var nodesJSON string
		err := tx.QueryRow(`SELECT nodes FROM sessions WHERE id = ?`, sessionID).Scan(&nodesJSON)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("read nodes for session %s: %w", sessionID, err)
		}

		var nodes map[string]*models.WorkstreamNode
		if err := json.Unmarshal([]byte(nodesJSON), &nodes); err != nil {
			return fmt.Errorf("unmarshal nodes for session %s: %w", sessionID, err)
		}

		node, ok := nodes[nodeID]
		if !ok {
			return fmt.Errorf("session %s has no node %s", sessionID, nodeID)
		}
		node.Status = status
		node.Error = errMsg

		updated, err := json.Marshal(nodes)
		if err != nil {
			return fmt.Errorf("marshal nodes for session %s: %w", sessionID, err)
		}

		_, err = tx.Exec(`
			UPDATE sessions SET nodes = ?, version = version + 1 WHERE id = ?
		`, string(updated), sessionID)
		if err != nil {
			return fmt.Errorf("write nodes for session %s: %w", sessionID, err)
		}
		return nil
	})
}

// UpdateWaveStatus transitions a wave's status, stamping started_at on the
// transition into active and completed_at on a transition into a terminal
// status. Re-asserting the current status refreshes nothing. A terminal
// wave forced back into active drops its stale completed_at; the next
// terminal transition restamps it.
func (db *DB) UpdateWaveStatus(sessionID string, waveIndex int, status models.WaveStatus) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var current string
		var startedAt, completedAt sql.NullString
		err := tx.QueryRow(`
			SELECT status, started_at, completed_at FROM waves
			WHERE session_id = ? AND wave_index = ?
		`, sessionID, waveIndex).Scan(&current, &startedAt, &completedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session %s has no wave %d", sessionID, waveIndex)
		}
		if err != nil {
			return fmt.Errorf("read wave %d for session %s: %w", waveIndex, sessionID, err)
		}

		now := formatTime(time.Now())
		newStarted := startedAt
		newCompleted := completedAt

		if status == models.WaveStatusActive && models.WaveStatus(current) != models.WaveStatusActive {
			if !startedAt.Valid {
				newStarted = sql.NullString{String: now, Valid: true}
			}
			newCompleted = sql.NullString{}
		}
		if status.Terminal() && !models.WaveStatus(current).Terminal() {
			newCompleted = sql.NullString{String: now, Valid: true}
		}

		_, err = tx.Exec(`
			UPDATE waves SET status = ?, started_at = ?, completed_at = ?
			WHERE session_id = ? AND wave_index = ?
		`, string(status), newStarted, newCompleted, sessionID, waveIndex)
		if err != nil {
			return fmt.Errorf("update wave %d for session %s: %w", waveIndex, sessionID, err)
		}
		return nil
	})
}

// listWaves returns a session's waves in order.
func (db *DB) listWaves(sessionID string) ([]*models.Wave, error) {
	rows, err := db.Query(`
		SELECT wave_index, members, status, started_at, completed_at
		FROM waves WHERE session_id = ? ORDER BY wave_index
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list waves for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var waves []*models.Wave
	for rows.Next() {
		var w models.Wave
		var membersJSON string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&w.Index, &membersJSON, &w.Status, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan wave for session %s: %w", sessionID, err)
		}
		if err := json.Unmarshal([]byte(membersJSON), &w.Members); err != nil {
			return nil, fmt.Errorf("unmarshal wave members: %w", err)
		}
		w.StartedAt = parseNullableTime(startedAt)
		w.CompletedAt = parseNullableTime(completedAt)
		waves = append(waves, &w)
	}
	return waves, rows.Err()
}
