package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// Ledger holds the append-only running totals across all archived sessions.
type Ledger struct {
	// TotalCostUSD is the aggregate cost of every archived session.
	TotalCostUSD float64
	// TotalAgents is the number of agents ever spawned across archived
	// sessions.
	TotalAgents int
}

// ArchiveSession atomically moves a session from the active set into the
// archived ledger. Within one transaction it snapshots the derived total
// cost and agent count, inserts the archived row, bumps the ledger totals,
// marks the session's agents archived, and removes the active session row.
// At no point does the session exist in both collections, or in neither.
func (db *DB) ArchiveSession(id string) (*models.ArchivedSession, error) {
	var archived models.ArchivedSession

	err := db.Transaction(func(tx *sql.Tx) error {
		var createdAt, status string
		err := tx.QueryRow(`SELECT created_at, status FROM sessions WHERE id = ?`, id).
			Scan(&createdAt, &status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("read session %s: %w", id, err)
		}

		var totalCost float64
		var agentCount int
		err = tx.QueryRow(`
			SELECT COALESCE(SUM(cost_usd), 0.0), COUNT(*) FROM agents WHERE session_id = ?
		`, id).Scan(&totalCost, &agentCount)
		if err != nil {
			return fmt.Errorf("sum agents for session %s: %w", id, err)
		}

		now := time.Now()
		archived = models.ArchivedSession{
			ID:           id,
			Status:       models.SessionStatus(status),
			ArchivedAt:   now,
			TotalCostUSD: totalCost,
			AgentCount:   agentCount,
		}
		archived.CreatedAt, _ = parseTime(createdAt)

		_, err = tx.Exec(`
			INSERT INTO archived_sessions (id, created_at, archived_at, status, total_cost_usd, agent_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, createdAt, formatTime(now), status, totalCost, agentCount)
		if err != nil {
			return fmt.Errorf("insert archived session %s: %w", id, err)
		}

		_, err = tx.Exec(`
			UPDATE ledger SET total_cost_usd = total_cost_usd + ?, total_agents = total_agents + ?
			WHERE id = 1
		`, totalCost, agentCount)
		if err != nil {
			return fmt.Errorf("update ledger for session %s: %w", id, err)
		}

		if _, err := tx.Exec(`UPDATE agents SET archived = 1 WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("archive agents for session %s: %w", id, err)
		}

		if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("remove active session %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM waves WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("remove waves for session %s: %w", id, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &archived, nil
}

// GetArchivedSession retrieves an archived session snapshot.
func (db *DB) GetArchivedSession(id string) (*models.ArchivedSession, error) {
	row := db.QueryRow(`
		SELECT id, created_at, archived_at, status, total_cost_usd, agent_count
		FROM archived_sessions WHERE id = ?
	`, id)

	var a models.ArchivedSession
	var createdAt, archivedAt string
	err := row.Scan(&a.ID, &createdAt, &archivedAt, &a.Status, &a.TotalCostUSD, &a.AgentCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archived session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get archived session %s: %w", id, err)
	}

	a.CreatedAt, _ = parseTime(createdAt)
	a.ArchivedAt, _ = parseTime(archivedAt)
	return &a, nil
}

// GetLedger returns the running totals across all archived sessions.
func (db *DB) GetLedger() (*Ledger, error) {
	row := db.QueryRow(`SELECT total_cost_usd, total_agents FROM ledger WHERE id = 1`)

	var l Ledger
	if err := row.Scan(&l.TotalCostUSD, &l.TotalAgents); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return &l, nil
}

// PurgeArchived deletes archived sessions older than the given duration.
// The ledger totals are append-only and survive the purge. Returns the
// number of sessions removed.
func (db *DB) PurgeArchived(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(`DELETE FROM archived_sessions WHERE archived_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge archived sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
