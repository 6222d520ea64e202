package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// SessionStore handles session, node, and wave persistence.
type SessionStore interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	ListActiveSessions() ([]string, error)
	UpdateSessionStatus(id string, status models.SessionStatus, pausedReason string) error
	UpdateNodeStatus(sessionID, nodeID string, status models.NodeStatus, errMsg string) error
	UpdateWaveStatus(sessionID string, waveIndex int, status models.WaveStatus) error
}

// AgentStore handles agent-record persistence.
type AgentStore interface {
	CreateAgent(a *models.Agent) error
	GetAgent(id string) (*models.Agent, error)
	UpdateAgentStatus(id string, status models.AgentStatus) error
	UpdateAgentContext(id, contextID string) error
	UpdateAgentCost(id string, costUSD float64) error
	TouchAgentOutput(id string, at time.Time) error
	ListAgentsBySession(sessionID string) ([]models.Agent, error)
	ListAgents(status *models.AgentStatus) ([]models.Agent, error)
	ArchiveAgent(id string) error
	SessionTotalCost(sessionID string) (float64, error)
}

// ArchiveStore handles the archived ledger.
type ArchiveStore interface {
	ArchiveSession(id string) (*models.ArchivedSession, error)
	GetArchivedSession(id string) (*models.ArchivedSession, error)
	GetLedger() (*Ledger, error)
	PurgeArchived(olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the complete interface for state persistence. The engine
// depends on this interface, never on the concrete SQLite implementation,
// and callers never get raw document read/write access.
type Store interface {
	io.Closer
	Migrator
	SessionStore
	AgentStore
	ArchiveStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ SessionStore = (*DB)(nil)
	_ AgentStore   = (*DB)(nil)
	_ ArchiveStore = (*DB)(nil)
)
