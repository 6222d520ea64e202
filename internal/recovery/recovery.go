// Package recovery reconciles the state store against live hosted
// contexts after a coordinator crash or restart. Agents whose subprocess
// is gone but whose metadata persists are orphans; ones whose workspace
// still holds a transcript artifact can be resumed.
package recovery

import (
	"fmt"

	"github.com/ShayCichocki/flotilla/internal/host"
	"github.com/ShayCichocki/flotilla/internal/monitor"
	"github.com/ShayCichocki/flotilla/internal/state"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

// OrphanError indicates an orphan operation could not proceed. Reported
// distinctly so resume failures are never silently dropped.
type OrphanError struct {
	// AgentID is the agent the operation targeted.
	AgentID string
	// Reason describes why the operation failed.
	Reason string
}

// Error returns a human-readable description.
func (e *OrphanError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.AgentID, e.Reason)
}

// Orphan is an agent record whose hosted subprocess is no longer live.
type Orphan struct {
	// Agent is the orphaned agent record.
	Agent models.Agent
	// Resumable is true when the workspace retains a transcript
	// artifact a new subprocess can pick up from.
	Resumable bool
}

// ContextResumer starts a new hosted subprocess in an agent's existing
// workspace. Satisfied by agent.Manager.
type ContextResumer interface {
	Resume(a *models.Agent, node *models.WorkstreamNode) error
}

// Manager detects and dispositions orphaned execution contexts.
type Manager struct {
	store    state.Store
	host     host.Host
	contexts ContextResumer
}

// NewManager creates a recovery manager over the given collaborators.
func NewManager(store state.Store, h host.Host, contexts ContextResumer) *Manager {
	return &Manager{store: store, host: h, contexts: contexts}
}

// ListOrphans scans every non-terminal agent record and returns those
// whose hosted context cannot be confirmed live, with resumability
// classified from the workspace's transcript artifact.
func (m *Manager) ListOrphans() ([]Orphan, error) {
	agents, err := m.store.ListAgents(nil)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	var orphans []Orphan
	for _, a := range agents {
		if a.Status.Terminal() {
			continue
		}
		if m.host.Exists(a.ContextID) {
			continue
		}
		orphans = append(orphans, Orphan{
			Agent:     a,
			Resumable: monitor.HasTranscript(a.WorkspacePath),
		})
	}
	return orphans, nil
}

// Resume creates a new hosted subprocess in the orphan's existing
// workspace and instructs the executor to resume from the transcript.
func (m *Manager) Resume(agentID string) error {
	a, err := m.store.GetAgent(agentID)
	if err != nil {
		return err
	}
	if m.host.Exists(a.ContextID) {
		return &OrphanError{AgentID: agentID, Reason: "context is still live, nothing to resume"}
	}
	if !monitor.HasTranscript(a.WorkspacePath) {
		return &OrphanError{AgentID: agentID, Reason: "workspace has no transcript artifact, not resumable"}
	}

	s, err := m.store.GetSession(a.SessionID)
	if err != nil {
		return fmt.Errorf("agent %s: %w", agentID, err)
	}
	node := s.Nodes[a.NodeID]
	if node == nil {
		return &OrphanError{AgentID: agentID, Reason: fmt.Sprintf("session %s has no node %s", a.SessionID, a.NodeID)}
	}

	if err := m.contexts.Resume(a, node); err != nil {
		return &OrphanError{AgentID: agentID, Reason: fmt.Sprintf("resume failed: %v", err)}
	}

	if err := m.store.UpdateAgentContext(agentID, a.ContextID); err != nil {
		return err
	}
	return m.store.UpdateAgentStatus(agentID, a.Status)
}

// Archive moves an orphan's metadata into the archived set. Its
// workspace and branch are untouched; removal is a separate action with
// the usual dirty-workspace check.
func (m *Manager) Archive(agentID string) error {
	a, err := m.store.GetAgent(agentID)
	if err != nil {
		return err
	}
	if m.host.Exists(a.ContextID) {
		return &OrphanError{AgentID: agentID, Reason: "context is still live, kill it before archiving"}
	}

	if !a.Status.Terminal() {
		if err := m.store.UpdateAgentStatus(agentID, models.AgentStatusKilled); err != nil {
			return err
		}
	}
	return m.store.ArchiveAgent(agentID)
}
