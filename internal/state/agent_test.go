package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// newTestAgent builds an agent record attached to the given session.
func newTestAgent(id, sessionID, nodeID string) *models.Agent {
	return &models.Agent{
		ID:            id,
		SessionID:     sessionID,
		NodeID:        nodeID,
		Status:        models.AgentStatusSpawned,
		WorkspacePath: "/tmp/worktrees/" + nodeID,
		BranchRef:     "flotilla/" + nodeID,
		ContextID:     "flotilla_" + nodeID,
		CreatedAt:     time.Now(),
	}
}

func TestCreateAndGetAgent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	a := newTestAgent("agent-1", "sess-1", "auth")
	if err := db.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.SessionID != "sess-1" || got.NodeID != "auth" {
		t.Errorf("got session %q node %q", got.SessionID, got.NodeID)
	}
	if got.Status != models.AgentStatusSpawned {
		t.Errorf("Status = %q, want %q", got.Status, models.AgentStatusSpawned)
	}
	if got.BranchRef != "flotilla/auth" {
		t.Errorf("BranchRef = %q", got.BranchRef)
	}
	if got.LastOutputAt != nil {
		t.Error("LastOutputAt should be nil until first touch")
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetAgent("missing")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestUpdateAgentStatus_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := db.CreateAgent(newTestAgent("agent-1", "sess-1", "auth")); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	// Repeated application of the same status converges to the same state.
	for i := 0; i < 3; i++ {
		if err := db.UpdateAgentStatus("agent-1", models.AgentStatusActive); err != nil {
			t.Fatalf("UpdateAgentStatus iteration %d failed: %v", i, err)
		}
	}

	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.Status != models.AgentStatusActive {
		t.Errorf("Status = %q, want %q", got.Status, models.AgentStatusActive)
	}

	if err := db.UpdateAgentStatus("missing", models.AgentStatusActive); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestTouchAgentOutput(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := db.CreateAgent(newTestAgent("agent-1", "sess-1", "auth")); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	at := time.Now().Truncate(time.Second)
	if err := db.TouchAgentOutput("agent-1", at); err != nil {
		t.Fatalf("TouchAgentOutput failed: %v", err)
	}

	got, err := db.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.LastOutputAt == nil || !got.LastOutputAt.Equal(at) {
		t.Errorf("LastOutputAt = %v, want %v", got.LastOutputAt, at)
	}
}

func TestListAgents_FiltersStatusAndArchived(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	for _, id := range []string{"agent-1", "agent-2", "agent-3"} {
		if err := db.CreateAgent(newTestAgent(id, "sess-1", "auth")); err != nil {
			t.Fatalf("CreateAgent(%s) failed: %v", id, err)
		}
	}
	if err := db.UpdateAgentStatus("agent-2", models.AgentStatusComplete); err != nil {
		t.Fatalf("UpdateAgentStatus failed: %v", err)
	}
	if err := db.ArchiveAgent("agent-3"); err != nil {
		t.Fatalf("ArchiveAgent failed: %v", err)
	}

	all, err := db.ListAgents(nil)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2 (archived excluded)", len(all))
	}

	spawned := models.AgentStatusSpawned
	filtered, err := db.ListAgents(&spawned)
	if err != nil {
		t.Fatalf("ListAgents(spawned) failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "agent-1" {
		t.Errorf("filtered = %v, want just agent-1", filtered)
	}

	bySession, err := db.ListAgentsBySession("sess-1")
	if err != nil {
		t.Fatalf("ListAgentsBySession failed: %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("len(bySession) = %d, want 2", len(bySession))
	}
}

func TestSessionTotalCost_Derived(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	total, err := db.SessionTotalCost("sess-1")
	if err != nil {
		t.Fatalf("SessionTotalCost failed: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %v, want 0 with no agents", total)
	}

	costs := map[string]float64{"agent-1": 1.25, "agent-2": 2.50, "agent-3": 0.75}
	for id, cost := range costs {
		if err := db.CreateAgent(newTestAgent(id, "sess-1", "auth")); err != nil {
			t.Fatalf("CreateAgent(%s) failed: %v", id, err)
		}
		if err := db.UpdateAgentCost(id, cost); err != nil {
			t.Fatalf("UpdateAgentCost(%s) failed: %v", id, err)
		}
	}

	total, err = db.SessionTotalCost("sess-1")
	if err != nil {
		t.Fatalf("SessionTotalCost failed: %v", err)
	}
	if total != 4.50 {
		t.Errorf("total = %v, want 4.50", total)
	}

	// Archived agents still count toward the derived total.
	if err := db.ArchiveAgent("agent-2"); err != nil {
		t.Fatalf("ArchiveAgent failed: %v", err)
	}
	total, _ = db.SessionTotalCost("sess-1")
	if total != 4.50 {
		t.Errorf("total after archive = %v, want 4.50", total)
	}
}
