package state

import (
	"errors"
	"testing"
	"time"
)

func TestArchiveSession_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	costs := map[string]float64{"agent-1": 3.00, "agent-2": 1.50}
	for id, cost := range costs {
		if err := db.CreateAgent(newTestAgent(id, "sess-1", "auth")); err != nil {
			t.Fatalf("CreateAgent(%s) failed: %v", id, err)
		}
		if err := db.UpdateAgentCost(id, cost); err != nil {
			t.Fatalf("UpdateAgentCost(%s) failed: %v", id, err)
		}
	}

	archived, err := db.ArchiveSession("sess-1")
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if archived.TotalCostUSD != 4.50 {
		t.Errorf("TotalCostUSD = %v, want 4.50", archived.TotalCostUSD)
	}
	if archived.AgentCount != 2 {
		t.Errorf("AgentCount = %d, want 2", archived.AgentCount)
	}
	if archived.ArchivedAt.IsZero() {
		t.Error("ArchivedAt not stamped")
	}

	// The session is in exactly one collection after archival.
	if _, err := db.GetSession("sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session still in active set: %v", err)
	}
	got, err := db.GetArchivedSession("sess-1")
	if err != nil {
		t.Fatalf("GetArchivedSession failed: %v", err)
	}
	if got.TotalCostUSD != archived.TotalCostUSD {
		t.Errorf("stored TotalCostUSD = %v, want %v", got.TotalCostUSD, archived.TotalCostUSD)
	}

	// Agents follow the session into the archived set.
	live, err := db.ListAgentsBySession("sess-1")
	if err != nil {
		t.Fatalf("ListAgentsBySession failed: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("len(live agents) = %d, want 0", len(live))
	}
}

func TestArchiveSession_NotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.ArchiveSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestArchiveSession_AlreadyArchived(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := db.ArchiveSession("sess-1"); err != nil {
		t.Fatalf("first ArchiveSession failed: %v", err)
	}
	if _, err := db.ArchiveSession("sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second archive, got %v", err)
	}
}

func TestLedger_Accumulates(t *testing.T) {
	db := setupTestDB(t)

	l, err := db.GetLedger()
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if l.TotalCostUSD != 0 || l.TotalAgents != 0 {
		t.Fatalf("fresh ledger = %+v, want zeros", l)
	}

	sessions := map[string]float64{"sess-a": 2.00, "sess-b": 3.25}
	for id, cost := range sessions {
		if err := db.CreateSession(newTestSession(id)); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", id, err)
		}
		if err := db.CreateAgent(newTestAgent("agent-"+id, id, "auth")); err != nil {
			t.Fatalf("CreateAgent failed: %v", err)
		}
		if err := db.UpdateAgentCost("agent-"+id, cost); err != nil {
			t.Fatalf("UpdateAgentCost failed: %v", err)
		}
		if _, err := db.ArchiveSession(id); err != nil {
			t.Fatalf("ArchiveSession(%s) failed: %v", id, err)
		}
	}

	l, err = db.GetLedger()
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if l.TotalCostUSD != 5.25 {
		t.Errorf("TotalCostUSD = %v, want 5.25", l.TotalCostUSD)
	}
	if l.TotalAgents != 2 {
		t.Errorf("TotalAgents = %d, want 2", l.TotalAgents)
	}
}

func TestPurgeArchived_KeepsLedger(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSession(newTestSession("sess-1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := db.CreateAgent(newTestAgent("agent-1", "sess-1", "auth")); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if err := db.UpdateAgentCost("agent-1", 1.00); err != nil {
		t.Fatalf("UpdateAgentCost failed: %v", err)
	}
	if _, err := db.ArchiveSession("sess-1"); err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}

	// Nothing is old enough yet.
	n, err := db.PurgeArchived(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeArchived failed: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d sessions, want 0", n)
	}

	// Everything qualifies once the retention window is behind us.
	n, err = db.PurgeArchived(-time.Minute)
	if err != nil {
		t.Fatalf("PurgeArchived failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d sessions, want 1", n)
	}
	if _, err := db.GetArchivedSession("sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("archived row should be gone, got %v", err)
	}

	// The running totals survive the purge.
	l, err := db.GetLedger()
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if l.TotalCostUSD != 1.00 || l.TotalAgents != 1 {
		t.Errorf("ledger after purge = %+v, want totals preserved", l)
	}
}
