package models

import "testing"

func TestNodeStatusValid(t *testing.T) {
	valid := []NodeStatus{
		NodeStatusPending, NodeStatusReady, NodeStatusRunning,
		NodeStatusComplete, NodeStatusFailed,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if NodeStatus("bogus").Valid() {
		t.Error("expected bogus status to be invalid")
	}
}

func TestNodeStatusTerminal(t *testing.T) {
	if !NodeStatusComplete.Terminal() {
		t.Error("complete should be terminal")
	}
	if !NodeStatusFailed.Terminal() {
		t.Error("failed should be terminal")
	}
	if NodeStatusRunning.Terminal() {
		t.Error("running should not be terminal")
	}
}

func TestAgentStatusTerminal(t *testing.T) {
	tests := []struct {
		status   AgentStatus
		terminal bool
	}{
		{AgentStatusSpawned, false},
		{AgentStatusActive, false},
		{AgentStatusIdle, false},
		{AgentStatusComplete, true},
		{AgentStatusFailed, true},
		{AgentStatusKilled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestWaveContains(t *testing.T) {
	w := &Wave{Index: 0, Members: []string{"a", "b"}}

	if !w.Contains("a") {
		t.Error("expected wave to contain a")
	}
	if w.Contains("c") {
		t.Error("did not expect wave to contain c")
	}
}

func TestBudgetStateString(t *testing.T) {
	tests := []struct {
		state BudgetState
		want  string
	}{
		{BudgetOK, "OK"},
		{BudgetWarn, "WARN"},
		{BudgetStop, "STOP"},
		{BudgetState(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("BudgetState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
