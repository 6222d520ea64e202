package monitor

import (
	"testing"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

func TestHeuristicClassifier(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   models.AgentStatus
	}{
		{
			name:   "empty output is spawned",
			output: "",
			want:   models.AgentStatusSpawned,
		},
		{
			name:   "plain progress output is active",
			output: "reading internal/auth/login.go\nwriting tests\n",
			want:   models.AgentStatusActive,
		},
		{
			name:   "done marker with commit evidence is complete",
			output: "running tests... ok\n[flotilla/auth 3f2a91c] add login handler\nTASK COMPLETE\n",
			want:   models.AgentStatusComplete,
		},
		{
			name:   "done marker without commit evidence stays active",
			output: "the task description says: print TASK COMPLETE when finished\nstill working\n",
			want:   models.AgentStatusActive,
		},
		{
			name:   "commit evidence without done marker stays active",
			output: "[flotilla/auth 3f2a91c] wip checkpoint\ncontinuing with the next file\n",
			want:   models.AgentStatusActive,
		},
		{
			name:   "error marker is failed",
			output: "FATAL: repository is corrupt\n",
			want:   models.AgentStatusFailed,
		},
		{
			name:   "error marker wins over done marker",
			output: "TASK COMPLETE\n[flotilla/auth 3f2a91c] commit\nFATAL: post-commit hook rejected\n",
			want:   models.AgentStatusFailed,
		},
		{
			name:   "trailing prompt is idle",
			output: "finished reviewing the diff\n\n? for shortcuts\n",
			want:   models.AgentStatusIdle,
		},
		{
			name:   "prompt scrolled far past is not idle",
			output: "Would you like to proceed?\nyes\nediting file 1\nediting file 2\nediting file 3\nediting file 4\nediting file 5\nrunning tests\n",
			want:   models.AgentStatusActive,
		},
	}

	c := NewHeuristicClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.output); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProtocolClassifier(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   models.AgentStatus
	}{
		{
			name:   "explicit status line wins over heuristic",
			output: "FATAL: scary-looking but harmless echo\nFLOTILLA_STATUS: active\n",
			want:   models.AgentStatusActive,
		},
		{
			name:   "last status line wins",
			output: "FLOTILLA_STATUS: active\ndoing work\nFLOTILLA_STATUS: complete\n",
			want:   models.AgentStatusComplete,
		},
		{
			name:   "malformed status line falls through to earlier one",
			output: "FLOTILLA_STATUS: idle\nFLOTILLA_STATUS: having-a-think\n",
			want:   models.AgentStatusIdle,
		},
		{
			name:   "no status line defers to fallback",
			output: "TASK COMPLETE\n[flotilla/auth 3f2a91c] commit\n",
			want:   models.AgentStatusComplete,
		},
	}

	c := NewProtocolClassifier(NewHeuristicClassifier())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.output); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCost(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		want     float64
		reported bool
	}{
		{
			name:     "single cost line",
			output:   "working on auth\nFLOTILLA_COST: 1.42\n",
			want:     1.42,
			reported: true,
		},
		{
			name:     "last cost line wins",
			output:   "FLOTILLA_COST: 0.50\nmore work\nFLOTILLA_COST: 2.75\n",
			want:     2.75,
			reported: true,
		},
		{
			name:     "malformed line falls through to earlier one",
			output:   "FLOTILLA_COST: 0.80\nFLOTILLA_COST: a-lot\n",
			want:     0.80,
			reported: true,
		},
		{
			name:     "negative figure skipped",
			output:   "FLOTILLA_COST: 1.10\nFLOTILLA_COST: -0.30\n",
			want:     1.10,
			reported: true,
		},
		{
			name:     "no cost line",
			output:   "FLOTILLA_STATUS: active\n",
			reported: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reported := ParseCost(tt.output)
			if reported != tt.reported {
				t.Fatalf("reported = %v, want %v", reported, tt.reported)
			}
			if got != tt.want {
				t.Errorf("ParseCost() = %v, want %v", got, tt.want)
			}
		})
	}
}
