package models

import "time"

// WaveStatus represents the current state of a wave.
type WaveStatus string

const (
	// WaveStatusPending indicates the wave has not started.
	WaveStatusPending WaveStatus = "pending"
	// WaveStatusActive indicates the wave's members are being executed.
	WaveStatusActive WaveStatus = "active"
	// WaveStatusComplete indicates every member completed successfully.
	WaveStatusComplete WaveStatus = "complete"
	// WaveStatusFailed indicates at least one member failed or was killed.
	WaveStatusFailed WaveStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s WaveStatus) Valid() bool {
	switch s {
	case WaveStatusPending, WaveStatusActive, WaveStatusComplete, WaveStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is an end state for the wave.
func (s WaveStatus) Terminal() bool {
	return s == WaveStatusComplete || s == WaveStatusFailed
}

// Wave is a batch of nodes whose dependencies are all satisfied by
// strictly earlier waves, so its members may run concurrently.
type Wave struct {
	// Index is the zero-based position of the wave in session order.
	Index int `json:"index"`
	// Members lists the node IDs belonging to this wave.
	Members []string `json:"members"`
	// Status is the current state of the wave.
	Status WaveStatus `json:"status"`
	// StartedAt is stamped when the wave transitions into active.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is stamped when the wave reaches a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Contains reports whether the wave includes the given node ID.
func (w *Wave) Contains(nodeID string) bool {
	for _, id := range w.Members {
		if id == nodeID {
			return true
		}
	}
	return false
}
