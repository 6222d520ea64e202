package orchestrator

import (
	"sync"
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventWaveStarted indicates a wave transitioned into active.
	EventWaveStarted EventType = "wave_started"
	// EventWaveCompleted indicates every wave member completed.
	EventWaveCompleted EventType = "wave_completed"
	// EventWaveFailed indicates a wave finished with failed members.
	EventWaveFailed EventType = "wave_failed"
	// EventNodeAdmitted indicates an execution context was materialized
	// for a node.
	EventNodeAdmitted EventType = "node_admitted"
	// EventNodeCompleted indicates a node finished successfully.
	EventNodeCompleted EventType = "node_completed"
	// EventNodeFailed indicates a node's context failed or was killed.
	EventNodeFailed EventType = "node_failed"
	// EventNodeStalled indicates an active context has produced no
	// output for the stall window. Diagnostic, not a failure.
	EventNodeStalled EventType = "node_stalled"
	// EventBudgetWarning indicates cost crossed the warn fraction.
	EventBudgetWarning EventType = "budget_warning"
	// EventSessionPaused indicates admission was suspended.
	EventSessionPaused EventType = "session_paused"
	// EventSessionDone indicates every wave reached a terminal state.
	EventSessionDone EventType = "session_done"
)

// Event is emitted by the engine for dashboard and log consumers.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SessionID is the related session.
	SessionID string
	// WaveIndex is the related wave, if applicable.
	WaveIndex int
	// NodeID is the related node, if applicable.
	NodeID string
	// AgentID is the related agent, if applicable.
	AgentID string
	// Message provides additional context.
	Message string
	// Err contains error details for failure events.
	Err error
	// CostUSD is the session's cumulative cost at emission time.
	CostUSD float64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter fans events out to subscribers. Slow subscribers drop events
// rather than stalling wave execution.
type Emitter struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewEmitter creates an event emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe returns a channel that receives future events.
func (e *Emitter) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Event, 64)
	e.subs = append(e.subs, ch)
	return ch
}

// Emit delivers an event to all subscribers without blocking.
func (e *Emitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
