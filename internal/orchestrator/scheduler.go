package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// RunWaveOptions controls wave execution.
type RunWaveOptions struct {
	// Force allows starting a wave even though an earlier wave failed.
	// Sibling order within the wave is unaffected.
	Force bool
}

// RunWave executes one wave to a terminal state: admits member nodes up
// to the concurrency limit in discovery order, polls their lifecycle
// classifications, and backfills freed slots until every member is
// terminal. The wave completes iff every member completed; any failed or
// killed member fails the wave, which halts automatic progression to
// later waves without cancelling siblings still running.
func (e *Engine) RunWave(ctx context.Context, sessionID string, waveIndex int, opts RunWaveOptions) error {
	s, err := e.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if waveIndex < 0 || waveIndex >= len(s.Waves) {
		return fmt.Errorf("session %s has no wave %d", sessionID, waveIndex)
	}
	wave := s.Waves[waveIndex]

	if wave.Status == models.WaveStatusComplete {
		return nil
	}
	if wave.Status == models.WaveStatusFailed && !opts.Force {
		return &WaveNotRunnableError{
			SessionID:      sessionID,
			WaveIndex:      waveIndex,
			BlockingWave:   waveIndex,
			BlockingStatus: string(wave.Status),
		}
	}
	for _, earlier := range s.Waves[:waveIndex] {
		if earlier.Status != models.WaveStatusComplete && !opts.Force {
			return &WaveNotRunnableError{
				SessionID:      sessionID,
				WaveIndex:      waveIndex,
				BlockingWave:   earlier.Index,
				BlockingStatus: string(earlier.Status),
			}
		}
	}

	if err := e.store.UpdateWaveStatus(sessionID, waveIndex, models.WaveStatusActive); err != nil {
		return err
	}
	e.events.Emit(Event{Type: EventWaveStarted, SessionID: sessionID, WaveIndex: waveIndex})
	e.logger.Log("wave %d started for session %s: members %v", waveIndex, sessionID, wave.Members)

	terminal, err := e.driveWave(ctx, s, wave)
	if err != nil {
		return err
	}

	return e.finishWave(s, wave, terminal)
}

// driveWave runs the admit/poll loop until every member is terminal.
// Returns the terminal status per member node.
func (e *Engine) driveWave(ctx context.Context, s *models.Session, wave *models.Wave) (map[string]models.AgentStatus, error) {
	pending := append([]string(nil), wave.Members...)
	running := make(map[string]*models.Agent)
	terminal := make(map[string]models.AgentStatus)

	// Nodes already terminal from a previous partial run are not redone,
	// and nodes whose contexts survived a coordinator crash are reattached
	// rather than restarted.
	pending = e.skipFinished(s, pending, terminal)
	pending = e.adoptRunning(s, wave, pending, running)

	for len(pending) > 0 || len(running) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.pause.WaitIfPaused(ctx); err != nil {
			return nil, err
		}

		var admitErr error
		pending, admitErr = e.admit(s, wave, pending, running)
		if admitErr != nil {
			return nil, admitErr
		}

		if len(running) == 0 && len(pending) == 0 {
			break
		}

		e.sleep(e.cfg.PollInterval)
		e.observe(s, wave, running, terminal)
	}

	return terminal, nil
}

// skipFinished drops members whose nodes are already terminal.
func (e *Engine) skipFinished(s *models.Session, pending []string, terminal map[string]models.AgentStatus) []string {
	var rest []string
	for _, id := range pending {
		node := s.Nodes[id]
		switch {
		case node == nil:
			continue
		case node.Status == models.NodeStatusComplete:
			terminal[id] = models.AgentStatusComplete
		case node.Status == models.NodeStatusFailed:
			terminal[id] = models.AgentStatusFailed
		default:
			rest = append(rest, id)
		}
	}
	return rest
}

// adoptRunning reattaches pending members that already have a live
// non-terminal agent from a previous run of this wave. A member whose
// surviving context is dead has its stale agent marked killed so a fresh
// admission supersedes it instead of leaving an orphan behind.
func (e *Engine) adoptRunning(s *models.Session, wave *models.Wave, pending []string, running map[string]*models.Agent) []string {
	agents, err := e.store.ListAgentsBySession(s.ID)
	if err != nil {
		e.logger.Log("list agents for session %s: %v", s.ID, err)
		return pending
	}
	latest := make(map[string]*models.Agent)
	for i := range agents {
		a := &agents[i]
		if a.Status.Terminal() {
			continue
		}
		latest[a.NodeID] = a
	}

	var rest []string
	for _, id := range pending {
		a := latest[id]
		if a == nil {
			rest = append(rest, id)
			continue
		}
		obs, err := e.poller.Poll(a.ContextID)
		if err != nil {
			e.logger.Log("poll surviving context %s: %v", a.ContextID, err)
			rest = append(rest, id)
			continue
		}
		if obs.Status == models.AgentStatusKilled {
			if err := e.store.UpdateAgentStatus(a.ID, models.AgentStatusKilled); err != nil {
				e.logger.Log("supersede agent %s: %v", a.ID, err)
			}
			rest = append(rest, id)
			continue
		}
		running[id] = a
		e.events.Emit(Event{Type: EventNodeAdmitted, SessionID: s.ID, WaveIndex: wave.Index, NodeID: id, AgentID: a.ID, Message: "reattached to running context"})
		e.logger.Log("reattached %s to agent %s (context %s)", id, a.ID, a.ContextID)
	}
	return rest
}

// admit materializes contexts for pending members while capacity and
// budget allow, in discovery order. Returns the members still pending.
func (e *Engine) admit(s *models.Session, wave *models.Wave, pending []string, running map[string]*models.Agent) ([]string, error) {
	for len(pending) > 0 && len(running) < e.cfg.MaxConcurrency {
		cost, err := e.store.SessionTotalCost(s.ID)
		if err != nil {
			return pending, err
		}
		switch e.budget.Check(cost, s.BudgetCeilingUSD) {
		case models.BudgetStop:
			reason := fmt.Sprintf("budget: $%.2f of $%.2f ceiling", cost, s.BudgetCeilingUSD)
			if err := e.store.UpdateSessionStatus(s.ID, models.SessionStatusPaused, reason); err != nil {
				return pending, err
			}
			e.events.Emit(Event{Type: EventSessionPaused, SessionID: s.ID, Message: reason, CostUSD: cost})
			return pending, &BudgetExceededError{SessionID: s.ID, CostUSD: cost, CeilingUSD: s.BudgetCeilingUSD}
		case models.BudgetWarn:
			if e.budget.FirstWarning(s.ID) {
				e.events.Emit(Event{Type: EventBudgetWarning, SessionID: s.ID, CostUSD: cost})
				e.logger.Log("session %s budget warning: $%.2f of $%.2f", s.ID, cost, s.BudgetCeilingUSD)
			}
		}

		nodeID := pending[0]
		pending = pending[1:]
		node := s.Nodes[nodeID]

		a, err := e.contexts.Create(s.ID, s.BaseRef, node)
		if err != nil {
			// Node-level failure: recorded and surfaced, siblings keep going.
			// A partial agent still carries the preserved workspace, so it
			// is persisted for cleanup to find.
			e.logger.Log("admit %s failed: %v", nodeID, err)
			if a != nil {
				if persistErr := e.store.CreateAgent(a); persistErr != nil {
					e.logger.Log("persist failed agent for %s: %v", nodeID, persistErr)
				}
			}
			e.store.UpdateNodeStatus(s.ID, nodeID, models.NodeStatusFailed, err.Error())
			e.events.Emit(Event{Type: EventNodeFailed, SessionID: s.ID, WaveIndex: wave.Index, NodeID: nodeID, AgentID: agentIDOrEmpty(a), Err: err})
			continue
		}

		if err := e.store.CreateAgent(a); err != nil {
			return pending, err
		}
		if err := e.store.UpdateNodeStatus(s.ID, nodeID, models.NodeStatusRunning, ""); err != nil {
			return pending, err
		}
		running[nodeID] = a
		e.events.Emit(Event{Type: EventNodeAdmitted, SessionID: s.ID, WaveIndex: wave.Index, NodeID: nodeID, AgentID: a.ID})
		e.logger.Log("admitted %s as agent %s (context %s)", nodeID, a.ID, a.ContextID)
	}
	return pending, nil
}

func agentIDOrEmpty(a *models.Agent) string {
	if a == nil {
		return ""
	}
	return a.ID
}

// observe polls every running context once, persisting classification
// changes and retiring terminal members.
func (e *Engine) observe(s *models.Session, wave *models.Wave, running map[string]*models.Agent, terminal map[string]models.AgentStatus) {
	for nodeID, a := range running {
		obs, err := e.poller.Poll(a.ContextID)
		if err != nil {
			e.logger.Log("poll %s: %v", a.ContextID, err)
			continue
		}

		if obs.OutputChanged {
			e.store.TouchAgentOutput(a.ID, obs.ObservedAt)
		}
		if obs.CostReported && obs.CostUSD != a.CostUSD {
			if err := e.store.UpdateAgentCost(a.ID, obs.CostUSD); err != nil {
				e.logger.Log("update agent %s cost: %v", a.ID, err)
			} else {
				a.CostUSD = obs.CostUSD
			}
		}
		if obs.Stalled {
			e.events.Emit(Event{Type: EventNodeStalled, SessionID: s.ID, WaveIndex: wave.Index, NodeID: nodeID, AgentID: a.ID})
		}
		if obs.Status == a.Status {
			continue
		}

		if err := e.store.UpdateAgentStatus(a.ID, obs.Status); err != nil {
			e.logger.Log("update agent %s status: %v", a.ID, err)
			continue
		}
		a.Status = obs.Status

		if !obs.Status.Terminal() {
			continue
		}

		e.poller.Forget(a.ContextID)
		terminal[nodeID] = obs.Status
		delete(running, nodeID)

		if obs.Status == models.AgentStatusComplete {
			e.store.UpdateNodeStatus(s.ID, nodeID, models.NodeStatusComplete, "")
			e.events.Emit(Event{Type: EventNodeCompleted, SessionID: s.ID, WaveIndex: wave.Index, NodeID: nodeID, AgentID: a.ID})
			e.logger.Log("node %s completed", nodeID)
		} else {
			msg := fmt.Sprintf("context terminal with status %s", obs.Status)
			e.store.UpdateNodeStatus(s.ID, nodeID, models.NodeStatusFailed, msg)
			e.events.Emit(Event{Type: EventNodeFailed, SessionID: s.ID, WaveIndex: wave.Index, NodeID: nodeID, AgentID: a.ID, Message: msg})
			e.logger.Log("node %s failed: %s", nodeID, msg)
		}
	}
}

// finishWave stamps the wave's terminal status and, when this was the
// last wave and everything completed, finishes the session.
func (e *Engine) finishWave(s *models.Session, wave *models.Wave, terminal map[string]models.AgentStatus) error {
	status := models.WaveStatusComplete
	for _, id := range wave.Members {
		if terminal[id] != models.AgentStatusComplete {
			status = models.WaveStatusFailed
			break
		}
	}

	if err := e.store.UpdateWaveStatus(s.ID, wave.Index, status); err != nil {
		return err
	}

	if status == models.WaveStatusFailed {
		e.events.Emit(Event{Type: EventWaveFailed, SessionID: s.ID, WaveIndex: wave.Index})
		e.logger.Log("wave %d failed for session %s", wave.Index, s.ID)
		return nil
	}

	e.events.Emit(Event{Type: EventWaveCompleted, SessionID: s.ID, WaveIndex: wave.Index})
	e.logger.Log("wave %d completed for session %s", wave.Index, s.ID)

	if wave.Index == len(s.Waves)-1 {
		if err := e.store.UpdateSessionStatus(s.ID, models.SessionStatusComplete, ""); err != nil {
			return err
		}
		e.events.Emit(Event{Type: EventSessionDone, SessionID: s.ID})
		e.logger.Log("session %s complete", s.ID)
	}
	return nil
}
