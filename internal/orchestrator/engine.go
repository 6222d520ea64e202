// Package orchestrator drives wave-by-wave execution of a session's
// dependency graph under concurrency and budget limits.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/flotilla/internal/agent"
	"github.com/ShayCichocki/flotilla/internal/graph"
	"github.com/ShayCichocki/flotilla/internal/monitor"
	"github.com/ShayCichocki/flotilla/internal/state"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

const (
	// defaultMaxConcurrency limits simultaneously running contexts.
	defaultMaxConcurrency = 3
	// defaultPollInterval is the lifecycle polling cadence.
	defaultPollInterval = 2 * time.Second
)

// ContextManager materializes and destroys execution contexts. Satisfied
// by agent.Manager. Create may return a partial failed agent alongside an
// error when startup fails after the workspace exists.
type ContextManager interface {
	Create(sessionID, baseRef string, node *models.WorkstreamNode) (*models.Agent, error)
	Resume(a *models.Agent, node *models.WorkstreamNode) error
	Destroy(a *models.Agent, baseRef string, opts agent.DestroyOptions) error
}

// Poller observes live contexts. Satisfied by monitor.Poller.
type Poller interface {
	Poll(contextID string) (monitor.Observation, error)
	Forget(contextID string)
}

// Config controls wave execution.
type Config struct {
	// MaxConcurrency is the admission limit for running contexts. Zero
	// means the default.
	MaxConcurrency int
	// PollInterval is the lifecycle polling cadence. Zero means the
	// default.
	PollInterval time.Duration
	// WarnFraction and StopFraction are the budget guardrail thresholds.
	// Zero means the defaults.
	WarnFraction float64
	StopFraction float64
}

// SessionConfig parameterizes one session at creation time.
type SessionConfig struct {
	// BaseRef is the base line workspaces branch from and completed work
	// reconciles into.
	BaseRef string
	// BudgetCeilingUSD is the session's cost ceiling. Zero means no
	// limit.
	BudgetCeilingUSD float64
}

// Engine is the orchestration engine's exposed surface. One engine
// serves many sessions; all durable state lives in the store.
type Engine struct {
	store    state.Store
	contexts ContextManager
	poller   Poller
	budget   *BudgetGuard
	pause    *PauseController
	events   *Emitter
	logger   *DebugLogger
	cfg      Config

	sleep func(time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPauseController shares an externally controlled pause controller.
func WithPauseController(p *PauseController) Option {
	return func(e *Engine) { e.pause = p }
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(store state.Store, cm ContextManager, p Poller, cfg Config, opts ...Option) *Engine {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	e := &Engine{
		store:    store,
		contexts: cm,
		poller:   p,
		budget:   NewBudgetGuard(cfg.WarnFraction, cfg.StopFraction),
		pause:    NewPauseController(),
		events:   NewEmitter(),
		logger:   NopLogger(),
		cfg:      cfg,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSession compiles waves for a DAG and persists a new session.
func (e *Engine) CreateSession(dag *graph.DAG, cfg SessionConfig) (string, error) {
	waves, err := graph.ComputeWaves(dag)
	if err != nil {
		return "", fmt.Errorf("compute waves: %w", err)
	}

	nodes := make(map[string]*models.WorkstreamNode)
	for _, n := range dag.Nodes() {
		nodes[n.ID] = n
	}

	s := &models.Session{
		ID:               uuid.New().String(),
		CreatedAt:        time.Now(),
		Status:           models.SessionStatusActive,
		BaseRef:          cfg.BaseRef,
		Nodes:            nodes,
		Waves:            waves,
		BudgetCeilingUSD: cfg.BudgetCeilingUSD,
	}

	if err := e.store.CreateSession(s); err != nil {
		return "", err
	}
	e.logger.Log("created session %s: %d nodes, %d waves", s.ID, len(nodes), len(waves))
	return s.ID, nil
}

// GetSession returns a session snapshot.
func (e *Engine) GetSession(id string) (*models.Session, error) {
	return e.store.GetSession(id)
}

// ListActiveSessions returns the IDs of all active sessions.
func (e *Engine) ListActiveSessions() ([]string, error) {
	return e.store.ListActiveSessions()
}

// GetCurrentWave returns the index of the first wave that has not
// reached a terminal state, or -1 when every wave is terminal.
func (e *Engine) GetCurrentWave(sessionID string) (int, error) {
	s, err := e.store.GetSession(sessionID)
	if err != nil {
		return 0, err
	}
	for _, w := range s.Waves {
		if !w.Status.Terminal() {
			return w.Index, nil
		}
	}
	return -1, nil
}

// CheckBudget classifies the session's derived cost against its ceiling.
func (e *Engine) CheckBudget(sessionID string) (models.BudgetState, error) {
	s, err := e.store.GetSession(sessionID)
	if err != nil {
		return models.BudgetOK, err
	}
	cost, err := e.store.SessionTotalCost(sessionID)
	if err != nil {
		return models.BudgetOK, err
	}
	return e.budget.Check(cost, s.BudgetCeilingUSD), nil
}

// ArchiveSession moves a session out of the active set into the ledger.
func (e *Engine) ArchiveSession(sessionID string) (*models.ArchivedSession, error) {
	archived, err := e.store.ArchiveSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.logger.Log("archived session %s: $%.2f across %d agents",
		sessionID, archived.TotalCostUSD, archived.AgentCount)
	return archived, nil
}

// Cleanup destroys an agent's execution context and archives its
// metadata. The same dirty-workspace and merge-conflict semantics as
// context teardown apply.
func (e *Engine) Cleanup(agentID string, opts agent.DestroyOptions) error {
	a, err := e.store.GetAgent(agentID)
	if err != nil {
		return err
	}
	s, err := e.store.GetSession(a.SessionID)
	if err != nil {
		return err
	}

	if err := e.contexts.Destroy(a, s.BaseRef, opts); err != nil {
		return err
	}
	e.poller.Forget(a.ContextID)
	return e.store.ArchiveAgent(agentID)
}

// Events returns the engine's event emitter for subscription.
func (e *Engine) Events() *Emitter {
	return e.events
}

// Pause suspends admission of new contexts across all sessions.
func (e *Engine) Pause() { e.pause.Pause() }

// Resume lifts a pause.
func (e *Engine) Resume() { e.pause.Resume() }
