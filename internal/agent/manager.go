// Package agent materializes and destroys execution contexts: the live
// pairing of an isolated workspace and a hosted subprocess working one
// node of a session.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/flotilla/internal/git"
	"github.com/ShayCichocki/flotilla/internal/host"
	"github.com/ShayCichocki/flotilla/internal/monitor"
	"github.com/ShayCichocki/flotilla/internal/workspace"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

const (
	// defaultStartupTimeout bounds the wait for the readiness sentinel.
	defaultStartupTimeout = 30 * time.Second
	// defaultReadyPoll is how often startup polls captured output.
	defaultReadyPoll = 500 * time.Millisecond
	// defaultSendDelay spaces out line sends so a large payload cannot
	// overrun the host's input buffer.
	defaultSendDelay = 50 * time.Millisecond
)

// Config controls context materialization.
type Config struct {
	// StartupCommand launches the executor inside the hosted context.
	StartupCommand string
	// ReadySentinel is the output substring that marks the executor
	// ready for input.
	ReadySentinel string
	// StartupTimeout bounds the readiness wait. Zero means the default.
	StartupTimeout time.Duration
	// SendDelay is the pause between payload lines. Zero means the
	// default.
	SendDelay time.Duration
	// Handover includes a summary of current repository state in the
	// task payload.
	Handover bool
}

// Manager is the execution context manager. It owns the choreography of
// workspace materialization, subprocess startup, and teardown; the
// workspace and host collaborators do the actual work.
type Manager struct {
	workspaces workspace.Provider
	host       host.Host
	cfg        Config

	// runnerFor returns a git runner rooted at a workspace path.
	// Overridable for tests.
	runnerFor func(path string) git.Runner
	sleep     func(time.Duration)
	now       func() time.Time
}

// NewManager creates a context manager over the given collaborators.
func NewManager(w workspace.Provider, h host.Host, cfg Config) *Manager {
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.SendDelay == 0 {
		cfg.SendDelay = defaultSendDelay
	}
	return &Manager{
		workspaces: w,
		host:       h,
		cfg:        cfg,
		runnerFor:  func(path string) git.Runner { return git.NewRunner(path) },
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Create materializes an execution context for a node: an isolated
// workspace keyed by a slug derived from the node and session, a hosted
// subprocess rooted there, a readiness wait, and delivery of the task
// payload. On startup timeout the captured output is persisted as a
// diagnostic, the subprocess killed, and StartupTimeoutError returned
// with the workspace preserved; the failed agent is returned with the
// error so callers can record where the workspace lives.
func (m *Manager) Create(sessionID, baseRef string, node *models.WorkstreamNode) (*models.Agent, error) {
	slug := contextSlug(sessionID, node.ID)

	ws, err := m.workspaces.CreateWorkspace(baseRef, slug)
	if err != nil {
		return nil, fmt.Errorf("session %s node %s: create workspace: %w", sessionID, node.ID, err)
	}

	contextID, err := m.host.Create(ws.Path)
	if err != nil {
		m.workspaces.Remove(ws.Path, ws.BranchRef, true)
		return nil, fmt.Errorf("session %s node %s: create hosted context: %w", sessionID, node.ID, err)
	}

	a := &models.Agent{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		NodeID:        node.ID,
		Status:        models.AgentStatusSpawned,
		WorkspacePath: ws.Path,
		BranchRef:     ws.BranchRef,
		ContextID:     contextID,
		CreatedAt:     m.now(),
	}

	if err := m.startExecutor(a, node, false); err != nil {
		// The partial agent is returned alongside the error so callers can
		// persist a record pointing at the preserved workspace.
		a.Status = models.AgentStatusFailed
		return a, err
	}
	return a, nil
}

// Resume starts a new hosted subprocess in an agent's existing workspace
// and instructs the executor to pick up from the persisted transcript.
// The agent record is updated with the new context ID.
func (m *Manager) Resume(a *models.Agent, node *models.WorkstreamNode) error {
	contextID, err := m.host.Create(a.WorkspacePath)
	if err != nil {
		return fmt.Errorf("session %s node %s: create hosted context: %w", a.SessionID, a.NodeID, err)
	}
	a.ContextID = contextID
	a.Status = models.AgentStatusSpawned

	return m.startExecutor(a, node, true)
}

// startExecutor launches the startup command, waits for readiness, and
// delivers the task payload.
func (m *Manager) startExecutor(a *models.Agent, node *models.WorkstreamNode, resume bool) error {
	if m.cfg.StartupCommand != "" {
		if err := m.host.SendInput(a.ContextID, m.cfg.StartupCommand); err != nil {
			return fmt.Errorf("session %s node %s: send startup command: %w", a.SessionID, a.NodeID, err)
		}
	}

	if err := m.waitReady(a); err != nil {
		return err
	}

	payload := m.buildPayload(a, node, resume)
	if err := m.deliver(a.ContextID, payload); err != nil {
		return fmt.Errorf("session %s node %s: deliver task: %w", a.SessionID, a.NodeID, err)
	}

	// The transcript artifact marks the context resumable after a crash.
	if err := m.appendTranscript(a.WorkspacePath, payload); err != nil {
		return fmt.Errorf("session %s node %s: write transcript: %w", a.SessionID, a.NodeID, err)
	}

	a.Status = models.AgentStatusActive
	return nil
}

// waitReady polls captured output for the readiness sentinel until the
// startup timeout. An empty sentinel skips the wait.
func (m *Manager) waitReady(a *models.Agent) error {
	if m.cfg.ReadySentinel == "" {
		return nil
	}

	deadline := m.now().Add(m.cfg.StartupTimeout)
	var lastOutput string
	for m.now().Before(deadline) {
		out, err := m.host.CaptureOutput(a.ContextID, 0)
		if err == nil {
			lastOutput = out
			if strings.Contains(out, m.cfg.ReadySentinel) {
				return nil
			}
		}
		m.sleep(defaultReadyPoll)
	}

	diagPath := m.persistDiagnostic(a.WorkspacePath, lastOutput)
	m.host.Kill(a.ContextID)
	return &StartupTimeoutError{
		SessionID:      a.SessionID,
		NodeID:         a.NodeID,
		DiagnosticPath: diagPath,
	}
}

// deliver sends payload text line by line with a delay between lines.
func (m *Manager) deliver(contextID, payload string) error {
	for _, line := range strings.Split(payload, "\n") {
		if err := m.host.SendInput(contextID, line); err != nil {
			return err
		}
		m.sleep(m.cfg.SendDelay)
	}
	return nil
}

// buildPayload composes the task text delivered to the executor.
func (m *Manager) buildPayload(a *models.Agent, node *models.WorkstreamNode, resume bool) string {
	var b strings.Builder

	if resume {
		b.WriteString("Resume the task below. A previous run was interrupted; ")
		b.WriteString("check the transcript at " + monitor.TranscriptPath(a.WorkspacePath) + " ")
		b.WriteString("and the current repository state before redoing any work.\n\n")
	}

	if m.cfg.Handover {
		if summary := m.handoverSummary(a); summary != "" {
			b.WriteString(summary)
			b.WriteString("\n")
		}
	}

	b.WriteString("Task: " + node.Task + "\n")
	if len(node.Deliverables) > 0 {
		b.WriteString("Deliverables:\n")
		for _, d := range node.Deliverables {
			b.WriteString("- " + d + "\n")
		}
	}
	b.WriteString("Commit all work to the current branch when done.")
	return b.String()
}

// handoverSummary describes the workspace's current repository state:
// branch, recent commits, and uncommitted files.
func (m *Manager) handoverSummary(a *models.Agent) string {
	runner := m.runnerFor(a.WorkspacePath)

	var b strings.Builder
	b.WriteString("Repository state:\n")
	b.WriteString("- branch: " + a.BranchRef + "\n")

	if commits, err := runner.RecentCommits(a.BranchRef, 5); err == nil && len(commits) > 0 {
		b.WriteString("- recent commits:\n")
		for _, c := range commits {
			b.WriteString("    " + c + "\n")
		}
	}
	if files, err := runner.ChangedFiles(); err == nil && len(files) > 0 {
		b.WriteString("- uncommitted files:\n")
		for _, f := range files {
			b.WriteString("    " + f + "\n")
		}
	}
	return b.String()
}

// DestroyOptions controls context teardown.
type DestroyOptions struct {
	// Merge integrates the context's branch into the session base before
	// removal.
	Merge bool
	// Force tears down despite uncommitted changes.
	Force bool
}

// Destroy tears down an execution context. With force false, a dirty
// workspace returns DirtyWorkspaceError and nothing is touched. With
// merge true, the branch is reconciled into baseRef first; a conflict
// returns MergeConflictError with the workspace preserved and the
// subprocess still running.
func (m *Manager) Destroy(a *models.Agent, baseRef string, opts DestroyOptions) error {
	if !opts.Force {
		dirty, err := m.workspaces.HasUncommittedChanges(a.WorkspacePath)
		if err != nil {
			return fmt.Errorf("session %s node %s: check workspace: %w", a.SessionID, a.NodeID, err)
		}
		if dirty {
			return &workspace.DirtyWorkspaceError{Path: a.WorkspacePath}
		}
	}

	if opts.Merge {
		if _, err := m.workspaces.Merge(a.BranchRef, baseRef); err != nil {
			return fmt.Errorf("session %s node %s: %w", a.SessionID, a.NodeID, err)
		}
	}

	if err := m.host.Kill(a.ContextID); err != nil {
		return fmt.Errorf("session %s node %s: kill context: %w", a.SessionID, a.NodeID, err)
	}

	if err := m.workspaces.Remove(a.WorkspacePath, a.BranchRef, opts.Force); err != nil {
		return fmt.Errorf("session %s node %s: remove workspace: %w", a.SessionID, a.NodeID, err)
	}
	return nil
}

// appendTranscript records delivered text in the workspace's durable
// transcript artifact.
func (m *Manager) appendTranscript(workspacePath, text string) error {
	path := monitor.TranscriptPath(workspacePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	stamp := m.now().UTC().Format(time.RFC3339)
	_, err = fmt.Fprintf(f, "--- %s ---\n%s\n", stamp, text)
	return err
}

// persistDiagnostic writes a failed startup's output buffer next to the
// transcript and returns its path. Best effort; an unwritable workspace
// still surfaces the timeout.
func (m *Manager) persistDiagnostic(workspacePath, output string) string {
	dir := monitor.TranscriptDir(workspacePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	path := filepath.Join(dir, "startup-timeout.log")
	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return ""
	}
	return path
}

// contextSlug derives the workspace slug for a node within a session.
// The session fragment keeps concurrent sessions from colliding on
// common node names; the provider uniquifies any remaining collision.
func contextSlug(sessionID, nodeID string) string {
	frag := sessionID
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return nodeID + "-" + frag
}
