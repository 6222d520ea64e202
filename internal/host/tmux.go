package host

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// sessionPrefix namespaces flotilla tmux sessions so orphan scans can
// recognize them.
const sessionPrefix = "flotilla_"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TmuxHost implements Host on top of detached tmux sessions, one per
// execution context. tmux keeps the subprocess alive across coordinator
// restarts, which is what makes orphan recovery possible.
type TmuxHost struct {
	// exec runs a tmux command and returns combined output. Overridable
	// for tests.
	exec func(args ...string) (string, error)
}

// Verify TmuxHost implements Host at compile time.
var _ Host = (*TmuxHost)(nil)

// NewTmuxHost creates a TmuxHost using the tmux binary on PATH.
func NewTmuxHost() *TmuxHost {
	return &TmuxHost{exec: runTmux}
}

// NewTmuxHostWithExec creates a TmuxHost with a custom command runner
// (for testing).
func NewTmuxHostWithExec(execFn func(args ...string) (string, error)) *TmuxHost {
	return &TmuxHost{exec: execFn}
}

// Available reports whether the tmux binary can be found on PATH.
func Available() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func runTmux(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

// Create starts a detached tmux session rooted at workdir.
func (h *TmuxHost) Create(workdir string) (string, error) {
	id := sessionPrefix + sanitizeName(workdir) + "_" + uuid.New().String()[:8]
	if _, err := h.exec("new-session", "-d", "-s", id, "-c", workdir); err != nil {
		return "", fmt.Errorf("create tmux session: %w", err)
	}
	return id, nil
}

// SendInput sends literal text to the session followed by Enter. The -l
// flag stops tmux from interpreting the text as key names.
func (h *TmuxHost) SendInput(contextID, text string) error {
	if _, err := h.exec("send-keys", "-t", contextID, "-l", text); err != nil {
		return fmt.Errorf("send input to %s: %w", contextID, err)
	}
	if _, err := h.exec("send-keys", "-t", contextID, "Enter"); err != nil {
		return fmt.Errorf("send enter to %s: %w", contextID, err)
	}
	return nil
}

// CaptureOutput captures the tail of the session's pane content. The -J
// flag joins wrapped lines so sentinel matching sees logical lines.
func (h *TmuxHost) CaptureOutput(contextID string, tailLines int) (string, error) {
	args := []string{"capture-pane", "-p", "-J", "-t", contextID}
	if tailLines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(tailLines))
	}
	out, err := h.exec(args...)
	if err != nil {
		return "", fmt.Errorf("capture output of %s: %w", contextID, err)
	}
	return out, nil
}

// Exists reports whether the tmux session is still live.
func (h *TmuxHost) Exists(contextID string) bool {
	_, err := h.exec("has-session", "-t", contextID)
	return err == nil
}

// Kill terminates the tmux session. A session that is already gone is
// treated as success.
func (h *TmuxHost) Kill(contextID string) error {
	if !h.Exists(contextID) {
		return nil
	}
	if _, err := h.exec("kill-session", "-t", contextID); err != nil {
		return fmt.Errorf("kill session %s: %w", contextID, err)
	}
	return nil
}

// ListSessions returns the IDs of all flotilla-managed tmux sessions.
func (h *TmuxHost) ListSessions() ([]string, error) {
	out, err := h.exec("list-sessions", "-F", "#{session_name}")
	if err != nil {
		// No server running means no sessions.
		return nil, nil
	}

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, sessionPrefix) {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

// sanitizeName reduces a path to a tmux-safe session name fragment.
// tmux rejects dots and whitespace in session names.
func sanitizeName(workdir string) string {
	parts := strings.Split(strings.TrimRight(workdir, "/"), "/")
	base := parts[len(parts)-1]
	base = unsafeNameChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "ctx"
	}
	return base
}
