// Package monitor classifies the lifecycle state of running execution
// contexts from their captured output and tracks output activity for
// stall diagnosis.
package monitor

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// Classifier infers an agent lifecycle state from the captured output
// tail of a live context. Implementations never see contexts whose
// subprocess is gone; the poller classifies those as killed before
// consulting the classifier.
type Classifier interface {
	Classify(outputTail string) models.AgentStatus
}

// Output markers recognized by the heuristic classifier. The done marker
// alone is not sufficient for completion; see HeuristicClassifier.
var (
	doneMarkers = []string{
		"TASK COMPLETE",
		"task complete",
		"all deliverables committed",
		"work is complete",
	}
	errorMarkers = []string{
		"FATAL:",
		"ERROR: cannot continue",
		"task failed",
		"unable to complete",
	}
	promptMarkers = []string{
		"Would you like to",
		"Do you want to proceed",
		"waiting for input",
		"? for shortcuts",
	}
	// commitEvidence matches the summary line git prints after a commit,
	// e.g. "[flotilla/auth 3f2a91c] add login handler".
	commitEvidence = regexp.MustCompile(`\[[\w./-]+ [0-9a-f]{7,}\]|committed [0-9a-f]{7,}|create mode \d{6}`)
)

// HeuristicClassifier infers state by pattern matching over unstructured
// executor output. Completion requires both a done marker and independent
// evidence of a persisted commit in the same observation; a done marker
// alone classifies as active, since partial output routinely echoes task
// instructions containing the marker before any work is persisted. This
// is a known-lossy fallback; prefer ProtocolClassifier where the executor
// can emit structured transitions.
type HeuristicClassifier struct{}

// NewHeuristicClassifier returns the pattern-matching fallback classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify maps an output tail to a lifecycle state.
func (c *HeuristicClassifier) Classify(outputTail string) models.AgentStatus {
	if outputTail == "" {
		return models.AgentStatusSpawned
	}

	if containsAny(outputTail, errorMarkers) {
		return models.AgentStatusFailed
	}

	if containsAny(outputTail, doneMarkers) && commitEvidence.MatchString(outputTail) {
		return models.AgentStatusComplete
	}

	if isIdlePrompt(outputTail) {
		return models.AgentStatusIdle
	}

	return models.AgentStatusActive
}

// isIdlePrompt reports whether the tail ends at an interactive prompt with
// no pending work. A prompt marker anywhere earlier in the tail does not
// count: the executor may have scrolled past it and resumed.
func isIdlePrompt(tail string) bool {
	lines := strings.Split(strings.TrimRight(tail, "\n"), "\n")
	window := lines
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	for _, line := range window {
		if containsAny(line, promptMarkers) {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

var _ Classifier = (*HeuristicClassifier)(nil)
