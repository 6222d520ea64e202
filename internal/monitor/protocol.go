package monitor

import (
	"strconv"
	"strings"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// statusPrefix introduces a machine-readable state transition emitted by
// a cooperating executor, one per line:
//
//	FLOTILLA_STATUS: active
//	FLOTILLA_STATUS: complete
//
// Executors that can be modified to emit these lines get exact
// classification with none of the heuristic's ambiguity.
const statusPrefix = "FLOTILLA_STATUS:"

// costPrefix introduces a cumulative spend report in USD, one per line:
//
//	FLOTILLA_COST: 1.42
//
// The figure is the executor's running total for the agent, not a delta.
const costPrefix = "FLOTILLA_COST:"

// ParseCost returns the cumulative cost from the last well-formed cost
// line in the tail. Malformed and negative figures are skipped. The
// second return is false when the tail carries no usable cost line.
func ParseCost(outputTail string) (float64, bool) {
	lines := strings.Split(outputTail, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, costPrefix) {
			continue
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, costPrefix)), 64)
		if err != nil || cost < 0 {
			continue
		}
		return cost, true
	}
	return 0, false
}

// ProtocolClassifier reads explicit status lines from the output tail.
// The last well-formed status line wins. Output with no status line falls
// back to the wrapped classifier, so a session can mix cooperating and
// uncooperative executors.
type ProtocolClassifier struct {
	fallback Classifier
}

// NewProtocolClassifier returns a classifier that prefers structured
// status lines and defers to fallback when none are present.
func NewProtocolClassifier(fallback Classifier) *ProtocolClassifier {
	return &ProtocolClassifier{fallback: fallback}
}

// Classify returns the state of the last structured status line in the
// tail, or the fallback classification if the tail has none.
func (c *ProtocolClassifier) Classify(outputTail string) models.AgentStatus {
	lines := strings.Split(outputTail, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, statusPrefix) {
			continue
		}
		status := models.AgentStatus(strings.TrimSpace(strings.TrimPrefix(line, statusPrefix)))
		if status.Valid() && status != models.AgentStatusKilled {
			return status
		}
	}
	if c.fallback != nil {
		return c.fallback.Classify(outputTail)
	}
	return models.AgentStatusActive
}

var _ Classifier = (*ProtocolClassifier)(nil)
