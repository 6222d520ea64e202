package monitor

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/flotilla/internal/host"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

const (
	// defaultTailLines is how much captured output each poll classifies.
	defaultTailLines = 80
	// defaultStallAfter is how long an active context may go without an
	// output change before it is reported stalled.
	defaultStallAfter = 10 * time.Minute
)

// Observation is the result of one poll of a context.
type Observation struct {
	// Status is the classified lifecycle state.
	Status models.AgentStatus
	// OutputChanged is true when the captured output differs from the
	// previous poll of this context.
	OutputChanged bool
	// ObservedAt is when the poll ran.
	ObservedAt time.Time
	// Stalled is true when the context is active but its output has not
	// changed for the stall window. Stalls are diagnosable conditions for
	// the operator, never an automatic failure.
	Stalled bool
	// CostUSD is the cumulative spend the executor last reported via a
	// structured cost line. Only meaningful when CostReported is true.
	CostUSD float64
	// CostReported is true when the output tail carried a cost line.
	CostReported bool
}

// Poller classifies live contexts on demand. It tracks an output hash per
// context so callers can persist last-output timestamps only when output
// actually changed, and so stalls can be diagnosed.
type Poller struct {
	host       host.Host
	classifier Classifier
	tailLines  int
	stallAfter time.Duration
	now        func() time.Time

	mu         sync.Mutex
	lastHash   map[string][sha256.Size]byte
	lastChange map[string]time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithTailLines sets how many lines of output each poll captures.
func WithTailLines(n int) PollerOption {
	return func(p *Poller) { p.tailLines = n }
}

// WithStallWindow sets how long an active context may be silent before
// an observation reports it stalled.
func WithStallWindow(d time.Duration) PollerOption {
	return func(p *Poller) { p.stallAfter = d }
}

// NewPoller creates a poller over the given host and classifier.
func NewPoller(h host.Host, c Classifier, opts ...PollerOption) *Poller {
	p := &Poller{
		host:       h,
		classifier: c,
		tailLines:  defaultTailLines,
		stallAfter: defaultStallAfter,
		now:        time.Now,
		lastHash:   make(map[string][sha256.Size]byte),
		lastChange: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll observes one context. A context whose subprocess no longer exists
// is killed regardless of prior output; classification only runs against
// live contexts.
func (p *Poller) Poll(contextID string) (Observation, error) {
	obs := Observation{ObservedAt: p.now()}

	if !p.host.Exists(contextID) {
		obs.Status = models.AgentStatusKilled
		return obs, nil
	}

	output, err := p.host.CaptureOutput(contextID, p.tailLines)
	if err != nil {
		return obs, fmt.Errorf("capture output for context %s: %w", contextID, err)
	}

	obs.Status = p.classifier.Classify(output)
	obs.CostUSD, obs.CostReported = ParseCost(output)

	hash := sha256.Sum256([]byte(output))
	p.mu.Lock()
	prev, seen := p.lastHash[contextID]
	if !seen || hash != prev {
		p.lastHash[contextID] = hash
		p.lastChange[contextID] = obs.ObservedAt
		obs.OutputChanged = true
	}
	lastChange := p.lastChange[contextID]
	p.mu.Unlock()

	if obs.Status == models.AgentStatusActive && !obs.OutputChanged &&
		obs.ObservedAt.Sub(lastChange) >= p.stallAfter {
		obs.Stalled = true
	}

	return obs, nil
}

// Forget drops the tracked output state for a context, typically after
// the context is destroyed.
func (p *Poller) Forget(contextID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lastHash, contextID)
	delete(p.lastChange, contextID)
}
