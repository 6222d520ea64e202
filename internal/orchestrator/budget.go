package orchestrator

import (
	"sync"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

const (
	// DefaultWarnFraction is the usage fraction at which warnings begin.
	DefaultWarnFraction = 0.80
	// DefaultStopFraction is the usage fraction at which admission stops.
	DefaultStopFraction = 0.95
)

// BudgetGuard classifies cumulative session cost against a ceiling. The
// guard is consulted before every admission; it never interrupts contexts
// that are already running.
type BudgetGuard struct {
	warnFraction float64
	stopFraction float64

	mu     sync.Mutex
	warned map[string]bool
}

// NewBudgetGuard creates a guard with the given fractions. Non-positive
// values take the defaults.
func NewBudgetGuard(warnFraction, stopFraction float64) *BudgetGuard {
	if warnFraction <= 0 {
		warnFraction = DefaultWarnFraction
	}
	if stopFraction <= 0 {
		stopFraction = DefaultStopFraction
	}
	return &BudgetGuard{
		warnFraction: warnFraction,
		stopFraction: stopFraction,
		warned:       make(map[string]bool),
	}
}

// Check classifies cost against ceiling. A ceiling of zero means no
// limit. Both thresholds compare with >=.
func (g *BudgetGuard) Check(costUSD, ceilingUSD float64) models.BudgetState {
	if ceilingUSD <= 0 {
		return models.BudgetOK
	}

	fraction := costUSD / ceilingUSD
	if fraction >= g.stopFraction {
		return models.BudgetStop
	}
	if fraction >= g.warnFraction {
		return models.BudgetWarn
	}
	return models.BudgetOK
}

// FirstWarning reports whether this is the first warn-level observation
// for the session, so the warning condition is flagged once rather than
// on every admission.
func (g *BudgetGuard) FirstWarning(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.warned[sessionID] {
		return false
	}
	g.warned[sessionID] = true
	return true
}
