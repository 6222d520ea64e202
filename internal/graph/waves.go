package graph

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// ComputeWaves runs Kahn's algorithm over the DAG, collecting all nodes at
// in-degree zero into successive waves. Every node lands in exactly one
// wave, and each wave's members have all dependencies in strictly earlier
// waves. No ordering is guaranteed among members within a wave.
//
// A non-empty remainder with no zero-in-degree node means the compile-time
// cycle check was bypassed; that is a fatal invariant violation, not a
// recoverable condition.
func ComputeWaves(d *DAG) ([]*models.Wave, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indeg := make(map[string]int, len(d.nodes))
	dependents := make(map[string][]string, len(d.nodes))
	for id := range d.nodes {
		indeg[id] = len(d.deps[id])
		for _, dep := range d.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	remaining := len(d.nodes)
	var waves []*models.Wave

	for remaining > 0 {
		var members []string
		for id, deg := range indeg {
			if deg == 0 {
				members = append(members, id)
			}
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("dependency graph invariant violated: %d nodes remain with no runnable member", remaining)
		}
		sort.Strings(members)

		for _, id := range members {
			delete(indeg, id)
			remaining--
			for _, dependent := range dependents[id] {
				indeg[dependent]--
			}
		}

		waves = append(waves, &models.Wave{
			Index:   len(waves),
			Members: members,
			Status:  models.WaveStatusPending,
		})
	}

	return waves, nil
}
