// Package graph provides the dependency graph model for wave scheduling.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

// CycleError indicates a circular dependency in the plan. The DAG is
// rejected outright at compile time.
type CycleError struct {
	// Path is one witness cycle, closed (first element repeated last).
	Path []string
}

// Error returns a human-readable description of the cycle.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// Edge is a directed dependency: From must complete before To may run.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// DAG is a validated directed acyclic graph of workstream nodes.
// Nodes and edges are fixed after Compile.
type DAG struct {
	mu sync.RWMutex
	// nodes maps node ID to the workstream node.
	nodes map[string]*models.WorkstreamNode
	// deps maps node ID to the IDs it depends on.
	deps map[string][]string
}

// Compile validates nodes and edges into a DAG. Edges may come from the
// planner's explicit edge list, from each node's DependsOn field, or both;
// duplicates are collapsed. It rejects edges referencing unknown nodes and
// returns a CycleError if the graph is not acyclic.
func Compile(nodes []*models.WorkstreamNode, edges []Edge) (*DAG, error) {
	d := &DAG{
		nodes: make(map[string]*models.WorkstreamNode, len(nodes)),
		deps:  make(map[string][]string, len(nodes)),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := d.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s", n.ID)
		}
		d.nodes[n.ID] = n
		d.deps[n.ID] = nil
	}

	addDep := func(node, dep string) error {
		if _, ok := d.nodes[node]; !ok {
			return fmt.Errorf("edge references unknown node %s", node)
		}
		if _, ok := d.nodes[dep]; !ok {
			return fmt.Errorf("node %s depends on unknown node %s", node, dep)
		}
		for _, existing := range d.deps[node] {
			if existing == dep {
				return nil
			}
		}
		d.deps[node] = append(d.deps[node], dep)
		return nil
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if err := addDep(n.ID, dep); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range edges {
		if err := addDep(e.To, e.From); err != nil {
			return nil, err
		}
	}

	// Keep dependency order deterministic for wave computation and tests.
	for id := range d.deps {
		sort.Strings(d.deps[id])
	}

	if cycle := d.findCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	return d, nil
}

// findCycle runs a DFS with coloring and returns one witness cycle,
// or nil if the graph is acyclic.
func (d *DAG) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	ids := d.sortedIDs()
	color := make(map[string]int, len(ids))
	parent := make(map[string]string, len(ids))

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range d.deps[id] {
			switch color[dep] {
			case gray:
				// Back edge: walk parents from id back to dep.
				cycle = []string{dep}
				for cur := id; cur != dep; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				// Reverse into dependency order and close the loop.
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycle = append(cycle, cycle[0])
				return true
			case white:
				parent[dep] = id
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// Node returns the workstream node for the given ID, or nil if not found.
func (d *DAG) Node(id string) *models.WorkstreamNode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodes[id]
}

// Nodes returns all workstream nodes sorted by ID.
func (d *DAG) Nodes() []*models.WorkstreamNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*models.WorkstreamNode, 0, len(d.nodes))
	for _, id := range d.sortedIDs() {
		out = append(out, d.nodes[id])
	}
	return out
}

// Size returns the number of nodes in the graph.
func (d *DAG) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// Dependencies returns the IDs the given node depends on.
func (d *DAG) Dependencies(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.deps[id]...)
}

// sortedIDs returns all node IDs in lexical order. Caller must hold d.mu
// when the graph is shared.
func (d *DAG) sortedIDs() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
