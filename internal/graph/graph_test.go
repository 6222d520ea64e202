package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/flotilla/pkg/models"
)

func node(id string, deps ...string) *models.WorkstreamNode {
	return &models.WorkstreamNode{
		ID:        id,
		Task:      "task " + id,
		AgentType: "builder",
		DependsOn: deps,
		Status:    models.NodeStatusPending,
	}
}

func TestCompileSimple(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("a"),
		node("b", "a"),
	}, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	if d.Size() != 2 {
		t.Errorf("expected 2 nodes, got %d", d.Size())
	}
	deps := d.Dependencies("b")
	if len(deps) != 1 || deps[0] != "a" {
		t.Errorf("expected b to depend on [a], got %v", deps)
	}
}

func TestCompileExplicitEdges(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("a"), node("b"),
	}, []Edge{{From: "a", To: "b"}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	deps := d.Dependencies("b")
	if len(deps) != 1 || deps[0] != "a" {
		t.Errorf("expected edge a->b to become dependency, got %v", deps)
	}
}

func TestCompileDuplicateEdgeCollapsed(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("a"), node("b", "a"),
	}, []Edge{{From: "a", To: "b"}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	if deps := d.Dependencies("b"); len(deps) != 1 {
		t.Errorf("expected duplicate dependency collapsed, got %v", deps)
	}
}

func TestCompileUnknownDependency(t *testing.T) {
	_, err := Compile([]*models.WorkstreamNode{node("a", "ghost")}, nil)
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestCompileUnknownEdgeEndpoint(t *testing.T) {
	_, err := Compile([]*models.WorkstreamNode{node("a")}, []Edge{{From: "a", To: "ghost"}})
	if err == nil {
		t.Fatal("expected error for unknown edge endpoint")
	}
}

func TestCompileRejectsCycle(t *testing.T) {
	_, err := Compile([]*models.WorkstreamNode{
		node("a", "c"),
		node("b", "a"),
		node("c", "b"),
	}, nil)
	if err == nil {
		t.Fatal("expected cycle error")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %T: %v", err, err)
	}
	if len(cycleErr.Path) < 4 {
		t.Errorf("expected closed cycle path, got %v", cycleErr.Path)
	}
	if cycleErr.Path[0] != cycleErr.Path[len(cycleErr.Path)-1] {
		t.Errorf("expected cycle path to close on itself, got %v", cycleErr.Path)
	}
}

func TestCompileSelfCycle(t *testing.T) {
	_, err := Compile([]*models.WorkstreamNode{node("a", "a")}, nil)

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError for self-dependency, got %v", err)
	}
}

func TestComputeWavesDiamond(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("a"),
		node("b", "a"),
		node("c", "a"),
		node("d", "b", "c"),
	}, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	waves, err := ComputeWaves(d)
	if err != nil {
		t.Fatalf("compute waves failed: %v", err)
	}

	if len(waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(waves))
	}
	if len(waves[0].Members) != 1 || waves[0].Members[0] != "a" {
		t.Errorf("wave 0 = %v, want [a]", waves[0].Members)
	}
	if len(waves[1].Members) != 2 {
		t.Errorf("wave 1 = %v, want [b c]", waves[1].Members)
	}
	if len(waves[2].Members) != 1 || waves[2].Members[0] != "d" {
		t.Errorf("wave 2 = %v, want [d]", waves[2].Members)
	}
}

// Spec scenario: {A:[], B:[], C:[A,B]} yields waves [{A,B},{C}].
func TestComputeWavesJoin(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("A"),
		node("B"),
		node("C", "A", "B"),
	}, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	waves, err := ComputeWaves(d)
	if err != nil {
		t.Fatalf("compute waves failed: %v", err)
	}

	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(waves))
	}
	if len(waves[0].Members) != 2 {
		t.Errorf("wave 0 = %v, want [A B]", waves[0].Members)
	}
	if len(waves[1].Members) != 1 || waves[1].Members[0] != "C" {
		t.Errorf("wave 1 = %v, want [C]", waves[1].Members)
	}
}

// Every node appears in exactly one wave, and each member's dependencies
// land in strictly earlier waves.
func TestComputeWavesPartition(t *testing.T) {
	nodes := []*models.WorkstreamNode{
		node("a"),
		node("b", "a"),
		node("c", "a"),
		node("d", "b"),
		node("e", "b", "c"),
		node("f"),
		node("g", "e", "f"),
	}

	d, err := Compile(nodes, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	waves, err := ComputeWaves(d)
	if err != nil {
		t.Fatalf("compute waves failed: %v", err)
	}

	waveOf := make(map[string]int)
	for _, w := range waves {
		for _, id := range w.Members {
			if prev, seen := waveOf[id]; seen {
				t.Errorf("node %s appears in waves %d and %d", id, prev, w.Index)
			}
			waveOf[id] = w.Index
		}
	}
	if len(waveOf) != len(nodes) {
		t.Errorf("expected %d scheduled nodes, got %d", len(nodes), len(waveOf))
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if waveOf[dep] >= waveOf[n.ID] {
				t.Errorf("dependency %s of %s not in strictly earlier wave (%d vs %d)",
					dep, n.ID, waveOf[dep], waveOf[n.ID])
			}
		}
	}
}

func TestDependencies(t *testing.T) {
	d, err := Compile([]*models.WorkstreamNode{
		node("a"),
		node("b"),
		node("c", "b", "a"),
	}, nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	deps := d.Dependencies("c")
	if len(deps) != 2 || deps[0] != "a" || deps[1] != "b" {
		t.Errorf("Dependencies(c) = %v, want [a b]", deps)
	}
	if deps := d.Dependencies("a"); len(deps) != 0 {
		t.Errorf("Dependencies(a) = %v, want none", deps)
	}
}
