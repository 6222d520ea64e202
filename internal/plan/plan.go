// Package plan ingests planner documents: the external Planner emits a
// DAG description as JSON or YAML, and this package turns it into
// workstream nodes and a compiled graph.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/flotilla/internal/graph"
	"github.com/ShayCichocki/flotilla/pkg/models"
)

// NodeSpec is one workstream node as the planner describes it.
type NodeSpec struct {
	ID           string   `json:"id" yaml:"id"`
	Task         string   `json:"task" yaml:"task"`
	AgentType    string   `json:"agentType" yaml:"agentType"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Deliverables []string `json:"deliverables,omitempty" yaml:"deliverables,omitempty"`
}

// EdgeSpec is one explicit dependency edge.
type EdgeSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Document is the planner's DAG description. Dependencies may be
// declared per node, as explicit edges, or both; they are merged and
// deduplicated at compile time.
type Document struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges []EdgeSpec `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Load reads and parses a plan file, dispatching on its extension:
// .yaml/.yml parse as YAML, everything else as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON plan document.
func ParseJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse plan json: %w", err)
	}
	return &d, nil
}

// ParseYAML parses a YAML plan document.
func ParseYAML(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse plan yaml: %w", err)
	}
	return &d, nil
}

// Compile validates the document and builds the dependency graph.
// Per-node dependencies and explicit edges are merged; the graph rejects
// unknown endpoints and cycles.
func (d *Document) Compile() (*graph.DAG, error) {
	if len(d.Nodes) == 0 {
		return nil, fmt.Errorf("plan has no nodes")
	}

	nodes := make([]*models.WorkstreamNode, 0, len(d.Nodes))
	for _, spec := range d.Nodes {
		if spec.ID == "" {
			return nil, fmt.Errorf("plan node with empty id")
		}
		if spec.Task == "" {
			return nil, fmt.Errorf("plan node %s has no task", spec.ID)
		}
		nodes = append(nodes, &models.WorkstreamNode{
			ID:           spec.ID,
			Task:         spec.Task,
			AgentType:    spec.AgentType,
			DependsOn:    append([]string(nil), spec.Dependencies...),
			Deliverables: append([]string(nil), spec.Deliverables...),
			Status:       models.NodeStatusPending,
		})
	}

	seen := make(map[graph.Edge]bool)
	var edges []graph.Edge
	add := func(e graph.Edge) {
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}
	for _, spec := range d.Nodes {
		for _, dep := range spec.Dependencies {
			add(graph.Edge{From: dep, To: spec.ID})
		}
	}
	for _, e := range d.Edges {
		add(graph.Edge{From: e.From, To: e.To})
	}

	return graph.Compile(nodes, edges)
}
