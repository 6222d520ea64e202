package models

// NodeStatus represents the current state of a workstream node.
type NodeStatus string

const (
	// NodeStatusPending indicates the node is waiting on dependencies.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusReady indicates every dependency is complete.
	NodeStatusReady NodeStatus = "ready"
	// NodeStatusRunning indicates an execution context is working the node.
	NodeStatusRunning NodeStatus = "running"
	// NodeStatusComplete indicates the node finished successfully.
	NodeStatusComplete NodeStatus = "complete"
	// NodeStatusFailed indicates the node's execution context failed.
	NodeStatusFailed NodeStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusReady, NodeStatusRunning,
		NodeStatusComplete, NodeStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is an end state for the node.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusComplete || s == NodeStatusFailed
}

// WorkstreamNode is an atomic unit of planned work emitted by the planner.
// Task, AgentType, DependsOn and Deliverables are immutable after plan
// compile; Status is mutated only by the scheduler and lifecycle monitor.
type WorkstreamNode struct {
	// ID is the unique identifier for this node within its session.
	ID string `json:"id" yaml:"id"`
	// Task is the full task text delivered to the executor.
	Task string `json:"task" yaml:"task"`
	// AgentType is the executor role assigned to this node.
	AgentType string `json:"agent_type" yaml:"agent_type"`
	// DependsOn lists node IDs that must complete before this node runs.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Deliverables lists the artifacts the node is expected to produce.
	Deliverables []string `json:"deliverables,omitempty" yaml:"deliverables,omitempty"`
	// Status is the current state of the node.
	Status NodeStatus `json:"status" yaml:"status"`
	// Error contains the failure reason when Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
