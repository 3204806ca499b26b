// Package diagram renders the block structure of a workflow, optionally
// overlaid with the step statuses of a recorded run.
package diagram

// NodeKind classifies a diagram node by the role of its step.
type NodeKind string

const (
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindLoop      NodeKind = "loop"
	NodeKindListener  NodeKind = "listener"
	NodeKindSignal    NodeKind = "signal"
	NodeKindCall      NodeKind = "call"
	NodeKindWait      NodeKind = "wait"
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node represents a single step in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Status   *StatusOverlay
	Children []*SubGraph // condition branches, loop or listener body
}

// SubGraph holds the steps of one branch or body of a block.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries runtime state for a node.
type StatusOverlay struct {
	Status     string // from store.StepStatus
	DurationMs int64
	Executions int
	Error      string
}

// Edge connects two consecutive steps.
type Edge struct {
	From  string
	To    string
	Label string
}

// Virtual node ids.
const (
	StartID = "__start__"
	EndID   = "__end__"
)
