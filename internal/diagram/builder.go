package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// Names of actions drawn with their own shape.
var (
	signalActions = map[string]bool{
		"flow.break":    true,
		"flow.continue": true,
		"flow.return":   true,
		"flow.stop":     true,
	}
	callAction = "workflow.call"
	waitAction = "flow.wait"
)

// Build constructs a DiagramModel from a workflow definition. Block actions
// become nodes whose children are their branches or bodies; their end steps
// are not drawn. trace is optional and overlays step statuses.
func Build(def *schema.WorkflowDefinition, behavior blocks.BehaviorFunc, trace *store.RunTrace) (*DiagramModel, error) {
	if def == nil {
		return nil, fmt.Errorf("diagram: workflow definition is nil")
	}
	if behavior == nil {
		return nil, fmt.Errorf("diagram: block behavior is nil")
	}

	b := &builder{
		def:    def,
		layout: blocks.NewLayout(def, behavior),
	}
	if trace != nil {
		b.steps = trace.Steps
	}

	body := b.sequence(0, len(def.Steps))

	start := &Node{ID: StartID, Label: "Start", Kind: NodeKindStart}
	end := &Node{ID: EndID, Label: "End", Kind: NodeKindEnd}
	nodes := make([]*Node, 0, len(body)+2)
	nodes = append(nodes, start)
	nodes = append(nodes, body...)
	nodes = append(nodes, end)

	return &DiagramModel{
		Title: titleFromDef(def),
		Nodes: nodes,
		Edges: chain(nodes),
	}, nil
}

type builder struct {
	def    *schema.WorkflowDefinition
	layout blocks.Layout
	steps  map[string]*store.StepTrace
}

// sequence builds the nodes of the steps in [lo, hi).
func (b *builder) sequence(lo, hi int) []*Node {
	var nodes []*Node
	for i := lo; i < hi; {
		node := b.node(i)
		nodes = append(nodes, node)

		if b.layout[i].Behavior.Kind != schema.BlockStart {
			i++
			continue
		}

		end := b.layout.FindEnd(i)
		if end == blocks.NotFound || end >= hi {
			// Unclosed block: everything left in range is its body.
			end = hi
		}
		bounds := append([]int{i}, b.middles(i, end)...)
		bounds = append(bounds, end)
		for k := 0; k+1 < len(bounds); k++ {
			head := &b.def.Steps[bounds[k]]
			sg := &SubGraph{
				Label: branchLabel(head, node.Kind),
				Nodes: b.sequence(bounds[k]+1, bounds[k+1]),
			}
			sg.Edges = chain(sg.Nodes)
			node.Children = append(node.Children, sg)
		}
		i = end + 1
	}
	return nodes
}

// middles returns the positions of the Middle steps that belong directly to
// the block opened at start.
func (b *builder) middles(start, end int) []int {
	pairing := b.layout[start].Behavior.Pairing
	var out []int
	open := 1
	for i := start + 1; i < end; i++ {
		beh := b.layout[i].Behavior
		if beh.Pairing != pairing {
			continue
		}
		switch beh.Kind {
		case schema.BlockStart:
			open++
		case schema.BlockEnd:
			open--
		case schema.BlockMiddle:
			if open == 1 {
				out = append(out, i)
			}
		}
	}
	return out
}

func (b *builder) node(i int) *Node {
	step := &b.def.Steps[i]
	n := &Node{
		ID:    step.ID,
		Label: nodeLabel(step),
		Kind:  kindOf(step.Action, b.layout[i].Behavior),
	}
	if st, ok := b.steps[step.ID]; ok {
		n.Status = &StatusOverlay{
			Status:     string(st.Status),
			DurationMs: st.DurationMs,
			Executions: st.Executions,
			Error:      string(st.Error),
		}
	}
	return n
}

func kindOf(action string, beh schema.BlockBehavior) NodeKind {
	if beh.Kind == schema.BlockStart {
		switch beh.Pairing {
		case schema.PairingIf:
			return NodeKindCondition
		case schema.PairingLoop:
			return NodeKindLoop
		case schema.PairingEvent:
			return NodeKindListener
		}
	}
	switch {
	case signalActions[action]:
		return NodeKindSignal
	case action == callAction:
		return NodeKindCall
	case action == waitAction:
		return NodeKindWait
	}
	return NodeKindAction
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(step *schema.StepDefinition) string {
	if step.Action != "" {
		return fmt.Sprintf("%s\n(%s)", step.ID, step.Action)
	}
	return step.ID
}

// branchLabel names the branch or body that head opens.
func branchLabel(head *schema.StepDefinition, kind NodeKind) string {
	if kind != NodeKindCondition {
		return "body"
	}
	name := head.Action
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if cond := conditionText(head.Params); cond != "" {
		return name + " " + cond
	}
	return name
}

// conditionText summarizes the condition params of a branch head.
func conditionText(params map[string]any) string {
	if expr, ok := params["expression"].(string); ok && strings.TrimSpace(expr) != "" {
		return strings.TrimSpace(expr)
	}
	input, hasInput := params["input"]
	if !hasInput {
		return ""
	}
	parts := []string{fmt.Sprint(input)}
	if op, ok := params["operator"].(string); ok && op != "" {
		parts = append(parts, op)
	}
	for _, k := range []string{"value", "value2"} {
		if v, ok := params[k]; ok {
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}

// chain links consecutive nodes.
func chain(nodes []*Node) []Edge {
	if len(nodes) < 2 {
		return nil
	}
	edges := make([]Edge, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		edges = append(edges, Edge{From: nodes[i-1].ID, To: nodes[i].ID})
	}
	return edges
}

// titleFromDef generates a diagram title from the workflow's name or id.
func titleFromDef(def *schema.WorkflowDefinition) string {
	if def.Name != "" {
		return def.Name
	}
	if def.Metadata != nil {
		if name, ok := def.Metadata["name"].(string); ok && name != "" {
			return name
		}
	}
	if def.ID != "" {
		return def.ID
	}
	return "Workflow"
}

// walk visits every node of the model depth first.
func walk(nodes []*Node, fn func(n *Node, depth int), depth int) {
	for _, n := range nodes {
		fn(n, depth)
		for _, sg := range n.Children {
			walk(sg.Nodes, fn, depth+1)
		}
	}
}
