package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	writeMermaidNodes(&b, model.Nodes, 1)

	// Render edges.
	for _, edge := range model.Edges {
		writeMermaidEdge(&b, edge, 1)
	}

	// Status class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef running fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef pending fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	// Apply status classes.
	walk(model.Nodes, func(n *Node, _ int) {
		if n.Status == nil {
			return
		}
		if cls := mermaidStatusClass(n.Status.Status); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(n.ID), cls))
		}
	}, 0)

	return b.String()
}

func writeMermaidNodes(b *strings.Builder, nodes []*Node, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, node := range nodes {
		b.WriteString(indent + mermaidNodeDef(node) + "\n")

		// Subgraphs for branches and bodies.
		for i, sg := range node.Children {
			b.WriteString(fmt.Sprintf("%ssubgraph %s[%q]\n",
				indent, subgraphID(node, i), node.ID+": "+sg.Label))
			writeMermaidNodes(b, sg.Nodes, depth+1)
			for _, edge := range sg.Edges {
				writeMermaidEdge(b, edge, depth+1)
			}
			b.WriteString(indent + "end\n")
			if len(sg.Nodes) > 0 {
				writeMermaidEdge(b, Edge{From: node.ID, To: sg.Nodes[0].ID, Label: sg.Label}, depth)
			}
		}
	}
}

func writeMermaidEdge(b *strings.Builder, edge Edge, depth int) {
	label := ""
	if edge.Label != "" {
		label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
	}
	b.WriteString(fmt.Sprintf("%s%s -->%s %s\n",
		strings.Repeat("    ", depth), mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
}

func subgraphID(node *Node, i int) string {
	return mermaidSafeID(fmt.Sprintf("%s_branch_%d", node.ID, i))
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindLoop, NodeKindListener:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindSignal:
		return fmt.Sprintf("%s>%q]", id, label)
	case NodeKindCall:
		return fmt.Sprintf("%s[/%q/]", id, label)
	case NodeKindWait:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default: // action
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots, dashes and spaces with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel replaces characters that end a Mermaid label early.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}

// mermaidStatusClass maps a status string to a Mermaid class name.
func mermaidStatusClass(status string) string {
	switch status {
	case "completed", "failed", "running", "pending", "skipped":
		return status
	default:
		return ""
	}
}
