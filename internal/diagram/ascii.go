package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for a status string.
func statusTag(status string) string {
	switch status {
	case "completed":
		return "[OK]"
	case "failed":
		return "[FAIL]"
	case "running":
		return "[RUN]"
	case "skipped":
		return "[SKIP]"
	case "pending":
		return "[PEND]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram: top-level steps as a
// vertical chain of boxes, block branches as an indented tree below their box.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	// Title.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	for i, node := range model.Nodes {
		box := makeBox(node)
		for _, line := range box.lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		for _, sg := range node.Children {
			renderSubGraph(&b, sg, 1)
		}
		if i < len(model.Nodes)-1 {
			renderConnector(&b, box.width)
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if node.Kind != NodeKindStart && node.Kind != NodeKindEnd {
		contentLines[0] = nodeText(node)
	}

	// Add status tag if present.
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			contentLines = append(contentLines, tag)
		}
		if node.Status.DurationMs > 0 {
			contentLines = append(contentLines, fmt.Sprintf("%dms", node.Status.DurationMs))
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		if n := len([]rune(line)); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len([]rune(content)))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// nodeText is the single-line form of a node label: "id (action)".
func nodeText(node *Node) string {
	return strings.ReplaceAll(node.Label, "\n", " ")
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderConnector draws a vertical connector below a box of the given width.
func renderConnector(b *strings.Builder, width int) {
	pad := strings.Repeat(" ", width/2)
	b.WriteString(pad + "│\n")
	b.WriteString(pad + "▼\n")
}

// renderSubGraph renders a branch or body as an indented list.
func renderSubGraph(b *strings.Builder, sg *SubGraph, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(fmt.Sprintf("%s[%s]\n", indent, sg.Label))
	if len(sg.Nodes) == 0 {
		b.WriteString(indent + "  (empty)\n")
	}
	for _, node := range sg.Nodes {
		tag := ""
		if node.Status != nil {
			if t := statusTag(node.Status.Status); t != "" {
				tag = " " + t
			}
		}
		b.WriteString(fmt.Sprintf("%s  %s%s\n", indent, nodeText(node), tag))
		for _, child := range node.Children {
			renderSubGraph(b, child, depth+2)
		}
	}
}
