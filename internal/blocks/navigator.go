// Package blocks resolves the implicit nesting of block actions in a flat
// step list. It reads only action names and block behaviors; it never touches
// run state.
package blocks

import (
	"fmt"

	"github.com/rendis/stepflow/pkg/schema"
)

// NotFound is returned by every query that has no answer. A malformed
// workflow surfaces as a control-flow failure at the call site.
const NotFound = -1

// Node is the navigator's view of a step.
type Node struct {
	Action   string
	Behavior schema.BlockBehavior
}

// Layout is the ordered node list of a workflow.
type Layout []Node

// BehaviorFunc returns the block behavior of an action; unknown actions
// should report schema.NoBlock.
type BehaviorFunc func(action string) schema.BlockBehavior

// NewLayout builds the layout of def.
func NewLayout(def *schema.WorkflowDefinition, behavior BehaviorFunc) Layout {
	nodes := make(Layout, len(def.Steps))
	for i, step := range def.Steps {
		nodes[i] = Node{Action: step.Action, Behavior: behavior(step.Action)}
	}
	return nodes
}

// DefaultLoopPairings are the pairing ids Break and Continue resolve against.
var DefaultLoopPairings = map[string]bool{
	schema.PairingLoop:  true,
	schema.PairingEvent: true,
}

func contains(targets []string, action string) bool {
	for _, t := range targets {
		if t == action {
			return true
		}
	}
	return false
}

// FindNext scans forward from the Start at start and returns the first Middle
// or End of the same block whose action is in targets. Nested blocks of the
// same pairing are skipped; the block's own End stops the scan.
func (l Layout) FindNext(start int, targets ...string) int {
	if start < 0 || start >= len(l) {
		return NotFound
	}
	pairing := l[start].Behavior.Pairing
	open := 1
	for i := start + 1; i < len(l); i++ {
		b := l[i].Behavior
		if b.Pairing != pairing {
			continue
		}
		switch b.Kind {
		case schema.BlockStart:
			open++
		case schema.BlockMiddle:
			if open == 1 && contains(targets, l[i].Action) {
				return i
			}
		case schema.BlockEnd:
			if open == 1 {
				if contains(targets, l[i].Action) {
					return i
				}
				return NotFound
			}
			open--
		}
	}
	return NotFound
}

// FindEnd returns the End matching the block opened at start (or containing
// the Middle at start), regardless of its action.
func (l Layout) FindEnd(start int) int {
	if start < 0 || start >= len(l) {
		return NotFound
	}
	pairing := l[start].Behavior.Pairing
	if pairing == "" {
		return NotFound
	}
	open := 1
	for i := start + 1; i < len(l); i++ {
		b := l[i].Behavior
		if b.Pairing != pairing {
			continue
		}
		switch b.Kind {
		case schema.BlockStart:
			open++
		case schema.BlockEnd:
			open--
			if open == 0 {
				return i
			}
		}
	}
	return NotFound
}

// FindBlockStart scans backward from position end (an End or Middle) to the
// matching Start. When targetAction is non-empty the Start must carry it.
func (l Layout) FindBlockStart(end int, targetAction string) int {
	if end < 0 || end >= len(l) {
		return NotFound
	}
	pairing := l[end].Behavior.Pairing
	if pairing == "" {
		return NotFound
	}
	open := 1
	for i := end - 1; i >= 0; i-- {
		b := l[i].Behavior
		if b.Pairing != pairing {
			continue
		}
		switch b.Kind {
		case schema.BlockEnd:
			open++
		case schema.BlockStart:
			if open == 1 {
				if targetAction == "" || l[i].Action == targetAction {
					return i
				}
				return NotFound
			}
			open--
		}
	}
	return NotFound
}

// FindEnclosingLoopStart scans backward from pos counting only loop-kind
// pairings and returns the nearest unclosed loop Start with its pairing id.
func (l Layout) FindEnclosingLoopStart(pos int, loopPairings map[string]bool) (int, string) {
	if loopPairings == nil {
		loopPairings = DefaultLoopPairings
	}
	if pos > len(l) {
		pos = len(l)
	}
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		b := l[i].Behavior
		if !loopPairings[b.Pairing] {
			continue
		}
		switch b.Kind {
		case schema.BlockEnd:
			depth++
		case schema.BlockStart:
			if depth == 0 {
				return i, b.Pairing
			}
			depth--
		}
	}
	return NotFound, ""
}

// Problem is one structural defect found by Check.
type Problem struct {
	Index   int
	Message string
}

// Check verifies block balance: every Start has a matching End, every Middle
// sits inside a block of its pairing, and no End is stray.
func (l Layout) Check() []Problem {
	var problems []Problem
	var open []int
	for i, n := range l {
		b := n.Behavior
		switch b.Kind {
		case schema.BlockStart:
			open = append(open, i)
		case schema.BlockMiddle:
			if len(open) == 0 || l[open[len(open)-1]].Behavior.Pairing != b.Pairing {
				problems = append(problems, Problem{Index: i,
					Message: fmt.Sprintf("%s is not inside a %q block", n.Action, b.Pairing)})
			}
		case schema.BlockEnd:
			if len(open) == 0 {
				problems = append(problems, Problem{Index: i,
					Message: fmt.Sprintf("%s has no matching block start", n.Action)})
				continue
			}
			top := open[len(open)-1]
			if l[top].Behavior.Pairing != b.Pairing {
				problems = append(problems, Problem{Index: i,
					Message: fmt.Sprintf("%s closes a %q block but the innermost open block is %q (step %d)",
						n.Action, b.Pairing, l[top].Behavior.Pairing, top)})
				continue
			}
			open = open[:len(open)-1]
		}
	}
	for _, i := range open {
		problems = append(problems, Problem{Index: i,
			Message: fmt.Sprintf("%s is never closed", l[i].Action)})
	}
	return problems
}
