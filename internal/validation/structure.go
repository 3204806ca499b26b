package validation

import (
	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/pkg/schema"
)

// validateStructure checks the implicit nesting of the flat step list:
// block balance, middles inside their block, and break/continue inside a
// loop-kind block.
func validateStructure(def *schema.WorkflowDefinition, behavior blocks.BehaviorFunc) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	layout := blocks.NewLayout(def, behavior)

	problems := layout.Check()
	for _, p := range problems {
		result.AddError(schema.StepPath(p.Index), schema.ErrCodeControlFlow, p.Message)
	}
	if len(problems) > 0 {
		return result // enclosing-loop lookups are meaningless on an unbalanced layout
	}

	for i, n := range layout {
		if n.Action != actions.ActionBreak && n.Action != actions.ActionContinue {
			continue
		}
		if start, _ := layout.FindEnclosingLoopStart(i, nil); start == blocks.NotFound {
			result.AddErrorf(schema.StepPath(i), schema.ErrCodeControlFlow, "%s outside of a loop", n.Action)
		}
	}
	return result
}
