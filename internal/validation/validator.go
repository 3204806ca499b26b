package validation

import (
	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/pkg/schema"
)

// Validator checks workflow definitions for correctness before execution.
// Uses JSON Schema Draft 2020-12 for structure and action parameters.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}

// ActionLookup resolves action names during validation. *actions.Registry
// satisfies it.
type ActionLookup interface {
	Get(name string) (actions.Action, error)
	Behavior(name string) schema.BlockBehavior
}
