package expressions

import "context"

// Engine evaluates expressions within workflow steps.
// Three implementations: CEL (conditions), Expr (computed values), GoJQ (transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Top-level keys of the expression data built from a run's state.
const (
	DataSteps = "steps" // step id -> output name -> value
	DataVars  = "vars"  // named variables
	DataLoop  = "loop"  // innermost loop frame: index, item
)

var dataKeys = []string{DataSteps, DataVars, DataLoop}
