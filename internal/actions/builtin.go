package actions

import (
	"log/slog"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/streaming"
)

// Deps holds the shared services built-in actions use. Nil engines are
// created on demand; a nil Hub disables the event actions at run time.
type Deps struct {
	Hub    streaming.SessionHub
	Logger *slog.Logger
	CEL    *expressions.CELEngine
	Expr   *expressions.ExprEngine
	JQ     *expressions.GoJQEngine
}

// RegisterBuiltins registers all built-in actions except workflow.call,
// which needs a caller and is registered by the engine.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	if deps.CEL == nil {
		cel, err := expressions.NewCELEngine()
		if err != nil {
			return err
		}
		deps.CEL = cel
	}
	if deps.Expr == nil {
		deps.Expr = expressions.NewExprEngine()
	}
	if deps.JQ == nil {
		deps.JQ = expressions.NewGoJQEngine()
	}

	all := make([]Action, 0, 32)

	// Block actions.
	all = append(all, ConditionActions(deps.CEL)...)
	all = append(all, LoopActions(deps.CEL)...)
	all = append(all, EventActions(deps.Hub)...)

	// Signals.
	all = append(all, SignalActions()...)

	// Data and expressions.
	all = append(all, DataActions()...)
	all = append(all, ExprActions(deps.Expr, deps.JQ)...)

	// Logging and waiting.
	all = append(all,
		&flowLogAction{deps: WorkflowActionDeps{Logger: deps.Logger}},
		&flowWaitAction{},
	)

	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// RegisterWorkflowCall registers workflow.call. Called after the engine is
// created so the caller can be wired.
func RegisterWorkflowCall(reg *Registry, caller WorkflowCaller) error {
	return reg.Register(&workflowCallAction{deps: WorkflowActionDeps{Caller: caller}})
}
