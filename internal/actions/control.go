package actions

import (
	"context"
	"strings"

	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/internal/conditions"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Names of the conditional block actions.
const (
	ActionIf     = "condition.if"
	ActionElseIf = "condition.else_if"
	ActionElse   = "condition.else"
	ActionEndIf  = "condition.end"
)

// ConditionActions returns the if / else_if / else / end block actions.
func ConditionActions(cel *expressions.CELEngine) []Action {
	c := conditionChecker{cel: cel}
	return []Action{
		&ifAction{check: c},
		&elseIfAction{check: c},
		&elseAction{},
		&endIfAction{},
	}
}

// conditionChecker evaluates the condition params shared by condition.if,
// condition.else_if and loop.while: either a CEL "expression", or
// "input"/"operator"/"value"/"value2" through the operator table.
type conditionChecker struct {
	cel *expressions.CELEngine
}

func (c conditionChecker) validate(name string, params map[string]any) error {
	if expr, _ := params["expression"].(string); strings.TrimSpace(expr) != "" {
		return nil
	}
	opName, _ := params["operator"].(string)
	if opName == "" {
		return nil
	}
	if _, ok := conditions.ParseOperator(opName); !ok {
		return schema.NewErrorf(schema.ErrCodeValidation, "%s: unknown operator %q", name, opName)
	}
	return nil
}

func (c conditionChecker) check(ctx context.Context, inv *Invocation) (bool, error) {
	if expr := strings.TrimSpace(inv.String("expression", "")); expr != "" {
		if c.cel == nil {
			return false, inv.ParamError("CEL expressions are not enabled")
		}
		ok, err := c.cel.EvaluateBool(ctx, expr, inv.State.ExpressionData())
		if err != nil {
			if fe, isFlow := err.(*schema.FlowError); isFlow {
				return false, fe.WithStep(inv.stepID())
			}
			return false, err
		}
		return ok, nil
	}

	opName := inv.String("operator", string(conditions.OpIsTrue))
	op, ok := conditions.ParseOperator(opName)
	if !ok {
		return false, inv.ParamError("unknown operator %q", opName)
	}

	input, present := inv.Lookup("input")
	if !present {
		input = nil
	}
	v1, _ := inv.Param("value")
	v2, _ := inv.Param("value2")
	if n := op.NeedsOperand(); n >= 1 && v1 == nil {
		return false, inv.ParamError("operator %q needs a value", op)
	} else if n == 2 && v2 == nil {
		return false, inv.ParamError("operator %q needs value and value2", op)
	}
	return conditions.Evaluate(input, op, v1, v2), nil
}

// skipBranch moves past a branch whose condition was false: to the next
// else_if (which evaluates its own condition), or just past the next else or
// the end.
func skipBranch(inv *Invocation) (Result, error) {
	next := inv.Layout.FindNext(inv.Index, ActionElseIf, ActionElse, ActionEndIf)
	if next == blocks.NotFound {
		return nil, inv.ControlFlowError("%s at step %d has no matching %s", inv.Step.Action, inv.Index, ActionEndIf)
	}
	if inv.Layout[next].Action == ActionElseIf {
		return Jump{Target: next}, nil
	}
	return Jump{Target: next + 1}, nil
}

// skippedHere reports whether the cursor arrived from a false condition of
// the same block rather than by finishing the branch above.
func skippedHere(inv *Invocation) bool {
	from := inv.JumpedFrom
	if from < 0 || from >= inv.Index || from >= len(inv.Layout) {
		return false
	}
	switch inv.Layout[from].Action {
	case ActionIf, ActionElseIf:
	default:
		return false
	}
	return inv.Layout.FindNext(from, ActionElseIf, ActionElse, ActionEndIf) == inv.Index
}

// leaveBlock is taken by else_if and else when the preceding branch ran: the
// rest of the block is skipped.
func leaveBlock(inv *Invocation) (Result, error) {
	end, err := inv.blockEnd()
	if err != nil {
		return nil, err
	}
	return Jump{Target: end + 1}, nil
}

// --- condition.if ---

type ifAction struct {
	check conditionChecker
}

func (a *ifAction) Name() string                   { return ActionIf }
func (a *ifAction) Behavior() schema.BlockBehavior { return schema.StartOf(schema.PairingIf) }

func (a *ifAction) Schema() ActionSchema {
	return ActionSchema{Description: "Open a conditional block; run its first branch when the condition holds."}
}

func (a *ifAction) Validate(params map[string]any) error {
	return a.check.validate(ActionIf, params)
}

func (a *ifAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	ok, err := a.check.check(ctx, inv)
	if err != nil {
		return nil, err
	}
	if ok {
		return Success{Outputs: map[string]value.Value{"result": value.Bool(true)}}, nil
	}
	return skipBranch(inv)
}

// --- condition.else_if ---

type elseIfAction struct {
	check conditionChecker
}

func (a *elseIfAction) Name() string                   { return ActionElseIf }
func (a *elseIfAction) Behavior() schema.BlockBehavior { return schema.MiddleOf(schema.PairingIf) }

func (a *elseIfAction) Schema() ActionSchema {
	return ActionSchema{Description: "Alternative branch of a conditional block with its own condition."}
}

func (a *elseIfAction) Validate(params map[string]any) error {
	return a.check.validate(ActionElseIf, params)
}

func (a *elseIfAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	if !skippedHere(inv) {
		return leaveBlock(inv)
	}
	ok, err := a.check.check(ctx, inv)
	if err != nil {
		return nil, err
	}
	if ok {
		return Success{Outputs: map[string]value.Value{"result": value.Bool(true)}}, nil
	}
	return skipBranch(inv)
}

// --- condition.else ---

type elseAction struct{}

func (a *elseAction) Name() string                   { return ActionElse }
func (a *elseAction) Behavior() schema.BlockBehavior { return schema.MiddleOf(schema.PairingIf) }
func (a *elseAction) Validate(map[string]any) error  { return nil }

func (a *elseAction) Schema() ActionSchema {
	return ActionSchema{Description: "Fallback branch of a conditional block."}
}

// Execute only runs when the previous branch fell through to it; a skipped
// branch jumps past the else.
func (a *elseAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	return leaveBlock(inv)
}

// --- condition.end ---

type endIfAction struct{}

func (a *endIfAction) Name() string                   { return ActionEndIf }
func (a *endIfAction) Behavior() schema.BlockBehavior { return schema.EndOf(schema.PairingIf) }
func (a *endIfAction) Validate(map[string]any) error  { return nil }

func (a *endIfAction) Schema() ActionSchema {
	return ActionSchema{Description: "Close a conditional block."}
}

func (a *endIfAction) Execute(context.Context, *Invocation) (Result, error) {
	return Success{}, nil
}
