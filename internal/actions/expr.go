package actions

import (
	"context"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// ExprActions returns the expression evaluation actions.
func ExprActions(exprEngine *expressions.ExprEngine, jq *expressions.GoJQEngine) []Action {
	return []Action{
		&exprEvalAction{engine: exprEngine},
		&jqQueryAction{engine: jq},
	}
}

// --- expr.eval ---

type exprEvalAction struct {
	plain
	engine *expressions.ExprEngine
}

func (a *exprEvalAction) Name() string { return "expr.eval" }

func (a *exprEvalAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Evaluate an Expr expression against steps, vars, loop and optional data",
	}
}

func (a *exprEvalAction) Validate(params map[string]any) error {
	expr, ok := params["expression"].(string)
	if !ok || expr == "" {
		return schema.NewError(schema.ErrCodeValidation, "expr.eval requires non-empty 'expression' string parameter")
	}
	return nil
}

func (a *exprEvalAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	expression, err := inv.RequireString("expression")
	if err != nil {
		return nil, err
	}

	// Build evaluation scope.
	scope := inv.State.ExpressionData()

	// Explicit data is available as "data".
	if data, ok := inv.Param("data"); ok {
		scope["data"] = value.ToAny(data)
	}

	result, err := a.engine.Evaluate(ctx, expression, scope)
	if err != nil {
		return nil, err
	}
	return Success{Outputs: map[string]value.Value{"result": value.FromAny(result)}}, nil
}

// --- jq.query ---

type jqQueryAction struct {
	plain
	engine *expressions.GoJQEngine
}

func (a *jqQueryAction) Name() string { return "jq.query" }

func (a *jqQueryAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Run a jq filter over a value (default: the steps/vars/loop scope)",
	}
}

func (a *jqQueryAction) Validate(params map[string]any) error {
	filter, ok := params["filter"].(string)
	if !ok || filter == "" {
		return schema.NewError(schema.ErrCodeValidation, "jq.query requires non-empty 'filter' string parameter")
	}
	return nil
}

func (a *jqQueryAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	filter, err := inv.RequireString("filter")
	if err != nil {
		return nil, err
	}

	var input any
	if v, ok := inv.Param("input"); ok {
		input = value.ToAny(v)
	} else {
		input = inv.State.ExpressionData()
	}

	results, err := a.engine.Query(ctx, filter, input)
	if err != nil {
		return nil, err
	}

	all := make(value.List, len(results))
	for i, r := range results {
		all[i] = value.FromAny(r)
	}
	var first value.Value = value.Null{}
	if len(all) > 0 {
		first = all[0]
	}
	return Success{Outputs: map[string]value.Value{
		"result":  first,
		"results": all,
		"count":   value.Int(int64(len(all))),
	}}, nil
}
