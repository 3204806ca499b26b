package actions

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// DataActions returns the actions that read and write named variables and
// reshape values.
func DataActions() []Action {
	return []Action{
		&variableSetAction{},
		&variableAppendAction{},
		&variableIncrementAction{},
		&textFormatAction{},
		&listCountAction{},
		&dictGetAction{},
	}
}

func requireName(action string, params map[string]any) error {
	if name, _ := params["name"].(string); strings.TrimSpace(name) == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "%s: missing required param 'name'", action)
	}
	return nil
}

// variableParamsSchema is shared by the variable.* actions.
var variableParamsSchema = json.RawMessage(`{
	"type": "object",
	"required": ["name"],
	"properties": {"name": {"type": "string", "minLength": 1}}
}`)

// --- variable.set ---

type variableSetAction struct{ plain }

func (a *variableSetAction) Name() string { return "variable.set" }

func (a *variableSetAction) Schema() ActionSchema {
	return ActionSchema{Description: "Assign a value to a named variable.", InputSchema: variableParamsSchema}
}

func (a *variableSetAction) Validate(params map[string]any) error {
	return requireName(a.Name(), params)
}

func (a *variableSetAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	name, err := inv.RequireString("name")
	if err != nil {
		return nil, err
	}
	v, ok := inv.Param("value")
	if !ok {
		v = value.Null{}
	}
	inv.State.SetVariable(name, v)
	return Success{Outputs: map[string]value.Value{"value": v}}, nil
}

// --- variable.append ---

type variableAppendAction struct{ plain }

func (a *variableAppendAction) Name() string { return "variable.append" }

func (a *variableAppendAction) Schema() ActionSchema {
	return ActionSchema{Description: "Append a value to a list variable, creating it when missing.", InputSchema: variableParamsSchema}
}

func (a *variableAppendAction) Validate(params map[string]any) error {
	return requireName(a.Name(), params)
}

func (a *variableAppendAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	name, err := inv.RequireString("name")
	if err != nil {
		return nil, err
	}
	item, ok := inv.Param("value")
	if !ok {
		item = value.Null{}
	}

	var list value.List
	switch cur, _ := inv.State.Variable(name); c := cur.(type) {
	case nil, value.Null:
	case value.List:
		list = append(make(value.List, 0, len(c)+1), c...)
	default:
		list = value.List{c}
	}
	list = append(list, item)
	inv.State.SetVariable(name, list)
	return Success{Outputs: map[string]value.Value{
		"value": list,
		"count": value.Int(int64(len(list))),
	}}, nil
}

// --- variable.increment ---

type variableIncrementAction struct{ plain }

func (a *variableIncrementAction) Name() string { return "variable.increment" }

func (a *variableIncrementAction) Schema() ActionSchema {
	return ActionSchema{Description: "Add a number (default 1) to a numeric variable.", InputSchema: variableParamsSchema}
}

func (a *variableIncrementAction) Validate(params map[string]any) error {
	return requireName(a.Name(), params)
}

func (a *variableIncrementAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	name, err := inv.RequireString("name")
	if err != nil {
		return nil, err
	}
	by, ok := inv.Param("by")
	if !ok {
		by = value.Int(1)
	}
	step, isNum := by.(value.Number)
	if !isNum {
		f, ok := by.AsNumber()
		if !ok {
			return nil, inv.ParamError("param %q must be a number, got %q", "by", by.AsString())
		}
		step = value.Float(f)
	}

	cur := value.Int(0)
	if v, ok := inv.State.Variable(name); ok && !value.IsNull(v) {
		n, isNum := v.(value.Number)
		if !isNum {
			f, ok := v.AsNumber()
			if !ok {
				return nil, inv.ParamError("variable %q is not numeric: %q", name, v.AsString())
			}
			n = value.Float(f)
		}
		cur = n
	}

	var next value.Number
	if cur.IsIntegral() && step.IsIntegral() {
		next = value.Int(cur.Int64() + step.Int64())
	} else {
		next = value.Float(cur.Float64() + step.Float64())
	}
	inv.State.SetVariable(name, next)
	return Success{Outputs: map[string]value.Value{"value": next}}, nil
}

// --- text.format ---

type textFormatAction struct{ plain }

func (a *textFormatAction) Name() string { return "text.format" }

func (a *textFormatAction) Schema() ActionSchema {
	return ActionSchema{Description: "Render a template with step outputs and variables as text."}
}

func (a *textFormatAction) Validate(params map[string]any) error {
	if _, ok := params["template"].(string); !ok {
		return schema.NewError(schema.ErrCodeValidation, "text.format: missing required param 'template'")
	}
	return nil
}

// Execute renders from the raw template so that a template consisting of a
// single reference still yields its text form.
func (a *textFormatAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	var text string
	if raw, ok := inv.Step.Params["template"].(string); ok {
		text = expressions.ResolveText(raw, inv.State)
	} else {
		text = inv.String("template", "")
	}
	return Success{Outputs: map[string]value.Value{
		"text":   value.String(text),
		"length": value.Int(int64(len([]rune(text)))),
	}}, nil
}

// --- list.count ---

type listCountAction struct{ plain }

func (a *listCountAction) Name() string                  { return "list.count" }
func (a *listCountAction) Validate(map[string]any) error { return nil }

func (a *listCountAction) Schema() ActionSchema {
	return ActionSchema{Description: "Count the items of a list or dictionary."}
}

func (a *listCountAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	v, _ := inv.Param("items")
	return Success{Outputs: map[string]value.Value{
		"count": value.Int(int64(len(itemsOf(v)))),
	}}, nil
}

// --- dict.get ---

type dictGetAction struct{ plain }

func (a *dictGetAction) Name() string { return "dict.get" }

func (a *dictGetAction) Schema() ActionSchema {
	return ActionSchema{Description: "Read a dotted key path from a dictionary, with a default."}
}

func (a *dictGetAction) Validate(params map[string]any) error {
	if key, _ := params["key"].(string); key == "" {
		return schema.NewError(schema.ErrCodeValidation, "dict.get: missing required param 'key'")
	}
	return nil
}

func (a *dictGetAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	key, err := inv.RequireString("key")
	if err != nil {
		return nil, err
	}
	cur, ok := inv.Param("dict")
	if !ok {
		return nil, inv.ParamError("missing required param %q", "dict")
	}
	found := true
	for _, part := range strings.Split(key, ".") {
		if !value.HasProperty(cur, part) {
			found = false
			break
		}
		cur = cur.Property(part)
	}
	if !found {
		cur, ok = inv.Param("default")
		if !ok {
			cur = value.Null{}
		}
	}
	return Success{Outputs: map[string]value.Value{
		"value": cur,
		"found": value.Bool(found),
	}}, nil
}
