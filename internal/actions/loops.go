package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/state"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Names of the loop block actions.
const (
	ActionForEach = "loop.for_each"
	ActionRepeat  = "loop.repeat"
	ActionWhile   = "loop.while"
	ActionEndLoop = "loop.end"
)

// DefaultMaxIterations bounds loop.while when max_iterations is not given.
const DefaultMaxIterations = 10000

// LoopActions returns the loop block actions.
func LoopActions(cel *expressions.CELEngine) []Action {
	return []Action{
		&forEachAction{},
		&repeatAction{},
		&whileAction{check: conditionChecker{cel: cel}},
		&blockEndAction{name: ActionEndLoop, pairing: schema.PairingLoop},
	}
}

// exitLoop pops the frame of the loop at inv.Index (when it is on top) and
// jumps past the loop's end.
func exitLoop(inv *Invocation, popFrame bool) (Result, error) {
	end, err := inv.blockEnd()
	if err != nil {
		return nil, err
	}
	if popFrame {
		inv.State.PopFrame()
	}
	return Jump{Target: end + 1}, nil
}

// reentered returns the frame this loop start pushed, when control came back
// to it from its own end (or a continue).
func reentered[F state.LoopFrame](inv *Invocation) (F, bool) {
	var zero F
	top := inv.State.TopFrame()
	if top == nil || top.Start() != inv.Index {
		return zero, false
	}
	f, ok := top.(F)
	return f, ok
}

// itemsOf turns the items param into a sequence. Dictionaries iterate their
// values in key order; Null iterates nothing; any other scalar is a single
// item.
func itemsOf(v value.Value) value.List {
	switch t := v.(type) {
	case nil, value.Null:
		return nil
	case value.List:
		return t
	case value.Dict:
		out := make(value.List, 0, len(t))
		for _, k := range value.SortedKeys(t) {
			out = append(out, value.OrNull(t[k]))
		}
		return out
	default:
		return value.List{v}
	}
}

// --- loop.for_each ---

type forEachAction struct{}

func (a *forEachAction) Name() string                   { return ActionForEach }
func (a *forEachAction) Behavior() schema.BlockBehavior { return schema.StartOf(schema.PairingLoop) }

func (a *forEachAction) Schema() ActionSchema {
	return ActionSchema{Description: "Run the loop body once per item of a list or dictionary."}
}

func (a *forEachAction) Validate(params map[string]any) error {
	if _, ok := params["items"]; !ok {
		return schema.NewError(schema.ErrCodeValidation, "loop.for_each: missing required param 'items'")
	}
	return nil
}

func (a *forEachAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	if frame, ok := reentered[*state.ForEachFrame](inv); ok {
		frame.Index++
		if frame.Current() == nil {
			return exitLoop(inv, true)
		}
		return a.iteration(inv, frame), nil
	}

	items, _ := inv.Param("items")
	list := itemsOf(items)
	if len(list) == 0 {
		return exitLoop(inv, false)
	}
	frame := &state.ForEachFrame{StartIndex: inv.Index, Items: list}
	inv.State.PushFrame(frame)
	return a.iteration(inv, frame), nil
}

func (a *forEachAction) iteration(inv *Invocation, frame *state.ForEachFrame) Result {
	item := frame.Current()
	index := value.Int(int64(frame.Index))
	inv.State.SetBookkeeping(inv.String("item_variable", "item"), item)
	inv.State.SetBookkeeping(inv.String("index_variable", "index"), index)
	return Success{Outputs: map[string]value.Value{
		"item":  item,
		"index": index,
		"count": value.Int(int64(len(frame.Items))),
	}}
}

// --- loop.repeat ---

type repeatAction struct{}

func (a *repeatAction) Name() string                   { return ActionRepeat }
func (a *repeatAction) Behavior() schema.BlockBehavior { return schema.StartOf(schema.PairingLoop) }

func (a *repeatAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Run the loop body a fixed number of times.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["count"],
			"properties": {
				"count": {"type": "integer", "minimum": 0},
				"index_variable": {"type": "string"}
			}
		}`),
	}
}

func (a *repeatAction) Validate(params map[string]any) error {
	if _, ok := params["count"]; !ok {
		return schema.NewError(schema.ErrCodeValidation, "loop.repeat: missing required param 'count'")
	}
	return nil
}

func (a *repeatAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	if frame, ok := reentered[*state.CounterFrame](inv); ok {
		frame.Index++
		if frame.Index >= frame.Limit {
			return exitLoop(inv, true)
		}
		return counterIteration(inv, frame), nil
	}

	count, err := inv.Int("count", 0)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return exitLoop(inv, false)
	}
	frame := &state.CounterFrame{StartIndex: inv.Index, Limit: count}
	inv.State.PushFrame(frame)
	return counterIteration(inv, frame), nil
}

func counterIteration(inv *Invocation, frame *state.CounterFrame) Result {
	index := value.Int(int64(frame.Index))
	if name := inv.String("index_variable", ""); name != "" {
		inv.State.SetBookkeeping(name, index)
	}
	return Success{Outputs: map[string]value.Value{"index": index}}
}

// --- loop.while ---

type whileAction struct {
	check conditionChecker
}

func (a *whileAction) Name() string                   { return ActionWhile }
func (a *whileAction) Behavior() schema.BlockBehavior { return schema.StartOf(schema.PairingLoop) }

func (a *whileAction) Schema() ActionSchema {
	return ActionSchema{Description: "Run the loop body while a condition holds."}
}

func (a *whileAction) Validate(params map[string]any) error {
	return a.check.validate(ActionWhile, params)
}

func (a *whileAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	frame, again := reentered[*state.CounterFrame](inv)

	ok, err := a.check.check(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return exitLoop(inv, again)
	}

	if !again {
		limit, err := inv.Int("max_iterations", DefaultMaxIterations)
		if err != nil {
			return nil, err
		}
		frame = &state.CounterFrame{StartIndex: inv.Index, Limit: limit}
		inv.State.PushFrame(frame)
		return counterIteration(inv, frame), nil
	}

	frame.Index++
	if frame.Limit > 0 && frame.Index >= frame.Limit {
		inv.State.PopFrame()
		return nil, inv.ControlFlowError("loop.while exceeded %d iterations", frame.Limit).
			WithDetails(map[string]any{"max_iterations": frame.Limit})
	}
	return counterIteration(inv, frame), nil
}

// --- loop.end / event.end ---

// blockEndAction closes a repeating block by jumping back to its start,
// which decides whether to run another pass.
type blockEndAction struct {
	name    string
	pairing string
}

func (a *blockEndAction) Name() string                   { return a.name }
func (a *blockEndAction) Behavior() schema.BlockBehavior { return schema.EndOf(a.pairing) }
func (a *blockEndAction) Validate(map[string]any) error  { return nil }

func (a *blockEndAction) Schema() ActionSchema {
	return ActionSchema{Description: "Close a " + a.pairing + " block and return to its start."}
}

func (a *blockEndAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	start, err := inv.blockStart()
	if err != nil {
		return nil, err
	}
	return Jump{Target: start}, nil
}
