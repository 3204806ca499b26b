package actions

import (
	"context"

	"github.com/rendis/stepflow/internal/value"
)

// Names of the signal actions.
const (
	ActionBreak    = "flow.break"
	ActionContinue = "flow.continue"
	ActionReturn   = "flow.return"
	ActionStop     = "flow.stop"
)

// SignalActions returns the actions that only redirect the engine.
func SignalActions() []Action {
	return []Action{
		&signalAction{name: ActionBreak, desc: "Leave the innermost loop.", result: Break{}},
		&signalAction{name: ActionContinue, desc: "Start the next pass of the innermost loop.", result: Continue{}},
		&returnAction{},
		&signalAction{name: ActionStop, desc: "End the run without a value.", result: Stop{}},
	}
}

type signalAction struct {
	plain
	name   string
	desc   string
	result Result
}

func (a *signalAction) Name() string                  { return a.name }
func (a *signalAction) Schema() ActionSchema          { return ActionSchema{Description: a.desc} }
func (a *signalAction) Validate(map[string]any) error { return nil }

func (a *signalAction) Execute(context.Context, *Invocation) (Result, error) {
	return a.result, nil
}

// --- flow.return ---

type returnAction struct{ plain }

func (a *returnAction) Name() string                  { return ActionReturn }
func (a *returnAction) Validate(map[string]any) error { return nil }

func (a *returnAction) Schema() ActionSchema {
	return ActionSchema{Description: "End the run and hand a value back to the caller."}
}

func (a *returnAction) Execute(_ context.Context, inv *Invocation) (Result, error) {
	v, ok := inv.Param("value")
	if !ok {
		v = value.Null{}
	}
	return Return{Value: v}, nil
}
