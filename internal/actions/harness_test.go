package actions

import (
	"context"
	"testing"

	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/state"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
	"github.com/stretchr/testify/require"
)

// harness executes single steps of a workflow the way the engine would,
// without the run loop.
type harness struct {
	reg    *Registry
	hub    *streaming.MemoryHub
	def    *schema.WorkflowDefinition
	layout blocks.Layout
	state  *state.ExecutionState
}

func newHarness(t *testing.T, steps ...schema.StepDefinition) *harness {
	t.Helper()
	hub := streaming.NewMemoryHub()
	t.Cleanup(hub.Close)

	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, Deps{Hub: hub}))

	def := &schema.WorkflowDefinition{ID: "wf", Steps: steps}
	return &harness{
		reg:    reg,
		hub:    hub,
		def:    def,
		layout: blocks.NewLayout(def, reg.Behavior),
		state:  state.New(nil, []string{def.ID}),
	}
}

func step(id, action string, params map[string]any) schema.StepDefinition {
	return schema.StepDefinition{ID: id, Action: action, Params: params}
}

func (h *harness) invocation(t *testing.T, index, jumpedFrom int) *Invocation {
	t.Helper()
	s := &h.def.Steps[index]
	params, err := expressions.ResolveParams(s, h.state)
	require.NoError(t, err)
	return &Invocation{
		RunID:      "run-1",
		WorkflowID: h.def.ID,
		Index:      index,
		Step:       s,
		Params:     params,
		State:      h.state,
		Layout:     h.layout,
		JumpedFrom: jumpedFrom,
	}
}

func (h *harness) exec(t *testing.T, index int) (Result, error) {
	t.Helper()
	return h.execFrom(t, index, -1)
}

func (h *harness) execFrom(t *testing.T, index, jumpedFrom int) (Result, error) {
	t.Helper()
	inv := h.invocation(t, index, jumpedFrom)
	action, err := h.reg.Get(inv.Step.Action)
	require.NoError(t, err)
	return action.Execute(context.Background(), inv)
}

func (h *harness) mustExec(t *testing.T, index int) Result {
	t.Helper()
	res, err := h.exec(t, index)
	require.NoError(t, err)
	return res
}

func output(t *testing.T, res Result, name string) value.Value {
	t.Helper()
	s, ok := res.(Success)
	require.True(t, ok, "expected Success, got %T", res)
	v, ok := s.Outputs[name]
	require.True(t, ok, "missing output %q", name)
	return v
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, schema.CodeOf(err))
}
