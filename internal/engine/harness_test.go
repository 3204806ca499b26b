package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// testAction is a scriptable action for driving the run loop.
type testAction struct {
	name string
	fn   func(ctx context.Context, inv *actions.Invocation) (actions.Result, error)
}

func (a *testAction) Name() string                   { return a.name }
func (a *testAction) Schema() actions.ActionSchema   { return actions.ActionSchema{} }
func (a *testAction) Behavior() schema.BlockBehavior { return schema.NoBlock }
func (a *testAction) Validate(map[string]any) error  { return nil }
func (a *testAction) Execute(ctx context.Context, inv *actions.Invocation) (actions.Result, error) {
	return a.fn(ctx, inv)
}

// marks records the "label" param of every test.mark dispatch, in order.
type marks struct {
	mu     sync.Mutex
	labels []string
}

func (m *marks) add(label string) {
	m.mu.Lock()
	m.labels = append(m.labels, label)
	m.mu.Unlock()
}

func (m *marks) get() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.labels...)
}

type harness struct {
	reg    *actions.Registry
	hub    *streaming.MemoryHub
	engine *Engine
	marks  *marks
	source MapSource
	events *mockAppender
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		reg:    actions.NewRegistry(),
		hub:    streaming.NewMemoryHub(),
		marks:  &marks{},
		source: MapSource{},
		events: &mockAppender{},
	}
	t.Cleanup(h.hub.Close)

	require.NoError(t, actions.RegisterBuiltins(h.reg, actions.Deps{Hub: h.hub}))
	for _, a := range []actions.Action{
		&testAction{name: "test.mark", fn: func(_ context.Context, inv *actions.Invocation) (actions.Result, error) {
			label := inv.String("label", inv.Step.ID)
			h.marks.add(label)
			return actions.Outputs("label", label), nil
		}},
		&testAction{name: "test.fail", fn: func(_ context.Context, inv *actions.Invocation) (actions.Result, error) {
			return actions.Failure{Message: inv.String("message", "it broke")}, nil
		}},
		&testAction{name: "test.param_error", fn: func(_ context.Context, inv *actions.Invocation) (actions.Result, error) {
			return nil, inv.ParamError("bad input")
		}},
		&testAction{name: "test.error", fn: func(context.Context, *actions.Invocation) (actions.Result, error) {
			return nil, errors.New("disk on fire")
		}},
		&testAction{name: "test.panic", fn: func(context.Context, *actions.Invocation) (actions.Result, error) {
			panic("kaboom")
		}},
		&testAction{name: "test.nil", fn: func(context.Context, *actions.Invocation) (actions.Result, error) {
			return nil, nil
		}},
		&testAction{name: "test.jump", fn: func(_ context.Context, inv *actions.Invocation) (actions.Result, error) {
			target, err := inv.Int("target", 0)
			if err != nil {
				return nil, err
			}
			return actions.Jump{Target: target}, nil
		}},
		&testAction{name: "test.progress", fn: func(_ context.Context, inv *actions.Invocation) (actions.Result, error) {
			inv.Report(inv.String("message", ""))
			return actions.Success{}, nil
		}},
	} {
		require.NoError(t, h.reg.Register(a))
	}

	cfg := Config{Hub: h.hub, EventLog: h.events, Workflows: h.source}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(h.reg, cfg)
	require.NoError(t, err)
	t.Cleanup(e.Shutdown)
	h.engine = e
	return h
}

func (h *harness) run(t *testing.T, def *schema.WorkflowDefinition) *Outcome {
	t.Helper()
	out, err := h.engine.Run(context.Background(), def, RunOptions{})
	require.NoError(t, err)
	return out
}

func wf(id string, steps ...schema.StepDefinition) *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{ID: id, Steps: steps}
}

func step(id, action string, kv ...any) schema.StepDefinition {
	params := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i].(string)] = kv[i+1]
	}
	return schema.StepDefinition{ID: id, Action: action, Params: params}
}

func mark(id string) schema.StepDefinition {
	return step(id, "test.mark", "label", id)
}

func requireFailed(t *testing.T, out *Outcome, code, stepID string) {
	t.Helper()
	require.Equal(t, schema.RunStatusFailed, out.Status, "outcome: %+v", out.Error)
	require.NotNil(t, out.Error)
	require.Equal(t, code, out.Error.Code, "message: %s", out.Error.Message)
	require.Equal(t, stepID, out.Error.StepID)
	require.Equal(t, schema.TitleFor(code), out.Error.Title)
}

func variable(t *testing.T, out *Outcome, name string) value.Value {
	t.Helper()
	v, ok := out.Variables[name]
	require.True(t, ok, "variable %q not set", name)
	return v
}
