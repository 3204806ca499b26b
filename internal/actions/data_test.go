package actions

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignals(t *testing.T) {
	h := newHarness(t,
		step("b", ActionBreak, nil),
		step("c", ActionContinue, nil),
		step("r", ActionReturn, map[string]any{"value": "${answer}"}),
		step("s", ActionStop, nil),
		step("r0", ActionReturn, nil),
	)
	h.state.SetVariable("answer", value.Int(42))

	assert.Equal(t, Break{}, h.mustExec(t, 0))
	assert.Equal(t, Continue{}, h.mustExec(t, 1))
	assert.Equal(t, Return{Value: value.Int(42)}, h.mustExec(t, 2))
	assert.Equal(t, Stop{}, h.mustExec(t, 3))
	assert.Equal(t, Return{Value: value.Null{}}, h.mustExec(t, 4))
}

func TestVariableSet_PreservesKind(t *testing.T) {
	h := newHarness(t,
		step("produce", "variable.set", map[string]any{"name": "img", "value": "{{shot.image}}"}),
	)
	img := value.Image{Handle: "img-1", Width: 10, Height: 20}
	h.state.RecordOutputs("shot", map[string]value.Value{"image": img})

	assert.Equal(t, img, output(t, h.mustExec(t, 0), "value"))
	got, _ := h.state.Variable("img")
	assert.Equal(t, img, got)
}

func TestVariableSet_RequiresName(t *testing.T) {
	h := newHarness(t, step("s", "variable.set", map[string]any{"value": 1}))
	_, err := h.exec(t, 0)
	requireCode(t, err, schema.ErrCodeParameter)
}

func TestVariableAppend(t *testing.T) {
	h := newHarness(t, step("a", "variable.append", map[string]any{"name": "seen", "value": "${item}"}))

	h.state.SetVariable("item", value.String("x"))
	h.mustExec(t, 0)
	h.state.SetVariable("item", value.String("y"))
	res := h.mustExec(t, 0)

	assert.Equal(t, value.Int(2), output(t, res, "count"))
	seen, _ := h.state.Variable("seen")
	assert.Equal(t, value.List{value.String("x"), value.String("y")}, seen)
}

func TestVariableIncrement(t *testing.T) {
	tests := []struct {
		name    string
		initial value.Value
		by      any
		want    value.Value
	}{
		{"missing starts at zero", nil, nil, value.Int(1)},
		{"integral stays integral", value.Int(4), 3, value.Int(7)},
		{"float step", value.Int(1), 0.5, value.Float(1.5)},
		{"numeric text", value.String("2"), nil, value.Float(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{"name": "n"}
			if tt.by != nil {
				params["by"] = tt.by
			}
			h := newHarness(t, step("inc", "variable.increment", params))
			if tt.initial != nil {
				h.state.SetVariable("n", tt.initial)
			}
			assert.Equal(t, tt.want, output(t, h.mustExec(t, 0), "value"))
		})
	}

	h := newHarness(t, step("inc", "variable.increment", map[string]any{"name": "n"}))
	h.state.SetVariable("n", value.List{})
	_, err := h.exec(t, 0)
	requireCode(t, err, schema.ErrCodeParameter)
}

func TestTextFormat(t *testing.T) {
	h := newHarness(t,
		step("single", "text.format", map[string]any{"template": "{{shot.image}}"}),
		step("mixed", "text.format", map[string]any{"template": "Hello ${name}, you have {{inbox.count}} items"}),
	)
	h.state.RecordOutputs("shot", map[string]value.Value{"image": value.Image{Handle: "img-1"}})
	h.state.RecordOutputs("inbox", map[string]value.Value{"count": value.Int(3)})
	h.state.SetVariable("name", value.String("Ada"))

	assert.Equal(t, value.String("img-1"), output(t, h.mustExec(t, 0), "text"))
	assert.Equal(t, value.String("Hello Ada, you have 3 items"), output(t, h.mustExec(t, 1), "text"))
}

func TestListCount(t *testing.T) {
	h := newHarness(t, step("c", "list.count", map[string]any{"items": []any{1, 2, 3}}))
	assert.Equal(t, value.Int(3), output(t, h.mustExec(t, 0), "count"))
}

func TestDictGet(t *testing.T) {
	h := newHarness(t,
		step("hit", "dict.get", map[string]any{"dict": "${cfg}", "key": "db.port"}),
		step("miss", "dict.get", map[string]any{"dict": "${cfg}", "key": "db.user", "default": "root"}),
	)
	h.state.SetVariable("cfg", value.Dict{"db": value.Dict{"port": value.Int(5432)}})

	res := h.mustExec(t, 0)
	assert.Equal(t, value.Int(5432), output(t, res, "value"))
	assert.Equal(t, value.Bool(true), output(t, res, "found"))

	res = h.mustExec(t, 1)
	assert.Equal(t, value.String("root"), output(t, res, "value"))
	assert.Equal(t, value.Bool(false), output(t, res, "found"))
}

func TestExprEval(t *testing.T) {
	h := newHarness(t,
		step("calc", "expr.eval", map[string]any{"expression": "vars.n * 2 + data.offset", "data": map[string]any{"offset": 1}}),
	)
	h.state.SetVariable("n", value.Int(20))

	n, ok := output(t, h.mustExec(t, 0), "result").AsNumber()
	require.True(t, ok)
	assert.Equal(t, 41.0, n)
}

func TestJQQuery(t *testing.T) {
	h := newHarness(t,
		step("scope", "jq.query", map[string]any{"filter": ".vars.tags | length"}),
		step("input", "jq.query", map[string]any{"filter": ".[] | .name", "input": "${people}"}),
	)
	h.state.SetVariable("tags", value.List{value.String("a"), value.String("b")})
	h.state.SetVariable("people", value.List{
		value.Dict{"name": value.String("ada")},
		value.Dict{"name": value.String("bob")},
	})

	n, ok := output(t, h.mustExec(t, 0), "result").AsNumber()
	require.True(t, ok)
	assert.Equal(t, 2.0, n)

	res := h.mustExec(t, 1)
	assert.Equal(t, value.Int(2), output(t, res, "count"))
	assert.Equal(t, value.List{value.String("ada"), value.String("bob")}, output(t, res, "results"))
	assert.Equal(t, value.String("ada"), output(t, res, "result"))
}

type fakeCaller struct {
	workflowID string
	input      map[string]value.Value
	result     value.Value
	err        error
}

func (f *fakeCaller) Call(_ context.Context, _ *Invocation, workflowID string, input map[string]value.Value) (value.Value, error) {
	f.workflowID = workflowID
	f.input = input
	return f.result, f.err
}

func TestWorkflowCall(t *testing.T) {
	caller := &fakeCaller{result: value.String("done")}
	h := newHarness(t,
		step("call", "workflow.call", map[string]any{"workflow": "child", "input": map[string]any{"x": "${x}"}}),
		step("bad", "workflow.call", map[string]any{"workflow": "child", "input": "nope"}),
	)
	require.NoError(t, RegisterWorkflowCall(h.reg, caller))
	h.state.SetVariable("x", value.Int(5))

	assert.Equal(t, value.String("done"), output(t, h.mustExec(t, 0), "result"))
	assert.Equal(t, "child", caller.workflowID)
	assert.Equal(t, map[string]value.Value{"x": value.Int(5)}, caller.input)

	_, err := h.exec(t, 1)
	requireCode(t, err, schema.ErrCodeParameter)

	caller.err = schema.NewError(schema.ErrCodeRecursion, "loop")
	_, err = h.exec(t, 0)
	requireCode(t, err, schema.ErrCodeRecursion)
}

func TestFlowLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := &flowLogAction{deps: WorkflowActionDeps{Logger: logger}}

	h := newHarness(t, step("log", "flow.log", map[string]any{"message": "hi ${name}", "level": "warn"}))
	h.state.SetVariable("name", value.String("ada"))
	inv := h.invocation(t, 0, -1)
	var progress []string
	inv.Progress = func(m string) { progress = append(progress, m) }

	res, err := a.Execute(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, value.String("hi ada"), output(t, res, "message"))
	assert.Equal(t, []string{"hi ada"}, progress)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "hi ada")
}

func TestFlowWait(t *testing.T) {
	h := newHarness(t,
		step("short", "flow.wait", map[string]any{"duration": "1ms"}),
		step("long", "flow.wait", map[string]any{"duration": 60}),
		step("bad", "flow.wait", map[string]any{"duration": "soon"}),
	)
	h.mustExec(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := h.invocation(t, 1, -1)
	_, err := (&flowWaitAction{}).Execute(ctx, inv)
	requireCode(t, err, schema.ErrCodeCancelled)

	_, err = h.exec(t, 2)
	requireCode(t, err, schema.ErrCodeParameter)
}
