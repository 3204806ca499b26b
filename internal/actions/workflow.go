package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Names of the workflow-level actions.
const (
	ActionCall = "workflow.call"
	ActionLog  = "flow.log"
	ActionWait = "flow.wait"
)

// WorkflowCaller runs another workflow to completion on behalf of a step and
// returns its return value (Null when it completed without one). The engine
// satisfies it and is wired in after construction.
type WorkflowCaller interface {
	Call(ctx context.Context, parent *Invocation, workflowID string, input map[string]value.Value) (value.Value, error)
}

// WorkflowActionDeps holds the dependencies injected into workflow actions.
type WorkflowActionDeps struct {
	Caller WorkflowCaller
	Logger *slog.Logger
}

// --- workflow.call ---

type workflowCallAction struct {
	plain
	deps WorkflowActionDeps
}

func (a *workflowCallAction) Name() string { return ActionCall }

func (a *workflowCallAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Run another workflow and return its result.",
	}
}

func (a *workflowCallAction) Validate(params map[string]any) error {
	if id, _ := params["workflow"].(string); strings.TrimSpace(id) == "" {
		return schema.NewError(schema.ErrCodeValidation, "workflow.call: missing required param 'workflow'")
	}
	return nil
}

func (a *workflowCallAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	workflowID, err := inv.RequireString("workflow")
	if err != nil {
		return nil, err
	}
	if a.deps.Caller == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "workflow.call: workflow caller not configured")
	}

	input := map[string]value.Value{}
	if raw, ok := inv.Param("input"); ok {
		d, isDict := raw.(value.Dict)
		if !isDict && !value.IsNull(raw) {
			return nil, inv.ParamError("param %q must be a dictionary, got %s", "input", raw.Kind())
		}
		for k, v := range d {
			input[k] = v
		}
	}

	inv.Report("calling workflow " + workflowID)
	result, err := a.deps.Caller.Call(ctx, inv, workflowID, input)
	if err != nil {
		return nil, err
	}
	return Success{Outputs: map[string]value.Value{"result": value.OrNull(result)}}, nil
}

// --- flow.log ---

type flowLogAction struct {
	plain
	deps WorkflowActionDeps
}

func (a *flowLogAction) Name() string { return ActionLog }

func (a *flowLogAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Write a structured log entry and report it as progress.",
	}
}

func (a *flowLogAction) Validate(params map[string]any) error {
	if _, ok := params["message"]; !ok {
		return schema.NewError(schema.ErrCodeValidation, "flow.log: missing required param 'message'")
	}
	return nil
}

func (a *flowLogAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	level := strings.ToLower(inv.String("level", "info"))
	message := inv.String("message", "")

	// run, workflow and step ids come from ctx via the correlation handler
	var attrs []any
	if data, ok := inv.Param("data"); ok {
		attrs = append(attrs, slog.Any("data", value.ToAny(data)))
	}

	logger := a.deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch level {
	case "debug":
		logger.DebugContext(ctx, message, attrs...)
	case "warn":
		logger.WarnContext(ctx, message, attrs...)
	case "error":
		logger.ErrorContext(ctx, message, attrs...)
	default:
		logger.InfoContext(ctx, message, attrs...)
	}

	inv.Report(message)
	return Success{Outputs: map[string]value.Value{"message": value.String(message)}}, nil
}

// --- flow.wait ---

type flowWaitAction struct{ plain }

func (a *flowWaitAction) Name() string                  { return ActionWait }
func (a *flowWaitAction) Validate(map[string]any) error { return nil }

func (a *flowWaitAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Pause the run for a duration (seconds or a Go duration string).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"duration": {"type": ["number", "string"]}}
		}`),
	}
}

func (a *flowWaitAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	d, err := inv.Duration("duration", 0)
	if err != nil {
		return nil, err
	}
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, schema.NewErrorf(schema.ErrCodeCancelled, "flow.wait: %v", ctx.Err()).WithCause(ctx.Err())
		}
	}
	return Success{Outputs: map[string]value.Value{"waited": value.Float(d.Seconds())}}, nil
}
