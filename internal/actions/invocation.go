package actions

import (
	"strconv"
	"strings"
	"time"

	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/state"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Invocation is everything one step execution sees: its resolved
// parameters, its position, and the run's state.
type Invocation struct {
	RunID      string
	WorkflowID string
	Index      int
	Step       *schema.StepDefinition
	Params     map[string]value.Value
	State      *state.ExecutionState
	Layout     blocks.Layout

	// JumpedFrom is the index of the step whose Jump moved the cursor here,
	// or -1 when the cursor advanced normally or was set by a signal.
	JumpedFrom int

	// Progress receives human-readable progress messages. It may be nil.
	Progress func(message string)
}

// Report sends a progress message; it never blocks the step on observers.
func (inv *Invocation) Report(message string) {
	if inv.Progress != nil {
		inv.Progress(message)
	}
}

func (inv *Invocation) stepID() string {
	if inv.Step == nil {
		return ""
	}
	return inv.Step.ID
}

// Param returns a resolved parameter and whether it was given at all.
func (inv *Invocation) Param(name string) (value.Value, bool) {
	v, ok := inv.Params[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Lookup is Param with existence semantics for references: when the
// parameter is a single reference whose root (or any hop) does not exist,
// the parameter counts as absent rather than Null.
func (inv *Invocation) Lookup(name string) (value.Value, bool) {
	if inv.Step != nil {
		if text, ok := inv.Step.Bindings[name]; ok {
			if ref, ok := expressions.ParseReference(text); ok {
				if v, found := ref.Lookup(inv.State); found {
					return v, true
				}
			}
		}
		if raw, ok := inv.Step.Params[name].(string); ok {
			if ref, ok := expressions.ParseReference(raw); ok {
				return ref.Lookup(inv.State)
			}
		}
	}
	return inv.Param(name)
}

// String returns a parameter's string form, or def when absent or Null.
func (inv *Invocation) String(name, def string) string {
	v, ok := inv.Param(name)
	if !ok || value.IsNull(v) {
		return def
	}
	return v.AsString()
}

// RequireString returns a non-empty string parameter.
func (inv *Invocation) RequireString(name string) (string, error) {
	s := strings.TrimSpace(inv.String(name, ""))
	if s == "" {
		return "", inv.ParamError("missing required param %q", name)
	}
	return s, nil
}

// Int returns an integer parameter, def when absent or Null.
func (inv *Invocation) Int(name string, def int) (int, error) {
	v, ok := inv.Param(name)
	if !ok || value.IsNull(v) {
		return def, nil
	}
	f, ok := v.AsNumber()
	if !ok {
		return 0, inv.ParamError("param %q must be a number, got %s %q", name, v.Kind(), v.AsString())
	}
	return int(f), nil
}

// Bool returns a boolean parameter, def when absent or Null.
func (inv *Invocation) Bool(name string, def bool) bool {
	v, ok := inv.Param(name)
	if !ok || value.IsNull(v) {
		return def
	}
	return v.AsBool()
}

// Duration reads a duration given as seconds (number or numeric text) or as
// a Go duration string ("1m30s").
func (inv *Invocation) Duration(name string, def time.Duration) (time.Duration, error) {
	v, ok := inv.Param(name)
	if !ok || value.IsNull(v) {
		return def, nil
	}
	if f, ok := v.AsNumber(); ok {
		return time.Duration(f * float64(time.Second)), nil
	}
	s := strings.TrimSpace(v.AsString())
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return 0, inv.ParamError("param %q is not a duration: %q", name, s)
}

// ParamError reports invalid inputs of the step.
func (inv *Invocation) ParamError(format string, args ...any) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeParameter, format, args...).WithStep(inv.stepID())
}

// ControlFlowError reports a structurally invalid block layout.
func (inv *Invocation) ControlFlowError(format string, args ...any) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeControlFlow, format, args...).WithStep(inv.stepID())
}

// blockEnd returns the End of the block containing or opened by this step.
func (inv *Invocation) blockEnd() (int, error) {
	end := inv.Layout.FindEnd(inv.Index)
	if end == blocks.NotFound {
		return 0, inv.ControlFlowError("%s at step %d has no matching block end", inv.Step.Action, inv.Index)
	}
	return end, nil
}

// blockStart returns the Start matching this End step.
func (inv *Invocation) blockStart() (int, error) {
	start := inv.Layout.FindBlockStart(inv.Index, "")
	if start == blocks.NotFound {
		return 0, inv.ControlFlowError("%s at step %d has no matching block start", inv.Step.Action, inv.Index)
	}
	return start, nil
}
