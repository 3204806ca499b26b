package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/blocks"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/logging"
	"github.com/rendis/stepflow/internal/state"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Run executes def to completion on the calling goroutine. Failures inside
// the run are reported in the Outcome; the error is reserved for problems
// that prevent the run from starting.
func (e *Engine) Run(ctx context.Context, def *schema.WorkflowDefinition, opts RunOptions) (*Outcome, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.StopFlag == nil {
		opts.StopFlag = new(atomic.Bool)
	}
	identity := opts.Identity
	if identity == "" {
		identity = def.ID
	}
	if identity != "" && slices.Contains(opts.CallStack, identity) {
		return nil, schema.NewErrorf(schema.ErrCodeRecursion,
			"workflow %q is already running in this call chain", identity)
	}

	vars, err := e.initialVariables(ctx, def, opts.Variables)
	if err != nil {
		return nil, err
	}

	st := state.New(vars, opts.CallStack)
	if identity != "" {
		st.PushCall(identity)
	}

	r := &run{
		engine:  e,
		id:      opts.RunID,
		parent:  opts.ParentRunID,
		def:     def,
		layout:  blocks.NewLayout(def, e.registry.Behavior),
		state:   st,
		stop:    opts.StopFlag,
		started: time.Now().UTC(),
	}
	r.logger = e.logger
	ctx = logging.WithIDs(ctx, r.id, def.ID, "")

	if err := r.begin(ctx); err != nil {
		return nil, err
	}

	term := r.loop(withStopFlag(ctx, opts.StopFlag))
	r.closeFrames(st.PopAll())

	out := &Outcome{
		RunID:       r.id,
		WorkflowID:  def.ID,
		Status:      term.status,
		Value:       term.value,
		Error:       term.err,
		StepOutputs: st.AllOutputs(),
		Variables:   st.Variables(),
		StartedAt:   r.started,
		CompletedAt: time.Now().UTC(),
	}
	r.finish(context.WithoutCancel(ctx), out)
	return out, nil
}

// initialVariables layers the definition's variables, the persisted store
// and the caller's overrides, later layers winning.
func (e *Engine) initialVariables(ctx context.Context, def *schema.WorkflowDefinition, overrides map[string]value.Value) (map[string]value.Value, error) {
	vars := make(map[string]value.Value, len(def.Variables)+len(overrides))
	for name, raw := range def.Variables {
		vars[name] = value.FromAny(raw)
	}
	if e.cfg.Store != nil && def.ID != "" {
		persisted, err := e.cfg.Store.LoadVariables(ctx, def.ID)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "load variables of %q: %s", def.ID, err.Error()).WithCause(err)
		}
		for name, v := range persisted {
			vars[name] = v
		}
	}
	for name, v := range overrides {
		vars[name] = value.OrNull(v)
	}
	return vars, nil
}

// run is the per-run interpreter. Only the run goroutine touches it.
type run struct {
	engine  *Engine
	id      string
	parent  string
	def     *schema.WorkflowDefinition
	layout  blocks.Layout
	state   *state.ExecutionState
	stop    *atomic.Bool
	logger  *slog.Logger
	started time.Time
}

type termination struct {
	status schema.RunStatus
	value  value.Value
	err    *OutcomeError
}

func (r *run) begin(ctx context.Context) error {
	if err := r.engine.fsm.Transition(ctx, r.id, r.def.ID, schema.RunStatusPending, schema.RunStatusRunning); err != nil {
		return err
	}
	if s := r.engine.cfg.Store; s != nil {
		if err := s.CreateRun(ctx, &store.Run{
			ID:          r.id,
			WorkflowID:  r.def.ID,
			ParentRunID: r.parent,
			Status:      schema.RunStatusRunning,
			StartedAt:   r.started,
		}); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "create run: %s", err.Error()).WithCause(err)
		}
	}
	r.logger.DebugContext(ctx, "run started", "steps", len(r.def.Steps), "call_depth", len(r.state.CallStack()))
	return nil
}

// loop is the interpreter: dispatch the step at the cursor and obey the
// result until the cursor leaves the list or a terminal signal arrives.
func (r *run) loop(ctx context.Context) termination {
	st := r.state
	jumpedFrom := -1

	for st.Cursor < len(r.def.Steps) {
		if r.stop.Load() {
			r.logger.InfoContext(ctx, "stop requested", "cursor", st.Cursor)
			return termination{status: schema.RunStatusStopped}
		}
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, st.Cursor, schema.NewErrorf(schema.ErrCodeCancelled, "run cancelled: %s", err.Error()).WithCause(err))
		}

		index := st.Cursor
		step := &r.def.Steps[index]
		from := jumpedFrom
		jumpedFrom = -1

		if step.Disabled && !r.layout[index].Behavior.IsBlock() {
			r.record(ctx, step.ID, schema.EventStepSkipped, nil)
			st.Cursor++
			continue
		}

		res, err := r.dispatch(ctx, index, step, from)
		if err != nil {
			return r.fail(ctx, index, err)
		}

		switch res := res.(type) {
		case actions.Success:
			st.RecordOutputs(step.ID, res.Outputs)
			r.record(ctx, step.ID, schema.EventStepCompleted, outputsPayload(res.Outputs))
			st.Cursor++

		case actions.Failure:
			code := res.Code
			if code == "" {
				code = schema.ErrCodeModuleExecution
			}
			title := res.Title
			if title == "" {
				title = schema.TitleFor(code)
			}
			return r.terminateFailed(ctx, &OutcomeError{Title: title, Message: res.Message, StepID: step.ID, Code: code})

		case actions.Jump:
			if res.Target < 0 || res.Target > len(r.def.Steps) {
				return r.fail(ctx, index, schema.NewErrorf(schema.ErrCodeControlFlow,
					"jump target %d is outside the workflow (0..%d)", res.Target, len(r.def.Steps)))
			}
			r.record(ctx, step.ID, schema.EventSignalJump, map[string]any{"target": res.Target})
			jumpedFrom = index
			st.Cursor = res.Target

		case actions.Break:
			start, end, err := r.enclosingLoop(index, "break")
			if err != nil {
				return r.fail(ctx, index, err)
			}
			r.closeFrames(st.PopThrough(start))
			r.record(ctx, step.ID, schema.EventSignalBreak, map[string]any{"loop_start": start, "loop_end": end})
			st.Cursor = end + 1

		case actions.Continue:
			start, _, err := r.enclosingLoop(index, "continue")
			if err != nil {
				return r.fail(ctx, index, err)
			}
			r.closeFrames(st.PopAbove(start))
			r.record(ctx, step.ID, schema.EventSignalContinue, map[string]any{"loop_start": start})
			st.Cursor = start

		case actions.Return:
			r.record(ctx, step.ID, schema.EventStepCompleted, nil)
			return termination{status: schema.RunStatusReturned, value: value.OrNull(res.Value)}

		case actions.Stop:
			r.record(ctx, step.ID, schema.EventStepCompleted, nil)
			return termination{status: schema.RunStatusStopped}

		default:
			return r.fail(ctx, index, schema.NewErrorf(schema.ErrCodeModuleExecution,
				"action %s returned unsupported result %T", step.Action, res))
		}
	}
	return termination{status: schema.RunStatusCompleted}
}

// enclosingLoop resolves the loop a break or continue at index belongs to.
func (r *run) enclosingLoop(index int, signal string) (start, end int, err error) {
	start, _ = r.layout.FindEnclosingLoopStart(index, nil)
	if start == blocks.NotFound {
		return 0, 0, schema.NewErrorf(schema.ErrCodeControlFlow, "%s outside of a loop", signal)
	}
	end = r.layout.FindEnd(start)
	if end == blocks.NotFound {
		return 0, 0, schema.NewErrorf(schema.ErrCodeControlFlow,
			"loop %s at step %d has no matching end", r.def.Steps[start].Action, start)
	}
	return start, end, nil
}

// dispatch resolves the step's parameters and executes its action, turning
// panics into errors at the module boundary.
func (r *run) dispatch(ctx context.Context, index int, step *schema.StepDefinition, jumpedFrom int) (res actions.Result, err error) {
	action, err := r.engine.registry.Get(step.Action)
	if err != nil {
		return nil, err
	}
	params, err := expressions.ResolveParams(step, r.state)
	if err != nil {
		return nil, err
	}

	breakers := r.engine.breakers
	guarded := breakers != nil && breakers.Guards(step.Action, action.Behavior())
	if guarded {
		if err := breakers.Allow(step.Action); err != nil {
			return nil, err
		}
	}

	stepCtx := logging.WithStepID(ctx, step.ID)
	inv := &actions.Invocation{
		RunID:      r.id,
		WorkflowID: r.def.ID,
		Index:      index,
		Step:       step,
		Params:     params,
		State:      r.state,
		Layout:     r.layout,
		JumpedFrom: jumpedFrom,
		Progress:   r.progressSink(stepCtx, step.ID),
	}

	r.logger.DebugContext(stepCtx, "dispatching step", "index", index, "action", step.Action)
	r.record(stepCtx, step.ID, schema.EventStepStarted, nil)

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = schema.NewErrorf(schema.ErrCodeModuleExecution, "action %s panicked: %v", step.Action, p)
		}
		if guarded {
			_, failed := res.(actions.Failure)
			breakers.Record(step.Action, failed || err != nil)
		}
	}()

	res, err = action.Execute(stepCtx, inv)
	if err == nil && res == nil {
		err = schema.NewErrorf(schema.ErrCodeModuleExecution, "action %s returned no result", step.Action)
	}
	return res, err
}

// fail normalizes err into the run's failure outcome.
func (r *run) fail(ctx context.Context, index int, err error) termination {
	code := schema.CodeOf(err)
	message := err.Error()
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		message = fe.Message
	}
	switch {
	case code != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = schema.ErrCodeCancelled
	default:
		code = schema.ErrCodeModuleExecution
	}

	stepID := ""
	if index >= 0 && index < len(r.def.Steps) {
		stepID = r.def.Steps[index].ID
	}
	return r.terminateFailed(ctx, &OutcomeError{
		Title:   schema.TitleFor(code),
		Message: message,
		StepID:  stepID,
		Code:    code,
	})
}

func (r *run) terminateFailed(ctx context.Context, oe *OutcomeError) termination {
	payload, _ := json.Marshal(oe)
	r.record(ctx, oe.StepID, schema.EventStepFailed, json.RawMessage(payload))
	return termination{status: schema.RunStatusFailed, err: oe}
}

// closeFrames ends the listener sessions of frames leaving the loop stack.
func (r *run) closeFrames(frames []state.LoopFrame) {
	hub := r.engine.cfg.Hub
	for _, f := range frames {
		if sf, ok := f.(*state.SessionFrame); ok && hub != nil {
			hub.CloseSession(sf.SessionID)
		}
	}
}

// progressSink forwards progress messages to the hub. Delivery is best effort.
func (r *run) progressSink(ctx context.Context, stepID string) func(string) {
	return func(message string) {
		r.logger.DebugContext(ctx, "step progress", "message", message)
		if hub := r.engine.cfg.Hub; hub != nil {
			_ = hub.Publish(ctx, streaming.StreamEvent{
				RunID:      r.id,
				WorkflowID: r.def.ID,
				StepID:     stepID,
				EventType:  schema.EventStepProgress,
				Payload:    message,
			})
		}
	}
}

// record appends a step event to the event log and publishes it to the hub.
// Observer failures never affect the run.
func (r *run) record(ctx context.Context, stepID, eventType string, payload any) {
	if hub := r.engine.cfg.Hub; hub != nil {
		_ = hub.Publish(ctx, streaming.StreamEvent{
			RunID:      r.id,
			WorkflowID: r.def.ID,
			StepID:     stepID,
			EventType:  eventType,
			Payload:    payload,
		})
	}

	appender := r.engine.cfg.EventLog
	if appender == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if pre, ok := payload.(json.RawMessage); ok {
			raw = pre
		} else if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	if err := appender.AppendEvent(context.WithoutCancel(ctx), &store.Event{
		RunID:      r.id,
		WorkflowID: r.def.ID,
		StepID:     stepID,
		Type:       eventType,
		Payload:    raw,
	}); err != nil {
		r.logger.WarnContext(ctx, "append event failed", "event_type", eventType, "step_id", stepID, "error", err)
	}
}

// finish records the terminal transition, persists the named variables of a
// run that did not fail, and updates the run record.
func (r *run) finish(ctx context.Context, out *Outcome) {
	e := r.engine
	if err := e.fsm.Transition(ctx, r.id, r.def.ID, schema.RunStatusRunning, out.Status); err != nil {
		r.logger.WarnContext(ctx, "run transition failed", "status", out.Status, "error", err)
	}

	if s := e.cfg.Store; s != nil {
		if out.Status != schema.RunStatusFailed && r.def.ID != "" {
			if err := s.SaveVariables(ctx, r.def.ID, r.state.DurableVariables()); err != nil {
				r.logger.WarnContext(ctx, "save variables failed", "error", err)
			}
		}
		status := out.Status
		completed := out.CompletedAt
		update := store.RunUpdate{Status: &status, CompletedAt: &completed}
		if out.Status == schema.RunStatusReturned {
			if raw, err := value.Marshal(out.Value); err == nil {
				update.ReturnValue = raw
			}
		}
		if out.Error != nil {
			update.Error, _ = json.Marshal(out.Error)
		}
		if err := s.UpdateRun(ctx, r.id, update); err != nil {
			r.logger.WarnContext(ctx, "update run failed", "error", err)
		}
	}

	elapsed := out.CompletedAt.Sub(out.StartedAt)
	if out.Error != nil {
		r.logger.WarnContext(ctx, "run failed",
			"step_id", out.Error.StepID, "code", out.Error.Code, "error", out.Error.Message, "elapsed", elapsed)
		return
	}
	r.logger.InfoContext(ctx, "run finished", "status", out.Status, "elapsed", elapsed)
}

func outputsPayload(outputs map[string]value.Value) any {
	if len(outputs) == 0 {
		return nil
	}
	m := make(map[string]any, len(outputs))
	for k, v := range outputs {
		m[k] = value.ToAny(v)
	}
	return m
}
