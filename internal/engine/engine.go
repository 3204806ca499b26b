// Package engine interprets workflow definitions: a flat step list whose
// nesting is implied by block actions. One run owns one ExecutionState and
// advances a single cursor until the list ends or a terminal signal arrives.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/logging"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// DefaultPoolSize is the default number of concurrent async runs.
const DefaultPoolSize = 10

// DefaultMaxCallDepth bounds nested workflow.call chains.
const DefaultMaxCallDepth = 32

// Config configures an Engine. The zero value is usable.
type Config struct {
	// Logger receives run and step logs. Its handler is wrapped in a
	// logging.CorrelationHandler unless it already is one.
	Logger *slog.Logger

	// Hub receives step progress and lifecycle events. It must be the hub the
	// event actions were registered with, so the engine can close listener
	// sessions when loops are left or the run ends.
	Hub streaming.SessionHub

	// EventLog, when set, records run and step events.
	EventLog EventAppender

	// Store, when set, records runs, persists named-variable stores and is
	// the fallback workflow source.
	Store store.Store

	// Workflows resolves workflow.call targets. When nil and Store is set,
	// workflows are read from the store.
	Workflows WorkflowSource

	PoolSize     int
	MaxCallDepth int

	// CircuitBreaker enables per-action circuit breakers when non-nil.
	CircuitBreaker *CircuitBreakerConfig
}

// Engine runs workflows against an action registry. It is safe for
// concurrent use; runs never share mutable state.
type Engine struct {
	registry *actions.Registry
	cfg      Config
	logger   *slog.Logger
	fsm      *RunFSM
	pool     *WorkerPool
	breakers *CircuitBreakerRegistry
	source   WorkflowSource
}

// New creates an Engine and registers workflow.call on the registry unless
// an action of that name already exists.
func New(registry *actions.Registry, cfg Config) (*Engine, error) {
	if registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "action registry is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if _, ok := cfg.Logger.Handler().(*logging.CorrelationHandler); !ok {
		cfg.Logger = slog.New(logging.NewCorrelationHandler(cfg.Logger.Handler()))
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}

	e := &Engine{
		registry: registry,
		cfg:      cfg,
		logger:   cfg.Logger,
		fsm:      NewRunFSM(cfg.EventLog),
		source:   cfg.Workflows,
	}
	e.pool = NewWorkerPool(cfg.PoolSize, func(r any) {
		e.logger.Error("async run panicked", "panic", r)
	})
	if cfg.CircuitBreaker != nil {
		e.breakers = NewCircuitBreakerRegistry(*cfg.CircuitBreaker)
	}
	if e.source == nil && cfg.Store != nil {
		e.source = StoreSource{Store: cfg.Store}
	}

	if !registry.Has(actions.ActionCall) {
		if err := actions.RegisterWorkflowCall(registry, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Registry returns the action registry the engine dispatches to.
func (e *Engine) Registry() *actions.Registry { return e.registry }

// FSM returns the run lifecycle state machine, for registering hooks.
func (e *Engine) FSM() *RunFSM { return e.fsm }

// Breakers returns the circuit breaker registry, or nil when disabled.
func (e *Engine) Breakers() *CircuitBreakerRegistry { return e.breakers }

// PoolMetrics returns the async run pool metrics.
func (e *Engine) PoolMetrics() PoolMetrics { return e.pool.Metrics() }

// Shutdown stops accepting async runs and waits for admitted ones.
func (e *Engine) Shutdown() { e.pool.Shutdown() }

// RunOptions parameterizes a single run.
type RunOptions struct {
	// RunID is generated when empty.
	RunID       string
	ParentRunID string

	// Variables override the definition's initial variables and the
	// persisted named-variable store.
	Variables map[string]value.Value

	// StopFlag requests a clean stop, observed before each step.
	StopFlag *atomic.Bool

	// CallStack holds the workflows already executing above this run.
	CallStack []string

	// Identity is the name this run occupies on the call stack. It defaults
	// to the definition's ID; callers set it to the ID the workflow was
	// looked up by, so definitions without an ID of their own are tracked.
	Identity string
}

// Outcome is the single terminal result of a run.
type Outcome struct {
	RunID       string                            `json:"run_id"`
	WorkflowID  string                            `json:"workflow_id"`
	Status      schema.RunStatus                  `json:"status"`
	Value       value.Value                       `json:"-"`
	Error       *OutcomeError                     `json:"error,omitempty"`
	StepOutputs map[string]map[string]value.Value `json:"-"`
	Variables   map[string]value.Value            `json:"-"`
	StartedAt   time.Time                         `json:"started_at"`
	CompletedAt time.Time                         `json:"completed_at"`
}

// OutcomeError describes why a run failed.
type OutcomeError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
	Code    string `json:"code"`
}

func (e *OutcomeError) Error() string {
	if e.StepID != "" {
		return e.Title + " at step " + e.StepID + ": " + e.Message
	}
	return e.Title + ": " + e.Message
}

// RunHandle tracks an async run.
type RunHandle struct {
	RunID string

	stop    *atomic.Bool
	done    chan struct{}
	outcome *Outcome
	err     error
}

// Stop requests a cooperative stop; the run ends before its next step.
func (h *RunHandle) Stop() { h.stop.Store(true) }

// Done is closed when the run has finished.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes or ctx ends.
func (h *RunHandle) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunAsync admits a run to the engine's pool and returns immediately once a
// slot is free. ctx governs the run itself.
func (e *Engine) RunAsync(ctx context.Context, def *schema.WorkflowDefinition, opts RunOptions) (*RunHandle, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.StopFlag == nil {
		opts.StopFlag = new(atomic.Bool)
	}
	h := &RunHandle{RunID: opts.RunID, stop: opts.StopFlag, done: make(chan struct{})}

	err := e.pool.Submit(ctx, func(ctx context.Context) error {
		defer close(h.done)
		h.outcome, h.err = e.Run(ctx, def, opts)
		if h.err != nil {
			return h.err
		}
		if h.outcome.Error != nil {
			return h.outcome.Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// RunWorkflow resolves workflowID through the engine's workflow source and
// runs it with vars as variable overrides.
func (e *Engine) RunWorkflow(ctx context.Context, workflowID string, vars map[string]value.Value) (*Outcome, error) {
	if e.source == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q: no workflow source configured", workflowID)
	}
	def, err := e.source.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, def, RunOptions{Variables: vars})
}

// Call implements actions.WorkflowCaller: it runs workflowID to completion as
// a child of the invoking run and returns its return value.
func (e *Engine) Call(ctx context.Context, parent *actions.Invocation, workflowID string, input map[string]value.Value) (value.Value, error) {
	if parent.State.InCallStack(workflowID) {
		return nil, schema.NewErrorf(schema.ErrCodeRecursion,
			"workflow %q is already running in this call chain (%s)",
			workflowID, strings.Join(parent.State.CallStack(), " -> "))
	}
	stack := parent.State.CallStack()
	if len(stack) >= e.cfg.MaxCallDepth {
		return nil, schema.NewErrorf(schema.ErrCodeRecursion,
			"workflow call depth %d exceeds the limit of %d", len(stack)+1, e.cfg.MaxCallDepth)
	}
	if e.source == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q: no workflow source configured", workflowID)
	}

	def, err := e.source.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	out, err := e.Run(ctx, def, RunOptions{
		ParentRunID: parent.RunID,
		Variables:   input,
		StopFlag:    stopFlagFrom(ctx),
		CallStack:   stack,
		Identity:    workflowID,
	})
	if err != nil {
		return nil, err
	}
	switch out.Status {
	case schema.RunStatusFailed:
		return nil, schema.NewErrorf(out.Error.Code, "workflow %q failed: %s", workflowID, out.Error.Error()).
			WithDetails(map[string]any{"run_id": out.RunID, "step_id": out.Error.StepID})
	case schema.RunStatusReturned:
		return out.Value, nil
	default:
		return value.Null{}, nil
	}
}

var _ actions.WorkflowCaller = (*Engine)(nil)

type stopKey struct{}

func withStopFlag(ctx context.Context, flag *atomic.Bool) context.Context {
	return context.WithValue(ctx, stopKey{}, flag)
}

// stopFlagFrom returns the stop flag of the run executing in ctx, so child
// runs stop with their parent.
func stopFlagFrom(ctx context.Context) *atomic.Bool {
	flag, _ := ctx.Value(stopKey{}).(*atomic.Bool)
	return flag
}
