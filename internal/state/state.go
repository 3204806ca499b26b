// Package state holds the mutable context of a single run.
package state

import (
	"slices"
	"sync"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/value"
)

// ExecutionState is exclusively owned by one run. The mutex only guards the
// output and variable maps for observers reading while the run progresses;
// the cursor and stacks are touched by the run goroutine alone.
type ExecutionState struct {
	Cursor int

	mu          sync.RWMutex
	stepOutputs map[string]map[string]value.Value
	variables   map[string]value.Value
	bookkeeping map[string]struct{}

	loops     []LoopFrame
	callStack []string
}

// New creates a state seeded with initial named variables and the identities
// of the workflows already on the call stack.
func New(variables map[string]value.Value, callStack []string) *ExecutionState {
	vars := make(map[string]value.Value, len(variables))
	for k, v := range variables {
		vars[k] = value.OrNull(v)
	}
	return &ExecutionState{
		stepOutputs: make(map[string]map[string]value.Value),
		variables:   vars,
		bookkeeping: make(map[string]struct{}),
		callStack:   slices.Clone(callStack),
	}
}

// --- step outputs ---

// RecordOutputs stores a step's outputs. Re-running a step inside a loop
// replaces its previous outputs; step ids are never removed.
func (s *ExecutionState) RecordOutputs(stepID string, outputs map[string]value.Value) {
	copied := make(map[string]value.Value, len(outputs))
	for k, v := range outputs {
		copied[k] = value.OrNull(v)
	}
	s.mu.Lock()
	s.stepOutputs[stepID] = copied
	s.mu.Unlock()
}

// StepOutput implements expressions.Scope.
func (s *ExecutionState) StepOutput(stepID, name string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outputs, ok := s.stepOutputs[stepID]
	if !ok {
		return nil, false
	}
	v, ok := outputs[name]
	return v, ok
}

// StepOutputs implements expressions.Scope. The returned map is a copy.
func (s *ExecutionState) StepOutputs(stepID string) (map[string]value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outputs, ok := s.stepOutputs[stepID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]value.Value, len(outputs))
	for k, v := range outputs {
		copied[k] = v
	}
	return copied, true
}

// AllOutputs returns a copy of every recorded step output.
func (s *ExecutionState) AllOutputs() map[string]map[string]value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]value.Value, len(s.stepOutputs))
	for id, outputs := range s.stepOutputs {
		copied := make(map[string]value.Value, len(outputs))
		for k, v := range outputs {
			copied[k] = v
		}
		out[id] = copied
	}
	return out
}

// --- named variables ---

// Variable implements expressions.Scope.
func (s *ExecutionState) Variable(name string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok
}

// SetVariable creates or replaces a named variable.
func (s *ExecutionState) SetVariable(name string, v value.Value) {
	s.mu.Lock()
	s.variables[name] = value.OrNull(v)
	delete(s.bookkeeping, name)
	s.mu.Unlock()
}

// SetBookkeeping sets a variable owned by a loop or listener, such as the
// current item or event. It reads like any other variable but is left out of
// DurableVariables until a plain SetVariable claims the name.
func (s *ExecutionState) SetBookkeeping(name string, v value.Value) {
	s.mu.Lock()
	s.variables[name] = value.OrNull(v)
	s.bookkeeping[name] = struct{}{}
	s.mu.Unlock()
}

// DeleteVariable removes a named variable.
func (s *ExecutionState) DeleteVariable(name string) {
	s.mu.Lock()
	delete(s.variables, name)
	delete(s.bookkeeping, name)
	s.mu.Unlock()
}

// Variables returns a copy of the named variables.
func (s *ExecutionState) Variables() map[string]value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]value.Value, len(s.variables))
	for k, v := range s.variables {
		out[k] = v
	}
	return out
}

// DurableVariables returns a copy of the named variables that outlive the
// run, excluding loop and listener bookkeeping.
func (s *ExecutionState) DurableVariables() map[string]value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]value.Value, len(s.variables))
	for k, v := range s.variables {
		if _, ok := s.bookkeeping[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// --- call stack ---

// CallStack returns a copy of the workflow identities currently executing.
func (s *ExecutionState) CallStack() []string {
	return slices.Clone(s.callStack)
}

// InCallStack reports whether workflowID is already executing in this chain.
func (s *ExecutionState) InCallStack(workflowID string) bool {
	return slices.Contains(s.callStack, workflowID)
}

// PushCall records that workflowID started executing.
func (s *ExecutionState) PushCall(workflowID string) {
	s.callStack = append(s.callStack, workflowID)
}

// PopCall removes the innermost workflow identity.
func (s *ExecutionState) PopCall() {
	if len(s.callStack) > 0 {
		s.callStack = s.callStack[:len(s.callStack)-1]
	}
}

// --- expression data ---

// ExpressionData builds the steps/vars/loop data map used by the CEL, Expr
// and jq engines.
func (s *ExecutionState) ExpressionData() map[string]any {
	s.mu.RLock()
	steps := make(map[string]any, len(s.stepOutputs))
	for id, outputs := range s.stepOutputs {
		m := make(map[string]any, len(outputs))
		for k, v := range outputs {
			m[k] = value.ToAny(v)
		}
		steps[id] = m
	}
	vars := make(map[string]any, len(s.variables))
	for k, v := range s.variables {
		vars[k] = value.ToAny(v)
	}
	s.mu.RUnlock()

	loop := map[string]any{}
	if top := s.TopFrame(); top != nil {
		loop = top.Describe()
	}
	return map[string]any{
		expressions.DataSteps: steps,
		expressions.DataVars:  vars,
		expressions.DataLoop:  loop,
	}
}

var _ expressions.Scope = (*ExecutionState)(nil)
