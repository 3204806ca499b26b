package actions

import "github.com/rendis/stepflow/internal/value"

// Result is what a step hands back to the engine. It is a closed union:
// Success, Failure, and the signals Jump, Break, Continue, Return and Stop.
// Results are consumed immediately and never stored.
type Result interface {
	isResult()
}

// Success records outputs under the step's id and advances the cursor.
type Success struct {
	Outputs map[string]value.Value
}

// Failure terminates the run.
type Failure struct {
	Title   string
	Message string
	Code    string
}

// Jump moves the cursor to Target.
type Jump struct {
	Target int
}

// Break leaves the lexically innermost loop.
type Break struct{}

// Continue restarts the lexically innermost loop at its start step.
type Continue struct{}

// Return terminates the run with a value for the caller.
type Return struct {
	Value value.Value
}

// Stop terminates the run cleanly without a value.
type Stop struct{}

func (Success) isResult()  {}
func (Failure) isResult()  {}
func (Jump) isResult()     {}
func (Break) isResult()    {}
func (Continue) isResult() {}
func (Return) isResult()   {}
func (Stop) isResult()     {}

// Outputs builds a Success from alternating name/value pairs.
func Outputs(kv ...any) Success {
	out := make(map[string]value.Value, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		out[name] = value.FromAny(kv[i+1])
	}
	return Success{Outputs: out}
}
