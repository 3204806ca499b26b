package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeCancelled     = "CANCELLED"
	ErrCodeInterpolation = "INTERPOLATION_ERROR"
	ErrCodeTransition    = "INVALID_TRANSITION"

	// Run-time failure taxonomy.
	ErrCodeParameter       = "PARAMETER_ERROR"
	ErrCodeModuleExecution = "MODULE_EXECUTION_ERROR"
	ErrCodeControlFlow     = "CONTROL_FLOW_ERROR"
	ErrCodeRecursion       = "RECURSION_ERROR"
)

// errorTitles maps codes to the human-readable title of a run failure.
var errorTitles = map[string]string{
	ErrCodeValidation:      "Invalid workflow",
	ErrCodeExecution:       "Execution failed",
	ErrCodeNotFound:        "Not found",
	ErrCodeConflict:        "Conflict",
	ErrCodeStore:           "Storage error",
	ErrCodeCancelled:       "Cancelled",
	ErrCodeInterpolation:   "Invalid variable reference",
	ErrCodeTransition:      "Invalid state transition",
	ErrCodeParameter:       "Invalid parameter",
	ErrCodeModuleExecution: "Action failed",
	ErrCodeControlFlow:     "Invalid control flow",
	ErrCodeRecursion:       "Recursive workflow call",
}

// TitleFor returns the failure title for an error code.
func TitleFor(code string) string {
	if t, ok := errorTitles[code]; ok {
		return t
	}
	return errorTitles[ErrCodeExecution]
}

// FlowError is the structured error type for all stepflow operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *FlowError) WithStep(stepID string) *FlowError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}

// CodeOf returns the code of a FlowError anywhere in err's chain, or "".
func CodeOf(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
