package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.Nil(t, r.ToError())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError(StepPath(0, "action"), ErrCodeNotFound, "action not found")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "steps[0].action", r.Errors[0].Path)
	assert.Equal(t, ErrCodeNotFound, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_WarningsStayValid(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning(StepPath(1), ErrCodeValidation, "disabled block step")
	assert.True(t, r.Valid())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.Merge(nil)

	r2 := &ValidationResult{}
	r2.AddErrorf(StepPath(2), ErrCodeControlFlow, "unmatched %s", "loop.end")
	r2.AddWarning(StepPath(3), ErrCodeValidation, "warn")
	r1.Merge(r2)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 1)
	assert.Equal(t, "unmatched loop.end", r1.Errors[1].Message)
}

func TestValidationResult_ToErrorKeepsFirstCode(t *testing.T) {
	r := &ValidationResult{}
	r.AddError(StepPath(4), ErrCodeControlFlow, "condition.end has no matching start")
	r.AddError(StepPath(5), ErrCodeValidation, "other")

	err := r.ToError()
	require.Error(t, err)

	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeControlFlow, fe.Code)
	assert.Contains(t, fe.Message, "2 errors")
	assert.Contains(t, fe.Message, "steps[4]")
	assert.Equal(t, 2, fe.Details["error_count"])
}
