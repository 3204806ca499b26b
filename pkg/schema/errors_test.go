package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowError_Format(t *testing.T) {
	err := NewError(ErrCodeControlFlow, "no enclosing loop")
	assert.Equal(t, "[CONTROL_FLOW_ERROR] no enclosing loop", err.Error())

	err.WithStep("s3")
	assert.Equal(t, "[CONTROL_FLOW_ERROR] step s3: no enclosing loop", err.Error())
}

func TestFlowError_UnwrapAndCodeOf(t *testing.T) {
	cause := errors.New("disk full")
	err := NewErrorf(ErrCodeStore, "save run %s", "r1").WithCause(cause)
	wrapped := fmt.Errorf("outer: %w", err)

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ErrCodeStore, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(cause))
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Recursive workflow call", TitleFor(ErrCodeRecursion))
	assert.Equal(t, "Execution failed", TitleFor("SOMETHING_ELSE"))
}
