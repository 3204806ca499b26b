package diagram

import (
	"strings"
	"testing"

	"github.com/rendis/stepflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderASCIILinear(t *testing.T) {
	model, err := Build(linearWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderASCII(model)
	assert.True(t, strings.HasPrefix(output, "=== ETL Pipeline ===\n"))
	assert.Contains(t, output, "│ Start │")
	assert.Contains(t, output, "│ fetch (variable.set) │")
	assert.Contains(t, output, "▼")
	assert.Contains(t, output, "│ End │")

	// Boxes appear in step order.
	assert.Less(t, strings.Index(output, "fetch"), strings.Index(output, "transform"))
	assert.Less(t, strings.Index(output, "transform"), strings.Index(output, "store"))
}

func TestRenderASCIIBranches(t *testing.T) {
	model, err := Build(conditionWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderASCII(model)
	assert.Contains(t, output, "  [if vars.ok]\n    deploy (flow.log)\n")
	assert.Contains(t, output, "  [else]\n    notify (flow.log)\n    give-up (flow.stop)\n")
}

func TestRenderASCIINestedAndEmpty(t *testing.T) {
	model, err := Build(nestedWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderASCII(model)
	assert.Contains(t, output, "    inner (loop.while)\n      [body]\n        process (flow.log)\n")
	assert.Contains(t, output, "(empty)")
}

func TestRenderASCIIStatus(t *testing.T) {
	trace := &store.RunTrace{Steps: map[string]*store.StepTrace{
		"fetch":  {Status: store.StepStatusCompleted, DurationMs: 40},
		"deploy": {Status: store.StepStatusFailed},
	}}
	model, err := Build(linearWorkflow(), behavior, trace)
	require.NoError(t, err)
	output := RenderASCII(model)
	assert.Contains(t, output, "[OK]")
	assert.Contains(t, output, "40ms")

	model, err = Build(conditionWorkflow(), behavior, trace)
	require.NoError(t, err)
	assert.Contains(t, RenderASCII(model), "deploy (flow.log) [FAIL]")
}

func TestStatusTag(t *testing.T) {
	tests := map[string]string{
		"completed": "[OK]",
		"failed":    "[FAIL]",
		"running":   "[RUN]",
		"skipped":   "[SKIP]",
		"pending":   "[PEND]",
		"other":     "",
	}
	for status, want := range tests {
		assert.Equal(t, want, statusTag(status), status)
	}
}
