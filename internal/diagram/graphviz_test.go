package diagram

import (
	"context"
	"testing"

	"github.com/rendis/stepflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, png []byte) {
	t.Helper()
	require.True(t, len(png) > 8, "PNG should be larger than header")
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderImage(t *testing.T) {
	trace := &store.RunTrace{Steps: map[string]*store.StepTrace{
		"check":  {Status: store.StepStatusCompleted},
		"deploy": {Status: store.StepStatusSkipped},
	}}
	tests := []struct {
		name  string
		build func() (*DiagramModel, error)
	}{
		{"linear", func() (*DiagramModel, error) { return Build(linearWorkflow(), behavior, nil) }},
		{"condition with status", func() (*DiagramModel, error) { return Build(conditionWorkflow(), behavior, trace) }},
		{"nested", func() (*DiagramModel, error) { return Build(nestedWorkflow(), behavior, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := tt.build()
			require.NoError(t, err)
			png, err := RenderImage(context.Background(), model)
			require.NoError(t, err)
			assertPNG(t, png)
		})
	}
}
