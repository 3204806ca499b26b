package diagram

import (
	"strings"
	"testing"

	"github.com/rendis/stepflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaidLinear(t *testing.T) {
	model, err := Build(linearWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderMermaid(model)

	assert.True(t, strings.HasPrefix(output, "graph TD\n"))
	assert.Contains(t, output, "%% ETL Pipeline")

	assert.Contains(t, output, `fetch["fetch"]`)
	assert.Contains(t, output, `transform["transform"]`)
	assert.Contains(t, output, `store[/"store"/]`)
	assert.Contains(t, output, `__start__(("Start"))`)
	assert.Contains(t, output, `__end__(("End"))`)

	assert.Contains(t, output, "__start__ --> fetch")
	assert.Contains(t, output, "store --> __end__")

	assert.Contains(t, output, "classDef completed")
	assert.Contains(t, output, "classDef failed")
	assert.NotContains(t, output, "    class ")
}

func TestRenderMermaidCondition(t *testing.T) {
	model, err := Build(conditionWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderMermaid(model)

	assert.Contains(t, output, `decide{"decide"}`)
	assert.Contains(t, output, `subgraph decide_branch_0["decide: if vars.ok"]`)
	assert.Contains(t, output, `subgraph decide_branch_2["decide: else"]`)
	assert.Contains(t, output, "decide -->|if vars.ok| deploy")
	assert.Contains(t, output, `give_up>"give-up"]`)
	assert.Contains(t, output, "notify --> give_up")
	assert.Contains(t, output, "decide --> after")
	assert.Equal(t, 3, strings.Count(output, "subgraph "))
}

func TestRenderMermaidNested(t *testing.T) {
	model, err := Build(nestedWorkflow(), behavior, nil)
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, `each[["each"]]`)
	assert.Contains(t, output, "        subgraph inner_branch_0")
	assert.Contains(t, output, `listen[["listen"]]`)
	// An empty body draws no entry edge.
	assert.NotContains(t, output, "listen -->|body|")
}

func TestRenderMermaidStatusClasses(t *testing.T) {
	trace := &store.RunTrace{Steps: map[string]*store.StepTrace{
		"fetch":  {Status: store.StepStatusCompleted},
		"deploy": {Status: store.StepStatusSkipped},
	}}
	def := linearWorkflow()
	model, err := Build(def, behavior, trace)
	require.NoError(t, err)
	assert.Contains(t, RenderMermaid(model), "class fetch completed")

	model, err = Build(conditionWorkflow(), behavior, trace)
	require.NoError(t, err)
	assert.Contains(t, RenderMermaid(model), "class deploy skipped")
}

func TestMermaidHelpers(t *testing.T) {
	assert.Equal(t, "a_b_c_d", mermaidSafeID("a.b-c d"))
	assert.Equal(t, "say #quot;hi#quot; #124; x", mermaidEscapeLabel(`say "hi" | x`))
	assert.Equal(t, "", mermaidStatusClass("unknown"))
	assert.Equal(t, "failed", mermaidStatusClass("failed"))
}
