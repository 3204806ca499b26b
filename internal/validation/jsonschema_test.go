package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/pkg/schema"
)

func newJSONSchema(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	require.NotNil(t, v.workflowSchema)
	return v
}

func requireFlowError(t *testing.T, err error, code string) *schema.FlowError {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(*schema.FlowError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, code, fe.Code)
	return fe
}

// --- ValidateDefinition ---

func TestValidateDefinition_Nil(t *testing.T) {
	fe := requireFlowError(t, newJSONSchema(t).ValidateDefinition(nil), schema.ErrCodeValidation)
	assert.Contains(t, fe.Message, "nil")
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name  string
		def   *schema.WorkflowDefinition
		valid bool
	}{
		{
			name:  "empty step list",
			def:   &schema.WorkflowDefinition{ID: "w", Steps: []schema.StepDefinition{}},
			valid: true,
		},
		{
			name: "full step",
			def: &schema.WorkflowDefinition{
				ID:        "w",
				Name:      "Full",
				Variables: map[string]any{"n": 1},
				Metadata:  map[string]any{"owner": "ops"},
				Steps: []schema.StepDefinition{{
					ID:       "set-n",
					Action:   "variable.set",
					Params:   map[string]any{"name": "n", "value": 2},
					Bindings: map[string]string{"value": "${m}"},
					Disabled: true,
				}},
			},
			valid: true,
		},
		{
			name: "missing step id",
			def:  &schema.WorkflowDefinition{Steps: []schema.StepDefinition{{Action: "flow.stop"}}},
		},
		{
			name: "missing action",
			def:  &schema.WorkflowDefinition{Steps: []schema.StepDefinition{{ID: "a"}}},
		},
		{
			name: "dotted step id",
			def:  &schema.WorkflowDefinition{Steps: []schema.StepDefinition{{ID: "a.b", Action: "flow.stop"}}},
		},
		{
			name: "whitespace in step id",
			def:  &schema.WorkflowDefinition{Steps: []schema.StepDefinition{{ID: "a b", Action: "flow.stop"}}},
		},
	}
	v := newJSONSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDefinition(tt.def)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			requireFlowError(t, err, schema.ErrCodeValidation)
		})
	}
}

func TestValidateDefinition_ListsViolations(t *testing.T) {
	def := &schema.WorkflowDefinition{Steps: []schema.StepDefinition{{ID: ""}, {ID: "x.y", Action: "a"}}}
	fe := requireFlowError(t, newJSONSchema(t).ValidateDefinition(def), schema.ErrCodeValidation)

	violations, ok := fe.Details["violations"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 2)
	for _, v := range violations {
		assert.Contains(t, v, "/steps/")
	}
}

// --- ValidateInput ---

func TestValidateInput_NilInput(t *testing.T) {
	fe := requireFlowError(t, newJSONSchema(t).ValidateInput(nil, []byte(`{"type": "object"}`)), schema.ErrCodeValidation)
	assert.Contains(t, fe.Message, "nil")
}

func TestValidateInput_EmptySchema(t *testing.T) {
	v := newJSONSchema(t)
	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, nil))
	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, []byte{}))
}

func TestValidateInput(t *testing.T) {
	countSchema := []byte(`{
		"type": "object",
		"required": ["name", "count"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer", "minimum": 1}
		}
	}`)
	tests := []struct {
		name  string
		input map[string]any
		valid bool
	}{
		{"valid", map[string]any{"name": "x", "count": 5}, true},
		{"float literal that is integral", map[string]any{"name": "x", "count": 5.0}, true},
		{"missing required", map[string]any{"name": "x"}, false},
		{"wrong type", map[string]any{"name": "x", "count": "five"}, false},
		{"below minimum", map[string]any{"name": "x", "count": 0}, false},
	}
	v := newJSONSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInput(tt.input, countSchema)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			requireFlowError(t, err, schema.ErrCodeValidation)
		})
	}
}

func TestValidateInput_InvalidSchema(t *testing.T) {
	fe := requireFlowError(t, newJSONSchema(t).ValidateInput(map[string]any{"foo": "bar"}, []byte(`{not json`)), schema.ErrCodeValidation)
	assert.Contains(t, fe.Message, "invalid input schema")
}

func TestValidateInput_SchemaCaching(t *testing.T) {
	v := newJSONSchema(t)
	inputSchema := []byte(`{"type": "object", "properties": {"x": {"type": "integer"}}}`)

	require.NoError(t, v.ValidateInput(map[string]any{"x": 42}, inputSchema))
	require.NoError(t, v.ValidateInput(map[string]any{"x": 7}, inputSchema))

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1)
}

func TestValidateInput_Concurrent(t *testing.T) {
	v := newJSONSchema(t)
	schemaA := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	schemaB := []byte(`{"type": "object", "properties": {"b": {"type": "integer"}}}`)

	var wg sync.WaitGroup
	errs := make([]error, 64)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				errs[idx] = v.ValidateInput(map[string]any{"a": "hello"}, schemaA)
			} else {
				errs[idx] = v.ValidateInput(map[string]any{"b": 42}, schemaB)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "goroutine %d", i)
	}
}

func TestJSONSchemaValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = (*JSONSchemaValidator)(nil)
}
