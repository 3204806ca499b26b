package validation

import (
	"fmt"

	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/pkg/schema"
)

// validateSemantic performs semantic analysis on the workflow definition.
// Checks: unique step ids, actions registered, action parameter rules,
// bindings that are single references, and references to unknown steps.
func validateSemantic(def *schema.WorkflowDefinition, lookup ActionLookup, params *JSONSchemaValidator) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	stepIDs := make(map[string]bool, len(def.Steps))
	for i, s := range def.Steps {
		if stepIDs[s.ID] {
			result.AddErrorf(schema.StepPath(i, "id"), schema.ErrCodeValidation, "duplicate step id %q", s.ID)
		}
		stepIDs[s.ID] = true
	}

	for i := range def.Steps {
		validateStepSemantic(&def.Steps[i], i, stepIDs, lookup, params, result)
	}
	return result
}

// validateStepSemantic checks a single step.
func validateStepSemantic(step *schema.StepDefinition, i int, stepIDs map[string]bool, lookup ActionLookup, params *JSONSchemaValidator, result *schema.ValidationResult) {
	for name, text := range step.Bindings {
		if _, ok := expressions.ParseReference(text); !ok {
			result.AddErrorf(schema.StepPath(i, "bindings", name), schema.ErrCodeInterpolation,
				"binding is not a single variable reference: %q", text)
		}
	}

	for _, ref := range stepReferences(step) {
		if ref.Kind == expressions.RefStepOutput && !stepIDs[ref.Root] {
			result.AddWarning(schema.StepPath(i, "params"), schema.ErrCodeNotFound,
				fmt.Sprintf("references output of unknown step %q", ref.Root))
		}
	}

	if lookup == nil {
		return
	}
	action, err := lookup.Get(step.Action)
	if err != nil {
		result.AddErrorf(schema.StepPath(i, "action"), schema.ErrCodeNotFound, "action %q not registered", step.Action)
		return
	}

	if err := action.Validate(step.Params); err != nil {
		code := schema.CodeOf(err)
		if code == "" {
			code = schema.ErrCodeValidation
		}
		result.AddError(schema.StepPath(i, "params"), code, errorMessage(err))
	}

	// Parameters built from references are only known at run time.
	if in := action.Schema().InputSchema; len(in) > 0 && params != nil && len(stepReferences(step)) == 0 && len(step.Bindings) == 0 {
		input := step.Params
		if input == nil {
			input = map[string]any{}
		}
		if err := params.ValidateInput(input, in); err != nil {
			result.AddError(schema.StepPath(i, "params"), schema.ErrCodeParameter, errorMessage(err))
		}
	}

	if step.Disabled && action.Behavior().IsBlock() {
		result.AddWarning(schema.StepPath(i, "disabled"), schema.ErrCodeValidation,
			fmt.Sprintf("%s is a block action; disabled is ignored", step.Action))
	}
}

// stepReferences returns every reference in the step's params and bindings.
func stepReferences(step *schema.StepDefinition) []*expressions.Reference {
	var refs []*expressions.Reference
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			refs = append(refs, expressions.References(val)...)
		case []any:
			for _, item := range val {
				walk(item)
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	for _, raw := range step.Params {
		walk(raw)
	}
	for _, text := range step.Bindings {
		walk(text)
	}
	return refs
}

func errorMessage(err error) string {
	if fe, ok := err.(*schema.FlowError); ok {
		return fe.Message
	}
	return err.Error()
}
