package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkflowDefinition is the serializable workflow format: a flat, ordered list
// of steps. Nested control structures are encoded implicitly by block actions
// (if/else/end, loop start/end, event listener start/end).
type WorkflowDefinition struct {
	ID        string           `json:"id" yaml:"id"`
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Steps     []StepDefinition `json:"steps" yaml:"steps"`
	Variables map[string]any   `json:"variables,omitempty" yaml:"variables,omitempty"` // initial named variables
	Metadata  map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StepDefinition describes a single step. Steps are immutable during a run.
type StepDefinition struct {
	ID       string            `json:"id" yaml:"id"`
	Action   string            `json:"action" yaml:"action"`                         // operation id (e.g. "condition.if")
	Params   map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`     // literals or reference templates
	Bindings map[string]string `json:"bindings,omitempty" yaml:"bindings,omitempty"` // param -> single reference
	Disabled bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// StepIndex returns the position of the step with the given id, or -1.
func (d *WorkflowDefinition) StepIndex(id string) int {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// ParseDefinition decodes a workflow definition. format is "json" or "yaml".
func ParseDefinition(data []byte, format string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	switch strings.ToLower(format) {
	case "json":
		// UseNumber keeps integral and floating literals distinguishable.
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&def); err != nil {
			return nil, NewErrorf(ErrCodeValidation, "decode json workflow: %s", err.Error()).WithCause(err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, NewErrorf(ErrCodeValidation, "decode yaml workflow: %s", err.Error()).WithCause(err)
		}
		def.Variables = normalizeYAML(def.Variables)
		for i := range def.Steps {
			def.Steps[i].Params = normalizeYAML(def.Steps[i].Params)
		}
	default:
		return nil, NewErrorf(ErrCodeValidation, "unsupported workflow format %q", format)
	}
	return &def, nil
}

// LoadDefinitionFile reads a workflow from a .json, .yaml or .yml file.
// The workflow id defaults to the file name without extension.
func LoadDefinitionFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	def, err := ParseDefinition(data, ext)
	if err != nil {
		return nil, err
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// normalizeYAML converts yaml.v3 decoded values into JSON-shaped values
// (map[string]any, []any, float64/int).
func normalizeYAML(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeYAML(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAMLValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return v
	}
}
