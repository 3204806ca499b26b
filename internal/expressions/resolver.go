package expressions

import (
	"sort"
	"strings"

	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// ResolveText substitutes every reference in template with its string form.
// The result is always a string; unresolved references contribute "".
func ResolveText(template string, scope Scope) string {
	segs := Lex(template)
	if len(segs) == 1 && segs[0].Ref == nil {
		return segs[0].Text
	}
	var sb strings.Builder
	for _, seg := range segs {
		if seg.Ref == nil {
			sb.WriteString(seg.Text)
			continue
		}
		sb.WriteString(seg.Ref.Resolve(scope).AsString())
	}
	return sb.String()
}

// ResolveValue returns the referenced Value unchanged when template is
// exactly one reference with no surrounding text, preserving its concrete
// kind. Otherwise it behaves like ResolveText wrapped as a String.
func ResolveValue(template string, scope Scope) value.Value {
	segs := Lex(template)
	if len(segs) == 1 && segs[0].Ref != nil {
		return segs[0].Ref.Resolve(scope)
	}
	return value.String(ResolveText(template, scope))
}

// ResolveAny resolves a raw parameter value: strings through ResolveValue,
// lists and maps element-wise, anything else via value.FromAny.
func ResolveAny(raw any, scope Scope) value.Value {
	switch v := raw.(type) {
	case string:
		return ResolveValue(v, scope)
	case []any:
		out := make(value.List, len(v))
		for i, item := range v {
			out[i] = ResolveAny(item, scope)
		}
		return out
	case map[string]any:
		out := make(value.Dict, len(v))
		for k, item := range v {
			out[k] = ResolveAny(item, scope)
		}
		return out
	default:
		return value.FromAny(raw)
	}
}

// ResolveParams materializes a step's parameters. A binding whose reference
// resolves to a non-Null value wins over the params entry of the same name;
// otherwise the params entry is resolved. A binding that is not a single
// reference is an interpolation error.
func ResolveParams(step *schema.StepDefinition, scope Scope) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(step.Params)+len(step.Bindings))
	for name, raw := range step.Params {
		out[name] = ResolveAny(raw, scope)
	}

	names := make([]string, 0, len(step.Bindings))
	for name := range step.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		text := step.Bindings[name]
		ref, ok := ParseReference(text)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"binding %q is not a single variable reference: %q", name, text).
				WithStep(step.ID).
				WithDetails(map[string]any{"param": name, "binding": text})
		}
		v := ref.Resolve(scope)
		if value.IsNull(v) {
			if _, hasParam := out[name]; hasParam {
				continue
			}
		}
		out[name] = v
	}
	return out, nil
}

// References returns every reference in template, in order.
func References(template string) []*Reference {
	var refs []*Reference
	for _, seg := range Lex(template) {
		if seg.Ref != nil {
			refs = append(refs, seg.Ref)
		}
	}
	return refs
}
