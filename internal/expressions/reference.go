package expressions

import (
	"strings"

	"github.com/rendis/stepflow/internal/value"
)

// RefKind distinguishes the two reference syntaxes.
type RefKind int

const (
	// RefStepOutput is {{stepId.outputName.prop...}}, resolved against step outputs.
	RefStepOutput RefKind = iota + 1
	// RefNamed is ${name.prop...}, resolved against named variables.
	RefNamed
)

const (
	stepOpen   = "{{"
	stepClose  = "}}"
	namedOpen  = "${"
	namedClose = "}"
)

// Reference is one parsed variable reference.
type Reference struct {
	Kind   RefKind
	Root   string   // step id or variable name
	Output string   // output name; empty when a step reference names only the step
	Path   []string // property chain after the root
	Raw    string   // full source text including delimiters
}

// Segment is either literal text or a reference.
type Segment struct {
	Text string
	Ref  *Reference
}

// Scope is the read side of a run's state as seen by the resolver. The bool
// reports presence; a present Null is still present.
type Scope interface {
	StepOutput(stepID, name string) (value.Value, bool)
	StepOutputs(stepID string) (map[string]value.Value, bool)
	Variable(name string) (value.Value, bool)
}

// Lex splits template into text and reference segments. Both delimiter styles
// are contiguous, non-nesting tokens matched lazily: the first closing
// delimiter ends the reference. Unterminated or malformed references stay
// text, and scanning resumes inside them so a well-formed reference nested in
// the rejected text still resolves. Adjacent text is merged into one segment.
func Lex(template string) []Segment {
	var segs []Segment
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			segs = append(segs, Segment{Text: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(template) {
		open, closer, kind := nextOpener(template[i:])
		if open < 0 {
			text.WriteString(template[i:])
			break
		}
		text.WriteString(template[i : i+open])
		start := i + open
		bodyStart := start + len(openerFor(kind))
		end := strings.Index(template[bodyStart:], closer)
		if end < 0 {
			text.WriteString(template[start:bodyStart])
			i = bodyStart
			continue
		}
		bodyEnd := bodyStart + end
		raw := template[start : bodyEnd+len(closer)]
		ref, ok := parseBody(kind, template[bodyStart:bodyEnd], raw)
		if !ok {
			text.WriteByte(template[start])
			i = start + 1
			continue
		}
		flushText()
		segs = append(segs, Segment{Ref: ref})
		i = bodyEnd + len(closer)
	}
	flushText()
	return segs
}

// nextOpener finds the earliest opening delimiter of either style.
func nextOpener(s string) (int, string, RefKind) {
	step := strings.Index(s, stepOpen)
	named := strings.Index(s, namedOpen)
	switch {
	case step < 0 && named < 0:
		return -1, "", 0
	case named < 0 || (step >= 0 && step < named):
		return step, stepClose, RefStepOutput
	default:
		return named, namedClose, RefNamed
	}
}

func openerFor(kind RefKind) string {
	if kind == RefStepOutput {
		return stepOpen
	}
	return namedOpen
}

func parseBody(kind RefKind, body, raw string) (*Reference, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}
	parts := strings.Split(body, ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" || strings.ContainsAny(parts[i], "{}$") {
			return nil, false
		}
	}
	ref := &Reference{Kind: kind, Root: parts[0], Raw: raw}
	rest := parts[1:]
	if kind == RefStepOutput && len(rest) > 0 {
		ref.Output = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		ref.Path = rest
	}
	return ref, true
}

// ParseReference parses text that must consist of exactly one reference.
func ParseReference(text string) (*Reference, bool) {
	segs := Lex(strings.TrimSpace(text))
	if len(segs) != 1 || segs[0].Ref == nil {
		return nil, false
	}
	return segs[0].Ref, true
}

// Resolve evaluates the reference against scope. A missing root or a broken
// hop short-circuits to Null; it never fails.
func (r *Reference) Resolve(scope Scope) value.Value {
	if scope == nil {
		return value.Null{}
	}
	var cur value.Value
	switch r.Kind {
	case RefStepOutput:
		if r.Output == "" {
			outputs, ok := scope.StepOutputs(r.Root)
			if !ok {
				return value.Null{}
			}
			cur = value.Dict(outputs)
		} else {
			v, ok := scope.StepOutput(r.Root, r.Output)
			if !ok {
				return value.Null{}
			}
			cur = v
		}
	case RefNamed:
		v, ok := scope.Variable(r.Root)
		if !ok {
			return value.Null{}
		}
		cur = v
	default:
		return value.Null{}
	}
	for _, prop := range r.Path {
		if value.IsNull(cur) {
			return value.Null{}
		}
		cur = cur.Property(prop)
	}
	return value.OrNull(cur)
}

// String returns the canonical source form of the reference.
func (r *Reference) String() string {
	parts := append([]string{r.Root}, r.Output)
	if r.Output == "" {
		parts = parts[:1]
	}
	body := strings.Join(append(parts, r.Path...), ".")
	if r.Kind == RefNamed {
		return namedOpen + body + namedClose
	}
	return stepOpen + body + stepClose
}

// Lookup is Resolve with presence: it reports false when the root does not
// exist or a hop names neither a key nor a known property.
func (r *Reference) Lookup(scope Scope) (value.Value, bool) {
	if scope == nil {
		return nil, false
	}
	var cur value.Value
	var ok bool
	switch r.Kind {
	case RefStepOutput:
		if r.Output == "" {
			var outputs map[string]value.Value
			outputs, ok = scope.StepOutputs(r.Root)
			cur = value.Dict(outputs)
		} else {
			cur, ok = scope.StepOutput(r.Root, r.Output)
		}
	case RefNamed:
		cur, ok = scope.Variable(r.Root)
	}
	if !ok {
		return nil, false
	}
	for _, prop := range r.Path {
		if !value.HasProperty(cur, prop) {
			return nil, false
		}
		cur = cur.Property(prop)
	}
	return value.OrNull(cur), true
}
