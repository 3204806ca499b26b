// Package conditions evaluates the operator table used by if/while blocks.
package conditions

import (
	"regexp"
	"strings"

	"github.com/rendis/stepflow/internal/value"
)

// Operator names a comparison.
type Operator string

const (
	OpExists       Operator = "exists"
	OpNotExists    Operator = "not_exists"
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpStrictEquals Operator = "strict_equals"
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpBetween      Operator = "between"
	OpIsTrue       Operator = "is_true"
	OpIsFalse      Operator = "is_false"
	OpIsEmpty      Operator = "is_empty"
	OpIsNotEmpty   Operator = "is_not_empty"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpStartsWith   Operator = "starts_with"
	OpEndsWith     Operator = "ends_with"
	OpMatchesRegex Operator = "matches_regex"
)

var aliases = map[string]Operator{
	"==":               OpEquals,
	"!=":               OpNotEquals,
	"===":              OpStrictEquals,
	"gt":               OpGreater,
	"greater_than":     OpGreater,
	"gte":              OpGreaterEqual,
	"greater_or_equal": OpGreaterEqual,
	"lt":               OpLess,
	"less_than":        OpLess,
	"lte":              OpLessEqual,
	"less_or_equal":    OpLessEqual,
	"matches":          OpMatchesRegex,
	"regex":            OpMatchesRegex,
	"exist":            OpExists,
	"not_exist":        OpNotExists,
	"does_not_exist":   OpNotExists,
	"does_not_contain": OpNotContains,
	"is_not_equal":     OpNotEquals,
	"is_equal":         OpEquals,
}

var known = map[Operator]bool{
	OpExists: true, OpNotExists: true,
	OpEquals: true, OpNotEquals: true, OpStrictEquals: true,
	OpGreater: true, OpGreaterEqual: true, OpLess: true, OpLessEqual: true, OpBetween: true,
	OpIsTrue: true, OpIsFalse: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
	OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true, OpMatchesRegex: true,
}

// ParseOperator normalizes an operator name or alias.
func ParseOperator(s string) (Operator, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if op, ok := aliases[name]; ok {
		return op, true
	}
	op := Operator(name)
	return op, known[op]
}

// NeedsOperand reports how many operands beyond input op reads.
func (op Operator) NeedsOperand() int {
	switch op {
	case OpExists, OpNotExists, OpIsTrue, OpIsFalse, OpIsEmpty, OpIsNotEmpty:
		return 0
	case OpBetween:
		return 2
	default:
		return 1
	}
}

// Evaluate applies op to input and its operands. A nil input means no value
// at all, which only the existence operators distinguish from Null. Unknown
// operators evaluate to false.
func Evaluate(input value.Value, op Operator, v1, v2 value.Value) bool {
	switch op {
	case OpExists:
		return input != nil
	case OpNotExists:
		return input == nil
	}

	in := value.OrNull(input)
	a := value.OrNull(v1)
	b := value.OrNull(v2)

	switch op {
	case OpEquals:
		return LooseEqual(in, a)
	case OpNotEquals:
		return !LooseEqual(in, a)
	case OpStrictEquals:
		return value.StrictEqual(in, a)
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween:
		return compareNumbers(in, op, a, b)
	case OpIsTrue:
		return isTrue(in)
	case OpIsFalse:
		return !isTrue(in)
	case OpIsEmpty:
		return isEmpty(in)
	case OpIsNotEmpty:
		return !isEmpty(in)
	case OpContains:
		return containsFold(in.AsString(), a.AsString())
	case OpNotContains:
		return !containsFold(in.AsString(), a.AsString())
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(in.AsString()), strings.ToLower(a.AsString()))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(in.AsString()), strings.ToLower(a.AsString()))
	case OpMatchesRegex:
		re, err := regexp.Compile(a.AsString())
		if err != nil {
			return false
		}
		return re.MatchString(in.AsString())
	}
	return false
}

// LooseEqual is the equality used by equals/not_equals.
func LooseEqual(a, b value.Value) bool {
	a, b = value.OrNull(a), value.OrNull(b)
	aNull, bNull := a.Kind() == value.KindNull, b.Kind() == value.KindNull
	switch {
	case aNull && bNull:
		return true
	case aNull:
		return isEmptyContainer(b)
	case bNull:
		return isEmptyContainer(a)
	}

	if isEmptyString(a) || isEmptyString(b) {
		other := b
		if !isEmptyString(a) {
			other = a
		}
		if isEmptyString(other) || isNumberZero(other) {
			return true
		}
	}

	if x, ok := a.AsNumber(); ok {
		if y, ok := b.AsNumber(); ok {
			return x == y
		}
	}

	if a.Kind() == value.KindBool && b.Kind() == value.KindBool {
		return a.AsBool() == b.AsBool()
	}

	if x, ok := value.ParseBoolWord(a.AsString()); ok {
		if y, ok := value.ParseBoolWord(b.AsString()); ok {
			return x == y
		}
	}

	return strings.EqualFold(a.AsString(), b.AsString())
}

func compareNumbers(in value.Value, op Operator, a, b value.Value) bool {
	x, ok := in.AsNumber()
	if !ok {
		return false
	}
	y, ok := a.AsNumber()
	if !ok {
		return false
	}
	switch op {
	case OpGreater:
		return x > y
	case OpGreaterEqual:
		return x >= y
	case OpLess:
		return x < y
	case OpLessEqual:
		return x <= y
	case OpBetween:
		z, ok := b.AsNumber()
		if !ok {
			return false
		}
		lo, hi := min(y, z), max(y, z)
		return x >= lo && x <= hi
	}
	return false
}

// isTrue runs strings through the boolean-word table first; a string that is
// not a boolean word is not true.
func isTrue(v value.Value) bool {
	if v.Kind() == value.KindString {
		b, ok := value.ParseBoolWord(v.AsString())
		return ok && b
	}
	return v.AsBool()
}

func isEmpty(v value.Value) bool {
	switch c := v.(type) {
	case value.List:
		return len(c) == 0
	case value.Dict:
		return len(c) == 0
	}
	return len(v.AsString()) == 0
}

func isEmptyContainer(v value.Value) bool {
	switch c := v.(type) {
	case value.String:
		return c == ""
	case value.List:
		return len(c) == 0
	case value.Dict:
		return len(c) == 0
	}
	return false
}

func isEmptyString(v value.Value) bool {
	s, ok := v.(value.String)
	return ok && s == ""
}

func isNumberZero(v value.Value) bool {
	n, ok := v.(value.Number)
	return ok && n.Float64() == 0
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
