package conditions

import (
	"testing"

	"github.com/rendis/stepflow/internal/value"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Existence(t *testing.T) {
	assert.False(t, Evaluate(nil, OpExists, nil, nil))
	assert.True(t, Evaluate(nil, OpNotExists, nil, nil))
	assert.True(t, Evaluate(value.Null{}, OpExists, nil, nil))
	assert.False(t, Evaluate(value.Null{}, OpNotExists, nil, nil))
	assert.True(t, Evaluate(value.String(""), OpExists, nil, nil))
}

func TestEvaluate_LooseEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"empty string equals zero", value.String(""), value.Int(0), true},
		{"zero equals empty string", value.Float(0), value.String(""), true},
		{"empty strings", value.String(""), value.String(""), true},
		{"both null", value.Null{}, value.Null{}, true},
		{"absent operand is null", value.Null{}, nil, true},
		{"null equals empty list", value.Null{}, value.List{}, true},
		{"null equals empty dict", value.Dict{}, value.Null{}, true},
		{"null equals empty string", value.Null{}, value.String(""), true},
		{"null never equals number", value.Null{}, value.Int(0), false},
		{"null vs text", value.Null{}, value.String("x"), false},
		{"integral vs floating", value.Int(3), value.Float(3.0), true},
		{"numeric text", value.String("3.0"), value.Int(3), true},
		{"numbers differ", value.Int(3), value.Int(4), false},
		{"booleans", value.Bool(true), value.Bool(true), true},
		{"boolean word vs bool", value.String("Yes"), value.Bool(true), true},
		{"boolean words", value.String("off"), value.String("no"), true},
		{"one vs true", value.String("1"), value.Bool(true), true},
		{"case-insensitive text", value.String("Hello"), value.String("hELLO"), true},
		{"text differs", value.String("a"), value.String("b"), false},
		{"empty string vs text", value.String(""), value.String("0x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.a, OpEquals, tt.b, nil))
			assert.Equal(t, !tt.want, Evaluate(tt.a, OpNotEquals, tt.b, nil))
		})
	}
}

func TestEvaluate_StrictEquals(t *testing.T) {
	assert.False(t, Evaluate(value.Int(3), OpStrictEquals, value.Float(3.0), nil))
	assert.True(t, Evaluate(value.Int(3), OpEquals, value.Float(3.0), nil))
	assert.True(t, Evaluate(value.Int(3), OpStrictEquals, value.Int(3), nil))
	assert.False(t, Evaluate(value.String("3"), OpStrictEquals, value.Int(3), nil))
	assert.False(t, Evaluate(value.String("A"), OpStrictEquals, value.String("a"), nil))
}

func TestEvaluate_Numeric(t *testing.T) {
	tests := []struct {
		name   string
		input  value.Value
		op     Operator
		v1, v2 value.Value
		want   bool
	}{
		{"greater", value.Int(5), OpGreater, value.Int(3), nil, true},
		{"greater equal boundary", value.Int(3), OpGreaterEqual, value.Float(3), nil, true},
		{"less with numeric text", value.String("2"), OpLess, value.String("10"), nil, true},
		{"less equal", value.Float(2.5), OpLessEqual, value.Int(2), nil, false},
		{"non-numeric input", value.String("abc"), OpGreater, value.Int(1), nil, false},
		{"non-numeric operand", value.Int(1), OpLess, value.String("abc"), nil, false},
		{"list input is not numeric", value.List{value.Int(1), value.Int(2)}, OpGreater, value.Int(0), nil, false},
		{"between ordered", value.Int(5), OpBetween, value.Int(1), value.Int(10), true},
		{"between reversed bounds", value.Int(5), OpBetween, value.Int(10), value.Int(1), true},
		{"between inclusive low", value.Int(1), OpBetween, value.Int(1), value.Int(10), true},
		{"between inclusive high", value.Int(10), OpBetween, value.Int(10), value.Int(1), true},
		{"between outside", value.Int(11), OpBetween, value.Int(1), value.Int(10), false},
		{"between missing bound", value.Int(5), OpBetween, value.Int(1), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.input, tt.op, tt.v1, tt.v2))
		})
	}
}

func TestEvaluate_Boolean(t *testing.T) {
	tests := []struct {
		name            string
		input           value.Value
		isTrue, isFalse bool
	}{
		{"bool true", value.Bool(true), true, false},
		{"bool false", value.Bool(false), false, true},
		{"word yes", value.String("YES"), true, false},
		{"word off", value.String("off"), false, true},
		{"non-boolean string", value.String("banana"), false, true},
		{"number", value.Int(2), true, false},
		{"zero", value.Int(0), false, true},
		{"null", value.Null{}, false, true},
		{"absent", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isTrue, Evaluate(tt.input, OpIsTrue, nil, nil))
			assert.Equal(t, tt.isFalse, Evaluate(tt.input, OpIsFalse, nil, nil))
		})
	}
}

func TestEvaluate_Emptiness(t *testing.T) {
	assert.True(t, Evaluate(value.List{}, OpIsEmpty, nil, nil))
	assert.False(t, Evaluate(value.List{value.String("")}, OpIsEmpty, nil, nil))
	assert.True(t, Evaluate(value.Dict{}, OpIsEmpty, nil, nil))
	assert.True(t, Evaluate(value.String(""), OpIsEmpty, nil, nil))
	assert.True(t, Evaluate(value.Null{}, OpIsEmpty, nil, nil))
	assert.False(t, Evaluate(value.Int(0), OpIsEmpty, nil, nil))
	assert.True(t, Evaluate(value.Region{}, OpIsNotEmpty, nil, nil))
}

func TestEvaluate_Text(t *testing.T) {
	tests := []struct {
		name  string
		input value.Value
		op    Operator
		arg   value.Value
		want  bool
	}{
		{"contains case-insensitive", value.String("Hello World"), OpContains, value.String("WORLD"), true},
		{"not contains", value.String("Hello"), OpNotContains, value.String("bye"), true},
		{"starts with", value.String("Report.pdf"), OpStartsWith, value.String("report"), true},
		{"ends with", value.String("Report.PDF"), OpEndsWith, value.String(".pdf"), true},
		{"contains on list text", value.List{value.String("a"), value.String("b")}, OpContains, value.String("a, b"), true},
		{"regex match", value.String("order-123"), OpMatchesRegex, value.String(`^order-\d+$`), true},
		{"regex is case-sensitive", value.String("ORDER-1"), OpMatchesRegex, value.String(`^order`), false},
		{"invalid regex is no match", value.String("x"), OpMatchesRegex, value.String(`(`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.input, tt.op, tt.arg, nil))
		})
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	assert.False(t, Evaluate(value.Int(1), Operator("bogus"), value.Int(1), nil))
	assert.False(t, Evaluate(value.String("a"), Operator("bogus"), value.String("a"), nil))
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in     string
		want   Operator
		wantOK bool
	}{
		{"equals", OpEquals, true},
		{" == ", OpEquals, true},
		{"GT", OpGreater, true},
		{">=", OpGreaterEqual, true},
		{"matches", OpMatchesRegex, true},
		{"between", OpBetween, true},
		{"sideways", Operator("sideways"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOperator(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperator_NeedsOperand(t *testing.T) {
	assert.Equal(t, 0, OpExists.NeedsOperand())
	assert.Equal(t, 1, OpEquals.NeedsOperand())
	assert.Equal(t, 2, OpBetween.NeedsOperand())
}
