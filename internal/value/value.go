// Package value implements the polymorphic value model used for all data
// flowing through a run: a closed set of variants with safe coercions and a
// per-kind property table.
package value

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the concrete variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindDict
	KindPoint
	KindRegion
	KindImage
	KindUIElement
	KindEvent
	KindNotification
	KindDate
	KindTime
)

var kindNames = [...]string{
	KindNull:         "null",
	KindString:       "string",
	KindNumber:       "number",
	KindBool:         "boolean",
	KindList:         "list",
	KindDict:         "dictionary",
	KindPoint:        "point",
	KindRegion:       "region",
	KindImage:        "image",
	KindUIElement:    "ui_element",
	KindEvent:        "event",
	KindNotification: "notification",
	KindDate:         "date",
	KindTime:         "time",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindNull, false
}

// Value is a closed tagged union. Coercions never panic; AsNumber reports
// false for variants without a natural numeric meaning; Property returns Null
// for unknown names.
type Value interface {
	Kind() Kind
	AsString() string
	AsNumber() (float64, bool)
	AsBool() bool
	Property(name string) Value
	isValue()
}

// --- Null ---

// Null is the present-but-empty value. A nil Value means "no value at all".
type Null struct{}

func (Null) Kind() Kind                   { return KindNull }
func (Null) AsString() string             { return "" }
func (Null) AsNumber() (float64, bool)    { return 0, false }
func (Null) AsBool() bool                 { return false }
func (n Null) Property(name string) Value { return lookupProperty(n, name) }
func (Null) isValue()                     {}

// --- String ---

type String string

func (s String) Kind() Kind       { return KindString }
func (s String) AsString() string { return string(s) }

func (s String) AsNumber() (float64, bool) {
	t := strings.TrimSpace(string(s))
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func (s String) AsBool() bool {
	if b, ok := ParseBoolWord(string(s)); ok {
		return b
	}
	return s != ""
}

func (s String) Property(name string) Value { return lookupProperty(s, name) }
func (String) isValue()                     {}

// --- Number ---

// Number carries an integral/floating kind tag in addition to its value.
type Number struct {
	i        int64
	f        float64
	integral bool
}

// Int builds an integral Number.
func Int(i int64) Number { return Number{i: i, f: float64(i), integral: true} }

// Float builds a floating Number, even when the value has no fraction.
func Float(f float64) Number { return Number{i: int64(f), f: f} }

// IsIntegral reports the kind tag, not whether the value has a fraction.
func (n Number) IsIntegral() bool { return n.integral }

// Int64 returns the value truncated to an integer.
func (n Number) Int64() int64 {
	if n.integral {
		return n.i
	}
	return int64(n.f)
}

// Float64 returns the value as a float.
func (n Number) Float64() float64 { return n.f }

func (n Number) Kind() Kind { return KindNumber }

func (n Number) AsString() string {
	if n.integral {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64)
}

func (n Number) AsNumber() (float64, bool)  { return n.f, true }
func (n Number) AsBool() bool               { return n.f != 0 }
func (n Number) Property(name string) Value { return lookupProperty(n, name) }
func (Number) isValue()                     {}

// --- Bool ---

type Bool bool

func (b Bool) Kind() Kind { return KindBool }

func (b Bool) AsString() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Bool) AsNumber() (float64, bool)  { return 0, false }
func (b Bool) AsBool() bool               { return bool(b) }
func (b Bool) Property(name string) Value { return lookupProperty(b, name) }
func (Bool) isValue()                     {}

// --- List ---

type List []Value

func (l List) Kind() Kind { return KindList }

func (l List) AsString() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = stringOf(v)
	}
	return strings.Join(parts, ", ")
}

func (l List) AsNumber() (float64, bool)  { return 0, false }
func (l List) AsBool() bool               { return len(l) > 0 }
func (l List) Property(name string) Value { return lookupProperty(l, name) }
func (List) isValue()                     {}

// --- Dict ---

type Dict map[string]Value

func (d Dict) Kind() Kind { return KindDict }

// AsString renders a debug form with sorted keys: {a: 1, b: x}.
func (d Dict) AsString() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(stringOf(d[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (d Dict) AsNumber() (float64, bool)  { return 0, false }
func (d Dict) AsBool() bool               { return len(d) > 0 }
func (d Dict) Property(name string) Value { return lookupProperty(d, name) }
func (Dict) isValue()                     {}

// Keys returns the dictionary keys in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- helpers ---

// stringOf tolerates nil elements inside collections.
func stringOf(v Value) string {
	if v == nil {
		return ""
	}
	return v.AsString()
}

// OrNull maps a nil Value to Null.
func OrNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	return v == nil || v.Kind() == KindNull
}

var (
	trueWords  = map[string]bool{"true": true, "yes": true, "on": true, "1": true}
	falseWords = map[string]bool{"false": true, "no": true, "off": true, "0": true}
)

// ParseBoolWord normalizes the boolean words true/yes/on/1 and
// false/no/off/0 (case-insensitive). ok is false for any other text.
func ParseBoolWord(s string) (b bool, ok bool) {
	w := strings.ToLower(strings.TrimSpace(s))
	switch {
	case trueWords[w]:
		return true, true
	case falseWords[w]:
		return false, true
	default:
		return false, false
	}
}
