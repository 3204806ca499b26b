package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// FromAny converts decoded JSON/YAML data and common Go primitives into a
// Value. A nil input yields Null.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i)
		}
		if f, err := val.Float64(); err == nil {
			return Float(f)
		}
		return String(val.String())
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint:
		return Int(int64(val))
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint64:
		if val > math.MaxInt64 {
			return Float(float64(val))
		}
		return Int(int64(val))
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case time.Time:
		return Date{T: val}
	case time.Duration:
		return Float(val.Seconds())
	case []Value:
		return List(val)
	case map[string]Value:
		return Dict(val)
	case []any:
		out := make(List, len(val))
		for i, item := range val {
			out[i] = FromAny(item)
		}
		return out
	case []string:
		out := make(List, len(val))
		for i, item := range val {
			out[i] = String(item)
		}
		return out
	case map[string]any:
		out := make(Dict, len(val))
		for k, item := range val {
			out[k] = FromAny(item)
		}
		return out
	case map[string]string:
		out := make(Dict, len(val))
		for k, item := range val {
			out[k] = String(item)
		}
		return out
	case fmt.Stringer:
		return String(val.String())
	}
	return fromReflect(reflect.ValueOf(v))
}

// fromReflect handles slices and string-keyed maps of arbitrary element types.
func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = FromAny(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(Dict, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = FromAny(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}
		}
		return FromAny(rv.Elem().Interface())
	}
	return String(fmt.Sprint(rv.Interface()))
}

// ToAny converts a Value into JSON-compatible Go data (nil, string, bool,
// int64, float64, []any, map[string]any). Domain variants become maps of
// their fields so expression engines can address them.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Number:
		if val.IsIntegral() {
			return val.Int64()
		}
		return val.Float64()
	case List:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ToAny(item)
		}
		return out
	case Dict:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ToAny(item)
		}
		return out
	case Point:
		return map[string]any{"x": val.X, "y": val.Y}
	case Region:
		return map[string]any{"x": val.X, "y": val.Y, "width": val.Width, "height": val.Height}
	case Image:
		return map[string]any{"handle": val.Handle, "width": val.Width, "height": val.Height, "format": val.Format}
	case UIElement:
		return map[string]any{
			"role":       val.Role,
			"title":      val.Title,
			"value":      val.Value,
			"identifier": val.Identifier,
			"frame":      ToAny(val.Frame),
			"enabled":    val.Enabled,
			"focused":    val.Focused,
		}
	case Event:
		return map[string]any{
			"type":      val.Type,
			"source":    val.Source,
			"timestamp": val.Timestamp.Format(time.RFC3339Nano),
			"payload":   ToAny(val.Payload),
		}
	case Notification:
		return map[string]any{
			"title":     val.Title,
			"body":      val.Body,
			"app":       val.App,
			"delivered": val.Delivered.Format(time.RFC3339Nano),
		}
	case Date:
		return val.T.Format(time.RFC3339Nano)
	case Time:
		return val.AsString()
	}
	return v.AsString()
}

// ToJSONNumbers is ToAny with every number widened to float64, the shape
// produced by encoding/json and expected by gojq.
func ToJSONNumbers(v Value) any {
	return widen(ToAny(v))
}

func widen(v any) any {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case []any:
		for i := range val {
			val[i] = widen(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = widen(val[k])
		}
		return val
	}
	return v
}

// StrictEqual reports whether a and b are the same variant holding the same
// value. Numbers must also share the integral/floating tag.
func StrictEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Number:
		bv := b.(Number)
		if av.IsIntegral() != bv.IsIntegral() {
			return false
		}
		if av.IsIntegral() {
			return av.Int64() == bv.Int64()
		}
		return av.Float64() == bv.Float64()
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !StrictEqual(OrNull(av[i]), OrNull(bv[i])) {
				return false
			}
		}
		return true
	case Dict:
		bv := b.(Dict)
		if len(av) != len(bv) {
			return false
		}
		for k, item := range av {
			other, ok := bv[k]
			if !ok || !StrictEqual(OrNull(item), OrNull(other)) {
				return false
			}
		}
		return true
	case Event:
		bv := b.(Event)
		return av.Type == bv.Type && av.Source == bv.Source && av.Timestamp.Equal(bv.Timestamp) &&
			StrictEqual(OrNull(av.Payload), OrNull(bv.Payload))
	case Notification:
		bv := b.(Notification)
		return av.Title == bv.Title && av.Body == bv.Body && av.App == bv.App && av.Delivered.Equal(bv.Delivered)
	case Date:
		return av.T.Equal(b.(Date).T)
	}
	// Remaining variants are comparable structs or scalars.
	return a == b
}

// SortedKeys is a convenience for iterating a Go map deterministically.
func SortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseNumber parses text as a Number, keeping integer text integral.
func ParseNumber(s string) (Number, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), true
	}
	f, ok := String(s).AsNumber()
	if !ok {
		return Number{}, false
	}
	return Float(f), true
}
