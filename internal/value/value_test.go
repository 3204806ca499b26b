package value

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, ""},
		{"integral number", Int(3), "3"},
		{"floating with fraction", Float(2.5), "2.5"},
		{"floating integral value drops fraction", Float(3.0), "3"},
		{"bool", Bool(true), "true"},
		{"list joins with comma", List{String("a"), Int(1), Bool(false)}, "a, 1, false"},
		{"dict sorted debug form", Dict{"b": String("x"), "a": Int(1)}, "{a: 1, b: x}"},
		{"point", Point{X: 1, Y: 2.5}, "(1, 2.5)"},
		{"time", Time{Hour: 9, Minute: 5, Second: 0}, "09:05:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.AsString())
		})
	}
}

func TestAsNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     Value
		want   float64
		wantOK bool
	}{
		{"number", Int(7), 7, true},
		{"numeric string", String(" 4.5 "), 4.5, true},
		{"empty string", String(""), 0, false},
		{"word string", String("abc"), 0, false},
		{"null", Null{}, 0, false},
		{"bool", Bool(true), 0, false},
		{"list is not numeric", List{Int(1), Int(2)}, 0, false},
		{"dict is not numeric", Dict{"a": Int(1)}, 0, false},
		{"region", Region{Width: 1, Height: 1}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.AsNumber()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsBool(t *testing.T) {
	assert.True(t, String("yes").AsBool())
	assert.False(t, String("off").AsBool())
	assert.True(t, String("anything").AsBool())
	assert.False(t, String("").AsBool())
	assert.False(t, Int(0).AsBool())
	assert.True(t, Float(0.1).AsBool())
	assert.False(t, List{}.AsBool())
	assert.False(t, Null{}.AsBool())
}

func TestParseBoolWord(t *testing.T) {
	for _, w := range []string{"true", "YES", " on ", "1"} {
		b, ok := ParseBoolWord(w)
		assert.True(t, ok, w)
		assert.True(t, b, w)
	}
	for _, w := range []string{"false", "No", "OFF", "0"} {
		b, ok := ParseBoolWord(w)
		assert.True(t, ok, w)
		assert.False(t, b, w)
	}
	_, ok := ParseBoolWord("maybe")
	assert.False(t, ok)
}

func TestProperty(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 50}
	date := Date{T: time.Date(2024, time.March, 5, 14, 30, 15, 0, time.UTC)}

	tests := []struct {
		name string
		host Value
		prop string
		want Value
	}{
		{"region center is computed", region, "center", Point{X: 60, Y: 45}},
		{"region localized alias", region, "宽度", Float(100)},
		{"region case-insensitive", region, "Width", Float(100)},
		{"region right edge", region, "right", Float(110)},
		{"point coordinate", Point{X: 3, Y: 4}, "y", Float(4)},
		{"image dimension", Image{Handle: "/tmp/a.png", Width: 640, Height: 480}, "width", Int(640)},
		{"ui element center", UIElement{Frame: region}, "center", Point{X: 60, Y: 45}},
		{"ui element title alias", UIElement{Title: "OK"}, "name", String("OK")},
		{"date year", date, "year", Int(2024)},
		{"date time", date, "time", Time{Hour: 14, Minute: 30, Second: 15}},
		{"string length counts runes", String("héllo"), "length", Int(5)},
		{"string number", String("42"), "number", Int(42)},
		{"list count", List{Int(1), Int(2)}, "count", Int(2)},
		{"list index", List{String("a"), String("b")}, "1", String("b")},
		{"list negative index", List{String("a"), String("b")}, "-1", String("b")},
		{"list index out of range", List{String("a")}, "5", Null{}},
		{"list last", List{Int(1), Int(9)}, "last", Int(9)},
		{"empty list first", List{}, "first", Null{}},
		{"dict key wins over table", Dict{"count": String("mine")}, "count", String("mine")},
		{"dict count", Dict{"a": Int(1)}, "count", Int(1)},
		{"dict nil entry", Dict{"a": nil}, "a", Null{}},
		{"kind of any value", Int(1), "kind", String("number")},
		{"event type", Event{Type: "click"}, "type", String("click")},
		{"event falls through to payload", Event{Payload: Dict{"x": Int(5)}}, "x", Int(5)},
		{"unknown property yields null", region, "colour", Null{}},
		{"property of null", Null{}, "anything", Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.host.Property(tt.prop))
		})
	}
}

func TestPropertyTablesAreShared(t *testing.T) {
	a := Region{Width: 2, Height: 2}
	b := Region{Width: 8, Height: 4}
	assert.Equal(t, Float(4), a.Property("area"))
	assert.Equal(t, Float(32), b.Property("area"))
	assert.True(t, HasProperty(a, "CENTER"))
	assert.False(t, HasProperty(a, "nope"))
	assert.True(t, HasProperty(List{Int(1)}, "0"))
	assert.False(t, HasProperty(nil, "x"))
}

func TestFromAny(t *testing.T) {
	got := FromAny(map[string]any{
		"n":    json.Number("3"),
		"f":    json.Number("3.0"),
		"list": []any{"a", true, nil},
		"int":  42,
	})
	d, ok := got.(Dict)
	require.True(t, ok)
	assert.Equal(t, Int(3), d["n"])
	assert.Equal(t, Float(3), d["f"])
	assert.False(t, d["f"].(Number).IsIntegral())
	assert.Equal(t, List{String("a"), Bool(true), Null{}}, d["list"])
	assert.Equal(t, Int(42), d["int"])

	img := Image{Handle: "cap-1"}
	assert.Equal(t, img, FromAny(img))
	assert.Equal(t, Null{}, FromAny(nil))
	assert.Equal(t, List{Int(1), Int(2)}, FromAny([]int{1, 2}))
}

func TestToAny(t *testing.T) {
	v := Dict{
		"n":    Int(2),
		"f":    Float(1.5),
		"list": List{String("x"), Null{}},
		"pt":   Point{X: 1, Y: 2},
	}
	assert.Equal(t, map[string]any{
		"n":    int64(2),
		"f":    1.5,
		"list": []any{"x", nil},
		"pt":   map[string]any{"x": 1.0, "y": 2.0},
	}, ToAny(v))
	assert.Equal(t, []any{float64(1), "a"}, ToJSONNumbers(List{Int(1), String("a")}))
}

func TestStrictEqual(t *testing.T) {
	assert.True(t, StrictEqual(Int(3), Int(3)))
	assert.False(t, StrictEqual(Int(3), Float(3)))
	assert.False(t, StrictEqual(String("3"), Int(3)))
	assert.True(t, StrictEqual(List{Int(1), String("a")}, List{Int(1), String("a")}))
	assert.False(t, StrictEqual(List{Int(1)}, List{Float(1)}))
	assert.True(t, StrictEqual(Dict{"a": Region{Width: 1}}, Dict{"a": Region{Width: 1}}))
	assert.True(t, StrictEqual(Null{}, Null{}))
	assert.True(t, StrictEqual(nil, nil))
	assert.False(t, StrictEqual(nil, Null{}))
}

func TestCodecPreservesVariants(t *testing.T) {
	ts := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	original := Dict{
		"int":   Int(3),
		"float": Float(3),
		"items": List{String("a"), Bool(true), Null{}},
		"img":   Image{Handle: "h", Width: 2, Height: 3, Format: "png"},
		"el":    UIElement{Role: "button", Frame: Region{X: 1, Y: 2, Width: 3, Height: 4}, Enabled: true},
		"ev":    Event{Type: "key", Timestamp: ts, Payload: Dict{"code": Int(13)}},
		"when":  Date{T: ts},
		"at":    Time{Hour: 1, Minute: 2, Second: 3},
	}
	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, StrictEqual(original, decoded))
}

func TestUnmarshalUnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind":"spaceship"}`))
	assert.Error(t, err)
}

func TestKindFromString(t *testing.T) {
	k, ok := KindFromString("region")
	assert.True(t, ok)
	assert.Equal(t, KindRegion, k)
	_, ok = KindFromString("bogus")
	assert.False(t, ok)
}
