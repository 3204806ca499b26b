package value

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// extractor computes one property from a host value of a fixed kind.
type extractor func(Value) Value

// propertyTable maps property names and aliases to extractors. One table is
// built per kind and shared by every instance of that kind.
type propertyTable map[string]extractor

func (t propertyTable) add(fn extractor, names ...string) {
	for _, n := range names {
		t[normalizeName(n)] = fn
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var tables = buildTables()

func buildTables() map[Kind]propertyTable {
	t := map[Kind]propertyTable{
		KindNull:         {},
		KindString:       stringProperties(),
		KindNumber:       numberProperties(),
		KindBool:         boolProperties(),
		KindList:         listProperties(),
		KindDict:         dictProperties(),
		KindPoint:        pointProperties(),
		KindRegion:       regionProperties(),
		KindImage:        imageProperties(),
		KindUIElement:    uiElementProperties(),
		KindEvent:        eventProperties(),
		KindNotification: notificationProperties(),
		KindDate:         dateProperties(),
		KindTime:         timeProperties(),
	}
	kindOf := func(v Value) Value { return String(v.Kind().String()) }
	for _, table := range t {
		table.add(kindOf, "kind")
		if _, ok := table["type"]; !ok {
			table.add(kindOf, "type")
		}
	}
	return t
}

// lookupProperty resolves name against v. It never panics; unknown names
// yield Null.
func lookupProperty(v Value, name string) Value {
	if v == nil {
		return Null{}
	}
	switch val := v.(type) {
	case Dict:
		if item, ok := val[name]; ok {
			return OrNull(item)
		}
	case List:
		if idx, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
			if idx < 0 {
				idx += len(val)
			}
			if idx < 0 || idx >= len(val) {
				return Null{}
			}
			return OrNull(val[idx])
		}
	}
	if fn, ok := tables[v.Kind()][normalizeName(name)]; ok {
		return OrNull(fn(v))
	}
	// Unknown event properties fall through to the payload.
	if ev, ok := v.(Event); ok && ev.Payload != nil {
		return ev.Payload.Property(name)
	}
	return Null{}
}

// HasProperty reports whether name is a known property or key of v.
func HasProperty(v Value, name string) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case Dict:
		if _, ok := val[name]; ok {
			return true
		}
	case List:
		if idx, err := strconv.Atoi(name); err == nil {
			if idx < 0 {
				idx += len(val)
			}
			return idx >= 0 && idx < len(val)
		}
	}
	_, ok := tables[v.Kind()][normalizeName(name)]
	return ok
}

func stringProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(int64(utf8.RuneCountInString(v.AsString()))) }, "length", "count", "长度")
	t.add(func(v Value) Value { return String(strings.ToUpper(v.AsString())) }, "uppercase", "upper")
	t.add(func(v Value) Value { return String(strings.ToLower(v.AsString())) }, "lowercase", "lower")
	t.add(func(v Value) Value { return String(strings.TrimSpace(v.AsString())) }, "trimmed", "trim")
	t.add(func(v Value) Value { return splitToList(strings.Split(v.AsString(), "\n")) }, "lines")
	t.add(func(v Value) Value { return splitToList(strings.Fields(v.AsString())) }, "words")
	t.add(func(v Value) Value {
		if f, ok := v.AsNumber(); ok {
			return numberFromFloat(f)
		}
		return Null{}
	}, "number", "数字")
	return t
}

func numberProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(v.(Number).Int64()) }, "integer", "int")
	t.add(func(v Value) Value { return Int(int64(math.Round(v.(Number).Float64()))) }, "rounded", "round")
	t.add(func(v Value) Value {
		n := v.(Number)
		if n.IsIntegral() {
			if n.Int64() < 0 {
				return Int(-n.Int64())
			}
			return n
		}
		return Float(math.Abs(n.Float64()))
	}, "abs", "absolute")
	t.add(func(v Value) Value { return Bool(v.(Number).IsIntegral()) }, "is_integer")
	return t
}

func boolProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Bool(!v.AsBool()) }, "not", "negated")
	return t
}

func listProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(int64(len(v.(List)))) }, "count", "length", "数量")
	t.add(func(v Value) Value {
		l := v.(List)
		if len(l) == 0 {
			return Null{}
		}
		return l[0]
	}, "first", "第一个")
	t.add(func(v Value) Value {
		l := v.(List)
		if len(l) == 0 {
			return Null{}
		}
		return l[len(l)-1]
	}, "last", "最后一个")
	t.add(func(v Value) Value {
		l := v.(List)
		out := make(List, len(l))
		for i, item := range l {
			out[len(l)-1-i] = item
		}
		return out
	}, "reversed")
	return t
}

func dictProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(int64(len(v.(Dict)))) }, "count", "length")
	t.add(func(v Value) Value {
		keys := v.(Dict).Keys()
		out := make(List, len(keys))
		for i, k := range keys {
			out[i] = String(k)
		}
		return out
	}, "keys")
	t.add(func(v Value) Value {
		d := v.(Dict)
		keys := d.Keys()
		out := make(List, len(keys))
		for i, k := range keys {
			out[i] = OrNull(d[k])
		}
		return out
	}, "values")
	return t
}

func pointProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Float(v.(Point).X) }, "x")
	t.add(func(v Value) Value { return Float(v.(Point).Y) }, "y")
	return t
}

func regionProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Float(v.(Region).X) }, "x", "left", "左")
	t.add(func(v Value) Value { return Float(v.(Region).Y) }, "y", "top", "上")
	t.add(func(v Value) Value { return Float(v.(Region).Width) }, "width", "w", "宽度")
	t.add(func(v Value) Value { return Float(v.(Region).Height) }, "height", "h", "高度")
	t.add(func(v Value) Value { r := v.(Region); return Float(r.X + r.Width) }, "right", "右")
	t.add(func(v Value) Value { r := v.(Region); return Float(r.Y + r.Height) }, "bottom", "下")
	t.add(func(v Value) Value { return v.(Region).Center() }, "center", "centre", "中心")
	t.add(func(v Value) Value { r := v.(Region); return Point{X: r.X, Y: r.Y} }, "origin", "top_left")
	t.add(func(v Value) Value { r := v.(Region); return Point{X: r.X + r.Width, Y: r.Y + r.Height} }, "bottom_right")
	t.add(func(v Value) Value { r := v.(Region); return Float(r.Width * r.Height) }, "area", "面积")
	return t
}

func imageProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return String(v.(Image).Handle) }, "handle", "path")
	t.add(func(v Value) Value { return Int(int64(v.(Image).Width)) }, "width", "宽度")
	t.add(func(v Value) Value { return Int(int64(v.(Image).Height)) }, "height", "高度")
	t.add(func(v Value) Value { return String(v.(Image).Format) }, "format")
	return t
}

func uiElementProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return String(v.(UIElement).Role) }, "role")
	t.add(func(v Value) Value { return String(v.(UIElement).Title) }, "title", "name", "标题")
	t.add(func(v Value) Value { return String(v.(UIElement).Value) }, "value", "值")
	t.add(func(v Value) Value { return String(v.(UIElement).Identifier) }, "identifier", "id")
	t.add(func(v Value) Value { return v.(UIElement).Frame }, "frame", "bounds")
	t.add(func(v Value) Value { return v.(UIElement).Frame.Center() }, "center", "centre", "中心")
	t.add(func(v Value) Value { return Bool(v.(UIElement).Enabled) }, "enabled")
	t.add(func(v Value) Value { return Bool(v.(UIElement).Focused) }, "focused")
	return t
}

func eventProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return String(v.(Event).Type) }, "type", "name")
	t.add(func(v Value) Value { return String(v.(Event).Source) }, "source")
	t.add(func(v Value) Value { return Date{T: v.(Event).Timestamp} }, "timestamp", "date")
	t.add(func(v Value) Value { return OrNull(v.(Event).Payload) }, "payload", "data")
	return t
}

func notificationProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return String(v.(Notification).Title) }, "title", "标题")
	t.add(func(v Value) Value { return String(v.(Notification).Body) }, "body", "message", "内容")
	t.add(func(v Value) Value { return String(v.(Notification).App) }, "app", "application")
	t.add(func(v Value) Value { return Date{T: v.(Notification).Delivered} }, "date", "delivered")
	return t
}

func dateProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Year())) }, "year", "年")
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Month())) }, "month", "月")
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Day())) }, "day", "日")
	t.add(func(v Value) Value { return String(v.(Date).T.Weekday().String()) }, "weekday")
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Hour())) }, "hour")
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Minute())) }, "minute")
	t.add(func(v Value) Value { return Int(int64(v.(Date).T.Second())) }, "second")
	t.add(func(v Value) Value { return Int(v.(Date).T.Unix()) }, "timestamp", "unix")
	t.add(func(v Value) Value { return String(v.(Date).T.Format("2006-01-02")) }, "date")
	t.add(func(v Value) Value { return TimeOf(v.(Date).T) }, "time")
	return t
}

func timeProperties() propertyTable {
	t := propertyTable{}
	t.add(func(v Value) Value { return Int(int64(v.(Time).Hour)) }, "hour")
	t.add(func(v Value) Value { return Int(int64(v.(Time).Minute)) }, "minute")
	t.add(func(v Value) Value { return Int(int64(v.(Time).Second)) }, "second")
	t.add(func(v Value) Value { return Int(int64(v.(Time).Seconds())) }, "seconds")
	return t
}

func splitToList(parts []string) List {
	out := make(List, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return out
}

// numberFromFloat keeps integral text ("3") integral.
func numberFromFloat(f float64) Number {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}
