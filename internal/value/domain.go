package value

import (
	"fmt"
	"strconv"
	"time"
)

// Point is a screen coordinate.
type Point struct {
	X, Y float64
}

func (p Point) Kind() Kind                 { return KindPoint }
func (p Point) AsString() string           { return "(" + formatFloat(p.X) + ", " + formatFloat(p.Y) + ")" }
func (p Point) AsNumber() (float64, bool)  { return 0, false }
func (p Point) AsBool() bool               { return true }
func (p Point) Property(name string) Value { return lookupProperty(p, name) }
func (Point) isValue()                     {}

// Region is a rectangular screen area anchored at its top-left corner.
type Region struct {
	X, Y, Width, Height float64
}

// Center is synthesized from the region's corners.
func (r Region) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Region) Kind() Kind { return KindRegion }

func (r Region) AsString() string {
	return fmt.Sprintf("{%s, %s, %s, %s}", formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Width), formatFloat(r.Height))
}

func (r Region) AsNumber() (float64, bool)  { return 0, false }
func (r Region) AsBool() bool               { return r.Width > 0 && r.Height > 0 }
func (r Region) Property(name string) Value { return lookupProperty(r, name) }
func (Region) isValue()                     {}

// Image is a handle to an image held by the host (a file path or an opaque
// capture id) with its pixel dimensions.
type Image struct {
	Handle string
	Width  int
	Height int
	Format string
}

func (i Image) Kind() Kind                 { return KindImage }
func (i Image) AsString() string           { return i.Handle }
func (i Image) AsNumber() (float64, bool)  { return 0, false }
func (i Image) AsBool() bool               { return i.Handle != "" }
func (i Image) Property(name string) Value { return lookupProperty(i, name) }
func (Image) isValue()                     {}

// UIElement is a snapshot of an accessibility element.
type UIElement struct {
	Role       string
	Title      string
	Value      string
	Identifier string
	Frame      Region
	Enabled    bool
	Focused    bool
}

func (e UIElement) Kind() Kind { return KindUIElement }

func (e UIElement) AsString() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Value != "":
		return e.Value
	default:
		return e.Role
	}
}

func (e UIElement) AsNumber() (float64, bool)  { return 0, false }
func (e UIElement) AsBool() bool               { return true }
func (e UIElement) Property(name string) Value { return lookupProperty(e, name) }
func (UIElement) isValue()                     {}

// Event is an occurrence delivered to a listener block.
type Event struct {
	Type      string
	Source    string
	Timestamp time.Time
	Payload   Value
}

func (e Event) Kind() Kind                 { return KindEvent }
func (e Event) AsString() string           { return e.Type }
func (e Event) AsNumber() (float64, bool)  { return 0, false }
func (e Event) AsBool() bool               { return true }
func (e Event) Property(name string) Value { return lookupProperty(e, name) }
func (Event) isValue()                     {}

// Notification is a delivered user notification.
type Notification struct {
	Title     string
	Body      string
	App       string
	Delivered time.Time
}

func (n Notification) Kind() Kind { return KindNotification }

func (n Notification) AsString() string {
	if n.Body == "" {
		return n.Title
	}
	if n.Title == "" {
		return n.Body
	}
	return n.Title + ": " + n.Body
}

func (n Notification) AsNumber() (float64, bool)  { return 0, false }
func (n Notification) AsBool() bool               { return true }
func (n Notification) Property(name string) Value { return lookupProperty(n, name) }
func (Notification) isValue()                     {}

// Date is an absolute instant.
type Date struct {
	T time.Time
}

func (d Date) Kind() Kind                 { return KindDate }
func (d Date) AsString() string           { return d.T.Format(time.RFC3339) }
func (d Date) AsNumber() (float64, bool)  { return 0, false }
func (d Date) AsBool() bool               { return !d.T.IsZero() }
func (d Date) Property(name string) Value { return lookupProperty(d, name) }
func (Date) isValue()                     {}

// Time is a wall-clock time of day.
type Time struct {
	Hour, Minute, Second int
}

// TimeOf extracts the time of day of t.
func TimeOf(t time.Time) Time {
	return Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Seconds returns the number of seconds since midnight.
func (t Time) Seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

func (t Time) Kind() Kind                 { return KindTime }
func (t Time) AsString() string           { return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second) }
func (t Time) AsNumber() (float64, bool)  { return 0, false }
func (t Time) AsBool() bool               { return true }
func (t Time) Property(name string) Value { return lookupProperty(t, name) }
func (Time) isValue()                     {}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
