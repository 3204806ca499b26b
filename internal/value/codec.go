package value

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the tagged persistence form of a Value. Unlike ToAny it keeps
// the concrete variant (and the integral tag of numbers) across a round trip.
type envelope struct {
	Kind     string              `json:"kind"`
	Integral bool                `json:"integral,omitempty"`
	Data     json.RawMessage     `json:"data,omitempty"`
	Items    []envelope          `json:"items,omitempty"`
	Entries  map[string]envelope `json:"entries,omitempty"`
}

type eventData struct {
	Type      string    `json:"type"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   *envelope `json:"payload,omitempty"`
}

// Marshal encodes v in the tagged persistence form.
func Marshal(v Value) ([]byte, error) {
	env, err := toEnvelope(OrNull(v))
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return fromEnvelope(env)
}

func toEnvelope(v Value) (envelope, error) {
	env := envelope{Kind: v.Kind().String()}
	var payload any
	switch val := v.(type) {
	case Null:
		return env, nil
	case String:
		payload = string(val)
	case Bool:
		payload = bool(val)
	case Number:
		env.Integral = val.IsIntegral()
		if val.IsIntegral() {
			payload = val.Int64()
		} else {
			payload = val.Float64()
		}
	case List:
		env.Items = make([]envelope, len(val))
		for i, item := range val {
			child, err := toEnvelope(OrNull(item))
			if err != nil {
				return env, err
			}
			env.Items[i] = child
		}
		return env, nil
	case Dict:
		env.Entries = make(map[string]envelope, len(val))
		for k, item := range val {
			child, err := toEnvelope(OrNull(item))
			if err != nil {
				return env, err
			}
			env.Entries[k] = child
		}
		return env, nil
	case Event:
		ed := eventData{Type: val.Type, Source: val.Source, Timestamp: val.Timestamp}
		if val.Payload != nil {
			child, err := toEnvelope(val.Payload)
			if err != nil {
				return env, err
			}
			ed.Payload = &child
		}
		payload = ed
	case Date:
		payload = val.T
	default:
		// Point, Region, Image, UIElement, Notification and Time encode as
		// their exported fields.
		payload = val
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode %s value: %w", env.Kind, err)
	}
	env.Data = raw
	return env, nil
}

func fromEnvelope(env envelope) (Value, error) {
	kind, ok := KindFromString(env.Kind)
	if !ok {
		return nil, fmt.Errorf("decode value: unknown kind %q", env.Kind)
	}
	switch kind {
	case KindNull:
		return Null{}, nil
	case KindList:
		out := make(List, len(env.Items))
		for i, item := range env.Items {
			v, err := fromEnvelope(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindDict:
		out := make(Dict, len(env.Entries))
		for k, item := range env.Entries {
			v, err := fromEnvelope(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case KindNumber:
		if env.Integral {
			var i int64
			if err := json.Unmarshal(env.Data, &i); err != nil {
				return nil, fmt.Errorf("decode number: %w", err)
			}
			return Int(i), nil
		}
		var f float64
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("decode number: %w", err)
		}
		return Float(f), nil
	case KindEvent:
		var ed eventData
		if err := json.Unmarshal(env.Data, &ed); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		ev := Event{Type: ed.Type, Source: ed.Source, Timestamp: ed.Timestamp}
		if ed.Payload != nil {
			p, err := fromEnvelope(*ed.Payload)
			if err != nil {
				return nil, err
			}
			ev.Payload = p
		}
		return ev, nil
	case KindDate:
		var t time.Time
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return nil, fmt.Errorf("decode date: %w", err)
		}
		return Date{T: t}, nil
	}

	var target Value
	var err error
	switch kind {
	case KindString:
		var s string
		err = json.Unmarshal(env.Data, &s)
		target = String(s)
	case KindBool:
		var b bool
		err = json.Unmarshal(env.Data, &b)
		target = Bool(b)
	case KindPoint:
		var p Point
		err = json.Unmarshal(env.Data, &p)
		target = p
	case KindRegion:
		var r Region
		err = json.Unmarshal(env.Data, &r)
		target = r
	case KindImage:
		var img Image
		err = json.Unmarshal(env.Data, &img)
		target = img
	case KindUIElement:
		var el UIElement
		err = json.Unmarshal(env.Data, &el)
		target = el
	case KindNotification:
		var n Notification
		err = json.Unmarshal(env.Data, &n)
		target = n
	case KindTime:
		var t Time
		err = json.Unmarshal(env.Data, &t)
		target = t
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", env.Kind, err)
	}
	return target, nil
}
