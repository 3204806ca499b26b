package actions

import (
	"context"
	"errors"
	"time"

	"github.com/rendis/stepflow/internal/state"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// Names of the event actions.
const (
	ActionListen   = "event.listen"
	ActionEndEvent = "event.end"
	ActionEmit     = "event.emit"
)

// EventActions returns the listener block actions and event.emit.
func EventActions(hub streaming.SessionHub) []Action {
	return []Action{
		&listenAction{hub: hub},
		&blockEndAction{name: ActionEndEvent, pairing: schema.PairingEvent},
		&emitAction{hub: hub},
	}
}

// EventValue converts a hub event into the Event domain value.
func EventValue(ev streaming.StreamEvent, at time.Time) value.Event {
	typ := ev.Topic
	if typ == "" {
		typ = ev.EventType
	}
	return value.Event{
		Type:      typ,
		Source:    ev.Source,
		Timestamp: at,
		Payload:   value.FromAny(ev.Payload),
	}
}

// --- event.listen ---

// listenAction opens a listener session on first entry and then waits for
// one event per pass through the block. A closed session, an elapsed
// timeout or the max_events cap ends the block.
type listenAction struct {
	hub streaming.SessionHub
}

func (a *listenAction) Name() string                   { return ActionListen }
func (a *listenAction) Behavior() schema.BlockBehavior { return schema.StartOf(schema.PairingEvent) }
func (a *listenAction) Validate(map[string]any) error  { return nil }

func (a *listenAction) Schema() ActionSchema {
	return ActionSchema{Description: "Run the block body once per received event until the session ends."}
}

func (a *listenAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	if a.hub == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "event.listen: event hub not configured")
	}
	timeout, err := inv.Duration("timeout", 0)
	if err != nil {
		return nil, err
	}
	maxEvents, err := inv.Int("max_events", 0)
	if err != nil {
		return nil, err
	}

	frame, again := reentered[*state.SessionFrame](inv)
	var sess *streaming.Session
	if again {
		var open bool
		sess, open = a.hub.Session(frame.SessionID)
		if !open || (maxEvents > 0 && frame.Received >= maxEvents) {
			return a.finish(inv, frame)
		}
	} else {
		topic := inv.String("topic", "")
		sess, err = a.hub.OpenSession(ctx, streaming.EventFilter{
			Topic:      topic,
			EventTypes: []string{schema.EventExternal},
		})
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "event.listen: open session: %v", err).WithCause(err)
		}
		frame = &state.SessionFrame{StartIndex: inv.Index, SessionID: sess.ID}
		inv.State.PushFrame(frame)
		inv.Report("listening for events on " + describeTopic(topic))
	}

	ev, err := sess.Next(ctx, timeout)
	switch {
	case err == nil:
	case errors.Is(err, streaming.ErrSessionClosed), errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return a.finish(inv, frame)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "event.listen: %v", err).WithCause(err)
	}

	frame.Received++
	event := EventValue(ev, time.Now())
	inv.State.SetBookkeeping(inv.String("event_variable", "event"), event)
	return Success{Outputs: map[string]value.Value{
		"event":   event,
		"payload": event.Payload,
		"index":   value.Int(int64(frame.Received - 1)),
	}}, nil
}

func (a *listenAction) finish(inv *Invocation, frame *state.SessionFrame) (Result, error) {
	a.hub.CloseSession(frame.SessionID)
	return exitLoop(inv, true)
}

func describeTopic(topic string) string {
	if topic == "" {
		return "all topics"
	}
	return "topic " + topic
}

// --- event.emit ---

type emitAction struct {
	hub streaming.EventHub
}

func (a *emitAction) Name() string                   { return ActionEmit }
func (a *emitAction) Behavior() schema.BlockBehavior { return schema.NoBlock }

func (a *emitAction) Schema() ActionSchema {
	return ActionSchema{Description: "Publish an event that listener blocks can receive."}
}

func (a *emitAction) Validate(params map[string]any) error {
	if topic, _ := params["topic"].(string); topic == "" {
		return schema.NewError(schema.ErrCodeValidation, "event.emit: missing required param 'topic'")
	}
	return nil
}

func (a *emitAction) Execute(ctx context.Context, inv *Invocation) (Result, error) {
	topic, err := inv.RequireString("topic")
	if err != nil {
		return nil, err
	}
	if a.hub == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "event.emit: event hub not configured")
	}

	var payload any
	if v, ok := inv.Param("payload"); ok {
		payload = value.ToAny(v)
	}
	err = a.hub.Publish(ctx, streaming.StreamEvent{
		RunID:      inv.RunID,
		WorkflowID: inv.WorkflowID,
		StepID:     inv.stepID(),
		EventType:  schema.EventExternal,
		Topic:      topic,
		Source:     inv.String("source", inv.WorkflowID),
		Payload:    payload,
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "event.emit: publish failed: %v", err).WithCause(err)
	}
	return Success{Outputs: map[string]value.Value{"emitted": value.Bool(true)}}, nil
}
