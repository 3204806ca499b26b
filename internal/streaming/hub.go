package streaming

import "context"

// StreamEvent is a real-time event emitted during a run or by an external
// event source. Topic is set on external events only.
type StreamEvent struct {
	RunID      string `json:"run_id,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
	StepID     string `json:"step_id,omitempty"`
	EventType  string `json:"event_type"`
	Topic      string `json:"topic,omitempty"`
	Source     string `json:"source,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time workflow events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}

// SessionHub is an EventHub that also serves listener sessions.
type SessionHub interface {
	EventHub
	OpenSession(ctx context.Context, filter EventFilter) (*Session, error)
	Session(id string) (*Session, bool)
	CloseSession(id string) bool
}
