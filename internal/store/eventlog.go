package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// StepStatus is the replayed state of one step within a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepTrace is the reconstructed history of one step. A step inside a loop
// executes many times; Executions counts them and the remaining fields
// describe the latest one.
type StepTrace struct {
	StepID      string          `json:"step_id"`
	Status      StepStatus      `json:"status"`
	Executions  int             `json:"executions"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMs  int64           `json:"duration_ms,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// RunTrace is the state of a run reconstructed from its event log.
type RunTrace struct {
	RunID  string                `json:"run_id"`
	Status schema.RunStatus      `json:"status"`
	Steps  map[string]*StepTrace `json:"steps"`
	Order  []string              `json:"order"`
	Events int                   `json:"events"`
}

// EventLog provides event-sourcing operations on top of a LibSQLStore.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide event-sourcing operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-run sequence.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	if event.RunID == "" {
		return schema.NewError(schema.ErrCodeValidation, "event run id is empty")
	}
	return el.store.AppendEvent(ctx, event)
}

// GetEvents returns events for a run with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, runID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, runID, since)
}

// GetEventsByType returns events of a specific type matching the filter.
func (el *EventLog) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	return el.store.GetEventsByType(ctx, eventType, filter)
}

// ReplayRun replays all events of a run and returns the reconstructed trace.
// Returns an error if sequence gaps are detected.
func (el *EventLog) ReplayRun(ctx context.Context, runID string) (*RunTrace, error) {
	events, err := el.store.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	trace := &RunTrace{
		RunID:  runID,
		Status: schema.RunStatusPending,
		Steps:  make(map[string]*StepTrace),
		Events: len(events),
	}

	// Validate sequence contiguity.
	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", runID, expected, e.Sequence)
		}
	}

	for _, e := range events {
		switch e.Type {
		case schema.EventRunStarted:
			trace.Status = schema.RunStatusRunning
			continue
		case schema.EventRunCompleted:
			trace.Status = schema.RunStatusCompleted
			continue
		case schema.EventRunFailed:
			trace.Status = schema.RunStatusFailed
			continue
		case schema.EventRunStopped:
			trace.Status = schema.RunStatusStopped
			continue
		case schema.EventRunReturned:
			trace.Status = schema.RunStatusReturned
			continue
		}

		if e.StepID == "" {
			continue
		}
		st, ok := trace.Steps[e.StepID]
		if !ok {
			st = &StepTrace{StepID: e.StepID, Status: StepStatusPending}
			trace.Steps[e.StepID] = st
			trace.Order = append(trace.Order, e.StepID)
		}

		switch e.Type {
		case schema.EventStepStarted:
			st.Status = StepStatusRunning
			st.Executions++
			ts := e.Timestamp
			st.StartedAt = &ts
			st.CompletedAt = nil

		case schema.EventStepCompleted:
			st.Status = StepStatusCompleted
			ts := e.Timestamp
			st.CompletedAt = &ts
			st.Output = e.Payload
			if st.StartedAt != nil {
				st.DurationMs = ts.Sub(*st.StartedAt).Milliseconds()
			}

		case schema.EventStepFailed:
			st.Status = StepStatusFailed
			st.Error = e.Payload

		case schema.EventStepSkipped:
			st.Status = StepStatusSkipped
		}
	}

	return trace, nil
}
