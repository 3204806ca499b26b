package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// mockAppender records appended events for assertions.
type mockAppender struct {
	mu     sync.Mutex
	events []*store.Event
}

func (m *mockAppender) AppendEvent(_ context.Context, event *store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockAppender) Events() []*store.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*store.Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func (m *mockAppender) Types() []string {
	var types []string
	for _, e := range m.Events() {
		types = append(types, e.Type)
	}
	return types
}

// failAppender always returns an error.
type failAppender struct{}

func (f *failAppender) AppendEvent(_ context.Context, _ *store.Event) error {
	return errors.New("store unavailable")
}

func TestRunFSM_ValidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		to    schema.RunStatus
		event string
	}{
		{"completed", schema.RunStatusCompleted, schema.EventRunCompleted},
		{"failed", schema.RunStatusFailed, schema.EventRunFailed},
		{"stopped", schema.RunStatusStopped, schema.EventRunStopped},
		{"returned", schema.RunStatusReturned, schema.EventRunReturned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &mockAppender{}
			fsm := NewRunFSM(app)
			ctx := context.Background()

			require.NoError(t, fsm.Transition(ctx, "run-1", "wf-1", schema.RunStatusPending, schema.RunStatusRunning))
			require.NoError(t, fsm.Transition(ctx, "run-1", "wf-1", schema.RunStatusRunning, tt.to))

			events := app.Events()
			require.Len(t, events, 2)
			assert.Equal(t, schema.EventRunStarted, events[0].Type)
			assert.Equal(t, tt.event, events[1].Type)
			assert.Equal(t, "run-1", events[1].RunID)
			assert.Equal(t, "wf-1", events[1].WorkflowID)
		})
	}
}

func TestRunFSM_InvalidTransition(t *testing.T) {
	tests := []struct {
		from, to schema.RunStatus
	}{
		{schema.RunStatusPending, schema.RunStatusCompleted},
		{schema.RunStatusPending, schema.RunStatusReturned},
		{schema.RunStatusCompleted, schema.RunStatusRunning},
		{schema.RunStatusFailed, schema.RunStatusCompleted},
		{schema.RunStatusStopped, schema.RunStatusRunning},
		{schema.RunStatus("bogus"), schema.RunStatusRunning},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			app := &mockAppender{}
			err := NewRunFSM(app).Transition(context.Background(), "run-1", "wf-1", tt.from, tt.to)
			require.Error(t, err)

			var fe *schema.FlowError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, schema.ErrCodeTransition, fe.Code)
			assert.Empty(t, app.Events(), "no event on rejected transition")
		})
	}
}

func TestRunFSM_TerminalStatesHaveNoExits(t *testing.T) {
	for status, allowed := range ValidRunTransitions {
		if status.IsTerminal() {
			assert.Empty(t, allowed, "terminal status %s", status)
		}
	}
}

func TestRunFSM_Hooks(t *testing.T) {
	fsm := NewRunFSM(&mockAppender{})
	var calls []string
	fsm.OnBefore(schema.RunStatusPending, schema.RunStatusRunning, func(from, to string) error {
		calls = append(calls, "before:"+from+"->"+to)
		return nil
	})
	fsm.OnAfter(schema.RunStatusPending, schema.RunStatusRunning, func(from, to string) error {
		calls = append(calls, "after:"+from+"->"+to)
		return nil
	})

	require.NoError(t, fsm.Transition(context.Background(), "r", "w", schema.RunStatusPending, schema.RunStatusRunning))
	assert.Equal(t, []string{"before:pending->running", "after:pending->running"}, calls)
}

func TestRunFSM_BeforeHookAborts(t *testing.T) {
	app := &mockAppender{}
	fsm := NewRunFSM(app)
	fsm.OnBefore(schema.RunStatusPending, schema.RunStatusRunning, func(string, string) error {
		return errors.New("vetoed")
	})

	err := fsm.Transition(context.Background(), "r", "w", schema.RunStatusPending, schema.RunStatusRunning)
	require.EqualError(t, err, "vetoed")
	assert.Empty(t, app.Events())
}

func TestRunFSM_AppenderFailure(t *testing.T) {
	err := NewRunFSM(&failAppender{}).Transition(context.Background(), "r", "w",
		schema.RunStatusPending, schema.RunStatusRunning)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStore, schema.CodeOf(err))
}

func TestRunFSM_NilAppender(t *testing.T) {
	fsm := NewRunFSM(nil)
	require.NoError(t, fsm.Transition(context.Background(), "r", "w", schema.RunStatusPending, schema.RunStatusRunning))
}
