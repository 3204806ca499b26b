package streaming

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultChannelBuffer = 64

// ErrSessionClosed is returned by Session.Next once the session or the hub
// has been closed. Waiting on a closed session never blocks.
var ErrSessionClosed = errors.New("listener session closed")

// ErrHubClosed is returned by Subscribe and OpenSession after Close.
var ErrHubClosed = errors.New("event hub closed")

// subscriber holds a channel and filter for a single subscriber.
type subscriber struct {
	ch     chan StreamEvent
	filter EventFilter
}

// MemoryHub is an in-memory EventHub implementation using channels.
type MemoryHub struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscriber
	sessions map[string]*Session
	closed   bool
	seq      atomic.Uint64
}

// NewMemoryHub creates a new MemoryHub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		subs:     make(map[uint64]*subscriber),
		sessions: make(map[string]*Session),
	}
}

// Publish sends an event to all matching subscribers.
// Non-blocking: if a subscriber's channel is full the event is dropped.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !matchFilter(sub.filter, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// backpressure: drop event for slow subscriber
		}
	}
	return nil
}

// Subscribe creates a new subscription filtered by the given EventFilter.
// Returns a receive-only channel, a cancel function, and any error. The
// channel is closed by cancel or by Close.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.seq.Add(1)
	ch := make(chan StreamEvent, defaultChannelBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrHubClosed
	}
	h.subs[id] = &subscriber{ch: ch, filter: filter}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}

	return ch, cancel, nil
}

// OpenSession subscribes a listener session to events matching filter.
func (h *MemoryHub) OpenSession(ctx context.Context, filter EventFilter) (*Session, error) {
	ch, cancel, err := h.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	sess := &Session{
		ID:     id,
		events: ch,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sess.onClose = func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
	}

	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()
	return sess, nil
}

// Session returns an open session by id.
func (h *MemoryHub) Session(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// CloseSession closes a session by id. It reports whether the session was open.
func (h *MemoryHub) CloseSession(id string) bool {
	s, ok := h.Session(id)
	if !ok {
		return false
	}
	s.Close()
	return true
}

// SessionCount returns the number of open sessions.
func (h *MemoryHub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close ends every subscription and session. Pending Session.Next calls
// return ErrSessionClosed.
func (h *MemoryHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// matchFilter returns true if the event passes the filter criteria.
func matchFilter(f EventFilter, e StreamEvent) bool {
	if f.RunID != "" && f.RunID != e.RunID {
		return false
	}
	if f.WorkflowID != "" && f.WorkflowID != e.WorkflowID {
		return false
	}
	if f.Topic != "" && f.Topic != e.Topic {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.EventType) {
		return false
	}
	return true
}

var _ SessionHub = (*MemoryHub)(nil)
