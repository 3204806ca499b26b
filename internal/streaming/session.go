package streaming

import (
	"context"
	"sync"
	"time"
)

// Session is a listener's subscription to a stream of events. Events
// published before the session opened are not delivered.
type Session struct {
	ID string

	events  <-chan StreamEvent
	cancel  func()
	onClose func()
	done    chan struct{}
	once    sync.Once
}

// Next waits for the next event. It returns ErrSessionClosed when the
// session was closed (even with events still buffered), context.DeadlineExceeded
// when timeout elapses first, or the context's error. A timeout <= 0 waits
// without limit.
func (s *Session) Next(ctx context.Context, timeout time.Duration) (StreamEvent, error) {
	select {
	case <-s.done:
		return StreamEvent{}, ErrSessionClosed
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-s.done:
		return StreamEvent{}, ErrSessionClosed
	case ev, ok := <-s.events:
		if !ok {
			return StreamEvent{}, ErrSessionClosed
		}
		return ev, nil
	case <-expired:
		return StreamEvent{}, context.DeadlineExceeded
	case <-ctx.Done():
		return StreamEvent{}, ctx.Err()
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
