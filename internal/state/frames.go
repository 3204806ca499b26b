package state

import "github.com/rendis/stepflow/internal/value"

// LoopFrame is the run-time state of one loop or listener block instance.
// Variants: *ForEachFrame, *CounterFrame, *SessionFrame.
type LoopFrame interface {
	// Start is the index of the block-start step that pushed the frame.
	Start() int
	// Describe exposes the frame to expressions as the "loop" variable.
	Describe() map[string]any
	isFrame()
}

// ForEachFrame iterates a fixed item sequence.
type ForEachFrame struct {
	StartIndex int
	Items      value.List
	Index      int
}

func (f *ForEachFrame) Start() int { return f.StartIndex }

func (f *ForEachFrame) Describe() map[string]any {
	d := map[string]any{"kind": "for_each", "index": int64(f.Index), "count": int64(len(f.Items))}
	if f.Index >= 0 && f.Index < len(f.Items) {
		d["item"] = value.ToAny(f.Items[f.Index])
	}
	return d
}

func (*ForEachFrame) isFrame() {}

// Current returns the item at the frame's index, or nil when exhausted.
func (f *ForEachFrame) Current() value.Value {
	if f.Index < 0 || f.Index >= len(f.Items) {
		return nil
	}
	return value.OrNull(f.Items[f.Index])
}

// CounterFrame counts passes through repeat and while blocks. A negative
// Limit means unbounded.
type CounterFrame struct {
	StartIndex int
	Index      int
	Limit      int
}

func (f *CounterFrame) Start() int { return f.StartIndex }

func (f *CounterFrame) Describe() map[string]any {
	return map[string]any{"kind": "counter", "index": int64(f.Index), "limit": int64(f.Limit)}
}

func (*CounterFrame) isFrame() {}

// SessionFrame tracks an open listener session of an event block.
type SessionFrame struct {
	StartIndex int
	SessionID  string
	Received   int
}

func (f *SessionFrame) Start() int { return f.StartIndex }

func (f *SessionFrame) Describe() map[string]any {
	return map[string]any{"kind": "session", "session_id": f.SessionID, "index": int64(f.Received)}
}

func (*SessionFrame) isFrame() {}

// PushFrame enters a loop instance.
func (s *ExecutionState) PushFrame(f LoopFrame) {
	s.loops = append(s.loops, f)
}

// TopFrame returns the innermost frame, or nil.
func (s *ExecutionState) TopFrame() LoopFrame {
	if len(s.loops) == 0 {
		return nil
	}
	return s.loops[len(s.loops)-1]
}

// FrameAt returns the innermost frame pushed by the step at startIndex.
func (s *ExecutionState) FrameAt(startIndex int) LoopFrame {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i].Start() == startIndex {
			return s.loops[i]
		}
	}
	return nil
}

// PopFrame removes and returns the innermost frame.
func (s *ExecutionState) PopFrame() LoopFrame {
	top := s.TopFrame()
	if top != nil {
		s.loops = s.loops[:len(s.loops)-1]
	}
	return top
}

// PopThrough pops frames down to and including the innermost one pushed by
// the step at startIndex and returns them innermost first. When no such
// frame exists the stack is left unchanged and nil is returned.
func (s *ExecutionState) PopThrough(startIndex int) []LoopFrame {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i].Start() != startIndex {
			continue
		}
		popped := make([]LoopFrame, 0, len(s.loops)-i)
		for j := len(s.loops) - 1; j >= i; j-- {
			popped = append(popped, s.loops[j])
		}
		s.loops = s.loops[:i]
		return popped
	}
	return nil
}

// PopAbove pops every frame above the innermost one pushed by the step at
// startIndex, leaving that frame on top, and returns them innermost first.
// When no such frame exists nothing is popped.
func (s *ExecutionState) PopAbove(startIndex int) []LoopFrame {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i].Start() != startIndex {
			continue
		}
		popped := make([]LoopFrame, 0, len(s.loops)-i-1)
		for j := len(s.loops) - 1; j > i; j-- {
			popped = append(popped, s.loops[j])
		}
		s.loops = s.loops[:i+1]
		return popped
	}
	return nil
}

// PopAll empties the loop stack, innermost first.
func (s *ExecutionState) PopAll() []LoopFrame {
	popped := make([]LoopFrame, 0, len(s.loops))
	for len(s.loops) > 0 {
		popped = append(popped, s.PopFrame())
	}
	return popped
}

// Depth returns the number of open loop frames.
func (s *ExecutionState) Depth() int { return len(s.loops) }
