package schema

// Event type constants for the run event log and the streaming hub.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
	EventRunStopped   = "run_stopped"
	EventRunReturned  = "run_returned"

	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
	EventStepProgress  = "step_progress"

	EventSignalJump     = "signal_jump"
	EventSignalBreak    = "signal_break"
	EventSignalContinue = "signal_continue"

	EventSubWorkflowCalled = "sub_workflow_called"
	EventSessionOpened     = "session_opened"
	EventSessionClosed     = "session_closed"

	// EventExternal is published by event sources (and the event.emit action)
	// for listener blocks to receive.
	EventExternal = "external_event"
)

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusReturned  RunStatus = "returned"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusStopped, RunStatusReturned:
		return true
	default:
		return false
	}
}
