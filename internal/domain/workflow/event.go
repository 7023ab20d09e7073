package workflow

import "time"

// EventType tags the ProgressEvent union.
type EventType string

const (
	EventWorkflowStarted EventType = "workflow_started"
	EventStepStarted     EventType = "step_started"
	EventStepCompleted   EventType = "step_completed"
	EventStepFailed      EventType = "step_failed"
	EventWorkflowDone    EventType = "workflow_done"
)

// DoneStatus is the outcome reported by a workflow_done event.
type DoneStatus string

const (
	DoneSuccess DoneStatus = "success"
	DoneError   DoneStatus = "error"
)

// ProgressEvent is one lifecycle notification of a workflow run. Only the
// fields relevant to Type are populated.
type ProgressEvent struct {
	Type       EventType   `json:"type"`
	WorkflowID string      `json:"workflow_id,omitempty"`
	StepID     string      `json:"step_id,omitempty"`
	Title      string      `json:"title,omitempty"`
	Output     *StepOutput `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	Status     DoneStatus  `json:"status,omitempty"`
	Outputs    Outputs     `json:"outputs,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// WorkflowStarted builds a workflow_started event.
func WorkflowStarted(workflowID string) ProgressEvent {
	return ProgressEvent{Type: EventWorkflowStarted, WorkflowID: workflowID, Timestamp: time.Now().UTC()}
}

// StepStarted builds a step_started event.
func StepStarted(workflowID, stepID, title string) ProgressEvent {
	return ProgressEvent{Type: EventStepStarted, WorkflowID: workflowID, StepID: stepID, Title: title, Timestamp: time.Now().UTC()}
}

// StepCompleted builds a step_completed event.
func StepCompleted(workflowID, stepID string, output StepOutput) ProgressEvent {
	return ProgressEvent{Type: EventStepCompleted, WorkflowID: workflowID, StepID: stepID, Output: &output, Timestamp: time.Now().UTC()}
}

// StepFailed builds a step_failed event.
func StepFailed(workflowID, stepID string, err error) ProgressEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ProgressEvent{Type: EventStepFailed, WorkflowID: workflowID, StepID: stepID, Error: msg, Timestamp: time.Now().UTC()}
}

// WorkflowDone builds the terminal event of a run.
func WorkflowDone(workflowID string, status DoneStatus, outputs Outputs, err error) ProgressEvent {
	evt := ProgressEvent{Type: EventWorkflowDone, WorkflowID: workflowID, Status: status, Outputs: outputs.Clone(), Timestamp: time.Now().UTC()}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

// Terminal reports whether the event ends a step.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventStepCompleted || e.Type == EventStepFailed
}
