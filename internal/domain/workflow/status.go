package workflow

// Status tracks the lifecycle of a workflow run as persisted in the task
// store: created → running → {finished | error}.
type Status string

const (
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusError    Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// StepState tracks an individual step: pending → running → {succeeded | failed}.
type StepState string

const (
	StepStatePending   StepState = "pending"
	StepStateRunning   StepState = "running"
	StepStateSucceeded StepState = "succeeded"
	StepStateFailed    StepState = "failed"
)

// TaskRecord is the durable status of a workflow run.
type TaskRecord struct {
	WorkflowID string         `json:"workflow_id"`
	Status     Status         `json:"status"`
	Options    map[string]any `json:"options,omitempty"`
	OutputURL  string         `json:"output_url,omitempty"`
	OutputText string         `json:"output_text,omitempty"`
	Error      string         `json:"error,omitempty"`
	UpdatedAt  int64          `json:"updated_at"`
}
