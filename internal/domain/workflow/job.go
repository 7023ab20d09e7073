package workflow

// JobHandle is the provider-assigned reference to an asynchronous job plus
// the tool kind needed to know how to poll it.
type JobHandle struct {
	ID   string   `json:"id"`
	Tool ToolKind `json:"tool"`
}

// JobState is the provider-reported status of a job.
type JobState string

const (
	JobStarting   JobState = "starting"
	JobProcessing JobState = "processing"
	JobQueued     JobState = "queued"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
	JobCanceled   JobState = "canceled"
	JobError      JobState = "error"
)

// Terminal reports whether polling can stop.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCanceled, JobError:
		return true
	default:
		return false
	}
}

// JobStatus is one observation of a job's progress.
type JobStatus struct {
	State  JobState
	Output StepOutput
	Error  string
}

// Dispatched is the result of submitting a step: either a handle to poll or,
// for fire-and-wait tools, the already materialised output.
type Dispatched struct {
	Handle *JobHandle
	Output *StepOutput
}

// Async reports whether the caller must poll for the result.
func (d Dispatched) Async() bool {
	return d.Handle != nil && d.Output == nil
}
