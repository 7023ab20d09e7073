package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/poller"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
	"github.com/alexisbeaulieu97/genflow/internal/store"
	"github.com/alexisbeaulieu97/genflow/internal/stream"
)

// stubDispatcher answers per step id. Steps listed in jobs are async and
// resolve after the given statuses; others return output or err directly.
type stubDispatcher struct {
	mu         sync.Mutex
	outputs    map[string]workflow.StepOutput
	errs       map[string][]error
	jobs       map[string][]workflow.JobStatus
	dispatched []workflow.Step
	checks     map[string]int
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{
		outputs: map[string]workflow.StepOutput{},
		errs:    map[string][]error{},
		jobs:    map[string][]workflow.JobStatus{},
		checks:  map[string]int{},
	}
}

func (s *stubDispatcher) Dispatch(_ context.Context, step workflow.Step) (workflow.Dispatched, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = append(s.dispatched, step)
	if queue := s.errs[step.ID]; len(queue) > 0 {
		err := queue[0]
		s.errs[step.ID] = queue[1:]
		if err != nil {
			return workflow.Dispatched{}, err
		}
	}
	if _, ok := s.jobs[step.ID]; ok {
		return workflow.Dispatched{Handle: &workflow.JobHandle{ID: step.ID, Tool: step.Tool}}, nil
	}
	out := s.outputs[step.ID]
	return workflow.Dispatched{Output: &out}, nil
}

func (s *stubDispatcher) Check(_ context.Context, handle workflow.JobHandle) (workflow.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.checks[handle.ID]
	s.checks[handle.ID]++
	script := s.jobs[handle.ID]
	if idx >= len(script) {
		return script[len(script)-1], nil
	}
	return script[idx], nil
}

func (s *stubDispatcher) dispatchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.dispatched))
	for _, st := range s.dispatched {
		ids = append(ids, st.ID)
	}
	return ids
}

func noSleep(context.Context, time.Duration) error { return nil }

type failingTaskStore struct{ calls int }

func (f *failingTaskStore) Upsert(context.Context, workflow.TaskRecord) error {
	f.calls++
	return errors.New("database unavailable")
}

func (f *failingTaskStore) Get(context.Context, string) (*workflow.TaskRecord, error) {
	return nil, errors.New("database unavailable")
}

func (f *failingTaskStore) List(context.Context) ([]workflow.TaskRecord, error) {
	return nil, errors.New("database unavailable")
}

// recordingTaskStore keeps every upsert in call order.
type recordingTaskStore struct {
	mu      sync.Mutex
	records []workflow.TaskRecord
}

func (r *recordingTaskStore) Upsert(_ context.Context, record workflow.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *recordingTaskStore) Get(context.Context, string) (*workflow.TaskRecord, error) {
	return nil, workflow.NewError(workflow.ErrCodeNotFound, "not found", nil, nil)
}

func (r *recordingTaskStore) List(context.Context) ([]workflow.TaskRecord, error) {
	return nil, nil
}

// history renders each upsert as "status output".
func (r *recordingTaskStore) history() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		output := rec.OutputURL
		if output == "" {
			output = rec.OutputText
		}
		out = append(out, string(rec.Status)+" "+output)
	}
	return out
}

func imageStep(id string) workflow.Step {
	return workflow.Step{ID: id, Tool: workflow.ToolImage, Model: "m", Inputs: map[string]any{"prompt": "cat"}}
}

func TestRunFailFastEventSequence(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.outputs["s1"] = workflow.URLOutput("http://x/1.png")
	d.errs["s2"] = []error{errors.New("provider request: http 422: bad prompt")}
	d.outputs["s3"] = workflow.URLOutput("http://x/3.png")

	rec := stream.NewRecorder()
	o := New(d, WithSleeper(noSleep))
	res, err := o.Run(context.Background(), workflow.Submission{
		WorkflowID: "wf",
		Plan:       workflow.Plan{Steps: []workflow.Step{imageStep("s1"), imageStep("s2"), imageStep("s3")}},
	}, rec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "s2" failed`)
	assert.Equal(t, []string{
		"workflow_started(wf)",
		"step_started(s1)",
		"step_completed(s1)",
		"step_started(s2)",
		"step_failed(s2)",
		"workflow_done(error)",
	}, withWorkflowLabel(rec))
	assert.Equal(t, []string{"s1", "s2"}, d.dispatchedIDs())
	assert.True(t, rec.Closed())

	assert.Equal(t, workflow.StatusError, res.Status)
	assert.Equal(t, "s2", res.FailedStep)
	last, _ := rec.Last()
	require.Contains(t, last.Outputs, "s1")
	assert.Equal(t, "http://x/1.png", *last.Outputs["s1"].URL)
	assert.NotContains(t, last.Outputs, "s2")
}

func withWorkflowLabel(rec *stream.Recorder) []string {
	types := rec.Types()
	for i, evt := range rec.Events() {
		if evt.Type == workflow.EventWorkflowStarted {
			types[i] = string(evt.Type) + "(" + evt.WorkflowID + ")"
		}
	}
	return types
}

func TestRunInjectsDependencyOutputBeforeDispatch(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.jobs["img1"] = []workflow.JobStatus{
		{State: workflow.JobProcessing},
		{State: workflow.JobSucceeded, Output: workflow.URLOutput("http://x/cat.png")},
	}
	d.jobs["vid1"] = []workflow.JobStatus{{State: workflow.JobSucceeded, Output: workflow.URLOutput("http://x/cat.mp4")}}

	o := New(d, WithSleeper(noSleep))
	res, err := o.Run(context.Background(), workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{
			{ID: "img1", Tool: workflow.ToolImage, Model: "m", Inputs: map[string]any{"prompt": "cat"}},
			{ID: "vid1", Tool: workflow.ToolVideo, Model: "m2", Inputs: map[string]any{}, Dependencies: []string{"img1"}},
		}},
	}, stream.NewRecorder())

	require.NoError(t, err)
	require.Len(t, d.dispatched, 2)
	assert.Equal(t, "http://x/cat.png", d.dispatched[1].Inputs["start_image"])
	assert.Equal(t, workflow.StatusFinished, res.Status)
	assert.NotEmpty(t, res.WorkflowID)
	assert.Equal(t, "http://x/cat.mp4", *res.Outputs["vid1"].URL)
	assert.Equal(t, 2, d.checks["img1"])
}

func TestRunResumesFromPreviousOutputs(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.outputs["tts"] = workflow.URLOutput("http://x/voice.mp3")

	rec := stream.NewRecorder()
	_, err := New(d).Run(context.Background(), workflow.Submission{
		WorkflowID: "wf",
		Plan: workflow.Plan{Steps: []workflow.Step{
			{ID: "script", Tool: workflow.ToolText, Model: "gpt", Inputs: map[string]any{"prompt": "write"}},
			{ID: "tts", Tool: workflow.ToolTextToSpeech, Model: "voice", Dependencies: []string{"script"}},
		}},
		PreviousOutputs: workflow.Outputs{"script": workflow.TextOutput("hello there")},
	}, rec)

	require.NoError(t, err)
	assert.Equal(t, []string{"tts"}, d.dispatchedIDs())
	assert.Equal(t, "hello there", d.dispatched[0].Inputs["text"])
	assert.Equal(t, []string{"workflow_started", "step_started(tts)", "step_completed(tts)", "workflow_done(success)"}, rec.Types())
}

func TestRunPersistsTaskLifecycle(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.outputs["img"] = workflow.URLOutput("http://x/final.png")
	tasks := store.NewTaskStore(store.NewMemory())

	_, err := New(d, WithTaskStore(tasks)).Run(context.Background(), workflow.Submission{
		WorkflowID: "wf-1",
		Plan:       workflow.Plan{Steps: []workflow.Step{imageStep("img")}},
		Options:    map[string]any{"aspect": "16:9"},
	}, nil)
	require.NoError(t, err)

	record, err := tasks.Get(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFinished, record.Status)
	assert.Equal(t, "http://x/final.png", record.OutputURL)
	assert.Equal(t, "16:9", record.Options["aspect"])
}

func TestRunPersistsEachCompletedStep(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.outputs["a"] = workflow.URLOutput("http://x/a.png")
	d.outputs["b"] = workflow.URLOutput("http://x/b.png")
	tasks := &recordingTaskStore{}

	_, err := New(d, WithTaskStore(tasks)).Run(context.Background(), workflow.Submission{
		WorkflowID: "wf-2",
		Plan:       workflow.Plan{Steps: []workflow.Step{imageStep("a"), imageStep("b")}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"created ",
		"running ",
		"running http://x/a.png",
		"running http://x/b.png",
		"finished http://x/b.png",
	}, tasks.history())
	for _, rec := range tasks.records {
		assert.Equal(t, "wf-2", rec.WorkflowID)
	}
}

func TestRunFailureAfterResumeKeepsResumedOutput(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.errs["tts"] = []error{errors.New("provider request: http 500: boom")}
	tasks := &recordingTaskStore{}

	_, err := New(d, WithTaskStore(tasks)).Run(context.Background(), workflow.Submission{
		WorkflowID: "wf-3",
		Plan: workflow.Plan{Steps: []workflow.Step{
			{ID: "script", Tool: workflow.ToolText, Model: "gpt", Inputs: map[string]any{"prompt": "write"}},
			{ID: "tts", Tool: workflow.ToolTextToSpeech, Model: "voice", Dependencies: []string{"script"}},
		}},
		PreviousOutputs: workflow.Outputs{"script": workflow.TextOutput("hello there")},
	}, nil)
	require.Error(t, err)

	assert.Equal(t, []string{"created ", "running ", "error hello there"}, tasks.history())
	final := tasks.records[len(tasks.records)-1]
	assert.Contains(t, final.Error, "tts")
}

func TestRunToleratesTaskStoreFailures(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.outputs["img"] = workflow.URLOutput("http://x/a.png")
	tasks := &failingTaskStore{}
	buffer := logging.NewEventBuffer(50)

	res, err := New(d, WithTaskStore(tasks), WithLogger(logging.NewBufferedLogger(buffer))).Run(
		context.Background(),
		workflow.Submission{Plan: workflow.Plan{Steps: []workflow.Step{imageStep("img")}}},
		stream.NewRecorder(),
	)

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFinished, res.Status)
	assert.Equal(t, 4, tasks.calls)

	warnings := 0
	for _, entry := range buffer.Entries() {
		if entry.Level == logging.LevelWarn && entry.Msg == "failed to persist task status" {
			warnings++
		}
	}
	assert.Equal(t, 4, warnings)
}

func TestRunReportsPollTimeoutAsStepFailure(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.jobs["vid"] = []workflow.JobStatus{{State: workflow.JobQueued}}

	o := New(d, WithSleeper(noSleep), WithPollPolicy(workflow.ToolImage, pollerPolicy(4)))
	rec := stream.NewRecorder()
	_, err := o.Run(context.Background(), workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{imageStep("vid")}},
	}, rec)

	assert.Equal(t, workflow.ErrCodeTimeout, workflow.CodeOf(err))
	assert.Equal(t, 4, d.checks["vid"])
	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, workflow.EventStepFailed, events[2].Type)
	assert.Contains(t, events[2].Error, "timed out after 4 status checks")
}

func TestRunRetriesStepsWhenEnabled(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.errs["img"] = []error{errors.New("connection reset"), nil}
	d.outputs["img"] = workflow.URLOutput("http://x/ok.png")

	o := New(d, WithSleeper(noSleep), WithStepRetry(retry.WithMaxAttempts(3)))
	res, err := o.Run(context.Background(), workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{imageStep("img")}},
	}, stream.NewRecorder())

	require.NoError(t, err)
	assert.Equal(t, []string{"img", "img"}, d.dispatchedIDs())
	assert.Equal(t, "http://x/ok.png", *res.Outputs["img"].URL)
}

func TestRunDoesNotRetryInputErrors(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.errs["img"] = []error{workflow.NewError(workflow.ErrCodeMissing, "missing required field", nil, nil)}

	o := New(d, WithSleeper(noSleep), WithStepRetry())
	_, err := o.Run(context.Background(), workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{imageStep("img")}},
	}, stream.NewRecorder())

	assert.Equal(t, workflow.ErrCodeMissing, workflow.CodeOf(err))
	assert.Len(t, d.dispatched, 1)
}

func TestRunRejectsInvalidPlanWithoutEvents(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	rec := stream.NewRecorder()
	_, err := New(d).Run(context.Background(), workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{
			{ID: "vid", Tool: workflow.ToolVideo, Model: "m", Dependencies: []string{"img"}},
			imageStep("img"),
		}},
	}, rec)

	assert.Equal(t, workflow.ErrCodeDependency, workflow.CodeOf(err))
	assert.Empty(t, rec.Events())
	assert.True(t, rec.Closed())
	assert.Empty(t, d.dispatched)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	d := newStubDispatcher()
	d.jobs["img"] = []workflow.JobStatus{{State: workflow.JobProcessing}}

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	rec := stream.NewRecorder()
	_, err := New(d, WithSleeper(sleeper)).Run(ctx, workflow.Submission{
		Plan: workflow.Plan{Steps: []workflow.Step{imageStep("img"), imageStep("next")}},
	}, rec)

	assert.Equal(t, workflow.ErrCodeCancelled, workflow.CodeOf(err))
	assert.Equal(t, []string{"img"}, d.dispatchedIDs())
	assert.True(t, rec.Closed())
}

func TestPrepareDoesNotMutateStep(t *testing.T) {
	t.Parallel()

	step := workflow.Step{
		ID: "vid", Tool: workflow.ToolVideo, Model: "m",
		Inputs:       map[string]any{"duration": "5", "prompt": "{{img.url}} walking"},
		Dependencies: []string{"img"},
	}
	outputs := workflow.Outputs{"img": workflow.URLOutput("http://x/cat.png")}

	prepared := Prepare(step, outputs)

	assert.Equal(t, int64(5), prepared.Inputs["duration"])
	assert.Equal(t, "http://x/cat.png walking", prepared.Inputs["prompt"])
	assert.Equal(t, "http://x/cat.png", prepared.Inputs["start_image"])
	assert.Equal(t, "5", step.Inputs["duration"])
	assert.NotContains(t, step.Inputs, "start_image")
}

func pollerPolicy(attempts int) poller.Policy {
	return poller.Policy{Interval: time.Millisecond, MaxAttempts: attempts}
}
