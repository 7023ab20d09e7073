// Package orchestrator runs a submitted plan step by step, emitting progress
// events and persisting the run's status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/genflow/internal/defaults"
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/placeholder"
	"github.com/alexisbeaulieu97/genflow/internal/poller"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
)

// Orchestrator drives workflow runs against a Dispatcher.
type Orchestrator struct {
	dispatcher ports.Dispatcher
	tasks      ports.TaskStore
	logger     ports.Logger
	policies   map[workflow.ToolKind]poller.Policy
	sleep      func(context.Context, time.Duration) error
	retrySteps bool
	retryOpts  []retry.Option
	newID      func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger injects a logger.
func WithLogger(logger ports.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTaskStore persists run status. Without one, status is not recorded.
func WithTaskStore(tasks ports.TaskStore) Option {
	return func(o *Orchestrator) {
		o.tasks = tasks
	}
}

// WithPollPolicy overrides the poll policy for one tool kind.
func WithPollPolicy(kind workflow.ToolKind, policy poller.Policy) Option {
	return func(o *Orchestrator) {
		o.policies[kind] = policy
	}
}

// WithPollPolicies overrides poll policies for several tool kinds.
func WithPollPolicies(policies map[workflow.ToolKind]poller.Policy) Option {
	return func(o *Orchestrator) {
		for kind, policy := range policies {
			o.policies[kind] = policy
		}
	}
}

// WithSleeper replaces every wait (poll intervals and retry backoff).
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithStepRetry wraps each step's dispatch and poll in the retry wrapper.
// Input errors (validation, type, missing field) are never retried.
func WithStepRetry(opts ...retry.Option) Option {
	return func(o *Orchestrator) {
		o.retrySteps = true
		o.retryOpts = append(o.retryOpts, opts...)
	}
}

// WithIDGenerator overrides how missing workflow ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New constructs an Orchestrator.
func New(dispatcher ports.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dispatcher: dispatcher,
		logger:     logging.NewNoOpLogger(),
		policies:   poller.Policies(),
		sleep:      retry.Sleep,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result summarises a finished run.
type Result struct {
	WorkflowID string
	Status     workflow.Status
	Outputs    workflow.Outputs
	FailedStep string
	Err        error
}

// Run executes sub in declared step order, sending progress to stream and
// closing it when the run ends. The first failing step aborts the run;
// outputs produced so far are kept in the workflow_done event and the
// returned Result. Steps whose id already appears in PreviousOutputs are
// skipped without events.
func (o *Orchestrator) Run(ctx context.Context, sub workflow.Submission, stream ports.ProgressStream) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if stream == nil {
		stream = discardStream{}
	}
	defer stream.Close()

	if o.dispatcher == nil {
		return Result{Status: workflow.StatusError}, workflow.NewError(workflow.ErrCodeInternal, "orchestrator has no dispatcher", nil, nil)
	}
	if err := sub.Plan.Validate(); err != nil {
		return Result{WorkflowID: sub.WorkflowID, Status: workflow.StatusError}, err
	}

	workflowID := sub.WorkflowID
	if workflowID == "" {
		workflowID = o.newID()
	}
	if ports.GetCorrelationID(ctx) == "" {
		ctx = ports.WithCorrelationID(ctx, workflowID)
	}
	logger := o.logger.With("workflow_id", workflowID)
	plan := sub.Plan.Clone()
	outputs := sub.PreviousOutputs.Clone()

	o.saveTask(ctx, logger, workflow.TaskRecord{WorkflowID: workflowID, Status: workflow.StatusCreated, Options: sub.Options})
	stream.Send(ctx, workflow.WorkflowStarted(workflowID))
	o.saveTask(ctx, logger, workflow.TaskRecord{WorkflowID: workflowID, Status: workflow.StatusRunning, Options: sub.Options})

	logger.Info(ctx, "workflow started", "steps", len(plan.Steps), "resumed", len(outputs))
	start := time.Now()

	result := Result{WorkflowID: workflowID, Status: workflow.StatusFinished, Outputs: outputs}
	var last *workflow.StepOutput

	for _, step := range plan.Steps {
		if prev, ok := outputs[step.ID]; ok {
			logger.Debug(ctx, "step already resolved, skipping", "step_id", step.ID)
			last = &prev
			continue
		}

		stepLogger := logger.With("step_id", step.ID, "tool_kind", string(step.Tool))
		stream.Send(ctx, workflow.StepStarted(workflowID, step.ID, step.DisplayTitle()))

		stepStart := time.Now()
		output, err := o.executeStep(ctx, stepLogger, step, outputs)
		if err != nil {
			stepErr := wrapStepError(step, err)
			stepLogger.Error(ctx, "step failed", "error", err, "duration_ms", time.Since(stepStart).Milliseconds())
			stream.Send(ctx, workflow.StepFailed(workflowID, step.ID, stepErr))
			result.Status = workflow.StatusError
			result.FailedStep = step.ID
			result.Err = stepErr
			break
		}

		outputs[step.ID] = output
		last = &output
		stepLogger.Info(ctx, "step completed", "duration_ms", time.Since(stepStart).Milliseconds())
		o.saveTask(ctx, stepLogger, taskRecord(workflowID, workflow.StatusRunning, sub.Options, last))
		stream.Send(ctx, workflow.StepCompleted(workflowID, step.ID, output))
	}

	record := taskRecord(workflowID, result.Status, sub.Options, last)
	done := workflow.DoneSuccess
	if result.Err != nil {
		done = workflow.DoneError
		record.Error = result.Err.Error()
	}
	o.saveTask(ctx, logger, record)

	logger.Info(ctx, "workflow done", "status", string(result.Status), "duration_ms", time.Since(start).Milliseconds())
	stream.Send(ctx, workflow.WorkflowDone(workflowID, done, outputs, result.Err))

	return result, result.Err
}

// taskRecord snapshots the run status with the most recent step output.
func taskRecord(workflowID string, status workflow.Status, options map[string]any, last *workflow.StepOutput) workflow.TaskRecord {
	record := workflow.TaskRecord{WorkflowID: workflowID, Status: status, Options: options}
	if last == nil {
		return record
	}
	if last.URL != nil {
		record.OutputURL = *last.URL
	}
	if last.Text != nil {
		record.OutputText = *last.Text
	}
	return record
}

// Prepare returns the step exactly as it would be dispatched: defaults
// injected, scalar strings coerced and placeholders resolved against outputs.
func Prepare(step workflow.Step, outputs workflow.Outputs) workflow.Step {
	prepared := defaults.Apply(step)
	prepared.Inputs = placeholder.ResolveInputs(prepared.Inputs, outputs)
	return prepared
}

func (o *Orchestrator) executeStep(ctx context.Context, logger ports.Logger, step workflow.Step, outputs workflow.Outputs) (workflow.StepOutput, error) {
	if err := ctx.Err(); err != nil {
		return workflow.StepOutput{}, err
	}

	prepared := Prepare(step, outputs)
	if missing := placeholder.Unresolved(prepared.Inputs, outputs); len(missing) > 0 {
		logger.Warn(ctx, "step inputs reference unavailable outputs", "references", len(missing), "first", missing[0].StepID)
	}

	attempt := func(ctx context.Context) (workflow.StepOutput, error) {
		return o.execute(ctx, logger, prepared)
	}
	if !o.retrySteps {
		return attempt(ctx)
	}

	opts := append([]retry.Option{
		retry.WithSleeper(o.sleep),
		retry.WithRetryIf(retryableStepError),
		retry.WithOnRetry(func(n int, delay time.Duration, err error) {
			logger.Warn(ctx, "retrying step", "attempt", n, "delay_ms", delay.Milliseconds(), "error", err)
		}),
	}, o.retryOpts...)
	return retry.Value(ctx, "step "+step.ID, attempt, opts...)
}

// Execute dispatches one already prepared step and waits for its output,
// polling when the provider answers with a job handle.
func (o *Orchestrator) Execute(ctx context.Context, step workflow.Step) (workflow.StepOutput, error) {
	if o.dispatcher == nil {
		return workflow.StepOutput{}, workflow.NewError(workflow.ErrCodeInternal, "orchestrator has no dispatcher", nil, nil)
	}
	return o.execute(ctx, o.logger.With("step_id", step.ID, "tool_kind", string(step.Tool)), step)
}

func (o *Orchestrator) execute(ctx context.Context, logger ports.Logger, step workflow.Step) (workflow.StepOutput, error) {
	dispatched, err := o.dispatcher.Dispatch(ctx, step)
	if err != nil {
		return workflow.StepOutput{}, err
	}

	var output workflow.StepOutput
	switch {
	case dispatched.Output != nil:
		output = *dispatched.Output
	case dispatched.Async():
		logger.Debug(ctx, "job submitted", "job_id", dispatched.Handle.ID)
		output, err = poller.Poll(ctx, *dispatched.Handle, o.dispatcher.Check, o.policyFor(step.Tool),
			poller.WithSleeper(o.sleep), poller.WithLogger(logger))
		if err != nil {
			return workflow.StepOutput{}, err
		}
	default:
		return workflow.StepOutput{}, workflow.NewError(workflow.ErrCodeProvider, "provider returned neither a job nor a result", nil, nil)
	}

	if output.IsEmpty() {
		return workflow.StepOutput{}, workflow.NewError(workflow.ErrCodeProvider, "provider returned an empty result", nil, nil)
	}
	return output, nil
}

func (o *Orchestrator) policyFor(kind workflow.ToolKind) poller.Policy {
	if p, ok := o.policies[kind]; ok && p.MaxAttempts > 0 {
		return p
	}
	return poller.PolicyFor(kind)
}

func (o *Orchestrator) saveTask(ctx context.Context, logger ports.Logger, record workflow.TaskRecord) {
	if o.tasks == nil {
		return
	}
	// The run must not depend on the store; a cancelled request still gets
	// its final status written.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.tasks.Upsert(storeCtx, record); err != nil {
		logger.Warn(ctx, "failed to persist task status", "status", string(record.Status), "error", err)
	}
}

func retryableStepError(err error) bool {
	switch workflow.CodeOf(err) {
	case workflow.ErrCodeValidation, workflow.ErrCodeType, workflow.ErrCodeMissing:
		return false
	default:
		return true
	}
}

func wrapStepError(step workflow.Step, err error) error {
	code := workflow.CodeOf(err)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = workflow.ErrCodeCancelled
	case errors.Is(err, workflow.ErrTimeout):
		code = workflow.ErrCodeTimeout
	case errors.Is(err, workflow.ErrJobFailed):
		code = workflow.ErrCodeJobFailed
	case code == "":
		code = workflow.ErrCodeExecution
	}
	return workflow.NewError(code, fmt.Sprintf("step %q failed", step.ID), err, map[string]interface{}{
		"step_id":   step.ID,
		"tool_kind": string(step.Tool),
	})
}

type discardStream struct{}

func (discardStream) Send(context.Context, workflow.ProgressEvent) {}
func (discardStream) Close()                                       {}
