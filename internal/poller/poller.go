// Package poller drives a job handle to a terminal state with a bounded
// number of status checks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
)

// Policy bounds a poll loop.
type Policy struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
}

// Budget is the longest a loop following p can wait between its first and
// last check.
func (p Policy) Budget() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts-1) * p.Interval
}

var defaultPolicies = map[workflow.ToolKind]Policy{
	workflow.ToolImage:             {Interval: 2500 * time.Millisecond, MaxAttempts: 60},
	workflow.ToolVideo:             {Interval: 4 * time.Second, MaxAttempts: 90},
	workflow.ToolLipsync:           {Interval: 4 * time.Second, MaxAttempts: 75},
	workflow.ToolEnhance:           {Interval: 3 * time.Second, MaxAttempts: 40},
	workflow.ToolBackgroundRemoval: {Interval: 2500 * time.Millisecond, MaxAttempts: 40},
	workflow.ToolTranscription:     {Interval: 3 * time.Second, MaxAttempts: 60},
	workflow.ToolTextToSpeech:      {Interval: 2500 * time.Millisecond, MaxAttempts: 40},
}

// PolicyFor returns the default policy for kind. Tools that never poll get
// the image policy.
func PolicyFor(kind workflow.ToolKind) Policy {
	if p, ok := defaultPolicies[kind]; ok {
		return p
	}
	return defaultPolicies[workflow.ToolImage]
}

// Policies returns a copy of the default per-tool table.
func Policies() map[workflow.ToolKind]Policy {
	out := make(map[workflow.ToolKind]Policy, len(defaultPolicies))
	for k, v := range defaultPolicies {
		out[k] = v
	}
	return out
}

// CheckFunc performs one status check.
type CheckFunc func(ctx context.Context, handle workflow.JobHandle) (workflow.JobStatus, error)

// JobFailedError reports a job that reached failed, canceled or error.
type JobFailedError struct {
	JobID   string
	State   workflow.JobState
	Message string
}

func (e *JobFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("job %s", e.State)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, msg)
}

// Is lets errors.Is(err, workflow.ErrJobFailed) match.
func (e *JobFailedError) Is(target error) bool {
	return errors.Is(workflow.ErrJobFailed, target)
}

// TimeoutError reports a budget exhausted without a terminal status.
type TimeoutError struct {
	JobID     string
	Attempts  int
	LastState workflow.JobState
	LastErr   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s timed out after %d status checks", e.JobID, e.Attempts)
}

// Is lets errors.Is(err, workflow.ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return errors.Is(workflow.ErrTimeout, target)
}

// Unwrap exposes the last check error, if the final check failed.
func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

type config struct {
	sleep  func(context.Context, time.Duration) error
	logger ports.Logger
}

// Option customizes a poll loop.
type Option func(*config)

// WithSleeper replaces the wait between checks. Tests use it to run loops
// without real delays.
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(c *config) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger reports pending checks and swallowed check errors at debug level.
func WithLogger(logger ports.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Poll checks handle until it is terminal or policy.MaxAttempts checks have
// been made. A failed check counts as pending. Cancelling ctx ends the loop
// with the context error.
func Poll(ctx context.Context, handle workflow.JobHandle, check CheckFunc, policy Policy, opts ...Option) (workflow.StepOutput, error) {
	cfg := config{sleep: retry.Sleep}
	for _, opt := range opts {
		opt(&cfg)
	}
	if check == nil {
		return workflow.StepOutput{}, workflow.NewError(workflow.ErrCodeInternal, "poll: nil status check", nil, nil)
	}
	if policy.MaxAttempts <= 0 {
		policy = PolicyFor(handle.Tool)
	}

	var (
		lastState workflow.JobState
		lastErr   error
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return workflow.StepOutput{}, err
		}

		status, err := check(ctx, handle)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return workflow.StepOutput{}, ctxErr
			}
			lastErr = err
			if cfg.logger != nil {
				cfg.logger.Debug(ctx, "status check failed, treating as pending",
					"job_id", handle.ID, "attempt", attempt, "error", err)
			}
		case status.State == workflow.JobSucceeded:
			return status.Output, nil
		case status.State.Terminal():
			return workflow.StepOutput{}, &JobFailedError{JobID: handle.ID, State: status.State, Message: status.Error}
		default:
			lastState, lastErr = status.State, nil
			if cfg.logger != nil {
				cfg.logger.Debug(ctx, "job pending", "job_id", handle.ID, "attempt", attempt, "state", string(status.State))
			}
		}

		if attempt == policy.MaxAttempts {
			break
		}
		if err := cfg.sleep(ctx, policy.Interval); err != nil {
			return workflow.StepOutput{}, err
		}
	}

	return workflow.StepOutput{}, &TimeoutError{
		JobID:     handle.ID,
		Attempts:  policy.MaxAttempts,
		LastState: lastState,
		LastErr:   lastErr,
	}
}
