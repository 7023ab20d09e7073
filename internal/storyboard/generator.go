// Package storyboard renders every variant plan of a set of segments
// concurrently and assembles the results into a ResultMatrix.
package storyboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexisbeaulieu97/genflow/internal/assembler"
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
)

const (
	DefaultConcurrency = 4

	AssetSucceeded = "succeeded"
	AssetFailed    = "failed"
)

// StepExecutor dispatches one prepared step and waits for its output.
type StepExecutor interface {
	Execute(ctx context.Context, step workflow.Step) (workflow.StepOutput, error)
}

// Request is a storyboard to render.
type Request struct {
	Segments []workflow.Segment     `json:"segments"`
	Plans    []workflow.VariantPlan `json:"plans"`
}

// Generator fans variant plans out to a StepExecutor.
type Generator struct {
	executor    StepExecutor
	logger      ports.Logger
	concurrency int
	tool        workflow.ToolKind
	model       string
	retryOpts   []retry.Option
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger injects a logger.
func WithLogger(logger ports.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithConcurrency bounds in-flight variants (default 4).
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithDefaults sets the tool and model used by plans that leave them empty.
func WithDefaults(tool workflow.ToolKind, model string) Option {
	return func(g *Generator) {
		if tool != "" {
			g.tool = tool
		}
		if model != "" {
			g.model = model
		}
	}
}

// WithRetry customizes the per-variant retry policy.
func WithRetry(opts ...retry.Option) Option {
	return func(g *Generator) {
		g.retryOpts = append(g.retryOpts, opts...)
	}
}

// New constructs a Generator.
func New(executor StepExecutor, opts ...Option) *Generator {
	g := &Generator{
		executor:    executor,
		logger:      logging.NewNoOpLogger(),
		concurrency: DefaultConcurrency,
		tool:        workflow.ToolImage,
		model:       "default",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders each plan of a known segment. A variant that still fails
// after its retries becomes a failed asset; the others are unaffected. The
// matrix is returned even when ctx is cancelled, together with ctx's error.
func (g *Generator) Generate(ctx context.Context, req Request) (workflow.ResultMatrix, error) {
	known := make(map[string]struct{}, len(req.Segments))
	for _, seg := range req.Segments {
		known[seg.ID] = struct{}{}
	}

	var (
		mu     sync.Mutex
		assets = make([]workflow.VariantAsset, 0, len(req.Plans))
	)

	var group errgroup.Group
	group.SetLimit(g.concurrency)
	for _, plan := range req.Plans {
		if _, ok := known[plan.SegmentID]; !ok || plan.VariantIndex < 0 {
			continue
		}
		plan := plan
		group.Go(func() error {
			asset := g.render(ctx, plan)
			mu.Lock()
			assets = append(assets, asset)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, a := range assets {
		if a.Status == AssetFailed {
			failed++
		}
	}
	g.logger.Info(ctx, "storyboard rendered", "segments", len(req.Segments), "variants", len(assets), "failed", failed)

	return assembler.Assemble(req.Segments, req.Plans, assets), ctx.Err()
}

func (g *Generator) render(ctx context.Context, plan workflow.VariantPlan) workflow.VariantAsset {
	asset := workflow.VariantAsset{SegmentID: plan.SegmentID, VariantIndex: plan.VariantIndex}
	step := g.stepFor(plan)
	label := fmt.Sprintf("variant %s[%d]", plan.SegmentID, plan.VariantIndex)

	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			g.logger.Warn(ctx, "retrying variant", "step_id", step.ID, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		}),
	}, g.retryOpts...)

	out, err := retry.Value(ctx, label, func(ctx context.Context) (workflow.StepOutput, error) {
		return g.executor.Execute(ctx, step)
	}, opts...)
	if err != nil {
		g.logger.Warn(ctx, "variant failed", "step_id", step.ID, "error", err)
		asset.Status = AssetFailed
		asset.Error = err.Error()
		return asset
	}

	asset.Status = AssetSucceeded
	if url, ok := out.Field(workflow.FieldURL); ok {
		asset.URL = url
	}
	return asset
}

func (g *Generator) stepFor(plan workflow.VariantPlan) workflow.Step {
	tool := plan.Tool
	if tool == "" {
		tool = g.tool
	}
	model := plan.Model
	if model == "" {
		model = g.model
	}
	return workflow.Step{
		ID:     fmt.Sprintf("%s-v%d", plan.SegmentID, plan.VariantIndex),
		Tool:   tool,
		Model:  model,
		Inputs: map[string]any{"prompt": plan.Prompt},
	}
}
