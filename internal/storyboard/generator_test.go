package storyboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
)

type fakeExecutor struct {
	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	steps    []workflow.Step
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{calls: map[string]int{}, failFor: map[string]int{}}
}

func (f *fakeExecutor) Execute(_ context.Context, step workflow.Step) (workflow.StepOutput, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[step.ID]++
	f.steps = append(f.steps, step)
	if f.calls[step.ID] <= f.failFor[step.ID] {
		return workflow.StepOutput{}, errors.New("upstream 503")
	}
	return workflow.URLOutput("http://x/" + step.ID + ".png"), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestGenerateAssemblesMatrixWithFailedVariant(t *testing.T) {
	t.Parallel()

	exec := newFakeExecutor()
	exec.failFor["A-v1"] = 10
	exec.failFor["A-v0"] = 1

	g := New(exec, WithRetry(retry.WithSleeper(noSleep)))
	m, err := g.Generate(context.Background(), Request{
		Segments: []workflow.Segment{{ID: "A", Text: "intro"}, {ID: "B", Text: "outro"}},
		Plans: []workflow.VariantPlan{
			{SegmentID: "A", VariantIndex: 0, Prompt: "wide"},
			{SegmentID: "A", VariantIndex: 1, Prompt: "close"},
			{SegmentID: "A", VariantIndex: 4, Prompt: "aerial"},
			{SegmentID: "ghost", VariantIndex: 0, Prompt: "dropped"},
		},
	})
	require.NoError(t, err)

	a := m.Segments["A"]
	require.Len(t, a.Variants, 5)
	assert.Equal(t, AssetSucceeded, a.Variants[0].Asset.Status)
	assert.Equal(t, "http://x/A-v0.png", a.Variants[0].Asset.URL)
	assert.Equal(t, AssetFailed, a.Variants[1].Asset.Status)
	assert.Contains(t, a.Variants[1].Asset.Error, "failed after 3 attempts")
	assert.Equal(t, "close", a.Variants[1].Plan.Prompt)
	assert.Nil(t, a.Variants[2])
	assert.Equal(t, "aerial", a.Variants[4].Plan.Prompt)

	assert.Len(t, m.Segments["B"].Variants, 3)
	assert.NotContains(t, m.Segments, "ghost")

	assert.Equal(t, 2, exec.calls["A-v0"])
	assert.Equal(t, 3, exec.calls["A-v1"])
	assert.Zero(t, exec.calls["ghost-v0"])
}

func TestGenerateRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	exec := newFakeExecutor()
	plans := make([]workflow.VariantPlan, 0, 12)
	for i := 0; i < 12; i++ {
		plans = append(plans, workflow.VariantPlan{SegmentID: "S", VariantIndex: i, Prompt: "p"})
	}

	_, err := New(exec, WithConcurrency(2)).Generate(context.Background(), Request{
		Segments: []workflow.Segment{{ID: "S"}},
		Plans:    plans,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, exec.peak.Load(), int32(2))
	assert.Len(t, exec.steps, 12)
}

func TestGenerateUsesDefaultsForStep(t *testing.T) {
	t.Parallel()

	exec := newFakeExecutor()
	_, err := New(exec, WithDefaults(workflow.ToolImage, "flux")).Generate(context.Background(), Request{
		Segments: []workflow.Segment{{ID: "S"}},
		Plans: []workflow.VariantPlan{
			{SegmentID: "S", VariantIndex: 0, Prompt: "a"},
			{SegmentID: "S", VariantIndex: 1, Prompt: "b", Model: "sdxl", Tool: workflow.ToolEnhance},
		},
	})
	require.NoError(t, err)

	byID := map[string]workflow.Step{}
	for _, s := range exec.steps {
		byID[s.ID] = s
	}
	assert.Equal(t, "flux", byID["S-v0"].Model)
	assert.Equal(t, workflow.ToolImage, byID["S-v0"].Tool)
	assert.Equal(t, "a", byID["S-v0"].Inputs["prompt"])
	assert.Equal(t, "sdxl", byID["S-v1"].Model)
	assert.Equal(t, workflow.ToolEnhance, byID["S-v1"].Tool)
}

func TestGenerateReturnsPartialMatrixOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := New(newFakeExecutor()).Generate(ctx, Request{
		Segments: []workflow.Segment{{ID: "S"}},
		Plans:    []workflow.VariantPlan{{SegmentID: "S", VariantIndex: 0}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, m.Segments["S"])
	assert.Equal(t, AssetFailed, m.Segments["S"].Variants[0].Asset.Status)
}
