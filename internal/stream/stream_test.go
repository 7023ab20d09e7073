package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

func TestChannelPreservesOrderAndClosesOnce(t *testing.T) {
	t.Parallel()

	ch := NewChannel(4)
	ctx := context.Background()
	ch.Send(ctx, workflow.WorkflowStarted("wf"))
	ch.Send(ctx, workflow.StepStarted("wf", "a", "A"))
	ch.Close()
	ch.Close()
	ch.Send(ctx, workflow.StepStarted("wf", "b", "B"))

	var got []workflow.EventType
	for evt := range ch.Events() {
		got = append(got, evt.Type)
	}
	assert.Equal(t, []workflow.EventType{workflow.EventWorkflowStarted, workflow.EventStepStarted}, got)
}

func TestChannelSendDropsWhenContextDone(t *testing.T) {
	t.Parallel()

	ch := NewChannel(1)
	ch.Send(context.Background(), workflow.WorkflowStarted("wf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch.Send(ctx, workflow.StepStarted("wf", "a", "A"))
	ch.Close()

	count := 0
	for range ch.Events() {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestChannelCloseReleasesBlockedSend(t *testing.T) {
	t.Parallel()

	ch := NewChannel(1)
	ch.Send(context.Background(), workflow.WorkflowStarted("wf"))

	sent := make(chan struct{})
	go func() {
		ch.Send(context.Background(), workflow.StepStarted("wf", "a", "A"))
		close(sent)
	}()

	closed := make(chan struct{})
	go func() {
		ch.Close()
		close(closed)
	}()

	for _, done := range []chan struct{}{closed, sent} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close waited on a blocked Send")
		}
	}

	count := 0
	for range ch.Events() {
		count++
	}
	assert.LessOrEqual(t, count, 2)
	assert.GreaterOrEqual(t, count, 1)
}

func TestSSEWritesDataFrames(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	closed := 0
	s := NewSSE(rec, WithOnClose(func() { closed++ }))

	ctx := context.Background()
	s.Send(ctx, workflow.StepStarted("wf", "img1", "Generate Image"))
	s.Send(ctx, workflow.WorkflowDone("wf", workflow.DoneSuccess, workflow.Outputs{"img1": workflow.URLOutput("http://x/cat.png")}, nil))
	s.Close()
	s.Close()
	s.Send(ctx, workflow.StepStarted("wf", "late", "late"))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, 1, closed)
	require.NoError(t, s.Err())

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 2)

	var first workflow.ProgressEvent
	require.True(t, strings.HasPrefix(frames[0], "data: "))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	assert.Equal(t, workflow.EventStepStarted, first.Type)
	assert.Equal(t, "img1", first.StepID)

	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &done))
	assert.Equal(t, "workflow_done", done["type"])
	assert.Equal(t, "success", done["status"])
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write([]byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

func TestSSEStopsAfterWriteFailure(t *testing.T) {
	t.Parallel()

	w := &failingWriter{}
	s := NewSSE(w)
	s.Send(context.Background(), workflow.WorkflowStarted("wf"))
	s.Send(context.Background(), workflow.WorkflowStarted("wf"))

	assert.Equal(t, 1, w.writes)
	assert.ErrorContains(t, s.Err(), "broken pipe")
}

func TestRecorderIgnoresSendAfterClose(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.Send(context.Background(), workflow.StepStarted("wf", "a", "A"))
	r.Send(context.Background(), workflow.WorkflowDone("wf", workflow.DoneError, nil, errors.New("x")))
	r.Close()
	r.Send(context.Background(), workflow.StepStarted("wf", "b", "B"))

	assert.True(t, r.Closed())
	assert.Equal(t, []string{"step_started(a)", "workflow_done(error)"}, r.Types())
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, workflow.EventWorkflowDone, last.Type)
}
