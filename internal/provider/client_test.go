package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeProvider) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), opts ...Option) (*Client, *fakeProvider) {
	t.Helper()
	fake := &fakeProvider{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIToken: "secret"}, opts...), fake
}

func TestDispatchAsyncToolReturnsHandle(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"job-1","status":"starting"}`)
	})

	step := workflow.Step{ID: "vid1", Tool: workflow.ToolVideo, Model: "kling", Inputs: map[string]any{"start_image": "http://x/cat.png", "duration": int64(5)}}
	got, err := client.Dispatch(context.Background(), step)
	require.NoError(t, err)
	require.True(t, got.Async())
	assert.Equal(t, workflow.JobHandle{ID: "job-1", Tool: workflow.ToolVideo}, *got.Handle)

	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/videos", req.Path)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Prefer"))
	assert.Equal(t, "kling", req.Body["model"])
	assert.Equal(t, "http://x/cat.png", req.Body["start_image"])
	assert.EqualValues(t, 5, req.Body["duration"])
}

func TestDispatchFireAndWaitReturnsOutput(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"succeeded","output":["http://x/voice.mp3"]}`)
	})

	got, err := client.Dispatch(context.Background(), workflow.Step{ID: "tts", Tool: workflow.ToolTextToSpeech, Model: "voice", Inputs: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	require.False(t, got.Async())
	assert.Equal(t, "http://x/voice.mp3", *got.Output.URL)
	assert.Equal(t, "/speech", fake.last().Path)
	assert.Equal(t, "wait", fake.last().Header.Get("Prefer"))
}

func TestDispatchFireAndWaitFallsBackToHandle(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"slow","status":"processing"}`)
	})

	got, err := client.Dispatch(context.Background(), workflow.Step{ID: "tts", Tool: workflow.ToolTextToSpeech, Model: "voice"})
	require.NoError(t, err)
	require.True(t, got.Async())
	assert.Equal(t, "slow", got.Handle.ID)
}

func TestDispatchSurfacesProviderErrorPayload(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":{"message":"prompt flagged by safety filter"}}`)
	})

	_, err := client.Dispatch(context.Background(), workflow.Step{ID: "img", Tool: workflow.ToolImage, Model: "m"})
	require.Error(t, err)
	assert.Equal(t, workflow.ErrCodeProvider, workflow.CodeOf(err))
	assert.Contains(t, err.Error(), "prompt flagged by safety filter")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.False(t, statusErr.Transient())
}

func TestDispatchImmediateFailureStatus(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"failed","error":"voice not found"}`)
	})

	_, err := client.Dispatch(context.Background(), workflow.Step{ID: "tts", Tool: workflow.ToolTextToSpeech, Model: "voice"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrJobFailed))
	assert.Contains(t, err.Error(), "voice not found")
}

func TestDispatchRejectsUnknownTool(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "http://unused"})
	_, err := client.Dispatch(context.Background(), workflow.Step{ID: "x", Tool: workflow.ToolKind("hologram"), Model: "m"})
	require.Error(t, err)
	assert.Equal(t, workflow.ErrCodeType, workflow.CodeOf(err))
}

func TestDispatchRoutesEveryJobTool(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"j","status":"queued"}`)
	})

	for kind, route := range DefaultRoutes() {
		_, err := client.Dispatch(context.Background(), workflow.Step{ID: "s", Tool: kind, Model: "m"})
		require.NoError(t, err, "tool %s", kind)
		assert.Equal(t, "/"+route, fake.last().Path)
	}
}

func TestCheckParsesStatusAndOutput(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"job-9","status":"succeeded","output":{"url":"http://x/out.mp4"}}`)
	})

	status, err := client.Check(context.Background(), workflow.JobHandle{ID: "job-9", Tool: workflow.ToolVideo})
	require.NoError(t, err)
	assert.Equal(t, workflow.JobSucceeded, status.State)
	assert.Equal(t, "http://x/out.mp4", *status.Output.URL)
	assert.Equal(t, "/jobs/job-9", fake.last().Path)
	assert.Equal(t, http.MethodGet, fake.last().Method)
}

func TestCheckTransientHTTPError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Check(context.Background(), workflow.JobHandle{ID: "j", Tool: workflow.ToolImage})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.Transient())
}

type fakeModel struct {
	content  string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.content}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestDispatchTextUsesLanguageModel(t *testing.T) {
	t.Parallel()

	model := &fakeModel{content: "  A cat naps in the sun.  "}
	client := NewClient(Config{BaseURL: "http://unused"}, WithTextModel(model))

	got, err := client.Dispatch(context.Background(), workflow.Step{
		ID: "script", Tool: workflow.ToolText, Model: "gpt-4o-mini",
		Inputs: map[string]any{"prompt": "write a line", "system": "be brief", "temperature": 0.2},
	})
	require.NoError(t, err)
	require.NotNil(t, got.Output)
	assert.Equal(t, "A cat naps in the sun.", *got.Output.Text)
	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", model.options.Model)
	assert.InDelta(t, 0.2, model.options.Temperature, 1e-9)
}

func TestDispatchTextWithoutModel(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "http://unused"})
	_, err := client.Dispatch(context.Background(), workflow.Step{ID: "t", Tool: workflow.ToolText, Model: "m", Inputs: map[string]any{"prompt": "x"}})
	assert.Equal(t, workflow.ErrCodeValidation, workflow.CodeOf(err))

	client = NewClient(Config{BaseURL: "http://unused"}, WithTextModel(&fakeModel{content: "x"}))
	_, err = client.Dispatch(context.Background(), workflow.Step{ID: "t", Tool: workflow.ToolText, Model: "m"})
	assert.Equal(t, workflow.ErrCodeMissing, workflow.CodeOf(err))
}
