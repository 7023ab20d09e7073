package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings required to talk to the job API.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
	// Routes overrides the submission path per tool kind.
	Routes map[workflow.ToolKind]string
}

// DefaultRoutes returns the submission path used for each job-API tool.
func DefaultRoutes() map[workflow.ToolKind]string {
	return map[workflow.ToolKind]string{
		workflow.ToolImage:             "images",
		workflow.ToolVideo:             "videos",
		workflow.ToolLipsync:           "lipsync",
		workflow.ToolBackgroundRemoval: "background-removal",
		workflow.ToolEnhance:           "enhance",
		workflow.ToolTranscription:     "transcriptions",
		workflow.ToolTextToSpeech:      "speech",
	}
}

// Client submits steps to the job API and checks job status.
type Client struct {
	cfg        Config
	routes     map[workflow.ToolKind]string
	httpClient *http.Client
	textModel  llms.Model
	logger     ports.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTextModel sets the language model used by text steps.
func WithTextModel(model llms.Model) Option {
	return func(c *Client) {
		c.textModel = model
	}
}

// WithLogger injects a logger.
func WithLogger(logger ports.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a provider client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	routes := DefaultRoutes()
	for kind, path := range cfg.Routes {
		if strings.TrimSpace(path) != "" {
			routes[kind] = strings.Trim(strings.TrimSpace(path), "/")
		}
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:       strings.TrimSpace(cfg.APIToken),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		routes:     routes,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type jobResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// Dispatch submits the step. The switch is exhaustive over ToolKind.
func (c *Client) Dispatch(ctx context.Context, step workflow.Step) (workflow.Dispatched, error) {
	switch step.Tool {
	case workflow.ToolImage,
		workflow.ToolVideo,
		workflow.ToolLipsync,
		workflow.ToolBackgroundRemoval,
		workflow.ToolEnhance,
		workflow.ToolTranscription:
		return c.submit(ctx, step, false)
	case workflow.ToolTextToSpeech:
		return c.submit(ctx, step, true)
	case workflow.ToolText:
		return c.generateText(ctx, step)
	default:
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeType, "unsupported tool kind", nil, map[string]interface{}{
			"step_id":   step.ID,
			"tool_kind": string(step.Tool),
		})
	}
}

// Check performs a single status request for a job.
func (c *Client) Check(ctx context.Context, handle workflow.JobHandle) (workflow.JobStatus, error) {
	if strings.TrimSpace(handle.ID) == "" {
		return workflow.JobStatus{}, errors.New("provider check: job id required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "jobs", handle.ID)
	if err != nil {
		return workflow.JobStatus{}, fmt.Errorf("provider check: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return workflow.JobStatus{}, fmt.Errorf("provider check: new request: %w", err)
	}
	var job jobResponse
	if err := c.do(req, &job); err != nil {
		return workflow.JobStatus{}, err
	}
	return toJobStatus(handle.Tool, job), nil
}

func (c *Client) submit(ctx context.Context, step workflow.Step, wait bool) (workflow.Dispatched, error) {
	route, ok := c.routes[step.Tool]
	if !ok {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeType, "no route for tool kind", nil, map[string]interface{}{"tool_kind": string(step.Tool)})
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, route)
	if err != nil {
		return workflow.Dispatched{}, fmt.Errorf("provider submit: build url: %w", err)
	}

	payload := make(map[string]any, len(step.Inputs)+1)
	for k, v := range step.Inputs {
		payload[k] = v
	}
	payload["model"] = step.Model

	encoded, err := json.Marshal(payload)
	if err != nil {
		return workflow.Dispatched{}, fmt.Errorf("provider submit: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return workflow.Dispatched{}, fmt.Errorf("provider submit: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if wait {
		req.Header.Set("Prefer", "wait")
	}

	c.logger.Debug(ctx, "submitting provider job", "step_id", step.ID, "tool_kind", step.Tool, "route", route, "wait", wait)

	var job jobResponse
	if err := c.do(req, &job); err != nil {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeProvider, "job submission rejected", err, map[string]interface{}{
			"step_id":   step.ID,
			"tool_kind": string(step.Tool),
		})
	}

	status := toJobStatus(step.Tool, job)
	switch {
	case status.State == workflow.JobSucceeded && !status.Output.IsEmpty():
		out := status.Output
		return workflow.Dispatched{Output: &out}, nil
	case status.State.Terminal() && status.State != workflow.JobSucceeded:
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeJobFailed, failureMessage(status), nil, map[string]interface{}{"step_id": step.ID})
	case job.ID != "":
		return workflow.Dispatched{Handle: &workflow.JobHandle{ID: job.ID, Tool: step.Tool}}, nil
	default:
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeProvider, "provider response carried neither job id nor result", nil, map[string]interface{}{"step_id": step.ID})
	}
}

func (c *Client) do(req *http.Request, target any) error {
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("provider request: decode response: %w", err)
	}
	return nil
}

func toJobStatus(kind workflow.ToolKind, job jobResponse) workflow.JobStatus {
	status := workflow.JobStatus{State: normalizeState(job.Status)}
	if out, ok := ExtractOutput(kind, job.Output); ok {
		status.Output = out
	}
	status.Error = errorMessage([]byte(`{"error":` + rawOrNull(job.Error) + `}`))
	return status
}

func normalizeState(raw string) workflow.JobState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "success", "completed", "complete":
		return workflow.JobSucceeded
	case "failed", "failure":
		return workflow.JobFailed
	case "canceled", "cancelled":
		return workflow.JobCanceled
	case "error":
		return workflow.JobError
	case "queued", "pending":
		return workflow.JobQueued
	case "starting":
		return workflow.JobStarting
	case "processing", "running", "in_progress":
		return workflow.JobProcessing
	default:
		return workflow.JobState(strings.ToLower(strings.TrimSpace(raw)))
	}
}

func failureMessage(status workflow.JobStatus) string {
	if strings.TrimSpace(status.Error) != "" {
		return status.Error
	}
	return fmt.Sprintf("job %s", status.State)
}

func rawOrNull(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null"
	}
	return string(raw)
}

var _ ports.Dispatcher = (*Client)(nil)
