// Package server exposes workflow runs and storyboard generation over HTTP.
// Workflow progress is streamed back as server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/orchestrator"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	"github.com/alexisbeaulieu97/genflow/internal/storyboard"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20

	// CorrelationHeader carries the request correlation id in and out.
	CorrelationHeader = "X-Correlation-ID"
)

// WorkflowRunner executes a submission, streaming its progress.
type WorkflowRunner interface {
	Run(ctx context.Context, sub workflow.Submission, stream ports.ProgressStream) (orchestrator.Result, error)
}

// StoryboardGenerator renders every variant of a storyboard.
type StoryboardGenerator interface {
	Generate(ctx context.Context, req storyboard.Request) (workflow.ResultMatrix, error)
}

// Server is the genflow HTTP API.
type Server struct {
	runner      WorkflowRunner
	storyboards StoryboardGenerator
	tasks       ports.TaskStore
	logger      ports.Logger
	handler     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger injects a logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTaskStore enables the workflow status endpoints.
func WithTaskStore(tasks ports.TaskStore) Option {
	return func(s *Server) {
		s.tasks = tasks
	}
}

// WithStoryboards enables storyboard generation.
func WithStoryboards(gen StoryboardGenerator) Option {
	return func(s *Server) {
		s.storyboards = gen
	}
}

// New builds a Server around runner.
func New(runner WorkflowRunner, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/workflows", s.handleRunWorkflow)
	mux.HandleFunc("GET /v1/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("POST /v1/storyboards", s.handleGenerateStoryboard)
	mux.HandleFunc("POST /v1/storyboards/assemble", s.handleAssembleStoryboard)

	s.handler = s.withCorrelation(s.withRequestLog(mux))
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info(ctx, "api server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info(shutdownCtx, "api server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func (s *Server) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = logging.GenerateCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn(r.Context(), "request failed", fields...)
			return
		}
		s.logger.Debug(r.Context(), "request handled", fields...)
	})
}

// statusRecorder remembers the response status while still letting SSE
// writes flush through.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(p)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
