package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

// SSE writes events as text/event-stream messages, one JSON object per
// "data:" line, flushing after each.
type SSE struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
	err     error
	onClose func()
}

// SSEOption customizes an SSE stream.
type SSEOption func(*SSE)

// WithOnClose registers a hook run once when the stream closes.
func WithOnClose(fn func()) SSEOption {
	return func(s *SSE) {
		s.onClose = fn
	}
}

// NewSSE prepares w for event streaming. When w is an http.ResponseWriter the
// content-type headers are written and the status line is sent.
func NewSSE(w io.Writer, opts ...SSEOption) *SSE {
	s := &SSE{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	for _, opt := range opts {
		opt(s)
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		rw.WriteHeader(http.StatusOK)
		s.flush()
	}
	return s
}

// Send writes event. Write failures close the stream; later sends are no-ops.
func (s *SSE) Send(ctx context.Context, event workflow.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.err = fmt.Errorf("encode %s event: %w", event.Type, err)
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.err = fmt.Errorf("write %s event: %w", event.Type, err)
		s.closed = true
		return
	}
	s.flush()
}

// Close stops the stream. Safe to call more than once.
func (s *SSE) Close() {
	s.mu.Lock()
	if s.closed && s.onClose == nil {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hook := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Err returns the first encode or write failure, if any.
func (s *SSE) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SSE) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

var _ ports.ProgressStream = (*SSE)(nil)
