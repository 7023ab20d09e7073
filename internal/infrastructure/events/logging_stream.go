package events

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

// LoggingStream decorates a ProgressStream, rendering every event as a
// structured log entry before forwarding it to the wrapped stream.
type LoggingStream struct {
	inner  ports.ProgressStream
	logger ports.Logger
	closed bool
	mu     sync.RWMutex
}

// NewLoggingStream wraps inner. A nil inner only logs.
func NewLoggingStream(inner ports.ProgressStream, logger ports.Logger) *LoggingStream {
	return &LoggingStream{inner: inner, logger: logger}
}

// Send logs the event and forwards it to the wrapped stream.
func (s *LoggingStream) Send(ctx context.Context, event workflow.ProgressEvent) {
	if s == nil {
		return
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	if s.logger != nil {
		fields := []interface{}{"event_type", string(event.Type), "workflow_id", event.WorkflowID}
		if event.StepID != "" {
			fields = append(fields, "step_id", event.StepID)
		}
		if event.Status != "" {
			fields = append(fields, "status", string(event.Status))
		}
		if event.Error != "" {
			fields = append(fields, "error", event.Error)
		}
		switch event.Type {
		case workflow.EventStepFailed:
			s.logger.Warn(ctx, "progress event", fields...)
		case workflow.EventWorkflowDone:
			if event.Status == workflow.DoneError {
				s.logger.Error(ctx, "progress event", fields...)
			} else {
				s.logger.Info(ctx, "progress event", fields...)
			}
		default:
			s.logger.Debug(ctx, "progress event", fields...)
		}
	}

	if s.inner != nil {
		s.inner.Send(ctx, event)
	}
}

// Close closes the wrapped stream once.
func (s *LoggingStream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.inner != nil {
		s.inner.Close()
	}
}

var _ ports.ProgressStream = (*LoggingStream)(nil)
