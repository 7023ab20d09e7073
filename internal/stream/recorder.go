package stream

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

// Recorder keeps every event in memory. The CLI uses it to print a summary
// of non-interactive runs.
type Recorder struct {
	mu     sync.Mutex
	events []workflow.ProgressEvent
	closed bool
	closes int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, event workflow.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.events = append(r.events, event)
}

func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	r.closed = true
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []workflow.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]workflow.ProgressEvent(nil), r.events...)
}

// Types lists recorded event types with their step ids, e.g. "step_started(img)".
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, 0, len(events))
	for _, evt := range events {
		label := string(evt.Type)
		switch {
		case evt.StepID != "":
			label += "(" + evt.StepID + ")"
		case evt.Status != "":
			label += "(" + string(evt.Status) + ")"
		}
		out = append(out, label)
	}
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Last returns the most recent event.
func (r *Recorder) Last() (workflow.ProgressEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return workflow.ProgressEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

var _ ports.ProgressStream = (*Recorder)(nil)
