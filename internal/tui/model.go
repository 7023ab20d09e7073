// Package tui renders a workflow run's progress events in the terminal.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/tui/components"
)

// EventMsg delivers one progress event to the model.
type EventMsg struct {
	Event workflow.ProgressEvent
}

// streamClosedMsg reports that the event channel was closed.
type streamClosedMsg struct{}

// Model is the Bubbletea state for a single workflow run.
type Model struct {
	title      string
	workflowID string
	steps      map[string]components.StepEntry
	order      []string
	outputs    workflow.Outputs
	total      int
	completed  int
	resumed    int
	failedStep string
	errMsg     string
	finished   bool
	cancelled  bool

	events  <-chan workflow.ProgressEvent
	cancel  context.CancelFunc
	spinner spinner.Model
}

// Option configures a Model.
type Option func(*Model)

// WithCancel is called when the user interrupts the run.
func WithCancel(cancel context.CancelFunc) Option {
	return func(m *Model) {
		m.cancel = cancel
	}
}

// NewModel seeds one row per plan step. Steps already present in the
// submission's previous outputs start out succeeded.
func NewModel(title string, sub workflow.Submission, events <-chan workflow.ProgressEvent, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	m := Model{
		title:      title,
		workflowID: sub.WorkflowID,
		steps:      make(map[string]components.StepEntry, len(sub.Plan.Steps)),
		order:      make([]string, 0, len(sub.Plan.Steps)),
		outputs:    sub.PreviousOutputs.Clone(),
		events:     events,
		spinner:    s,
	}
	for _, step := range sub.Plan.Steps {
		entry := components.StepEntry{ID: step.ID, Title: step.DisplayTitle(), State: workflow.StepStatePending}
		if _, ok := sub.PreviousOutputs[step.ID]; ok {
			entry.State = workflow.StepStateSucceeded
			entry.Resumed = true
			m.resumed++
			m.completed++
		}
		m.steps[step.ID] = entry
		m.order = append(m.order, step.ID)
		m.total++
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner and begins draining events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan workflow.ProgressEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}

// TotalSteps returns the number of steps in the plan.
func (m Model) TotalSteps() int {
	return m.total
}

// CompletedSteps counts succeeded steps, resumed ones included.
func (m Model) CompletedSteps() int {
	return m.completed
}

// IsFinished reports whether the run has ended.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the run.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// FailedStep is the id of the step that aborted the run, if any.
func (m Model) FailedStep() string {
	return m.failedStep
}

// Outputs returns the outputs gathered so far.
func (m Model) Outputs() workflow.Outputs {
	return m.outputs.Clone()
}

func (m *Model) ensureStep(id string) components.StepEntry {
	entry, ok := m.steps[id]
	if !ok {
		entry = components.StepEntry{ID: id, State: workflow.StepStatePending}
		m.order = append(m.order, id)
		m.total++
	}
	return entry
}
