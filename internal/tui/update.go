package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// Update applies progress events and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		if msg.Event.Type == workflow.EventWorkflowDone {
			m.finished = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) apply(event workflow.ProgressEvent) {
	if event.WorkflowID != "" {
		m.workflowID = event.WorkflowID
	}

	switch event.Type {
	case workflow.EventStepStarted:
		entry := m.ensureStep(event.StepID)
		entry.State = workflow.StepStateRunning
		if event.Title != "" {
			entry.Title = event.Title
		}
		entry.Started = event.Timestamp
		m.steps[event.StepID] = entry
	case workflow.EventStepCompleted:
		entry := m.ensureStep(event.StepID)
		if entry.State != workflow.StepStateSucceeded {
			m.completed++
		}
		entry.State = workflow.StepStateSucceeded
		if !entry.Started.IsZero() && event.Timestamp.After(entry.Started) {
			entry.Duration = event.Timestamp.Sub(entry.Started)
		}
		m.steps[event.StepID] = entry
		if event.Output != nil {
			m.outputs[event.StepID] = *event.Output
		}
	case workflow.EventStepFailed:
		entry := m.ensureStep(event.StepID)
		entry.State = workflow.StepStateFailed
		entry.Message = event.Error
		m.steps[event.StepID] = entry
		m.failedStep = event.StepID
		m.errMsg = event.Error
	case workflow.EventWorkflowDone:
		if len(event.Outputs) > 0 {
			m.outputs = event.Outputs.Clone()
		}
		if event.Status == workflow.DoneError && m.errMsg == "" {
			m.errMsg = event.Error
		}
	}
}
