package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/tui/components"
)

// View renders the current state of the run.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("genflow • %s", m.heading())))

	progress := components.NewProgress(m.total).View(m.completed, m.resumed)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	entries := components.NewStepList(m.order, m.steps).Entries()
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Steps"), m.renderSteps(entries))
	}

	summary := components.NewSummary(components.SummaryData{
		WorkflowID: m.workflowID,
		Total:      m.total,
		Completed:  m.completed,
		Finished:   m.finished,
		Cancelled:  m.cancelled,
		FailedStep: m.failedStep,
		Error:      m.errMsg,
		Outputs:    m.outputs,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	} else {
		sections = append(sections, hintStyle.Render("press q to cancel"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderSteps(entries []components.StepEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		icon := StatusIcon(entry.State, entry.Resumed)
		if entry.State == workflow.StepStateRunning && !m.finished {
			icon = m.spinner.View()
		}
		line := fmt.Sprintf(" %s %s", icon, entry.ID)
		if entry.Title != "" {
			line += " " + detailStyle.Render(entry.Title)
		}
		if entry.Resumed {
			line += detailStyle.Render(" (resumed)")
		}
		if entry.Duration > 0 {
			line += fmt.Sprintf(" (%s)", entry.Duration.Truncate(10*time.Millisecond))
		}
		if msg := strings.TrimSpace(entry.Message); msg != "" {
			line += ": " + failureStyle.Render(msg)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) heading() string {
	if strings.TrimSpace(m.title) != "" {
		return m.title
	}
	if m.workflowID != "" {
		return m.workflowID
	}
	return "workflow"
}

// StatusIcon returns the glyph for a step state.
func StatusIcon(state workflow.StepState, resumed bool) string {
	switch {
	case resumed:
		return resumedStyle.Render("↺")
	case state == workflow.StepStateSucceeded:
		return successStyle.Render("✓")
	case state == workflow.StepStateRunning:
		return runningStyle.Render("⏳")
	case state == workflow.StepStateFailed:
		return failureStyle.Render("✗")
	default:
		return pendingStyle.Render("…")
	}
}
