package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

var (
	primaryColor = lipgloss.Color("99")
	successColor = lipgloss.Color("42")
	runningColor = lipgloss.Color("33")
	errorColor   = lipgloss.Color("196")
	mutedColor   = lipgloss.Color("245")
	accentColor  = lipgloss.Color("212")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			PaddingRight(2)

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(mutedColor).
			MarginBottom(1)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(accentColor).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(primaryColor)

	statusFinishedStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	statusRunningStyle  = lipgloss.NewStyle().Foreground(runningColor).Bold(true)
	statusErrorStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	statusCreatedStyle  = lipgloss.NewStyle().Foreground(mutedColor)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(10)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(mutedColor).
			MarginTop(1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(errorColor).
				Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)
)

// StatusIcon renders the glyph for a run status.
func StatusIcon(status workflow.Status) string {
	switch status {
	case workflow.StatusFinished:
		return statusFinishedStyle.Render("✓")
	case workflow.StatusRunning:
		return statusRunningStyle.Render("⏳")
	case workflow.StatusError:
		return statusErrorStyle.Render("✗")
	default:
		return statusCreatedStyle.Render("•")
	}
}
