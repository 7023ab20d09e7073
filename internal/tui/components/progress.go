package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const progressWidth = 30

// Progress renders how many steps of a run have produced output.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a bar for total steps.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = progressWidth
	return Progress{bar: bar, total: total}
}

// Ratio is the completed fraction, clamped to [0, 1].
func (p Progress) Ratio(completed int) float64 {
	if p.total <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1.0, float64(completed)/float64(p.total)))
}

// View renders the bar with a "completed/total" label, noting resumed steps.
func (p Progress) View(completed, resumed int) string {
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d", completed, p.total))
	view := lipgloss.JoinHorizontal(lipgloss.Left, label, " ", p.bar.ViewAs(p.Ratio(completed)))
	if resumed > 0 {
		view += lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" (%d resumed)", resumed))
	}
	return view
}
