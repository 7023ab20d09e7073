package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

const maxOutputWidth = 60

// View renders the current model state
func (m Model) View() string {
	switch m.viewMode {
	case ViewDetail:
		return m.renderDetailView()
	case ViewHelp:
		return m.renderHelpView()
	default:
		return m.renderListView()
	}
}

func (m Model) renderListView() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.errorMsg != "" {
		b.WriteString(errorBannerStyle.Render("⚠ " + m.errorMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.renderRecordList())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ move • enter details • r refresh • ? help • q quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("genflow runs")
	counts := m.CountByStatus()
	summary := fmt.Sprintf("%s %d  %s %d  %s %d  %s %d",
		StatusIcon(workflow.StatusRunning), counts[workflow.StatusRunning],
		StatusIcon(workflow.StatusFinished), counts[workflow.StatusFinished],
		StatusIcon(workflow.StatusError), counts[workflow.StatusError],
		StatusIcon(workflow.StatusCreated), counts[workflow.StatusCreated],
	)
	if m.loading {
		summary += "  " + m.spinner.View() + " loading"
	}
	return headerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, summary))
}

func (m Model) renderRecordList() string {
	if len(m.records) == 0 {
		if m.loading {
			return mutedStyle.Render("Loading runs...")
		}
		return mutedStyle.Render("No workflow runs recorded yet.")
	}

	start := m.scrollOffset
	end := start + m.visibleRows()
	if end > len(m.records) {
		end = len(m.records)
	}

	items := make([]string, 0, end-start+2)
	if start > 0 {
		items = append(items, mutedStyle.Render("▲ More above"))
	}
	for i := start; i < end; i++ {
		items = append(items, m.renderRecordItem(m.records[i], i == m.cursor))
	}
	if end < len(m.records) {
		items = append(items, mutedStyle.Render("▼ More below"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (m Model) renderRecordItem(rec workflow.TaskRecord, selected bool) string {
	line := fmt.Sprintf("%s %-24s %-9s %s", StatusIcon(rec.Status), rec.WorkflowID, rec.Status, FormatAge(rec.UpdatedAt, time.Now()))
	if selected {
		return selectedItemStyle.Render(line)
	}
	return itemStyle.Render(line)
}

func (m Model) renderDetailView() string {
	rec, ok := m.recordByID(m.selectedID)
	if !ok {
		return mutedStyle.Render("Run "+m.selectedID+" is no longer available.") + "\n" +
			footerStyle.Render("esc back • q quit")
	}

	rows := []string{
		titleStyle.Render("Run " + rec.WorkflowID),
		detailRow("status", StatusIcon(rec.Status)+" "+string(rec.Status)),
		detailRow("updated", time.UnixMilli(rec.UpdatedAt).Format(time.RFC3339)),
	}
	if rec.OutputURL != "" {
		rows = append(rows, detailRow("url", rec.OutputURL))
	}
	if rec.OutputText != "" {
		rows = append(rows, detailRow("text", Truncate(rec.OutputText, maxOutputWidth)))
	}
	if rec.Error != "" {
		rows = append(rows, detailRow("error", errorBannerStyle.Render(rec.Error)))
	}
	if len(rec.Options) > 0 {
		keys := make([]string, 0, len(rec.Options))
		for k := range rec.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, detailRow(k, fmt.Sprint(rec.Options[k])))
		}
	}
	rows = append(rows, footerStyle.Render("esc back • r refresh • q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderHelpView() string {
	lines := []string{
		titleStyle.Render("Keys"),
		"↑/k, ↓/j   move the cursor",
		"enter      show run details",
		"esc        back to the list",
		"r          reload from the task store",
		"x          dismiss the error banner",
		"q          quit",
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n" + footerStyle.Render("esc close help")
}

func (m Model) recordByID(id string) (workflow.TaskRecord, bool) {
	for _, rec := range m.records {
		if rec.WorkflowID == id {
			return rec, true
		}
	}
	return workflow.TaskRecord{}, false
}

func detailRow(label, value string) string {
	return labelStyle.Render(label) + value
}

// FormatAge renders how long ago a millisecond timestamp was.
func FormatAge(updatedMillis int64, now time.Time) string {
	if updatedMillis <= 0 {
		return "-"
	}
	age := now.Sub(time.UnixMilli(updatedMillis))
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// Truncate shortens s to limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
