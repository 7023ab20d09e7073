package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// SummaryData is what the run summary reports.
type SummaryData struct {
	WorkflowID string
	Total      int
	Completed  int
	Finished   bool
	Cancelled  bool
	FailedStep string
	Error      string
	Outputs    workflow.Outputs
}

// Summary renders the end-of-run report.
type Summary struct {
	data SummaryData
}

func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary. Nothing is shown before the run finishes.
func (s Summary) View() string {
	if !s.data.Finished && !s.data.Cancelled {
		return ""
	}

	var lines []string
	if s.data.WorkflowID != "" {
		lines = append(lines, fmt.Sprintf("Workflow: %s", s.data.WorkflowID))
	}
	if s.data.Total > 0 {
		lines = append(lines, fmt.Sprintf("Steps: %d/%d completed", s.data.Completed, s.data.Total))
	}

	switch {
	case s.data.Cancelled:
		lines = append(lines, "Run cancelled")
	case s.data.FailedStep != "":
		lines = append(lines, fmt.Sprintf("Step %s failed: %s", s.data.FailedStep, s.data.Error))
	case s.data.Error != "":
		lines = append(lines, fmt.Sprintf("Run failed: %s", s.data.Error))
	default:
		lines = append(lines, "Run finished successfully")
	}

	if len(s.data.Outputs) > 0 {
		ids := make([]string, 0, len(s.data.Outputs))
		for id := range s.data.Outputs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		lines = append(lines, "Outputs:")
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("  %s: %s", id, describeOutput(s.data.Outputs[id])))
		}
	}

	return strings.Join(lines, "\n")
}

func describeOutput(out workflow.StepOutput) string {
	if url, ok := out.Field(workflow.FieldURL); ok {
		return url
	}
	if text, ok := out.Field(workflow.FieldText); ok {
		const limit = 60
		text = strings.Join(strings.Fields(text), " ")
		if len(text) > limit {
			text = text[:limit] + "..."
		}
		return fmt.Sprintf("%q", text)
	}
	return "(empty)"
}
