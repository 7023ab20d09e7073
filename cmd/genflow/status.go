package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

func newStatusCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [workflow-id]",
		Short: "Show recorded workflow runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer app.Close()

			var records []workflow.TaskRecord
			if len(args) == 1 {
				record, err := app.tasks.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				records = []workflow.TaskRecord{*record}
			} else {
				records, err = app.tasks.List(cmd.Context())
				if err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			printTaskTable(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func printTaskTable(out io.Writer, records []workflow.TaskRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "no workflow runs recorded")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.WorkflowID, string(r.Status), taskOutput(r), formatUpdated(r.UpdatedAt)})
	}
	fmt.Fprintln(out, renderTable([]string{"Workflow", "Status", "Output", "Updated"}, rows, nil))
}

func taskOutput(r workflow.TaskRecord) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.OutputURL != "":
		return r.OutputURL
	case r.OutputText != "":
		return truncate(r.OutputText, 48)
	default:
		return "-"
	}
}

func formatUpdated(millis int64) string {
	if millis <= 0 {
		return "-"
	}
	return time.UnixMilli(millis).Local().Format(time.DateTime)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
