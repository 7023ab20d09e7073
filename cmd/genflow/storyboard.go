package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/storyboard"
)

func newStoryboardCmd(root *rootFlags) *cobra.Command {
	var (
		path   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "storyboard",
		Short: "Render every variant of a storyboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readStoryboard(path)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer app.Close()

			matrix, err := app.storyboards.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(matrix)
			}
			printMatrix(cmd.OutOrStdout(), matrix)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to a JSON storyboard {segments, plans}")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result matrix as JSON")
	cmd.MarkFlagRequired("file") //nolint:errcheck

	return cmd
}

func readStoryboard(path string) (storyboard.Request, error) {
	var req storyboard.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read storyboard: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode storyboard %s: %w", path, err)
	}
	if len(req.Segments) == 0 {
		return req, fmt.Errorf("storyboard %s has no segments", path)
	}
	return req, nil
}

// printMatrix renders one row per (segment, variant) cell, leaving missing
// cells visible.
func printMatrix(out io.Writer, matrix workflow.ResultMatrix) {
	var rows [][]string
	for _, id := range matrix.Order {
		row := matrix.Segments[id]
		if row == nil {
			continue
		}
		for i, cell := range row.Variants {
			rows = append(rows, matrixRow(id, i, cell))
		}
	}
	fmt.Fprintln(out, renderTable([]string{"Segment", "Variant", "Status", "Asset"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func matrixRow(segmentID string, index int, cell *workflow.VariantCell) []string {
	row := []string{segmentID, strconv.Itoa(index), "-", "-"}
	if cell == nil || cell.Asset == nil {
		if cell != nil && cell.Plan != nil {
			row[2] = "planned"
		}
		return row
	}
	row[2] = cell.Asset.Status
	switch {
	case cell.Asset.URL != "":
		row[3] = cell.Asset.URL
	case cell.Asset.Error != "":
		row[3] = truncate(cell.Asset.Error, 60)
	}
	return row
}
