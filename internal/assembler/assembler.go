// Package assembler folds sparse variant plans and assets into a dense
// ResultMatrix.
package assembler

import "github.com/alexisbeaulieu97/genflow/internal/domain/workflow"

// Assemble builds the matrix for segments. Every row has
// max(MinVariantSlots, highest referenced index + 1) cells; positions with no
// plan and no asset stay nil. Plans and assets that name an unknown segment,
// or carry a negative index, are dropped. A plan and an asset for the same
// position share one cell regardless of arrival order.
func Assemble(segments []workflow.Segment, plans []workflow.VariantPlan, assets []workflow.VariantAsset) workflow.ResultMatrix {
	matrix := workflow.ResultMatrix{
		Segments: make(map[string]*workflow.MatrixRow, len(segments)),
		Order:    make([]string, 0, len(segments)),
	}
	for _, seg := range segments {
		if _, seen := matrix.Segments[seg.ID]; seen {
			continue
		}
		matrix.Segments[seg.ID] = &workflow.MatrixRow{
			SegmentText: seg.Text,
			Variants:    make([]*workflow.VariantCell, workflow.MinVariantSlots),
		}
		matrix.Order = append(matrix.Order, seg.ID)
	}

	maxIndex := make(map[string]int, len(segments))
	observe := func(segmentID string, index int) {
		if cur, ok := maxIndex[segmentID]; !ok || index > cur {
			maxIndex[segmentID] = index
		}
	}
	for _, p := range plans {
		observe(p.SegmentID, p.VariantIndex)
	}
	for _, a := range assets {
		observe(a.SegmentID, a.VariantIndex)
	}

	for id, idx := range maxIndex {
		row, ok := matrix.Segments[id]
		if !ok {
			continue
		}
		if want := idx + 1; want > len(row.Variants) {
			grown := make([]*workflow.VariantCell, want)
			copy(grown, row.Variants)
			row.Variants = grown
		}
	}

	for i := range plans {
		plan := plans[i]
		if cell := cellFor(matrix, plan.SegmentID, plan.VariantIndex); cell != nil {
			cell.Plan = &plan
		}
	}
	for i := range assets {
		asset := assets[i]
		if cell := cellFor(matrix, asset.SegmentID, asset.VariantIndex); cell != nil {
			cell.Asset = &asset
		}
	}

	return matrix
}

func cellFor(matrix workflow.ResultMatrix, segmentID string, index int) *workflow.VariantCell {
	row, ok := matrix.Segments[segmentID]
	if !ok || index < 0 || index >= len(row.Variants) {
		return nil
	}
	if row.Variants[index] == nil {
		row.Variants[index] = &workflow.VariantCell{}
	}
	return row.Variants[index]
}
