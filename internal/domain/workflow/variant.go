package workflow

// MinVariantSlots is the minimum number of variant cells per segment.
const MinVariantSlots = 3

// Segment is one chunk of source content, such as a script beat.
type Segment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// VariantPlan describes how one variant of a segment should be rendered.
type VariantPlan struct {
	SegmentID    string   `json:"segment_id"`
	VariantIndex int      `json:"variant_index"`
	Prompt       string   `json:"prompt"`
	Model        string   `json:"model,omitempty"`
	Tool         ToolKind `json:"tool,omitempty"`
}

// VariantAsset is the generated rendition of a variant.
type VariantAsset struct {
	SegmentID    string `json:"segment_id"`
	VariantIndex int    `json:"variant_index"`
	URL          string `json:"url,omitempty"`
	Status       string `json:"status,omitempty"`
	Error        string `json:"error,omitempty"`
}

// VariantCell pairs the plan and asset of one (segment, variant) position.
// A nil *VariantCell inside a matrix row marks a missing cell.
type VariantCell struct {
	Plan  *VariantPlan  `json:"plan"`
	Asset *VariantAsset `json:"asset"`
}

// MatrixRow holds a segment's text and its positional variant cells.
type MatrixRow struct {
	SegmentText string         `json:"segment_text"`
	Variants    []*VariantCell `json:"variants"`
}

// ResultMatrix is the dense, index-stable presentation of a storyboard.
// Order preserves the segment order the matrix was assembled from.
type ResultMatrix struct {
	Segments map[string]*MatrixRow `json:"segments"`
	Order    []string              `json:"order"`
}
