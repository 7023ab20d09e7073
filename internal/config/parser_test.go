package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

func TestDecodePlanJSONKeepsNumbers(t *testing.T) {
	doc, err := DecodePlan(strings.NewReader(`{
		"workflow_id": "wf",
		"steps": [{"id": "img", "tool": "image", "model": "m", "inputs": {"steps": 30, "guidance": 3.5}}]
	}`), FormatJSON)
	require.NoError(t, err)

	sub := doc.Submission()
	require.Len(t, sub.Plan.Steps, 1)
	assert.Equal(t, json.Number("30"), sub.Plan.Steps[0].Inputs["steps"])
	assert.Equal(t, workflow.ToolImage, sub.Plan.Steps[0].Tool)
}

func TestValidatePlanReportsDocumentFieldNames(t *testing.T) {
	doc := &PlanDocument{Steps: []StepDocument{
		{ID: "ok", Tool: "image", Model: "m"},
		{ID: "bad id!", Tool: "image", Model: "m"},
	}}

	err := ValidatePlan(doc)
	var valErr *apperrors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "steps[1].id", valErr.Field)
}

func TestValidatePlanRequiresSteps(t *testing.T) {
	err := ValidatePlan(&PlanDocument{})
	var valErr *apperrors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "steps", valErr.Field)
}

func TestValidatePlanRejectsBadPreviousOutputKey(t *testing.T) {
	url := "http://x"
	err := ValidatePlan(&PlanDocument{
		Steps:           []StepDocument{{ID: "a", Tool: "image", Model: "m"}},
		PreviousOutputs: map[string]OutputDocument{"not valid": {URL: &url}},
	})
	assert.Error(t, err)
}

func TestValidatePlanDependencyRules(t *testing.T) {
	cases := map[string][]StepDocument{
		"self":    {{ID: "a", Tool: "image", Model: "m", Dependencies: []string{"a"}}},
		"unknown": {{ID: "a", Tool: "image", Model: "m", Dependencies: []string{"zzz"}}},
		"forward": {
			{ID: "a", Tool: "video", Model: "m", Dependencies: []string{"b"}},
			{ID: "b", Tool: "image", Model: "m"},
		},
	}
	for name, steps := range cases {
		err := ValidatePlan(&PlanDocument{Steps: steps})
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "depends on", name)
	}
}

func TestDocumentRoundTripThroughSubmission(t *testing.T) {
	text := "hello"
	doc := PlanDocument{
		WorkflowID:      "wf",
		Steps:           []StepDocument{{ID: "a", Tool: "text", Model: "gpt", Inputs: map[string]any{"prompt": "x"}}},
		PreviousOutputs: map[string]OutputDocument{"a": {Text: &text}},
	}
	back := DocumentFromSubmission(doc.Submission())
	assert.Equal(t, doc.WorkflowID, back.WorkflowID)
	assert.Equal(t, doc.Steps[0].Inputs, back.Steps[0].Inputs)
	assert.Equal(t, "hello", *back.PreviousOutputs["a"].Text)
}

func TestFormatForPath(t *testing.T) {
	f, ok := FormatForPath("plan.YML")
	assert.True(t, ok)
	assert.Equal(t, FormatYAML, f)

	_, ok = FormatForPath("plan.txt")
	assert.False(t, ok)
}
