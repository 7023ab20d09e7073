package config

import (
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// PlanDocument is the on-disk and on-the-wire shape of a submission.
type PlanDocument struct {
	WorkflowID      string                    `yaml:"workflow_id" json:"workflow_id,omitempty"`
	Steps           []StepDocument            `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
	PreviousOutputs map[string]OutputDocument `yaml:"previous_outputs" json:"previous_outputs,omitempty" validate:"dive,keys,step_id,endkeys"`
	Options         map[string]any            `yaml:"options" json:"options,omitempty"`
}

// StepDocument declares one step.
type StepDocument struct {
	ID           string         `yaml:"id" json:"id" validate:"required,step_id"`
	Title        string         `yaml:"title" json:"title,omitempty"`
	Tool         string         `yaml:"tool" json:"tool" validate:"required,tool_kind"`
	Model        string         `yaml:"model" json:"model" validate:"required"`
	Inputs       map[string]any `yaml:"inputs" json:"inputs,omitempty"`
	Dependencies []string       `yaml:"dependencies" json:"dependencies,omitempty" validate:"dive,step_id"`
}

// OutputDocument is a previously produced step output.
type OutputDocument struct {
	URL  *string `yaml:"url" json:"url,omitempty"`
	Text *string `yaml:"text" json:"text,omitempty"`
}

// Submission converts the document into the engine's model.
func (d PlanDocument) Submission() workflow.Submission {
	steps := make([]workflow.Step, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = s.Step()
	}

	var previous workflow.Outputs
	if len(d.PreviousOutputs) > 0 {
		previous = make(workflow.Outputs, len(d.PreviousOutputs))
		for id, out := range d.PreviousOutputs {
			previous[id] = workflow.StepOutput{URL: out.URL, Text: out.Text}
		}
	}

	return workflow.Submission{
		WorkflowID:      d.WorkflowID,
		Plan:            workflow.Plan{Steps: steps},
		PreviousOutputs: previous,
		Options:         d.Options,
	}
}

// Step converts a step document. Inputs are deep-copied.
func (s StepDocument) Step() workflow.Step {
	step := workflow.Step{
		ID:           s.ID,
		Title:        s.Title,
		Tool:         workflow.ToolKind(s.Tool),
		Model:        s.Model,
		Dependencies: append([]string(nil), s.Dependencies...),
	}
	if s.Inputs != nil {
		step.Inputs = workflow.CloneValue(s.Inputs).(map[string]any)
	}
	return step
}

// DocumentFromSubmission renders a submission back into its document form.
func DocumentFromSubmission(sub workflow.Submission) PlanDocument {
	doc := PlanDocument{WorkflowID: sub.WorkflowID, Options: sub.Options}
	for _, step := range sub.Plan.Steps {
		doc.Steps = append(doc.Steps, StepDocument{
			ID:           step.ID,
			Title:        step.Title,
			Tool:         string(step.Tool),
			Model:        step.Model,
			Inputs:       step.Inputs,
			Dependencies: step.Dependencies,
		})
	}
	if len(sub.PreviousOutputs) > 0 {
		doc.PreviousOutputs = make(map[string]OutputDocument, len(sub.PreviousOutputs))
		for id, out := range sub.PreviousOutputs {
			doc.PreviousOutputs[id] = OutputDocument{URL: out.URL, Text: out.Text}
		}
	}
	return doc
}
