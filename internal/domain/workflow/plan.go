package workflow

// Plan is an ordered list of generation steps. Steps execute in declaration
// order; a step may only depend on steps declared before it.
type Plan struct {
	Steps []Step
}

// Validate ensures the plan satisfies all invariants: at least one step,
// valid and unique step identifiers, and dependencies that point strictly
// backwards. The backwards-only rule makes cycles impossible.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return newValidationError("plan requires at least one step", nil)
	}

	seen := make(map[string]struct{}, len(p.Steps))
	for _, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return err
		}
		if _, ok := seen[step.ID]; ok {
			return newDuplicateError(step.ID)
		}
		seen[step.ID] = struct{}{}
	}

	return p.ValidateDependencies()
}

// ValidateDependencies ensures every dependency names an earlier step.
func (p Plan) ValidateDependencies() error {
	index := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		index[step.ID] = i
	}

	for i, step := range p.Steps {
		for _, dep := range step.Dependencies {
			if dep == step.ID {
				return newDependencyError("step cannot depend on itself", map[string]interface{}{"step_id": step.ID})
			}
			pos, ok := index[dep]
			if !ok {
				return newDependencyError("dependency not found", map[string]interface{}{"step_id": step.ID, "missing_dependency": dep})
			}
			if pos > i {
				return newDependencyError("dependency declared after dependent step", map[string]interface{}{
					"step_id":       step.ID,
					"dependency_id": dep,
				})
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	steps := make([]Step, len(p.Steps))
	for i, step := range p.Steps {
		steps[i] = step.Clone()
	}
	return Plan{Steps: steps}
}

// Submission is a plan handed to the engine together with its run metadata.
type Submission struct {
	WorkflowID      string
	Plan            Plan
	PreviousOutputs Outputs
	Options         map[string]any
}
