package config

import (
	"fmt"

	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

// ValidatePlan performs schema and cross-step validation. Dependencies must
// name a step declared earlier in the document.
func ValidatePlan(doc *PlanDocument) error {
	if doc == nil {
		return apperrors.NewValidationError("plan", "plan document is nil", nil)
	}

	if err := validatorInstance().Struct(doc); err != nil {
		return convertValidationError(err)
	}

	stepIndex := make(map[string]int, len(doc.Steps))
	for i, step := range doc.Steps {
		if _, exists := stepIndex[step.ID]; exists {
			return apperrors.NewValidationError(fieldForStep(i, "id"), fmt.Sprintf("duplicate step id %q", step.ID), nil)
		}
		stepIndex[step.ID] = i
	}

	for i, step := range doc.Steps {
		for _, dep := range step.Dependencies {
			index, ok := stepIndex[dep]
			switch {
			case !ok:
				return apperrors.NewValidationError(fieldForStep(i, "dependencies"), fmt.Sprintf("depends on unknown step %q", dep), nil)
			case index == i:
				return apperrors.NewValidationError(fieldForStep(i, "dependencies"), fmt.Sprintf("step %q depends on itself", step.ID), nil)
			case index > i:
				return apperrors.NewValidationError(fieldForStep(i, "dependencies"), fmt.Sprintf("depends on %q which is declared later", dep), nil)
			}
		}
	}

	return nil
}
