package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

// convertValidationError normalizes validator errors into ValidationErrors
// named after the document's own field paths.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := documentFieldName(ve)
		return apperrors.NewValidationError(field, describe(ve), err)
	}

	return apperrors.NewValidationError("plan", err.Error(), err)
}

// documentFieldName drops the root struct name: "PlanDocument.steps[0].id"
// becomes "steps[0].id".
func documentFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "step_id":
		return fmt.Sprintf("%q must match ^[a-zA-Z0-9_-]+$", fe.Value())
	case "tool_kind":
		return fmt.Sprintf("unsupported tool kind %q", fe.Value())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}

func fieldForStep(index int, field string) string {
	return fmt.Sprintf("steps[%d].%s", index, field)
}
