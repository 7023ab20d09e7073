// Package defaults fills conventionally required inputs a step omitted and
// coerces loosely typed scalar values.
package defaults

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/placeholder"
)

var (
	integerPattern = regexp.MustCompile(`^-?\d+$`)
	decimalPattern = regexp.MustCompile(`^-?\d*\.\d+$`)
)

// Binding names the input a tool expects from its upstream step and which
// output field of that step feeds it.
type Binding struct {
	Input string
	Field workflow.OutputField
}

// BindingFor returns the conventional input binding for a tool kind. Tools
// that take no upstream media report ok=false.
func BindingFor(kind workflow.ToolKind) (Binding, bool) {
	switch kind {
	case workflow.ToolVideo:
		return Binding{Input: "start_image", Field: workflow.FieldURL}, true
	case workflow.ToolLipsync:
		return Binding{Input: "video", Field: workflow.FieldURL}, true
	case workflow.ToolBackgroundRemoval:
		return Binding{Input: "image", Field: workflow.FieldURL}, true
	case workflow.ToolEnhance:
		return Binding{Input: "image", Field: workflow.FieldURL}, true
	case workflow.ToolTranscription:
		return Binding{Input: "audio", Field: workflow.FieldURL}, true
	case workflow.ToolTextToSpeech:
		return Binding{Input: "text", Field: workflow.FieldText}, true
	case workflow.ToolImage, workflow.ToolText:
		return Binding{}, false
	default:
		return Binding{}, false
	}
}

// Apply returns a copy of step with defaults injected and scalars coerced.
// It must run before placeholder resolution so injected references resolve
// in the same pass.
func Apply(step workflow.Step) workflow.Step {
	out := step.Clone()
	InjectDependency(&out)
	out.Inputs = Coerce(out.Inputs).(map[string]any)
	return out
}

// InjectDependency wires a step's single dependency into the tool's
// conventional input when the step left that input out or empty.
func InjectDependency(step *workflow.Step) bool {
	if step == nil || len(step.Dependencies) != 1 {
		return false
	}
	binding, ok := BindingFor(step.Tool)
	if !ok {
		return false
	}
	if step.Inputs == nil {
		step.Inputs = map[string]any{}
	}
	if present(step.Inputs[binding.Input]) {
		return false
	}
	step.Inputs[binding.Input] = placeholder.Token(step.Dependencies[0], binding.Field)
	return true
}

// Coerce converts "true"/"false" strings to booleans and numeric strings to
// int64 or float64, recursing into maps and slices. Placeholder tokens and
// other strings are returned unchanged.
func Coerce(value any) any {
	switch typed := value.(type) {
	case string:
		return coerceString(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = Coerce(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = Coerce(v)
		}
		return out
	default:
		return value
	}
}

func coerceString(s string) any {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if integerPattern.MatchString(trimmed) {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	}
	if decimalPattern.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return s
}

func present(v any) bool {
	switch typed := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(typed) != ""
	default:
		return true
	}
}
