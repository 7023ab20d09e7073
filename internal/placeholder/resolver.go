// Package placeholder substitutes references to earlier steps' outputs inside
// a step's inputs.
//
// A reference is written {{step_id}}, {{step_id.url}} or {{step_id.text}};
// the bare form means the url field. Unresolvable references are left as
// written.
package placeholder

import (
	"regexp"
	"strings"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_-]+)(?:\.(url|text))?\s*\}\}`)

// Reference is a parsed placeholder token.
type Reference struct {
	StepID string
	Field  workflow.OutputField
}

// Token renders the canonical placeholder for a step output field.
func Token(stepID string, field workflow.OutputField) string {
	if field == "" || field == workflow.FieldURL {
		return "{{" + stepID + "}}"
	}
	return "{{" + stepID + "." + string(field) + "}}"
}

// Parse returns the reference when s is exactly one placeholder token.
func Parse(s string) (Reference, bool) {
	trimmed := strings.TrimSpace(s)
	loc := tokenPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return Reference{}, false
	}
	return toReference(trimmed, loc), true
}

// References lists every placeholder found anywhere inside value.
func References(value any) []Reference {
	var refs []Reference
	walk(value, func(s string) {
		for _, loc := range tokenPattern.FindAllStringSubmatchIndex(s, -1) {
			refs = append(refs, toReference(s, loc))
		}
	})
	return refs
}

// Resolve returns a copy of value with every resolvable placeholder replaced
// by the referenced output. Maps and slices are rebuilt, so the caller's
// structure is never mutated. Resolving is idempotent for a fixed outputs map.
func Resolve(value any, outputs workflow.Outputs) any {
	switch typed := value.(type) {
	case string:
		return resolveString(typed, outputs)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = Resolve(v, outputs)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = Resolve(v, outputs)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = resolveString(v, outputs)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, v := range typed {
			out[i] = resolveString(v, outputs)
		}
		return out
	default:
		return value
	}
}

// ResolveInputs is Resolve specialised to a step's input map.
func ResolveInputs(inputs map[string]any, outputs workflow.Outputs) map[string]any {
	if inputs == nil {
		return map[string]any{}
	}
	return Resolve(inputs, outputs).(map[string]any)
}

// Unresolved lists placeholders in value that outputs cannot satisfy.
func Unresolved(value any, outputs workflow.Outputs) []Reference {
	var missing []Reference
	for _, ref := range References(value) {
		if _, ok := outputs.Lookup(ref.StepID, ref.Field); !ok {
			missing = append(missing, ref)
		}
	}
	return missing
}

func resolveString(s string, outputs workflow.Outputs) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		loc := tokenPattern.FindStringSubmatchIndex(token)
		ref := toReference(token, loc)
		if v, ok := outputs.Lookup(ref.StepID, ref.Field); ok {
			return v
		}
		return token
	})
}

func toReference(s string, loc []int) Reference {
	ref := Reference{StepID: s[loc[2]:loc[3]], Field: workflow.FieldURL}
	if loc[4] >= 0 {
		ref.Field = workflow.OutputField(s[loc[4]:loc[5]])
	}
	return ref
}

func walk(value any, visit func(string)) {
	switch typed := value.(type) {
	case string:
		visit(typed)
	case map[string]any:
		for _, v := range typed {
			walk(v, visit)
		}
	case []any:
		for _, v := range typed {
			walk(v, visit)
		}
	case map[string]string:
		for _, v := range typed {
			visit(v)
		}
	case []string:
		for _, v := range typed {
			visit(v)
		}
	}
}
