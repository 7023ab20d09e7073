package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var stepIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ToolKind enumerates the generation tools a step can target. The set is
// closed: dispatchers switch over it exhaustively.
type ToolKind string

const (
	ToolImage             ToolKind = "image"
	ToolVideo             ToolKind = "video"
	ToolLipsync           ToolKind = "lipsync"
	ToolBackgroundRemoval ToolKind = "background_removal"
	ToolEnhance           ToolKind = "enhance"
	ToolTranscription     ToolKind = "transcription"
	ToolTextToSpeech      ToolKind = "text_to_speech"
	ToolText              ToolKind = "text"
)

var validToolKinds = []ToolKind{
	ToolImage,
	ToolVideo,
	ToolLipsync,
	ToolBackgroundRemoval,
	ToolEnhance,
	ToolTranscription,
	ToolTextToSpeech,
	ToolText,
}

// ToolKinds returns every supported tool kind in declaration order.
func ToolKinds() []ToolKind {
	return append([]ToolKind(nil), validToolKinds...)
}

// Valid reports whether the kind belongs to the closed enumeration.
func (k ToolKind) Valid() bool {
	for _, candidate := range validToolKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// DefaultTitle renders a human readable label such as "Generate Background Removal".
func (k ToolKind) DefaultTitle() string {
	words := strings.ReplaceAll(string(k), "_", " ")
	return "Generate " + titleCaser.String(words)
}

// Step represents a single unit of generation work in a plan. Steps are
// treated as immutable once submitted.
type Step struct {
	ID           string
	Title        string
	Tool         ToolKind
	Model        string
	Inputs       map[string]any
	Dependencies []string
}

// Validate ensures the step satisfies all business rules.
func (s Step) Validate() error {
	if s.ID == "" {
		return newMissingFieldError("id")
	}
	if !stepIDPattern.MatchString(s.ID) {
		return newValidationError("step id must match ^[a-zA-Z0-9_-]+$", map[string]interface{}{"step_id": s.ID})
	}
	if s.Tool == "" {
		return newMissingFieldError("tool").WithContext(map[string]interface{}{"step_id": s.ID})
	}
	if !s.Tool.Valid() {
		return newTypeError(fmt.Sprintf("one of %v", validToolKinds), string(s.Tool)).WithContext(map[string]interface{}{"step_id": s.ID})
	}
	if strings.TrimSpace(s.Model) == "" {
		return newMissingFieldError("model").WithContext(map[string]interface{}{"step_id": s.ID})
	}
	return nil
}

// DisplayTitle returns the explicit title or one derived from the tool kind.
func (s Step) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return s.Tool.DefaultTitle()
}

// Clone returns a deep copy so callers can derive inputs without touching
// the submitted step.
func (s Step) Clone() Step {
	out := s
	out.Dependencies = append([]string(nil), s.Dependencies...)
	out.Inputs = CloneValue(s.Inputs).(map[string]any)
	return out
}

// CloneValue deep-copies maps and slices produced by JSON/YAML decoding.
func CloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = CloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = val
		}
		return out
	default:
		return v
	}
}
