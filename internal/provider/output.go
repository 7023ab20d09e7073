package provider

import (
	"encoding/json"
	"strings"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// textTools produce text rather than media; a bare string result is text.
func textTool(kind workflow.ToolKind) bool {
	return kind == workflow.ToolTranscription || kind == workflow.ToolText
}

// ExtractOutput probes the three result shapes providers use, preferring the
// most specific: an object with url/output/text fields, then an array whose
// first element is the result, then a raw string.
func ExtractOutput(kind workflow.ToolKind, raw json.RawMessage) (workflow.StepOutput, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return workflow.StepOutput{}, false
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return workflow.StepOutput{}, false
		}
		return fromObject(kind, obj)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return workflow.StepOutput{}, false
		}
		return ExtractOutput(kind, items[0])
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return workflow.StepOutput{}, false
		}
		if textTool(kind) {
			return workflow.TextOutput(s), true
		}
		return workflow.URLOutput(s), true
	default:
		return workflow.StepOutput{}, false
	}
}

func fromObject(kind workflow.ToolKind, obj map[string]json.RawMessage) (workflow.StepOutput, bool) {
	var out workflow.StepOutput
	if s, ok := stringField(obj, "url"); ok {
		out.URL = &s
	}
	for _, key := range []string{"text", "transcript"} {
		if s, ok := stringField(obj, key); ok {
			out.Text = &s
			break
		}
	}
	if !out.IsEmpty() {
		return out, true
	}
	if nested, ok := obj["output"]; ok {
		return ExtractOutput(kind, nested)
	}
	return workflow.StepOutput{}, false
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
