package provider

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

func TestExtractOutputShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     workflow.ToolKind
		raw      string
		wantURL  string
		wantText string
		ok       bool
	}{
		{name: "raw string", kind: workflow.ToolImage, raw: `"http://x/a.png"`, wantURL: "http://x/a.png", ok: true},
		{name: "array first element", kind: workflow.ToolImage, raw: `["http://x/1.png","http://x/2.png"]`, wantURL: "http://x/1.png", ok: true},
		{name: "object url", kind: workflow.ToolVideo, raw: `{"url":"http://x/v.mp4"}`, wantURL: "http://x/v.mp4", ok: true},
		{name: "object output string", kind: workflow.ToolVideo, raw: `{"output":"http://x/v.mp4"}`, wantURL: "http://x/v.mp4", ok: true},
		{name: "object output array", kind: workflow.ToolLipsync, raw: `{"output":["http://x/l.mp4"]}`, wantURL: "http://x/l.mp4", ok: true},
		{name: "url wins over output", kind: workflow.ToolImage, raw: `{"url":"http://a","output":"http://b"}`, wantURL: "http://a", ok: true},
		{name: "transcription string is text", kind: workflow.ToolTranscription, raw: `"hello there"`, wantText: "hello there", ok: true},
		{name: "transcript field", kind: workflow.ToolTranscription, raw: `{"transcript":"hi"}`, wantText: "hi", ok: true},
		{name: "null", kind: workflow.ToolImage, raw: `null`},
		{name: "empty array", kind: workflow.ToolImage, raw: `[]`},
		{name: "number", kind: workflow.ToolImage, raw: `42`},
		{name: "empty", kind: workflow.ToolImage, raw: ``},
	}

	for _, tt := range tests {
		out, ok := ExtractOutput(tt.kind, json.RawMessage(tt.raw))
		require.Equal(t, tt.ok, ok, tt.name)
		if !tt.ok {
			continue
		}
		if tt.wantURL != "" {
			require.NotNil(t, out.URL, tt.name)
			assert.Equal(t, tt.wantURL, *out.URL, tt.name)
		}
		if tt.wantText != "" {
			require.NotNil(t, out.Text, tt.name)
			assert.Equal(t, tt.wantText, *out.Text, tt.name)
		}
	}
}

func TestErrorMessageShapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "nested", errorMessage([]byte(`{"error":{"message":"nested"}}`)))
	assert.Equal(t, "detail", errorMessage([]byte(`{"detail":"detail"}`)))
	assert.Equal(t, "", errorMessage([]byte(`not json`)))
}

func TestSummarizeBodyKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 511) + strings.Repeat("é", 10)
	got := summarizeBody([]byte(body))

	require.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 511)+"…", got)
	assert.Equal(t, "short", summarizeBody([]byte("  short ")))
}
