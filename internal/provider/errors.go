package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// StatusError is returned when a provider answers with a non-success HTTP
// status. Message holds the provider's own error text when it sent one.
type StatusError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("provider request: http %d: %s", e.StatusCode, strings.TrimSpace(msg))
}

// Transient reports whether the status usually clears on its own.
func (e *StatusError) Transient() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

func newStatusError(code int, body []byte) *StatusError {
	return &StatusError{
		StatusCode: code,
		Message:    errorMessage(body),
		Body:       summarizeBody(body),
	}
}

// errorMessage pulls a human readable message out of common error payload
// shapes: {"error": "..."}, {"error": {"message": "..."}}, {"detail": "..."}.
func errorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"error", "detail", "message"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	return ""
}

func summarizeBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
