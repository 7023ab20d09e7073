package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// generateText serves text steps synchronously through the configured
// language model. Recognised inputs: prompt (required), system,
// temperature, max_tokens.
func (c *Client) generateText(ctx context.Context, step workflow.Step) (workflow.Dispatched, error) {
	if c.textModel == nil {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeValidation, "text steps require a configured language model", nil, map[string]interface{}{"step_id": step.ID})
	}
	prompt := stringInput(step.Inputs, "prompt")
	if prompt == "" {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeMissing, "missing required field", nil, map[string]interface{}{"step_id": step.ID, "field": "prompt"})
	}

	var messages []llms.MessageContent
	if system := stringInput(step.Inputs, "system"); system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	opts := []llms.CallOption{llms.WithModel(step.Model)}
	if t, ok := floatInput(step.Inputs, "temperature"); ok {
		opts = append(opts, llms.WithTemperature(t))
	}
	if n, ok := floatInput(step.Inputs, "max_tokens"); ok && n > 0 {
		opts = append(opts, llms.WithMaxTokens(int(n)))
	}

	c.logger.Debug(ctx, "generating text", "step_id", step.ID, "model", step.Model)

	resp, err := c.textModel.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeProvider, "text generation failed", err, map[string]interface{}{"step_id": step.ID})
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return workflow.Dispatched{}, workflow.NewError(workflow.ErrCodeProvider, "text generation returned no content", nil, map[string]interface{}{"step_id": step.ID})
	}
	out := workflow.TextOutput(strings.TrimSpace(resp.Choices[0].Content))
	return workflow.Dispatched{Output: &out}, nil
}

func stringInput(inputs map[string]any, key string) string {
	v, ok := inputs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func floatInput(inputs map[string]any, key string) (float64, bool) {
	switch v := inputs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
