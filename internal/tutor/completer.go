package tutor

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer is the external completion capability. It is the only boundary
// the orchestrator calls out across, so tests swap in a fake here.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// LLMCompleter binds Completer to an OpenAI-compatible backend through
// langchaingo. Sampling configuration is fixed per deployment.
type LLMCompleter struct {
	llm         llms.Model
	temperature float64
}

func NewLLMCompleter(baseURL, token, model string, temperature float64) (*LLMCompleter, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion backend: %w", err)
	}
	return &LLMCompleter{llm: llm, temperature: temperature}, nil
}

// Complete implements Completer.
func (c *LLMCompleter) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, userText),
		},
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion backend returned no choices")
	}
	return resp.Choices[0].Content, nil
}
