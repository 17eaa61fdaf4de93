package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
)

// Adapter is an Analyst backed by an OpenAI-compatible chat endpoint.
type Adapter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func New(apiKey, model, baseURL string, timeout time.Duration) *Adapter {
	if model == "" {
		model = openai.GPT4o
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Adapter{client: openai.NewClientWithConfig(cfg), model: model, timeout: timeout}
}

func (a *Adapter) Analyze(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model %s timed out after %s", faults.ErrAnalysis, a.model, a.timeout)
		}
		return "", fmt.Errorf("%w: chat completion: %v", faults.ErrAnalysis, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model %s returned no choices", faults.ErrAnalysis, a.model)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: model %s returned empty content", faults.ErrAnalysis, a.model)
	}
	return content, nil
}

var _ ports.Analyst = (*Adapter)(nil)
