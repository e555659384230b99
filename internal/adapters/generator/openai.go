package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghost-activity/internal/domain"
	openai "ghost-activity/internal/infra/openai"
)

type chatClient interface {
	Complete(ctx context.Context, req openai.ChatRequest) (openai.ChatResult, error)
}

// OpenAI реализует domain.Generator через OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт генератор.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Generate запрашивает у модели тексты в заданном тоне.
func (g *OpenAI) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system, user := buildPrompt(req)
	resp, err := g.client.Complete(ctx, openai.ChatRequest{
		Model:       g.model,
		Temperature: 0.9,
		MaxTokens:   400 * max(req.Count, 1),
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: system},
			{Role: openai.RoleUser, Content: user},
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderFailure) || errors.Is(err, domain.ErrParseFailure) {
			return domain.Generation{}, err
		}
		return domain.Generation{}, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	items, err := parseItems(resp.Content, req.Count)
	if err != nil {
		return domain.Generation{}, err
	}
	usage := domain.LLMUsage{
		Model:            g.model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
		OccurredAt:       time.Now().UTC(),
	}
	return domain.Generation{Items: items, Usage: usage}, nil
}
