package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini реализует domain.Generator через Google Gen AI SDK.
type Gemini struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiClient создаёт клиента SDK по ключу API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// NewGemini создаёт генератор поверх client.Models.
func NewGemini(models contentGenerator, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gemini{models: models, model: model, timeout: timeout}
}

// Generate запрашивает у модели тексты в заданном тоне.
func (g *Gemini) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system, user := buildPrompt(req)
	temperature := float32(0.9)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(user), config)
	metrics.ObserveNetworkRequest("gemini", "generate_content", g.model, start, err)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return domain.Generation{}, fmt.Errorf("%w: пустой ответ", domain.ErrParseFailure)
	}
	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			raw.WriteString(part.Text)
		}
	}
	items, err := parseItems(raw.String(), req.Count)
	if err != nil {
		return domain.Generation{}, err
	}

	usage := domain.LLMUsage{Model: g.model, OccurredAt: time.Now().UTC()}
	if meta := resp.UsageMetadata; meta != nil {
		usage.PromptTokens = int(meta.PromptTokenCount)
		usage.CompletionTokens = int(meta.CandidatesTokenCount)
		usage.TotalTokens = int(meta.TotalTokenCount)
	}
	metrics.ObserveLLMGeneration(g.model, time.Since(start), usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	return domain.Generation{Items: items, Usage: usage}, nil
}
