package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	// maxErrorBody ограничивает фрагмент тела не-2xx ответа в тексте ошибки.
	maxErrorBody = 512
)

// Client выполняет Chat Completions запросы в режиме JSON-объекта.
// Сетевые ошибки и не-2xx ответы оборачивают domain.ErrProviderFailure.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient создаёт клиента OpenAI.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout + 5*time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage — сообщение диалога.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest — запрос генерации. Ответ модели всегда JSON-объект.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// ChatResult — текст первого варианта и расход токенов.
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type responseFormat struct {
	Type string `json:"type"`
}

type wireRequest struct {
	Model          string         `json:"model"`
	Messages       []ChatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type wireResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete вызывает /chat/completions с response_format=json_object.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (ChatResult, error) {
	if c.apiKey == "" {
		return ChatResult{}, fmt.Errorf("%w: openai api key is empty", domain.ErrProviderFailure)
	}
	body, err := json.Marshal(wireRequest{
		Model:          req.Model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	result, err := c.do(httpReq)
	metrics.ObserveNetworkRequest("openai", "chat_completions", req.Model, start, err)
	if err != nil {
		return ChatResult{}, err
	}
	metrics.ObserveLLMGeneration(req.Model, time.Since(start), result.PromptTokens, result.CompletionTokens, result.TotalTokens)
	return result, nil
}

func (c *Client) do(httpReq *http.Request) (ChatResult, error) {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: openai: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: openai: read response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return ChatResult{}, fmt.Errorf("%w: openai: %d %s", domain.ErrProviderFailure, resp.StatusCode, apiErr.Error.Message)
		}
		return ChatResult{}, fmt.Errorf("%w: openai: %d %s", domain.ErrProviderFailure, resp.StatusCode, clip(respBody))
	}

	var decoded wireResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return ChatResult{}, fmt.Errorf("%w: openai: decode response: %v", domain.ErrProviderFailure, err)
	}
	if len(decoded.Choices) == 0 {
		return ChatResult{}, fmt.Errorf("%w: openai: no choices", domain.ErrParseFailure)
	}
	result := ChatResult{Content: strings.TrimSpace(decoded.Choices[0].Message.Content)}
	if u := decoded.Usage; u != nil {
		result.PromptTokens = u.PromptTokens
		result.CompletionTokens = u.CompletionTokens
		result.TotalTokens = u.TotalTokens
	}
	return result, nil
}

func clip(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody]
	}
	return text
}
