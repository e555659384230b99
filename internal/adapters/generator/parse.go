package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"ghost-activity/internal/domain"
)

// envelope — объект, в который заворачивается массив в режиме JSON-объекта.
type envelope struct {
	Items json.RawMessage `json:"items"`
}

// parseItems разбирает ответ провайдера в массив {title?, content}.
// Принимает объект {"items": [...]} и голый массив, в том числе в markdown-блоке и с текстом вокруг.
func parseItems(raw string, limit int) ([]domain.GeneratedText, error) {
	text := cleanJSON(raw)
	if strings.HasPrefix(text, "{") {
		var env envelope
		if err := json.Unmarshal([]byte(text), &env); err == nil && len(env.Items) > 0 {
			text = string(env.Items)
		}
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: в ответе нет JSON-массива", domain.ErrParseFailure)
	}
	var parsed []domain.GeneratedText
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	items := make([]domain.GeneratedText, 0, len(parsed))
	for _, item := range parsed {
		item.Content = strings.TrimSpace(item.Content)
		item.Title = strings.TrimSpace(item.Title)
		if item.Content == "" {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: пустой массив", domain.ErrParseFailure)
	}
	return items, nil
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
