package generator

import (
	"context"
	"fmt"
	"strings"

	"ghost-activity/internal/domain"
)

// Stub имитирует провайдера без сетевых вызовов. Используется локально и в dev.
type Stub struct{}

// NewStub создаёт заглушку.
func NewStub() *Stub {
	return &Stub{}
}

var stubReactions = map[domain.Personality]string{
	domain.PersonalityFriendly:    "Классно, что поделились! Удачи вам",
	domain.PersonalityExpert:      "По опыту, тут важно заранее всё проверить",
	domain.PersonalityHumorous:    "Узнал себя, смешно и грустно одновременно",
	domain.PersonalitySkeptical:   "Звучит хорошо, но есть ли подвох?",
	domain.PersonalityInquisitive: "А можно подробнее, как это получилось?",
}

// Generate возвращает детерминированные тексты по тону и затравке.
func (s *Stub) Generate(_ context.Context, req domain.GenerationRequest) (domain.Generation, error) {
	count := max(req.Count, 1)
	reaction := stubReactions[req.Tone]
	if reaction == "" {
		reaction = stubReactions[domain.PersonalityFriendly]
	}
	topic := firstLine(req.SeedText)
	items := make([]domain.GeneratedText, 0, count)
	for i := 0; i < count; i++ {
		item := domain.GeneratedText{Content: reaction}
		if topic != "" {
			item.Content = fmt.Sprintf("%s (%s)", reaction, topic)
		}
		if req.Kind == domain.KindPost {
			item.Title = fmt.Sprintf("Заметка %d", i+1)
			if req.Category != "" {
				item.Title = fmt.Sprintf("%s: заметка %d", req.Category, i+1)
			}
		}
		items = append(items, item)
	}
	return domain.Generation{Items: items, Usage: domain.LLMUsage{Model: "stub"}}, nil
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if len([]rune(line)) > 60 {
		line = string([]rune(line)[:60]) + "…"
	}
	return line
}
