package generator

import (
	"fmt"
	"strings"

	"ghost-activity/internal/domain"
)

const (
	seedLimit    = 2000
	defaultModel = "gpt-4.1-mini"
)

var toneHints = map[domain.Personality]string{
	domain.PersonalityFriendly:    "дружелюбный и поддерживающий, на «ты», без пафоса",
	domain.PersonalityExpert:      "спокойный эксперт: конкретика, факты, один практический совет",
	domain.PersonalityHumorous:    "лёгкий юмор, самоирония, без сарказма в адрес автора",
	domain.PersonalitySkeptical:   "вежливый скептик: сомневается и просит уточнить детали",
	domain.PersonalityInquisitive: "любопытный собеседник: задаёт один живой вопрос по теме",
}

const systemPrompt = "Ты участник онлайн-сообщества и пишешь как обычный человек: коротко, разговорно, без канцелярита и без эмодзи-спама. " +
	"Никогда не упоминай, что ты ИИ или бот. Отвечай только JSON-объектом с полем items без пояснений."

// buildPrompt формирует пару системной и пользовательской инструкции.
func buildPrompt(req domain.GenerationRequest) (string, string) {
	count := req.Count
	if count <= 0 {
		count = 1
	}
	tone := toneHints[req.Tone]
	if tone == "" {
		tone = toneHints[domain.PersonalityFriendly]
	}
	seed := clipRunes(strings.TrimSpace(req.SeedText), seedLimit)

	var task string
	switch req.Kind {
	case domain.KindReply:
		task = fmt.Sprintf(`Напиши %d вариант(а) ответа на комментарий ниже. 1-2 предложения.
Комментарий:
%s`, count, seed)
	case domain.KindPost:
		category := strings.TrimSpace(req.Category)
		if category == "" {
			category = "общее"
		}
		task = fmt.Sprintf(`Напиши %d коротких поста для раздела «%s». У каждого есть заголовок до 60 символов и текст из 2-4 предложений.
Формат: {"items": [{"title": "...", "content": "..."}]}`, count, category)
		if seed != "" {
			task += "\nТема для вдохновения:\n" + seed
		}
	default:
		task = fmt.Sprintf(`Напиши %d вариант(а) комментария к посту ниже. 1-3 предложения, по существу поста.
Пост:
%s`, count, seed)
	}
	if req.Kind != domain.KindPost {
		task += "\nФормат: {\"items\": [{\"content\": \"...\"}]}"
	}
	user := fmt.Sprintf("Тон: %s.\n%s", tone, task)
	return systemPrompt, user
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
