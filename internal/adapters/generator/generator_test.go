package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/genai"

	"ghost-activity/internal/domain"
	openai "ghost-activity/internal/infra/openai"
)

func TestParseItemsAcceptsFencedArray(t *testing.T) {
	raw := "```json\n[{\"content\": \" Отличная идея \"}, {\"content\": \"\"}, {\"title\": \"T\", \"content\": \"второй\"}]\n```"
	items, err := parseItems(raw, 0)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(items))
	}
	if items[0].Content != "Отличная идея" {
		t.Fatalf("content не очищен: %q", items[0].Content)
	}
	if items[1].Title != "T" {
		t.Fatalf("потерян title: %+v", items[1])
	}
}

func TestParseItemsUnwrapsItemsObject(t *testing.T) {
	items, err := parseItems(`{"items": [{"title": "Заголовок", "content": "текст"}, {"content": "второй"}]}`, 0)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Заголовок" || items[1].Content != "второй" {
		t.Fatalf("неверный разбор обёртки: %+v", items)
	}
	if _, err := parseItems(`{"items": []}`, 0); !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("ожидали ErrParseFailure для пустой обёртки, получили %v", err)
	}
}

func TestParseItemsRespectsLimit(t *testing.T) {
	items, err := parseItems(`Вот ответ: [{"content":"a"},{"content":"b"},{"content":"c"}] готово`, 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(items) != 1 || items[0].Content != "a" {
		t.Fatalf("неверный результат: %+v", items)
	}
}

func TestParseItemsRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"просто текст без json",
		`{"content": "объект вместо массива"}`,
		`[{"content": "обрыв"`,
		`[{"content": ""}]`,
		`[]`,
	}
	for _, raw := range cases {
		if _, err := parseItems(raw, 0); !errors.Is(err, domain.ErrParseFailure) {
			t.Fatalf("ожидали ErrParseFailure для %q, получили %v", raw, err)
		}
	}
}

type fakeChat struct {
	resp openai.ChatResult
	err  error
	got  openai.ChatRequest
}

func (f *fakeChat) Complete(_ context.Context, req openai.ChatRequest) (openai.ChatResult, error) {
	f.got = req
	return f.resp, f.err
}

func TestOpenAIGenerate(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatResult{
		Content:          `{"items":[{"content":"Сам так делал, работает"}]}`,
		PromptTokens:     90,
		CompletionTokens: 12,
		TotalTokens:      102,
	}}
	gen := NewOpenAI(chat, "gpt-test", 0)

	res, err := gen.Generate(context.Background(), domain.GenerationRequest{
		Kind: domain.KindComment, Tone: domain.PersonalityExpert, SeedText: "Как выбрать велосипед", Count: 1,
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Content != "Сам так делал, работает" {
		t.Fatalf("неверные элементы: %+v", res.Items)
	}
	if res.Usage.Model != "gpt-test" || res.Usage.TotalTokens != 102 {
		t.Fatalf("неверный учёт расхода: %+v", res.Usage)
	}
	if chat.got.Model != "gpt-test" || len(chat.got.Messages) != 2 {
		t.Fatalf("неверный запрос: %+v", chat.got)
	}
	if !strings.Contains(chat.got.Messages[1].Content, "Как выбрать велосипед") {
		t.Fatalf("затравка не попала в промпт: %q", chat.got.Messages[1].Content)
	}
	if !strings.Contains(chat.got.Messages[1].Content, toneHints[domain.PersonalityExpert]) {
		t.Fatalf("тон не попал в промпт")
	}
	if !strings.Contains(chat.got.Messages[1].Content, `"items"`) {
		t.Fatalf("промпт не описывает обёртку items: %q", chat.got.Messages[1].Content)
	}
}

func TestOpenAIProviderFailure(t *testing.T) {
	for _, chatErr := range []error{
		errors.New("openai: build request"),
		fmt.Errorf("%w: openai: 503", domain.ErrProviderFailure),
	} {
		gen := NewOpenAI(&fakeChat{err: chatErr}, "", 0)
		_, err := gen.Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindReply, SeedText: "x", Count: 1})
		if !errors.Is(err, domain.ErrProviderFailure) {
			t.Fatalf("ожидали ErrProviderFailure, получили %v", err)
		}
	}
}

func TestOpenAINonJSONIsParseFailure(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatResult{Content: "Конечно! Вот комментарий: круто"}}
	_, err := NewOpenAI(chat, "", 0).Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindComment, SeedText: "x", Count: 1})
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("ожидали ErrParseFailure, получили %v", err)
	}
}

type fakeModels struct {
	resp  *genai.GenerateContentResponse
	err   error
	model string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	return f.resp, f.err
}

func TestGeminiGenerate(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `[{"content":"Поддерживаю, `}, {Text: `хороший план"}]`}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 50, CandidatesTokenCount: 8, TotalTokenCount: 58},
	}}
	gen := NewGemini(models, "", 0)

	res, err := gen.Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindComment, Tone: domain.PersonalityFriendly, SeedText: "Переезжаю", Count: 1})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if models.model != defaultGeminiModel {
		t.Fatalf("ожидали модель по умолчанию, получили %q", models.model)
	}
	if res.Items[0].Content != "Поддерживаю, хороший план" {
		t.Fatalf("части ответа не склеены: %q", res.Items[0].Content)
	}
	if res.Usage.TotalTokens != 58 || res.Usage.CompletionTokens != 8 {
		t.Fatalf("неверный учёт расхода: %+v", res.Usage)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	gen := NewGemini(&fakeModels{resp: &genai.GenerateContentResponse{}}, "", 0)
	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindComment, SeedText: "x"})
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("ожидали ErrParseFailure, получили %v", err)
	}
}

func TestStubProducesRequestedCount(t *testing.T) {
	res, err := NewStub().Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindPost, Tone: domain.PersonalityHumorous, Category: "быт", Count: 3})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("ожидали 3 элемента, получили %d", len(res.Items))
	}
	for _, item := range res.Items {
		if item.Title == "" || item.Content == "" {
			t.Fatalf("пустой элемент: %+v", item)
		}
	}
}

func TestBuildPromptVariesByKind(t *testing.T) {
	_, reply := buildPrompt(domain.GenerationRequest{Kind: domain.KindReply, Tone: domain.PersonalitySkeptical, SeedText: "комментарий"})
	if !strings.Contains(reply, "ответа на комментарий") {
		t.Fatalf("промпт ответа: %q", reply)
	}
	_, post := buildPrompt(domain.GenerationRequest{Kind: domain.KindPost, Count: 5})
	if !strings.Contains(post, "title") || !strings.Contains(post, "5") {
		t.Fatalf("промпт постов: %q", post)
	}
	long := strings.Repeat("я", seedLimit+100)
	_, clipped := buildPrompt(domain.GenerationRequest{Kind: domain.KindComment, SeedText: long})
	if strings.Contains(clipped, long) {
		t.Fatalf("затравка не обрезана")
	}
}
