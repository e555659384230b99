package engine

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
)

const seedTextLimit = 2000

type dispatcher interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// ContextualGenerator синтезирует реакцию на существующий пост или комментарий.
// Любая ошибка провайдера превращается в пустой результат: вызывающий просто пропускает единицу.
type ContextualGenerator struct {
	gen      domain.Generator
	usage    domain.UsageRecorder
	dispatch dispatcher
	log      zerolog.Logger
}

// NewContextualGenerator создаёт генератор. usage может быть nil.
func NewContextualGenerator(gen domain.Generator, usage domain.UsageRecorder, dispatch dispatcher, logger zerolog.Logger) *ContextualGenerator {
	return &ContextualGenerator{gen: gen, usage: usage, dispatch: dispatch, log: logger}
}

// CommentFor генерирует комментарий к посту.
func (g *ContextualGenerator) CommentFor(ctx context.Context, post domain.TargetPost, rnd *rand.Rand) (string, bool) {
	seed := strings.TrimSpace(post.Title)
	if body := strings.TrimSpace(post.Body); body != "" {
		if seed != "" {
			seed += "\n\n"
		}
		seed += body
	}
	return g.generate(ctx, domain.KindComment, seed, rnd)
}

// ReplyFor генерирует ответ на комментарий.
func (g *ContextualGenerator) ReplyFor(ctx context.Context, comment domain.TargetComment, rnd *rand.Rand) (string, bool) {
	return g.generate(ctx, domain.KindReply, strings.TrimSpace(comment.Body), rnd)
}

func (g *ContextualGenerator) generate(ctx context.Context, kind domain.ContentKind, seed string, rnd *rand.Rand) (string, bool) {
	if seed == "" {
		return "", false
	}
	tones := domain.Personalities()
	tone := tones[rnd.IntN(len(tones))]
	req := domain.GenerationRequest{
		Kind:     kind,
		Tone:     tone,
		SeedText: clipRunes(seed, seedTextLimit),
		Count:    1,
	}
	res, err := g.gen.Generate(ctx, req)
	if err != nil {
		g.log.Warn().Err(err).Str("kind", string(kind)).Str("tone", string(tone)).Msg("engine: генерация не удалась, пропускаем")
		return "", false
	}
	g.recordUsage(ctx, kind, res.Usage)
	for _, item := range res.Items {
		if text := strings.TrimSpace(item.Content); text != "" {
			return text, true
		}
	}
	g.log.Warn().Str("kind", string(kind)).Msg("engine: провайдер вернул пустой список")
	return "", false
}

func (g *ContextualGenerator) recordUsage(ctx context.Context, kind domain.ContentKind, usage domain.LLMUsage) {
	if g.usage == nil || g.dispatch == nil {
		return
	}
	if usage.Feature == "" {
		usage.Feature = "ghost_" + string(kind)
	}
	if usage.OccurredAt.IsZero() {
		usage.OccurredAt = time.Now().UTC()
	}
	g.dispatch.Go(ctx, "usage", func(ctx context.Context) error {
		return g.usage.RecordLLMUsage(ctx, usage)
	})
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
