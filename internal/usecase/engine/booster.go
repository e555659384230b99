package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
)

// Booster добавляет отложенные реакции персон к свежим постам живых авторов.
// Пост бустится только если под ним ещё нет ни одного комментария персон.
type Booster struct {
	content     domain.ContentRepo
	selector    *PersonaSelector
	generator   *ContextualGenerator
	publisher   *Publisher
	window      time.Duration
	minDelay    time.Duration
	maxComments int
	log         zerolog.Logger
}

// BoostStats — итог одного прохода бустера.
type BoostStats struct {
	Posts    int
	Comments int
	Skipped  map[domain.UnitSkip]int
}

func (s *BoostStats) skip(reason domain.UnitSkip) {
	if s.Skipped == nil {
		s.Skipped = map[domain.UnitSkip]int{}
	}
	s.Skipped[reason]++
}

// NewBooster создаёт бустер.
func NewBooster(content domain.ContentRepo, selector *PersonaSelector, generator *ContextualGenerator, publisher *Publisher, window, minDelay time.Duration, maxComments int, logger zerolog.Logger) *Booster {
	if window <= 0 {
		window = time.Hour
	}
	if minDelay <= 0 || minDelay >= window {
		minDelay = 3 * time.Minute
		if minDelay >= window {
			minDelay = window / 2
		}
	}
	if maxComments <= 0 {
		maxComments = 3
	}
	return &Booster{
		content:     content,
		selector:    selector,
		generator:   generator,
		publisher:   publisher,
		window:      window,
		minDelay:    minDelay,
		maxComments: maxComments,
		log:         logger,
	}
}

// Boost обрабатывает посты за последнее окно. Ошибки отдельных комментариев не прерывают проход.
func (b *Booster) Boost(ctx context.Context, now time.Time, rnd *rand.Rand) (BoostStats, error) {
	var stats BoostStats
	posts, err := b.content.ListUnboostedOrganicPosts(ctx, now.Add(-b.window))
	if err != nil {
		return stats, fmt.Errorf("посты для буста: %w", err)
	}
	for _, post := range posts {
		want := 1 + rnd.IntN(b.maxComments)
		personas, err := b.selector.Pick(ctx, want, "", rnd)
		if err != nil {
			return stats, err
		}
		added := 0
		for _, persona := range personas {
			if persona.UserID == post.AuthorUserID {
				continue
			}
			text, ok := b.generator.CommentFor(ctx, post, rnd)
			if !ok {
				stats.skip(domain.UnitSkipProvider)
				continue
			}
			if _, err := b.publisher.PublishComment(ctx, persona, post, text, now.Add(b.jitter(rnd))); err != nil {
				b.log.Error().Err(err).Int64("post_id", post.ID).Msg("engine: буст-комментарий не сохранён")
				stats.skip(domain.UnitSkipPublishError)
				continue
			}
			added++
		}
		if added > 0 {
			stats.Posts++
			stats.Comments += added
		}
	}
	return stats, nil
}

// jitter сдвигает время комментария в [minDelay, window), имитируя задержку живого читателя.
func (b *Booster) jitter(rnd *rand.Rand) time.Duration {
	span := int64(b.window - b.minDelay)
	if span <= 0 {
		return b.minDelay
	}
	return b.minDelay + time.Duration(rnd.Int64N(span))
}
