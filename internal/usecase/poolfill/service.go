package poolfill

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

// categories — темы, из которых выбирается категория новой партии постов.
var categories = []string{"работа", "учёба", "отношения", "еда", "путешествия", "кино", "спорт", "технологии", "повседневное"}

// Result — итог пополнения пула.
type Result struct {
	Inserted map[domain.Personality]int `json:"inserted"`
	Skipped  []domain.Personality       `json:"skipped,omitempty"`
}

// Service пополняет пул заранее сгенерированных постов.
type Service struct {
	pool      domain.PoolRepo
	gen       domain.Generator
	usage     domain.UsageRecorder
	audit     domain.BusinessMetricRepo
	minUnused int
	batch     int
	rnd       *rand.Rand
	now       func() time.Time
	log       zerolog.Logger
}

// NewService создаёт сервис. usage и audit могут быть nil.
func NewService(pool domain.PoolRepo, gen domain.Generator, usage domain.UsageRecorder, audit domain.BusinessMetricRepo, minUnused, batch int, logger zerolog.Logger) *Service {
	if minUnused <= 0 {
		minUnused = 10
	}
	if batch <= 0 {
		batch = 5
	}
	return &Service{
		pool:      pool,
		gen:       gen,
		usage:     usage,
		audit:     audit,
		minUnused: minUnused,
		batch:     batch,
		rnd:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		now:       time.Now,
		log:       logger,
	}
}

// WithRand подменяет источник случайности.
func (s *Service) WithRand(rnd *rand.Rand) *Service {
	s.rnd = rnd
	return s
}

// Refill догенерирует посты для характеров, у которых запас ниже порога.
// Ошибка провайдера пропускает только этот характер; ошибка хранилища прерывает пополнение.
func (s *Service) Refill(ctx context.Context) (Result, error) {
	res := Result{Inserted: map[domain.Personality]int{}}
	unused, err := s.pool.CountUnusedPoolItems(ctx, domain.KindPost)
	if err != nil {
		return res, fmt.Errorf("подсчёт пула: %w", err)
	}

	for _, personality := range domain.Personalities() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		have := unused[personality]
		if have >= s.minUnused {
			metrics.SetPoolUnused(string(personality), have)
			continue
		}
		count := min(s.batch, s.minUnused-have)
		category := categories[s.rnd.IntN(len(categories))]
		gen, err := s.gen.Generate(ctx, domain.GenerationRequest{
			Kind:     domain.KindPost,
			Tone:     personality,
			Category: category,
			Count:    count,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("personality", string(personality)).Msg("poolfill: генерация не удалась")
			res.Skipped = append(res.Skipped, personality)
			metrics.SetPoolUnused(string(personality), have)
			continue
		}
		s.recordUsage(ctx, gen.Usage)

		items := make([]domain.PoolItem, 0, len(gen.Items))
		created := s.now().UTC()
		for _, text := range gen.Items {
			if text.Title == "" || text.Content == "" {
				continue
			}
			items = append(items, domain.PoolItem{
				Kind:        domain.KindPost,
				Personality: personality,
				Title:       text.Title,
				Body:        text.Content,
				Category:    category,
				CreatedAt:   created,
			})
		}
		if len(items) > count {
			items = items[:count]
		}
		if len(items) == 0 {
			res.Skipped = append(res.Skipped, personality)
			metrics.SetPoolUnused(string(personality), have)
			continue
		}
		n, err := s.pool.InsertPoolItems(ctx, items)
		if err != nil {
			return res, fmt.Errorf("вставка в пул: %w", err)
		}
		res.Inserted[personality] = n
		metrics.SetPoolUnused(string(personality), have+n)
		s.log.Info().Str("personality", string(personality)).Int("inserted", n).Str("category", category).Msg("poolfill: пул пополнен")
	}

	s.recordRefill(ctx, res)
	return res, nil
}

// Total возвращает общее число вставленных элементов.
func (r Result) Total() int {
	total := 0
	for _, n := range r.Inserted {
		total += n
	}
	return total
}

func (s *Service) recordUsage(ctx context.Context, usage domain.LLMUsage) {
	if s.usage == nil {
		return
	}
	usage.Feature = "ghost_pool_fill"
	if usage.OccurredAt.IsZero() {
		usage.OccurredAt = s.now().UTC()
	}
	if err := s.usage.RecordLLMUsage(ctx, usage); err != nil {
		s.log.Warn().Err(err).Msg("poolfill: не удалось записать расход")
	}
}

func (s *Service) recordRefill(ctx context.Context, res Result) {
	if s.audit == nil || res.Total() == 0 {
		return
	}
	inserted := make(map[string]int, len(res.Inserted))
	for p, n := range res.Inserted {
		inserted[string(p)] = n
	}
	metric := domain.BusinessMetric{
		Event:      domain.BusinessMetricEventPoolRefilled,
		Metadata:   map[string]any{"inserted": inserted, "total": res.Total()},
		OccurredAt: s.now().UTC(),
	}
	if err := s.audit.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Warn().Err(err).Msg("poolfill: не удалось записать метрику")
	}
}
