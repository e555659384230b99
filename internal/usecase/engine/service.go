package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

const (
	runLockKey        = "ghost-activity:run"
	targetSampleLimit = 50
)

// Options задаёт параметры движка, не зависящие от админских настроек.
type Options struct {
	Location         *time.Location
	CyclesPerHour    int
	BoostWindow      time.Duration
	BoostMinDelay    time.Duration
	BoostMaxComments int
	PoolOversample   int
	TargetLookback   time.Duration
	LockTTL          time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.CyclesPerHour <= 0 {
		o.CyclesPerHour = 2
	}
	if o.BoostWindow <= 0 {
		o.BoostWindow = time.Hour
	}
	if o.BoostMinDelay <= 0 {
		o.BoostMinDelay = 3 * time.Minute
	}
	if o.BoostMaxComments <= 0 {
		o.BoostMaxComments = 3
	}
	if o.PoolOversample <= 0 {
		o.PoolOversample = 3
	}
	if o.TargetLookback <= 0 {
		o.TargetLookback = 72 * time.Hour
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	return o
}

// Deps — внешние коллабораторы движка. Lock, Usage, Queue, Audit и Reporter необязательны.
type Deps struct {
	Personas  domain.PersonaRepo
	Pool      domain.PoolRepo
	Content   domain.ContentRepo
	Config    domain.ConfigRepo
	Generator domain.Generator
	Usage     domain.UsageRecorder
	Queue     domain.NotificationQueue
	Lock      domain.RunLock
	Audit     domain.BusinessMetricRepo
	Reporter  domain.RunReporter
	Dispatch  dispatcher
}

// Service выполняет один прогон движка: окно → квоты → посты, комментарии, ответы → буст.
type Service struct {
	opts       Options
	deps       Deps
	selector   *PersonaSelector
	allocator  *PoolAllocator
	contextual *ContextualGenerator
	publisher  *Publisher
	booster    *Booster
	log        zerolog.Logger
	newRand    func() *rand.Rand
}

// NewService создаёт сервис движка.
func NewService(deps Deps, opts Options, logger zerolog.Logger) *Service {
	opts = opts.withDefaults()
	selector := NewPersonaSelector(deps.Personas)
	contextual := NewContextualGenerator(deps.Generator, deps.Usage, deps.Dispatch, logger)
	publisher := NewPublisher(deps.Content, deps.Queue, deps.Dispatch, logger)
	return &Service{
		opts:       opts,
		deps:       deps,
		selector:   selector,
		allocator:  NewPoolAllocator(deps.Pool, opts.PoolOversample),
		contextual: contextual,
		publisher:  publisher,
		booster:    NewBooster(deps.Content, selector, contextual, publisher, opts.BoostWindow, opts.BoostMinDelay, opts.BoostMaxComments, logger),
		log:        logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
		},
	}
}

// WithRand подменяет источник случайности, нужно для тестов.
func (s *Service) WithRand(newRand func() *rand.Rand) *Service {
	s.newRand = newRand
	return s
}

// Trigger читает текущие настройки и выполняет прогон.
func (s *Service) Trigger(ctx context.Context, now time.Time) (domain.RunSummary, error) {
	cfg, err := s.deps.Config.GetEngineConfig(ctx)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("настройки движка: %w", err)
	}
	summary, err := s.Run(ctx, cfg, now)
	s.report(ctx, summary, err)
	return summary, err
}

// Run выполняет прогон с явно переданными настройками.
// Мягкие остановки не являются ошибками и отражаются в summary.Skipped.
func (s *Service) Run(ctx context.Context, cfg domain.EngineConfig, now time.Time) (domain.RunSummary, error) {
	started := time.Now()
	local := now.In(s.opts.Location)
	summary := domain.RunSummary{
		RunID:        uuid.NewString(),
		StartedAt:    now,
		LocalHour:    local.Hour(),
		Config:       cfg,
		ActiveHours:  ActiveHours(cfg.ActiveStartHour, cfg.ActiveEndHour),
		TotalSlots:   TotalSlots(cfg.ActiveStartHour, cfg.ActiveEndHour, s.opts.CyclesPerHour),
		UnitsSkipped: map[domain.UnitSkip]int{},
	}
	logger := s.log.With().Str("run_id", summary.RunID).Logger()

	if !cfg.Enabled {
		return s.finish(ctx, logger, summary, domain.SkipDisabled, started, nil)
	}
	if !IsActive(local.Hour(), cfg.ActiveStartHour, cfg.ActiveEndHour) {
		return s.finish(ctx, logger, summary, domain.SkipOutsideWindow, started, nil)
	}
	if s.deps.Lock != nil {
		release, ok, err := s.deps.Lock.TryLock(ctx, runLockKey, s.opts.LockTTL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("engine: блокировка недоступна, продолжаем без неё")
		case !ok:
			return s.finish(ctx, logger, summary, domain.SkipLocked, started, nil)
		default:
			defer release()
		}
	}

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.opts.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	produced, err := s.deps.Content.CountPersonaContent(ctx, dayStart, dayEnd)
	if err != nil {
		return s.finish(ctx, logger, summary, "", started, fmt.Errorf("счётчики за день: %w", err))
	}

	rnd := s.newRand()
	plan := PlanCycle(cfg, local, produced, s.opts.CyclesPerHour, rnd)
	summary.DailyTargets = plan.Targets
	summary.Quota = plan.Quota
	logger.Info().
		Int("hour", local.Hour()).
		Int("slots", plan.TotalSlots).
		Interface("targets", plan.Targets).
		Interface("quota", plan.Quota).
		Msg("engine: план цикла")

	s.publishPosts(ctx, logger, plan.Quota.Posts, now, rnd, &summary)
	s.publishComments(ctx, logger, plan.Quota.Comments, now, rnd, &summary)
	s.publishReplies(ctx, logger, plan.Quota.Replies, now, rnd, &summary)

	if cfg.BoostRealContent {
		stats, err := s.booster.Boost(ctx, now, rnd)
		if err != nil {
			logger.Error().Err(err).Msg("engine: бустер остановлен")
		}
		summary.Boosted = stats.Comments
		for reason, n := range stats.Skipped {
			s.skip(&summary, reason, n)
		}
	}

	if totals, err := s.deps.Content.CountPersonaContent(ctx, dayStart, dayEnd); err == nil {
		summary.TodayTotals = totals
	} else {
		logger.Warn().Err(err).Msg("engine: не удалось пересчитать итоги дня")
		summary.TodayTotals = domain.DailyCounts{
			Posts:    produced.Posts + summary.Published.Posts,
			Comments: produced.Comments + summary.Published.Comments,
			Replies:  produced.Replies + summary.Published.Replies,
		}
	}
	return s.finish(ctx, logger, summary, "", started, nil)
}

func (s *Service) publishPosts(ctx context.Context, logger zerolog.Logger, quota int, now time.Time, rnd *rand.Rand, summary *domain.RunSummary) {
	if quota <= 0 {
		return
	}
	personas, err := s.selector.Pick(ctx, quota, "", rnd)
	if err != nil {
		logger.Error().Err(err).Msg("engine: персоны для постов недоступны")
		return
	}
	order := make([]domain.Personality, 0, len(personas))
	groups := make(map[domain.Personality][]domain.Persona)
	for _, p := range personas {
		if _, seen := groups[p.Personality]; !seen {
			order = append(order, p.Personality)
		}
		groups[p.Personality] = append(groups[p.Personality], p)
	}
	for _, personality := range order {
		group := groups[personality]
		items, err := s.allocator.Candidates(ctx, domain.KindPost, len(group), personality, rnd)
		if err != nil {
			logger.Error().Err(err).Str("personality", string(personality)).Msg("engine: пул недоступен")
			s.skip(summary, domain.UnitSkipNoPoolItem, len(group))
			continue
		}
		next := 0
		for _, persona := range group {
			reason := domain.UnitSkipNoPoolItem
			for next < len(items) {
				item := items[next]
				next++
				_, err := s.publisher.PublishPost(ctx, persona, item, now)
				if errors.Is(err, domain.ErrClaimConflict) {
					// Элемент забрал параллельный прогон, берём следующего кандидата группы.
					logger.Debug().Int64("pool_item", item.ID).Msg("engine: элемент пула уже занят")
					reason = domain.UnitSkipClaim
					continue
				}
				if err != nil {
					logger.Error().Err(err).Int64("pool_item", item.ID).Msg("engine: пост не сохранён")
					reason = domain.UnitSkipPublishError
					break
				}
				reason = ""
				break
			}
			if reason != "" {
				s.skip(summary, reason, 1)
				continue
			}
			summary.Published.Add(domain.KindPost, 1)
		}
	}
}

func (s *Service) publishComments(ctx context.Context, logger zerolog.Logger, quota int, now time.Time, rnd *rand.Rand, summary *domain.RunSummary) {
	if quota <= 0 {
		return
	}
	targets, err := s.deps.Content.ListRecentPosts(ctx, now.Add(-s.opts.TargetLookback), targetSampleLimit)
	if err != nil {
		logger.Error().Err(err).Msg("engine: посты для комментариев недоступны")
		return
	}
	personas, err := s.selector.Pick(ctx, quota, "", rnd)
	if err != nil {
		logger.Error().Err(err).Msg("engine: персоны для комментариев недоступны")
		return
	}
	for _, persona := range personas {
		post, ok := pickTarget(rnd, targets, func(p domain.TargetPost) bool { return p.AuthorUserID != persona.UserID })
		if !ok {
			s.skip(summary, domain.UnitSkipNoTarget, 1)
			continue
		}
		text, ok := s.contextual.CommentFor(ctx, post, rnd)
		if !ok {
			s.skip(summary, domain.UnitSkipProvider, 1)
			continue
		}
		if _, err := s.publisher.PublishComment(ctx, persona, post, text, now); err != nil {
			logger.Error().Err(err).Int64("post_id", post.ID).Msg("engine: комментарий не сохранён")
			s.skip(summary, domain.UnitSkipPublishError, 1)
			continue
		}
		summary.Published.Add(domain.KindComment, 1)
	}
}

func (s *Service) publishReplies(ctx context.Context, logger zerolog.Logger, quota int, now time.Time, rnd *rand.Rand, summary *domain.RunSummary) {
	if quota <= 0 {
		return
	}
	targets, err := s.deps.Content.ListRecentTopLevelComments(ctx, now.Add(-s.opts.TargetLookback), targetSampleLimit)
	if err != nil {
		logger.Error().Err(err).Msg("engine: комментарии для ответов недоступны")
		return
	}
	personas, err := s.selector.Pick(ctx, quota, "", rnd)
	if err != nil {
		logger.Error().Err(err).Msg("engine: персоны для ответов недоступны")
		return
	}
	for _, persona := range personas {
		parent, ok := pickTarget(rnd, targets, func(c domain.TargetComment) bool { return c.AuthorUserID != persona.UserID })
		if !ok {
			s.skip(summary, domain.UnitSkipNoTarget, 1)
			continue
		}
		text, ok := s.contextual.ReplyFor(ctx, parent, rnd)
		if !ok {
			s.skip(summary, domain.UnitSkipProvider, 1)
			continue
		}
		if _, err := s.publisher.PublishReply(ctx, persona, parent, text, now); err != nil {
			logger.Error().Err(err).Int64("comment_id", parent.ID).Msg("engine: ответ не сохранён")
			s.skip(summary, domain.UnitSkipPublishError, 1)
			continue
		}
		summary.Published.Add(domain.KindReply, 1)
	}
}

func (s *Service) skip(summary *domain.RunSummary, reason domain.UnitSkip, n int) {
	if n <= 0 {
		return
	}
	if summary.UnitsSkipped == nil {
		summary.UnitsSkipped = map[domain.UnitSkip]int{}
	}
	summary.UnitsSkipped[reason] += n
	for i := 0; i < n; i++ {
		metrics.IncUnitSkipped(string(reason))
	}
}

func (s *Service) finish(ctx context.Context, logger zerolog.Logger, summary domain.RunSummary, skipped domain.SkipReason, started time.Time, runErr error) (domain.RunSummary, error) {
	summary.Skipped = skipped
	summary.FinishedAt = summary.StartedAt.Add(time.Since(started))
	outcome := "completed"
	switch {
	case runErr != nil:
		outcome = "failed"
		logger.Error().Err(runErr).Msg("engine: прогон прерван")
	case skipped != "":
		outcome = string(skipped)
		logger.Info().Str("reason", string(skipped)).Msg("engine: прогон пропущен")
	default:
		logger.Info().
			Interface("published", summary.Published).
			Int("boosted", summary.Boosted).
			Interface("skipped_units", summary.UnitsSkipped).
			Msg("engine: прогон завершён")
	}
	metrics.ObserveRun(outcome, time.Since(started))
	if runErr == nil && skipped == "" {
		s.audit(ctx, summary)
	}
	return summary, runErr
}

func (s *Service) audit(ctx context.Context, summary domain.RunSummary) {
	if s.deps.Audit == nil || s.deps.Dispatch == nil {
		return
	}
	metric := domain.BusinessMetric{
		Event: domain.BusinessMetricEventRunCompleted,
		Metadata: map[string]any{
			"run_id":    summary.RunID,
			"published": summary.Published,
			"boosted":   summary.Boosted,
			"quota":     summary.Quota,
			"skipped":   summary.UnitsSkipped,
		},
		OccurredAt: summary.StartedAt,
	}
	s.deps.Dispatch.Go(ctx, "audit", func(ctx context.Context) error {
		return s.deps.Audit.RecordBusinessMetric(ctx, metric)
	})
}

func (s *Service) report(ctx context.Context, summary domain.RunSummary, runErr error) {
	if s.deps.Reporter == nil || s.deps.Dispatch == nil {
		return
	}
	if runErr == nil && summary.TotalPublished() == 0 {
		return
	}
	s.deps.Dispatch.Go(ctx, "report", func(ctx context.Context) error {
		return s.deps.Reporter.ReportRun(ctx, summary, runErr)
	})
}

// pickTarget выбирает случайную цель, удовлетворяющую условию.
func pickTarget[T any](rnd *rand.Rand, targets []T, allowed func(T) bool) (T, bool) {
	var zero T
	if len(targets) == 0 {
		return zero, false
	}
	start := rnd.IntN(len(targets))
	for i := 0; i < len(targets); i++ {
		candidate := targets[(start+i)%len(targets)]
		if allowed(candidate) {
			return candidate, true
		}
	}
	return zero, false
}
