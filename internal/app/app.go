package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ghost-activity/internal/adapters/generator"
	"ghost-activity/internal/adapters/repo"
	"ghost-activity/internal/adapters/telegram"
	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/cache"
	"ghost-activity/internal/infra/config"
	"ghost-activity/internal/infra/db"
	"ghost-activity/internal/infra/dispatch"
	openai "ghost-activity/internal/infra/openai"
	"ghost-activity/internal/infra/queue"
	"ghost-activity/internal/usecase/engine"
	"ghost-activity/internal/usecase/poolfill"
)

// App — собранные зависимости процесса.
type App struct {
	Config   config.AppConfig
	Log      zerolog.Logger
	Store    *repo.Postgres
	Queue    domain.NotificationQueue
	Dispatch *dispatch.Dispatcher
	Engine   *engine.Service
	PoolFill *poolfill.Service

	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func() error
}

// New подключает хранилище и собирает движок. Redis, очередь и Telegram необязательны:
// при их недоступности движок работает без блокировки, уведомлений и отчётов.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	a := &App{Config: cfg, Log: logger, pool: pool, Store: repo.NewPostgres(pool)}
	a.Dispatch = dispatch.New(logger.With().Str("component", "dispatch").Logger(), 0)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("app: redis недоступен, работаем без блокировки")
			_ = client.Close()
		} else {
			a.redis = client
			a.closers = append(a.closers, client.Close)
		}
	}

	if err := a.openQueue(); err != nil {
		a.Close()
		return nil, err
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := engine.Deps{
		Personas:  a.Store,
		Pool:      a.Store,
		Content:   a.Store,
		Config:    a.Store,
		Generator: gen,
		Usage:     a.Store,
		Queue:     a.Queue,
		Audit:     a.Store,
		Dispatch:  a.Dispatch,
	}
	if a.redis != nil {
		deps.Lock = cache.NewRedis(a.redis)
	}
	if reporter := newReporter(cfg, logger); reporter != nil {
		deps.Reporter = reporter
	}

	a.Engine = engine.NewService(deps, engine.Options{
		Location:         cfg.Location(),
		CyclesPerHour:    cfg.Engine.CyclesPerHour,
		BoostWindow:      cfg.Engine.BoostWindow,
		BoostMinDelay:    cfg.Engine.BoostMinDelay,
		BoostMaxComments: cfg.Engine.BoostMaxComments,
		PoolOversample:   cfg.Engine.PoolOversample,
		TargetLookback:   cfg.Engine.TargetLookback,
		LockTTL:          cfg.Engine.RunLockTTL,
	}, logger.With().Str("component", "engine").Logger())

	a.PoolFill = poolfill.NewService(a.Store, gen, a.Store, a.Store, cfg.Pool.MinUnused, cfg.Pool.FillBatch,
		logger.With().Str("component", "poolfill").Logger())
	return a, nil
}

func (a *App) openQueue() error {
	switch strings.ToLower(a.Config.Queues.Backend) {
	case "", "none":
		a.Log.Info().Msg("app: очередь уведомлений отключена")
	case "redis":
		if a.redis == nil {
			a.Log.Warn().Msg("app: redis не настроен, уведомления отключены")
			return nil
		}
		a.Queue = queue.NewRedisNotificationQueue(a.redis, a.Config.Queues.Notification)
	case "rabbitmq":
		q, err := queue.NewRabbitNotificationQueue(a.Config.RabbitURL, a.Config.Queues.Notification)
		if err != nil {
			return fmt.Errorf("подключение к rabbitmq: %w", err)
		}
		a.Queue = q
		a.closers = append(a.closers, q.Close)
	default:
		return fmt.Errorf("неизвестный бэкенд очереди %q", a.Config.Queues.Backend)
	}
	return nil
}

func newGenerator(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.Generator, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "stub":
		return generator.NewStub(), nil
	case "gemini":
		client, err := generator.NewGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("клиент gemini: %w", err)
		}
		return generator.NewGemini(client.Models, cfg.Gemini.Model, cfg.OpenAI.Timeout), nil
	case "", "openai":
		if cfg.OpenAI.APIKey == "" {
			logger.Warn().Msg("app: OPENAI_API_KEY не задан, используем заглушку генератора")
			return generator.NewStub(), nil
		}
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		return generator.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.Timeout), nil
	}
	return nil, fmt.Errorf("неизвестный провайдер %q", cfg.LLM.Provider)
}

func newReporter(cfg config.AppConfig, logger zerolog.Logger) *telegram.Reporter {
	if cfg.Telegram.Token == "" || cfg.Telegram.ReportChatID == 0 {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("app: telegram недоступен, отчёты отключены")
		return nil
	}
	return telegram.NewReporter(bot, cfg.Telegram.ReportChatID, cfg.Location(), logger.With().Str("component", "telegram").Logger())
}

// Close дожидается фоновых задач и закрывает подключения.
func (a *App) Close() {
	if a.Dispatch != nil {
		a.Dispatch.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn().Err(err).Msg("app: ошибка при закрытии подключений")
	}
	a.pool.Close()
}
