package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ghost-activity/internal/app"
	"ghost-activity/internal/infra/config"
	logpkg "ghost-activity/internal/infra/log"
	"ghost-activity/internal/infra/metrics"
)

// Планировщик заменяет внешний cron: раз в ENGINE_CYCLE_INTERVAL пополняет пул и запускает движок.
func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv).With().Str("component", "scheduler").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось собрать зависимости")
	}
	defer a.Close()

	ticker := time.NewTicker(cfg.Engine.CycleInterval)
	defer ticker.Stop()
	cycle(ctx, a)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			cycle(ctx, a)
		}
	}
}

func cycle(ctx context.Context, a *app.App) {
	res, err := a.PoolFill.Refill(ctx)
	if err != nil {
		a.Log.Error().Err(err).Msg("scheduler: пополнение пула не удалось")
	} else if res.Total() > 0 {
		a.Log.Info().Int("inserted", res.Total()).Msg("scheduler: пул пополнен")
	}

	summary, err := a.Engine.Trigger(ctx, time.Now())
	if err != nil {
		a.Log.Error().Err(err).Msg("scheduler: прогон движка завершился ошибкой")
		return
	}
	a.Log.Info().
		Str("run_id", summary.RunID).
		Str("skipped", string(summary.Skipped)).
		Int("published", summary.TotalPublished()).
		Msg("scheduler: прогон выполнен")
}
