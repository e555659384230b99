package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"ghost-activity/internal/app"
	"ghost-activity/internal/infra/config"
	logpkg "ghost-activity/internal/infra/log"
	"ghost-activity/internal/infra/metrics"
	"ghost-activity/internal/usecase/notify"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось собрать зависимости")
	}
	defer a.Close()
	if a.Queue == nil {
		logger.Fatal().Str("backend", cfg.Queues.Backend).Msg("worker: очередь уведомлений недоступна")
	}

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("worker: старт")
	notify.NewWorker(a.Queue, a.Store, a.Store, logger.With().Str("component", "notify").Logger()).Run(ctx)
	logger.Info().Msg("worker: остановка")
}
