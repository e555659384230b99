package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ghost-activity/internal/adapters/httpapi"
	"ghost-activity/internal/app"
	"ghost-activity/internal/infra/config"
	httpinfra "ghost-activity/internal/infra/http"
	logpkg "ghost-activity/internal/infra/log"
	"ghost-activity/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv).With().Str("component", "api").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать зависимости")
	}
	defer a.Close()

	if cfg.Engine.CronSecret == "" {
		logger.Warn().Msg("api: ENGINE_CRON_SECRET не задан, триггер закрыт")
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Engine:   a.Engine,
		Config:   a.Store,
		Content:  a.Store,
		Pool:     a.Store,
		Personas: a.Store,
		Audit:    a.Store,
	}, cfg.Engine.CronSecret, cfg.Engine.AdminSecret, cfg.Location(), logger)

	srv := httpinfra.NewServer(logger)
	handler.Register(srv.Router)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
