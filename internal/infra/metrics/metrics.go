package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})

	GhostPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghost_published_total",
		Help: "Количество единиц контента, опубликованных от имени персон",
	}, []string{"kind"})

	GhostUnitsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghost_units_skipped_total",
		Help: "Пропущенные единицы работы по причинам",
	}, []string{"reason"})

	GhostRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghost_run_duration_seconds",
		Help:    "Длительность одного прогона движка",
		Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
	})

	GhostRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghost_runs_total",
		Help: "Количество прогонов движка по исходу",
	}, []string{"outcome"})

	GhostPoolUnused = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghost_pool_unused",
		Help: "Неиспользованные элементы пула по характеру персоны",
	}, []string{"personality"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
		GhostPublishedTotal,
		GhostUnitsSkippedTotal,
		GhostRunDuration,
		GhostRunsTotal,
		GhostPoolUnused,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	if duration > 0 {
		LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	}
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncPublished увеличивает счётчик публикаций указанного типа.
func IncPublished(kind string) {
	GhostPublishedTotal.WithLabelValues(kind).Inc()
}

// IncUnitSkipped увеличивает счётчик пропущенных единиц работы.
func IncUnitSkipped(reason string) {
	GhostUnitsSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveRun записывает исход и длительность прогона.
func ObserveRun(outcome string, duration time.Duration) {
	GhostRunsTotal.WithLabelValues(outcome).Inc()
	GhostRunDuration.Observe(duration.Seconds())
}

// SetPoolUnused выставляет размер неиспользованного пула.
func SetPoolUnused(personality string, n int) {
	GhostPoolUnused.WithLabelValues(personality).Set(float64(n))
}
