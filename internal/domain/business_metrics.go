package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	PostID     *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventRunCompleted фиксирует завершённый прогон движка.
	BusinessMetricEventRunCompleted = "ghost_run_completed"
	// BusinessMetricEventPostReleased фиксирует возврат элемента пула после удаления поста.
	BusinessMetricEventPostReleased = "ghost_pool_released"
	// BusinessMetricEventPoolRefilled фиксирует пополнение пула.
	BusinessMetricEventPoolRefilled = "ghost_pool_refilled"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
