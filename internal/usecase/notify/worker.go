package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
)

// Outcome — результат обработки одной задачи.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Worker превращает задачи очереди в уведомления внутри приложения.
type Worker struct {
	queue         domain.NotificationQueue
	personas      domain.PersonaRepo
	notifications domain.NotificationRepo
	retryDelay    time.Duration
	log           zerolog.Logger
}

// NewWorker создаёт воркер.
func NewWorker(queue domain.NotificationQueue, personas domain.PersonaRepo, notifications domain.NotificationRepo, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:         queue,
		personas:      personas,
		notifications: notifications,
		retryDelay:    time.Second,
		log:           logger,
	}
}

// Run читает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("notify: ошибка чтения очереди")
			if !sleep(ctx, w.retryDelay) {
				return
			}
			continue
		}
		outcome, err := w.Handle(ctx, job)
		jobLog := w.log.With().Str("job_id", job.ID).Str("type", string(job.Type)).Int64("recipient", job.RecipientUserID).Logger()
		switch outcome {
		case OutcomeFailed:
			jobLog.Error().Err(err).Msg("notify: уведомление не сохранено")
		case OutcomeSkipped:
			jobLog.Debug().Msg("notify: задача пропущена")
		default:
			jobLog.Debug().Msg("notify: уведомление сохранено")
		}
	}
}

// Handle обрабатывает одну задачу. Получатели-персоны и реакции на себя пропускаются.
// Время уведомления совпадает со временем публикации, даже если оно в будущем.
func (w *Worker) Handle(ctx context.Context, job domain.NotificationJob) (Outcome, error) {
	if job.RecipientUserID == 0 || job.RecipientUserID == job.ActorUserID || job.PostID == 0 {
		return OutcomeSkipped, nil
	}
	isPersona, err := w.personas.IsPersonaUser(ctx, job.RecipientUserID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("проверка получателя: %w", err)
	}
	if isPersona {
		return OutcomeSkipped, nil
	}
	createdAt := job.DeliverAt
	if createdAt.IsZero() {
		createdAt = job.EnqueuedAt
	}
	n := domain.Notification{
		RecipientUserID: job.RecipientUserID,
		ActorUserID:     job.ActorUserID,
		Type:            job.Type,
		PostID:          job.PostID,
		CommentID:       job.CommentID,
		CreatedAt:       createdAt.UTC(),
	}
	if err := w.notifications.CreateNotification(ctx, n); err != nil {
		return OutcomeFailed, fmt.Errorf("сохранение уведомления: %w", err)
	}
	return OutcomeDelivered, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
