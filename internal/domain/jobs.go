package domain

import (
	"context"
	"time"
)

// NotificationJob описывает отложенную доставку уведомления о новом комментарии или ответе.
type NotificationJob struct {
	ID              string      `json:"job_id"`
	Type            ContentKind `json:"type"`
	RecipientUserID int64       `json:"recipient_user_id"`
	ActorUserID     int64       `json:"actor_user_id"`
	PostID          int64       `json:"post_id"`
	CommentID       int64       `json:"comment_id"`
	// DeliverAt совпадает с временем публикации, которое может быть сдвинуто в будущее.
	DeliverAt  time.Time `json:"deliver_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NotificationQueue описывает очередь задач на уведомления.
type NotificationQueue interface {
	Enqueue(ctx context.Context, job NotificationJob) error
	Pop(ctx context.Context) (NotificationJob, error)
}
