package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

// Publisher фиксирует одну единицу контента атомарно и запускает уведомления в фоне.
type Publisher struct {
	content  domain.ContentRepo
	queue    domain.NotificationQueue
	dispatch dispatcher
	log      zerolog.Logger
}

// NewPublisher создаёт публикатор. При nil queue уведомления не отправляются.
func NewPublisher(content domain.ContentRepo, queue domain.NotificationQueue, dispatch dispatcher, logger zerolog.Logger) *Publisher {
	return &Publisher{content: content, queue: queue, dispatch: dispatch, log: logger}
}

// PublishPost публикует пост из пула. При гонке за элемент возвращает domain.ErrClaimConflict.
func (p *Publisher) PublishPost(ctx context.Context, persona domain.Persona, item domain.PoolItem, createdAt time.Time) (domain.PublishedContent, error) {
	post, err := p.content.PublishPooledPost(ctx, persona, item, createdAt)
	if err != nil {
		return domain.PublishedContent{}, err
	}
	metrics.IncPublished(string(domain.KindPost))
	p.log.Debug().Int64("post_id", post.ID).Int64("pool_item", item.ID).Int64("persona", persona.ID).Msg("engine: пост опубликован")
	return post, nil
}

// PublishComment публикует комментарий персоны к посту.
func (p *Publisher) PublishComment(ctx context.Context, persona domain.Persona, post domain.TargetPost, body string, createdAt time.Time) (domain.PublishedContent, error) {
	saved, err := p.content.PublishComment(ctx, domain.PublishedContent{
		Kind:         domain.KindComment,
		AuthorUserID: persona.UserID,
		PersonaID:    persona.ID,
		PostID:       post.ID,
		Body:         body,
		CreatedAt:    createdAt,
	})
	if err != nil {
		return domain.PublishedContent{}, fmt.Errorf("публикация комментария: %w", err)
	}
	metrics.IncPublished(string(domain.KindComment))
	p.notify(ctx, saved, post.AuthorUserID)
	return saved, nil
}

// PublishReply публикует ответ персоны на комментарий верхнего уровня.
func (p *Publisher) PublishReply(ctx context.Context, persona domain.Persona, parent domain.TargetComment, body string, createdAt time.Time) (domain.PublishedContent, error) {
	parentID := parent.ID
	saved, err := p.content.PublishComment(ctx, domain.PublishedContent{
		Kind:            domain.KindReply,
		AuthorUserID:    persona.UserID,
		PersonaID:       persona.ID,
		PostID:          parent.PostID,
		ParentCommentID: &parentID,
		Body:            body,
		CreatedAt:       createdAt,
	})
	if err != nil {
		return domain.PublishedContent{}, fmt.Errorf("публикация ответа: %w", err)
	}
	metrics.IncPublished(string(domain.KindReply))
	p.notify(ctx, saved, parent.AuthorUserID)
	return saved, nil
}

func (p *Publisher) notify(ctx context.Context, saved domain.PublishedContent, recipient int64) {
	if p.queue == nil || p.dispatch == nil || recipient == 0 || recipient == saved.AuthorUserID {
		return
	}
	job := domain.NotificationJob{
		ID:              uuid.NewString(),
		Type:            saved.Kind,
		RecipientUserID: recipient,
		ActorUserID:     saved.AuthorUserID,
		PostID:          saved.PostID,
		CommentID:       saved.ID,
		DeliverAt:       saved.CreatedAt,
		EnqueuedAt:      time.Now().UTC(),
	}
	p.dispatch.Go(ctx, "notification", func(ctx context.Context) error {
		return p.queue.Enqueue(ctx, job)
	})
}
