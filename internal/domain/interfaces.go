package domain

import (
	"context"
	"time"
)

// PersonaRepo отдаёт каталог синтетических авторов. Только чтение.
type PersonaRepo interface {
	// ListActivePersonas возвращает активные персоны; пустой personality означает без фильтра.
	ListActivePersonas(ctx context.Context, personality Personality) ([]Persona, error)
	IsPersonaUser(ctx context.Context, userID int64) (bool, error)
}

// PoolRepo управляет пулом заранее сгенерированного контента.
type PoolRepo interface {
	ListUnusedPoolItems(ctx context.Context, kind ContentKind, personality Personality, limit int) ([]PoolItem, error)
	CountUnusedPoolItems(ctx context.Context, kind ContentKind) (map[Personality]int, error)
	InsertPoolItems(ctx context.Context, items []PoolItem) (int, error)
}

// ContentRepo создаёт и удаляет опубликованный контент.
type ContentRepo interface {
	// PublishPooledPost в одной транзакции создаёт пост и захватывает элемент пула.
	// Если элемент уже занят, возвращает ErrClaimConflict и ничего не сохраняет.
	PublishPooledPost(ctx context.Context, persona Persona, item PoolItem, createdAt time.Time) (PublishedContent, error)
	// PublishComment сохраняет комментарий или ответ (ParentCommentID != nil).
	PublishComment(ctx context.Context, content PublishedContent) (PublishedContent, error)
	// DeletePost удаляет пост и в той же транзакции освобождает элемент пула.
	DeletePost(ctx context.Context, postID int64) error
	CountPersonaContent(ctx context.Context, from, to time.Time) (DailyCounts, error)
	ListRecentPosts(ctx context.Context, since time.Time, limit int) ([]TargetPost, error)
	ListRecentTopLevelComments(ctx context.Context, since time.Time, limit int) ([]TargetComment, error)
	// ListUnboostedOrganicPosts возвращает посты живых авторов без единого комментария персон.
	ListUnboostedOrganicPosts(ctx context.Context, since time.Time) ([]TargetPost, error)
}

// ConfigRepo читает синглтон настроек движка.
type ConfigRepo interface {
	GetEngineConfig(ctx context.Context) (EngineConfig, error)
}

// UsageRecorder учитывает расход генеративного провайдера.
type UsageRecorder interface {
	RecordLLMUsage(ctx context.Context, usage LLMUsage) error
}

// NotificationRepo сохраняет уведомления внутри приложения.
type NotificationRepo interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// Generator — узкий порт генеративного провайдера.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (Generation, error)
}

// RunLock — необязательная блокировка от параллельных прогонов.
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RunReporter отправляет отчёт о прогоне операторам.
type RunReporter interface {
	ReportRun(ctx context.Context, summary RunSummary, runErr error) error
}
