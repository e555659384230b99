package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

// dbPool — подмножество pgxpool.Pool, которым пользуется адаптер.
type dbPool interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool dbPool
}

var (
	_ domain.PersonaRepo        = (*Postgres)(nil)
	_ domain.PoolRepo           = (*Postgres)(nil)
	_ domain.ContentRepo        = (*Postgres)(nil)
	_ domain.ConfigRepo         = (*Postgres)(nil)
	_ domain.UsageRecorder      = (*Postgres)(nil)
	_ domain.NotificationRepo   = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func newPostgres(pool dbPool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}
	var postID sql.NullInt64
	if metric.PostID != nil {
		postID = sql.NullInt64{Int64: *metric.PostID, Valid: true}
	}
	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, post_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, userID, postID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// RecordLLMUsage сохраняет расход токенов генеративного провайдера.
func (p *Postgres) RecordLLMUsage(ctx context.Context, usage domain.LLMUsage) error {
	if usage.OccurredAt.IsZero() {
		usage.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO ai_usage_logs (feature, model, prompt_tokens, completion_tokens, total_tokens, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, usage.Feature, usage.Model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, usage.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "ai_usage_insert", "ai_usage_logs", start, err)
	return err
}

// CreateNotification сохраняет уведомление для получателя.
func (p *Postgres) CreateNotification(ctx context.Context, n domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var commentID sql.NullInt64
	if n.CommentID != 0 {
		commentID = sql.NullInt64{Int64: n.CommentID, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO notifications (user_id, actor_id, type, post_id, comment_id, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, false, $6)
`, n.RecipientUserID, n.ActorUserID, string(n.Type), n.PostID, commentID, n.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "notification_insert", "notifications", start, err)
	return err
}

// GetEngineConfig читает синглтон настроек. Отсутствие записи означает выключенный движок.
func (p *Postgres) GetEngineConfig(ctx context.Context) (domain.EngineConfig, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		cfg       domain.EngineConfig
		startHour int32
		endHour   int32
		posts     int32
		comments  int32
		replies   int32
		updatedAt sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT enabled, active_start_hour, active_end_hour, posts_per_day, comments_per_day, replies_per_day, boost_real_posts, updated_at
FROM ghost_engine_config
WHERE id = 1
`).Scan(&cfg.Enabled, &startHour, &endHour, &posts, &comments, &replies, &cfg.BoostRealContent, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "engine_config_get", "ghost_engine_config", start, nil)
		return domain.EngineConfig{}, nil
	}
	metrics.ObserveNetworkRequest("postgres", "engine_config_get", "ghost_engine_config", start, err)
	if err != nil {
		return domain.EngineConfig{}, err
	}
	cfg.ActiveStartHour = int(startHour)
	cfg.ActiveEndHour = int(endHour)
	cfg.PostsPerDay = int(posts)
	cfg.CommentsPerDay = int(comments)
	cfg.RepliesPerDay = int(replies)
	if updatedAt.Valid {
		cfg.UpdatedAt = updatedAt.Time
	}
	return cfg, nil
}
