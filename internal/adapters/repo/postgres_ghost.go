package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

// ListActivePersonas реализует domain.PersonaRepo.
func (p *Postgres) ListActivePersonas(ctx context.Context, personality domain.Personality) ([]domain.Persona, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, nickname, personality, is_active, created_at
FROM ghost_personas
WHERE is_active = true AND ($1 = '' OR personality = $1)
ORDER BY id
`, string(personality))
	metrics.ObserveNetworkRequest("postgres", "personas_list", "ghost_personas", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Persona
	for rows.Next() {
		var (
			persona     domain.Persona
			personaType string
		)
		if err := rows.Scan(&persona.ID, &persona.UserID, &persona.Nickname, &personaType, &persona.Active, &persona.CreatedAt); err != nil {
			return nil, err
		}
		persona.Personality = domain.Personality(personaType)
		res = append(res, persona)
	}
	return res, rows.Err()
}

// IsPersonaUser сообщает, принадлежит ли пользователь каталогу персон.
func (p *Postgres) IsPersonaUser(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ghost_personas WHERE user_id = $1)`, userID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "persona_exists", "ghost_personas", start, err)
	return exists, err
}

// ListUnusedPoolItems возвращает случайную выборку свободных элементов пула.
func (p *Postgres) ListUnusedPoolItems(ctx context.Context, kind domain.ContentKind, personality domain.Personality, limit int) ([]domain.PoolItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, content_type, personality, COALESCE(title, ''), content, COALESCE(category, ''), created_at
FROM ghost_content_pool
WHERE content_type = $1 AND is_used = false AND ($2 = '' OR personality = $2)
ORDER BY random()
LIMIT $3
`, string(kind), string(personality), limit)
	metrics.ObserveNetworkRequest("postgres", "pool_list_unused", "ghost_content_pool", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.PoolItem
	for rows.Next() {
		var (
			item        domain.PoolItem
			contentType string
			personaType string
		)
		if err := rows.Scan(&item.ID, &contentType, &personaType, &item.Title, &item.Body, &item.Category, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Kind = domain.ContentKind(contentType)
		item.Personality = domain.Personality(personaType)
		res = append(res, item)
	}
	return res, rows.Err()
}

// CountUnusedPoolItems возвращает остаток пула по характерам.
func (p *Postgres) CountUnusedPoolItems(ctx context.Context, kind domain.ContentKind) (map[domain.Personality]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT personality, COUNT(*)
FROM ghost_content_pool
WHERE content_type = $1 AND is_used = false
GROUP BY personality
`, string(kind))
	metrics.ObserveNetworkRequest("postgres", "pool_count_unused", "ghost_content_pool", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[domain.Personality]int)
	for rows.Next() {
		var (
			personaType string
			count       int64
		)
		if err := rows.Scan(&personaType, &count); err != nil {
			return nil, err
		}
		res[domain.Personality(personaType)] = int(count)
	}
	return res, rows.Err()
}

// InsertPoolItems добавляет новые элементы пула одной командой COPY.
func (p *Postgres) InsertPoolItems(ctx context.Context, items []domain.PoolItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, poolRow(item, createdAt))
	}

	start := time.Now()
	n, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"ghost_content_pool"},
		[]string{"content_type", "personality", "title", "content", "category", "is_used", "created_at"},
		pgx.CopyFromRows(rows),
	)
	metrics.ObserveNetworkRequest("postgres", "pool_insert", "ghost_content_pool", start, err)
	return int(n), err
}

// poolRow — строка COPY для ghost_content_pool. Пустые title и category пишутся как NULL.
func poolRow(item domain.PoolItem, createdAt time.Time) []any {
	return []any{
		string(item.Kind),
		string(item.Personality),
		nullIfEmpty(item.Title),
		item.Body,
		nullIfEmpty(item.Category),
		false,
		createdAt,
	}
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// PublishPooledPost создаёт пост и захватывает элемент пула в одной транзакции.
// Захват условный: если элемент уже занят, транзакция откатывается и возвращается domain.ErrClaimConflict.
func (p *Postgres) PublishPooledPost(ctx context.Context, persona domain.Persona, item domain.PoolItem, createdAt time.Time) (domain.PublishedContent, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posts", start, err)
	if err != nil {
		return domain.PublishedContent{}, err
	}

	var postID int64
	start = time.Now()
	err = tx.QueryRow(ctx, `
INSERT INTO posts (author_id, title, content, category, ghost_pool_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, persona.UserID, item.Title, item.Body, nullIfEmpty(item.Category), item.ID, createdAt).Scan(&postID)
	metrics.ObserveNetworkRequest("postgres", "post_insert", "posts", start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return domain.PublishedContent{}, err
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE ghost_content_pool
SET is_used = true, used_post_id = $2
WHERE id = $1 AND is_used = false
`, item.ID, postID)
	metrics.ObserveNetworkRequest("postgres", "pool_claim", "ghost_content_pool", start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return domain.PublishedContent{}, err
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return domain.PublishedContent{}, domain.ErrClaimConflict
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "posts", start, err)
	if err != nil {
		return domain.PublishedContent{}, err
	}

	itemID := item.ID
	return domain.PublishedContent{
		ID:           postID,
		Kind:         domain.KindPost,
		AuthorUserID: persona.UserID,
		PersonaID:    persona.ID,
		PostID:       postID,
		Title:        item.Title,
		Body:         item.Body,
		Category:     item.Category,
		PoolItemID:   &itemID,
		CreatedAt:    createdAt,
	}, nil
}

// PublishComment сохраняет комментарий к посту или ответ на комментарий верхнего уровня.
// Ответ на ответ не сохраняется: такой родитель считается ненайденным.
func (p *Postgres) PublishComment(ctx context.Context, c domain.PublishedContent) (domain.PublishedContent, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if c.ParentCommentID == nil {
		c.Kind = domain.KindComment
		start := time.Now()
		err := p.pool.QueryRow(ctx, `
INSERT INTO comments (post_id, author_id, parent_id, content, created_at)
VALUES ($1, $2, NULL, $3, $4)
RETURNING id
`, c.PostID, c.AuthorUserID, c.Body, c.CreatedAt).Scan(&c.ID)
		metrics.ObserveNetworkRequest("postgres", "comment_insert", "comments", start, err)
		if err != nil {
			return domain.PublishedContent{}, err
		}
		return c, nil
	}

	c.Kind = domain.KindReply
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO comments (post_id, author_id, parent_id, content, created_at)
SELECT parent.post_id, $2, parent.id, $3, $4
FROM comments parent
WHERE parent.id = $1 AND parent.parent_id IS NULL
RETURNING id, post_id
`, *c.ParentCommentID, c.AuthorUserID, c.Body, c.CreatedAt).Scan(&c.ID, &c.PostID)
	metrics.ObserveNetworkRequest("postgres", "reply_insert", "comments", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PublishedContent{}, fmt.Errorf("комментарий %d: %w", *c.ParentCommentID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PublishedContent{}, err
	}
	return c, nil
}

// DeletePost удаляет пост вместе с комментариями и освобождает элемент пула в той же транзакции.
func (p *Postgres) DeletePost(ctx context.Context, postID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posts", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, postID)
	metrics.ObserveNetworkRequest("postgres", "comments_delete", "comments", start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	var poolID sql.NullInt64
	start = time.Now()
	err = tx.QueryRow(ctx, `DELETE FROM posts WHERE id = $1 RETURNING ghost_pool_id`, postID).Scan(&poolID)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "post_delete", "posts", start, nil)
		_ = tx.Rollback(ctx)
		return fmt.Errorf("пост %d: %w", postID, domain.ErrNotFound)
	}
	metrics.ObserveNetworkRequest("postgres", "post_delete", "posts", start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if poolID.Valid {
		start = time.Now()
		_, err = tx.Exec(ctx, `
UPDATE ghost_content_pool
SET is_used = false, used_post_id = NULL
WHERE id = $1 AND used_post_id = $2
`, poolID.Int64, postID)
		metrics.ObserveNetworkRequest("postgres", "pool_release", "ghost_content_pool", start, err)
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "posts", start, err)
	return err
}

// CountPersonaContent считает публикации персон в полуинтервале [from, to).
func (p *Postgres) CountPersonaContent(ctx context.Context, from, to time.Time) (domain.DailyCounts, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var posts, comments, replies int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM posts p JOIN ghost_personas g ON g.user_id = p.author_id
    WHERE p.created_at >= $1 AND p.created_at < $2),
  (SELECT COUNT(*) FROM comments c JOIN ghost_personas g ON g.user_id = c.author_id
    WHERE c.parent_id IS NULL AND c.created_at >= $1 AND c.created_at < $2),
  (SELECT COUNT(*) FROM comments c JOIN ghost_personas g ON g.user_id = c.author_id
    WHERE c.parent_id IS NOT NULL AND c.created_at >= $1 AND c.created_at < $2)
`, from, to).Scan(&posts, &comments, &replies)
	metrics.ObserveNetworkRequest("postgres", "persona_counts", "posts", start, err)
	if err != nil {
		return domain.DailyCounts{}, err
	}
	return domain.DailyCounts{Posts: int(posts), Comments: int(comments), Replies: int(replies)}, nil
}

// ListRecentPosts возвращает свежие посты любых авторов для комментариев.
func (p *Postgres) ListRecentPosts(ctx context.Context, since time.Time, limit int) ([]domain.TargetPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, author_id, COALESCE(title, ''), content, created_at
FROM posts
WHERE created_at >= $1 AND created_at <= now()
ORDER BY created_at DESC
LIMIT $2
`, since, limit)
	metrics.ObserveNetworkRequest("postgres", "posts_recent", "posts", start, err)
	if err != nil {
		return nil, err
	}
	return scanTargetPosts(rows)
}

// ListRecentTopLevelComments возвращает уже видимые комментарии верхнего уровня.
func (p *Postgres) ListRecentTopLevelComments(ctx context.Context, since time.Time, limit int) ([]domain.TargetComment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, post_id, author_id, content, created_at
FROM comments
WHERE parent_id IS NULL AND created_at >= $1 AND created_at <= now()
ORDER BY created_at DESC
LIMIT $2
`, since, limit)
	metrics.ObserveNetworkRequest("postgres", "comments_recent", "comments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.TargetComment
	for rows.Next() {
		var c domain.TargetComment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorUserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListUnboostedOrganicPosts реализует domain.ContentRepo.
func (p *Postgres) ListUnboostedOrganicPosts(ctx context.Context, since time.Time) ([]domain.TargetPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT p.id, p.author_id, COALESCE(p.title, ''), p.content, p.created_at
FROM posts p
WHERE p.created_at >= $1
  AND NOT EXISTS (SELECT 1 FROM ghost_personas g WHERE g.user_id = p.author_id)
  AND NOT EXISTS (
    SELECT 1 FROM comments c JOIN ghost_personas g ON g.user_id = c.author_id
    WHERE c.post_id = p.id
  )
ORDER BY p.created_at
`, since)
	metrics.ObserveNetworkRequest("postgres", "posts_unboosted", "posts", start, err)
	if err != nil {
		return nil, err
	}
	return scanTargetPosts(rows)
}

func scanTargetPosts(rows pgx.Rows) ([]domain.TargetPost, error) {
	defer rows.Close()
	var res []domain.TargetPost
	for rows.Next() {
		var post domain.TargetPost
		if err := rows.Scan(&post.ID, &post.AuthorUserID, &post.Title, &post.Body, &post.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, post)
	}
	return res, rows.Err()
}
