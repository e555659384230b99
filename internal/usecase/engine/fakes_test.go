package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"ghost-activity/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	personas []domain.Persona
	pool     []domain.PoolItem
	posts    []domain.PublishedContent
	organic  []domain.TargetPost
	comments []domain.PublishedContent
	config   domain.EngineConfig
	nextID   int64

	countErr    error
	beforeClaim func(item domain.PoolItem)
	poolLimits  []int
}

func newMemStore() *memStore {
	return &memStore{nextID: 1000}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) isPersona(userID int64) bool {
	for _, p := range m.personas {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (m *memStore) ListActivePersonas(_ context.Context, personality domain.Personality) ([]domain.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Persona
	for _, p := range m.personas {
		if !p.Active {
			continue
		}
		if personality != "" && p.Personality != personality {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) IsPersonaUser(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isPersona(userID), nil
}

func (m *memStore) ListUnusedPoolItems(_ context.Context, kind domain.ContentKind, personality domain.Personality, limit int) ([]domain.PoolItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolLimits = append(m.poolLimits, limit)
	var out []domain.PoolItem
	for _, item := range m.pool {
		if item.Used || item.Kind != kind {
			continue
		}
		if personality != "" && item.Personality != personality {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) CountUnusedPoolItems(_ context.Context, kind domain.ContentKind) (map[domain.Personality]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[domain.Personality]int{}
	for _, item := range m.pool {
		if !item.Used && item.Kind == kind {
			out[item.Personality]++
		}
	}
	return out, nil
}

func (m *memStore) InsertPoolItems(_ context.Context, items []domain.PoolItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		item.ID = m.id()
		m.pool = append(m.pool, item)
	}
	return len(items), nil
}

func (m *memStore) PublishPooledPost(_ context.Context, persona domain.Persona, item domain.PoolItem, createdAt time.Time) (domain.PublishedContent, error) {
	if m.beforeClaim != nil {
		m.beforeClaim(item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pool {
		if m.pool[i].ID != item.ID {
			continue
		}
		if m.pool[i].Used {
			return domain.PublishedContent{}, domain.ErrClaimConflict
		}
		postID := m.id()
		itemID := item.ID
		m.pool[i].Used = true
		m.pool[i].UsedPostID = &postID
		post := domain.PublishedContent{
			ID:           postID,
			Kind:         domain.KindPost,
			AuthorUserID: persona.UserID,
			PersonaID:    persona.ID,
			Title:        item.Title,
			Body:         item.Body,
			PoolItemID:   &itemID,
			CreatedAt:    createdAt,
		}
		m.posts = append(m.posts, post)
		return post, nil
	}
	return domain.PublishedContent{}, domain.ErrNotFound
}

func (m *memStore) PublishComment(_ context.Context, c domain.PublishedContent) (domain.PublishedContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.comments = append(m.comments, c)
	return c, nil
}

func (m *memStore) DeletePost(_ context.Context, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.posts {
		if p.ID != postID {
			continue
		}
		m.posts = append(m.posts[:i], m.posts[i+1:]...)
		if p.PoolItemID != nil {
			for j := range m.pool {
				if m.pool[j].ID == *p.PoolItemID {
					m.pool[j].Used = false
					m.pool[j].UsedPostID = nil
				}
			}
		}
		return nil
	}
	return domain.ErrNotFound
}

func (m *memStore) CountPersonaContent(_ context.Context, from, to time.Time) (domain.DailyCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return domain.DailyCounts{}, m.countErr
	}
	in := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }
	var counts domain.DailyCounts
	for _, p := range m.posts {
		if m.isPersona(p.AuthorUserID) && in(p.CreatedAt) {
			counts.Posts++
		}
	}
	for _, c := range m.comments {
		if !m.isPersona(c.AuthorUserID) || !in(c.CreatedAt) {
			continue
		}
		if c.ParentCommentID == nil {
			counts.Comments++
		} else {
			counts.Replies++
		}
	}
	return counts, nil
}

func (m *memStore) ListRecentPosts(_ context.Context, since time.Time, limit int) ([]domain.TargetPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TargetPost
	for _, p := range m.organic {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	for _, p := range m.posts {
		if !p.CreatedAt.Before(since) {
			out = append(out, domain.TargetPost{ID: p.ID, AuthorUserID: p.AuthorUserID, Title: p.Title, Body: p.Body, CreatedAt: p.CreatedAt})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListRecentTopLevelComments(_ context.Context, since time.Time, limit int) ([]domain.TargetComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TargetComment
	for _, c := range m.comments {
		if c.ParentCommentID == nil && !c.CreatedAt.Before(since) {
			out = append(out, domain.TargetComment{ID: c.ID, PostID: c.PostID, AuthorUserID: c.AuthorUserID, Body: c.Body, CreatedAt: c.CreatedAt})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListUnboostedOrganicPosts(_ context.Context, since time.Time) ([]domain.TargetPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TargetPost
	for _, p := range m.organic {
		if p.CreatedAt.Before(since) || m.isPersona(p.AuthorUserID) {
			continue
		}
		boosted := false
		for _, c := range m.comments {
			if c.PostID == p.ID && m.isPersona(c.AuthorUserID) {
				boosted = true
				break
			}
		}
		if !boosted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetEngineConfig(context.Context) (domain.EngineConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config, nil
}

func (m *memStore) commentsOn(postID int64) []domain.PublishedContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PublishedContent
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out
}

func (m *memStore) postsByPoolItem() map[int64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int{}
	for _, p := range m.posts {
		if p.PoolItemID != nil {
			out[*p.PoolItemID]++
		}
	}
	return out
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]bool
	requests []domain.GenerationRequest
}

var errProviderDown = errors.New("provider down")

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (domain.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.failOn[f.calls] {
		return domain.Generation{}, errProviderDown
	}
	return domain.Generation{
		Items: []domain.GeneratedText{{Content: "ответ в тоне " + string(req.Tone)}},
		Usage: domain.LLMUsage{Model: "fake", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

type recordingUsage struct {
	mu     sync.Mutex
	usages []domain.LLMUsage
}

func (r *recordingUsage) RecordLLMUsage(_ context.Context, usage domain.LLMUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = append(r.usages, usage)
	return nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []domain.NotificationJob
}

func (q *recordingQueue) Enqueue(_ context.Context, job domain.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	<-ctx.Done()
	return domain.NotificationJob{}, ctx.Err()
}

// inlineDispatch выполняет задачи синхронно, чтобы тесты видели побочные эффекты сразу.
type inlineDispatch struct{}

func (inlineDispatch) Go(ctx context.Context, _ string, fn func(ctx context.Context) error) {
	_ = fn(ctx)
}

type stubLock struct {
	held bool
}

func (l *stubLock) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() { l.held = false }, true, nil
}
