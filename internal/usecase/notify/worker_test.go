package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghost-activity/internal/domain"
)

type personaSet struct {
	ids map[int64]bool
	err error
}

func (p personaSet) ListActivePersonas(context.Context, domain.Personality) ([]domain.Persona, error) {
	return nil, nil
}

func (p personaSet) IsPersonaUser(_ context.Context, userID int64) (bool, error) {
	return p.ids[userID], p.err
}

type notificationSink struct {
	mu    sync.Mutex
	saved []domain.Notification
	err   error
}

func (s *notificationSink) CreateNotification(_ context.Context, n domain.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, n)
	return nil
}

func (s *notificationSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type chanQueue struct {
	jobs chan domain.NotificationJob
}

func (q *chanQueue) Enqueue(_ context.Context, job domain.NotificationJob) error {
	q.jobs <- job
	return nil
}

func (q *chanQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	select {
	case <-ctx.Done():
		return domain.NotificationJob{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	}
}

func TestHandleCreatesNotificationAtContentTime(t *testing.T) {
	sink := &notificationSink{}
	w := NewWorker(nil, personaSet{ids: map[int64]bool{7: true}}, sink, zerolog.Nop())
	deliverAt := time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC)

	outcome, err := w.Handle(context.Background(), domain.NotificationJob{
		ID: "j1", Type: domain.KindComment, RecipientUserID: 42, ActorUserID: 7, PostID: 500, CommentID: 900,
		DeliverAt: deliverAt, EnqueuedAt: deliverAt.Add(-20 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	require.Len(t, sink.saved, 1)
	n := sink.saved[0]
	assert.Equal(t, int64(42), n.RecipientUserID)
	assert.Equal(t, int64(7), n.ActorUserID)
	assert.Equal(t, domain.KindComment, n.Type)
	assert.Equal(t, int64(900), n.CommentID)
	assert.True(t, n.CreatedAt.Equal(deliverAt))
}

func TestHandleSkipsPersonaAndSelfRecipients(t *testing.T) {
	sink := &notificationSink{}
	w := NewWorker(nil, personaSet{ids: map[int64]bool{7: true}}, sink, zerolog.Nop())

	outcome, err := w.Handle(context.Background(), domain.NotificationJob{Type: domain.KindReply, RecipientUserID: 7, ActorUserID: 8, PostID: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	outcome, err = w.Handle(context.Background(), domain.NotificationJob{Type: domain.KindReply, RecipientUserID: 9, ActorUserID: 9, PostID: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, sink.saved)
}

func TestHandleReportsStoreFailures(t *testing.T) {
	w := NewWorker(nil, personaSet{err: errors.New("db down")}, &notificationSink{}, zerolog.Nop())
	outcome, err := w.Handle(context.Background(), domain.NotificationJob{RecipientUserID: 1, ActorUserID: 2, PostID: 3})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Error(t, err)

	w = NewWorker(nil, personaSet{}, &notificationSink{err: errors.New("insert failed")}, zerolog.Nop())
	outcome, err = w.Handle(context.Background(), domain.NotificationJob{RecipientUserID: 1, ActorUserID: 2, PostID: 3})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Error(t, err)
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	queue := &chanQueue{jobs: make(chan domain.NotificationJob, 4)}
	sink := &notificationSink{}
	w := NewWorker(queue, personaSet{}, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, queue.Enqueue(ctx, domain.NotificationJob{RecipientUserID: i, ActorUserID: 100, PostID: i, DeliverAt: time.Now()}))
	}
	require.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
