package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

const defaultPollInterval = time.Second

// RabbitNotificationQueue реализует очередь уведомлений поверх AMQP 0-9-1.
type RabbitNotificationQueue struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	mu           sync.Mutex
	queue        string
	pollInterval time.Duration
}

// NewRabbitNotificationQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitNotificationQueue(amqpURL, queue string) (*RabbitNotificationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitNotificationQueue{
		conn:         conn,
		ch:           ch,
		queue:        queue,
		pollInterval: defaultPollInterval,
	}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitNotificationQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop опрашивает очередь, пока не появится задача или не отменят контекст.
func (q *RabbitNotificationQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.NotificationJob{}, err
		}
		q.mu.Lock()
		start := time.Now()
		msg, ok, err := q.ch.Get(q.queue, true)
		metrics.ObserveNetworkRequest("rabbitmq", "get", q.queue, start, err)
		q.mu.Unlock()
		if err != nil {
			return domain.NotificationJob{}, fmt.Errorf("get message: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return domain.NotificationJob{}, ctx.Err()
			case <-time.After(q.pollInterval):
			}
			continue
		}
		var job domain.NotificationJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return domain.NotificationJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitNotificationQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return errors.Join(q.ch.Close(), q.conn.Close())
}
