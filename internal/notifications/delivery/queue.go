// Package delivery moves persisted notifications from the dispatch trigger to the channel
// backends through a Redis list.
package delivery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
)

// Task is one queued handoff.
type Task struct {
	NotificationID uuid.UUID `json:"notification_id"`
	SourceEventID  int64     `json:"source_event_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// RedisQueue pushes tasks on the left of a list and pops them from the right.
type RedisQueue struct {
	client redis.Cmdable
	key    string
	logger logger.Logger
}

func NewRedisQueue(client redis.Cmdable, key string, log logger.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		logger: log.WithFields(map[string]interface{}{"component": "delivery-queue", "queue": key}),
	}
}

// Schedule enqueues a notification for delivery.
func (q *RedisQueue) Schedule(ctx context.Context, notificationID uuid.UUID, sourceEventID int64) error {
	payload, err := json.Marshal(Task{
		NotificationID: notificationID,
		SourceEventID:  sourceEventID,
		EnqueuedAt:     time.Now().UTC(),
	})
	if err != nil {
		return errors.NewQueuePublishFailedError(err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return errors.NewQueuePublishFailedError(err)
	}
	q.logger.Debug("notification scheduled", map[string]interface{}{
		"notificationId": notificationID.String(),
		"sourceEventId":  sourceEventID,
	})
	return nil
}

// Pop blocks up to timeout for the next task. It returns nil, nil when the wait expires.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop %s: %w", q.key, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop %s: unexpected reply of %d elements", q.key, len(res))
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// Len reports the queue length and publishes it as the queue depth gauge.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", q.key, err)
	}
	metrics.NotificationQueueDepth.Set(float64(n))
	return n, nil
}
